// Package domain holds the typed identifiers shared by every component.
//
// Owner and challenge identifiers are opaque strings issued by external
// collaborators (user/provider CRUD, challenge CRUD). Invitation identifiers
// are UUIDs minted by this module.
package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	dErrors "healthtrack/pkg/domain-errors"
)

// maxOpaqueIDLength bounds externally issued identifiers.
const maxOpaqueIDLength = 128

// OwnerID identifies a user or a care provider. The subsystem never inspects
// which kind of owner it refers to.
type OwnerID string

// ChallengeID identifies a wellness challenge owned by challenge CRUD.
type ChallengeID string

// InvitationID identifies an invitation. Always a non-nil UUID in string form.
type InvitationID string

// ParseOwnerID validates an owner identifier at a trust boundary.
func ParseOwnerID(s string) (OwnerID, error) {
	v, err := parseOpaque(s, "owner id")
	if err != nil {
		return "", err
	}
	return OwnerID(v), nil
}

// ParseChallengeID validates a challenge identifier at a trust boundary.
func ParseChallengeID(s string) (ChallengeID, error) {
	v, err := parseOpaque(s, "challenge id")
	if err != nil {
		return "", err
	}
	return ChallengeID(v), nil
}

// ParseInvitationID validates that s is a non-nil UUID.
func ParseInvitationID(s string) (InvitationID, error) {
	if strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeValidation, "invitation id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", dErrors.New(dErrors.CodeValidation, "invalid invitation id")
	}
	if parsed == uuid.Nil {
		return "", dErrors.New(dErrors.CodeValidation, "invitation id cannot be nil")
	}
	return InvitationID(parsed.String()), nil
}

// NewInvitationID mints a fresh random invitation identifier.
func NewInvitationID() InvitationID {
	return InvitationID(uuid.NewString())
}

func parseOpaque(s, field string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if len(v) > maxOpaqueIDLength {
		return "", dErrors.New(dErrors.CodeValidation, field+" is too long")
	}
	for _, r := range v {
		if unicode.IsControl(r) || unicode.IsSpace(r) || r == '\u200B' {
			return "", dErrors.New(dErrors.CodeValidation, field+" contains invalid characters")
		}
	}
	return v, nil
}

// Validate reports whether id is already in the form ParseOwnerID returns.
// Services call it on typed IDs handed to them by in-process callers.
func (id OwnerID) Validate() error {
	return requireCanonical(string(id), "owner id")
}

func (id ChallengeID) Validate() error {
	return requireCanonical(string(id), "challenge id")
}

// Validate reports whether id is a lower-case, non-nil UUID.
func (id InvitationID) Validate() error {
	parsed, err := ParseInvitationID(string(id))
	if err != nil {
		return err
	}
	if parsed != id {
		return dErrors.New(dErrors.CodeValidation, "invitation id must be lower-case")
	}
	return nil
}

func requireCanonical(s, field string) error {
	v, err := parseOpaque(s, field)
	if err != nil {
		return err
	}
	if v != s {
		return dErrors.New(dErrors.CodeValidation, field+" has surrounding whitespace")
	}
	return nil
}

func (id OwnerID) String() string      { return string(id) }
func (id ChallengeID) String() string  { return string(id) }
func (id InvitationID) String() string { return string(id) }

func (id OwnerID) IsNil() bool      { return id == "" }
func (id ChallengeID) IsNil() bool  { return id == "" }
func (id InvitationID) IsNil() bool { return id == "" }
