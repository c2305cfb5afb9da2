package models

import (
	"strings"
	"time"

	"healthtrack/pkg/domain"
	dErrors "healthtrack/pkg/domain-errors"
)

// DefaultTTL applies when an invitation is created without a positive TTL.
const DefaultTTL = 7 * 24 * time.Hour

// maxContactLength bounds stored invitee contacts.
const maxContactLength = 254

// Status is the lifecycle state of an invitation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusExpired  Status = "expired"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusExpired
}

// CanTransitionTo allows pending -> accepted and pending -> expired only.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.IsTerminal()
}

// ParseStatus validates a status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown invitation status: "+raw)
	}
	return s, nil
}

// Invitation is an outbound invite to join a shareable resource, usually a
// challenge.
//
// Invariants:
//   - ExpiresAt = SentAt + TTL
//   - Status moves pending -> accepted or pending -> expired, never back
//   - ResolvedAt is set exactly when Status is terminal
//   - RelatedChallengeID may be empty for non-challenge resources
type Invitation struct {
	ID                 domain.InvitationID `json:"id"`
	InviterID          domain.OwnerID      `json:"inviter_id"`
	InviteeContact     string              `json:"invitee_contact"`
	RelatedChallengeID domain.ChallengeID  `json:"related_challenge_id,omitempty"`
	Status             Status              `json:"status"`
	SentAt             time.Time           `json:"sent_at"`
	ExpiresAt          time.Time           `json:"expires_at"`
	ResolvedAt         *time.Time          `json:"resolved_at,omitempty"`
}

// NewInvitation validates and constructs a pending invitation. The contact
// must already be normalized by the caller.
func NewInvitation(id domain.InvitationID, inviter domain.OwnerID, contact string, challenge domain.ChallengeID, now time.Time, ttl time.Duration) (*Invitation, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invitation id cannot be empty")
	}
	if inviter.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "inviter cannot be empty")
	}
	if contact == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invitee contact cannot be empty")
	}
	if len(contact) > maxContactLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invitee contact is too long")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Invitation{
		ID:                 id,
		InviterID:          inviter,
		InviteeContact:     contact,
		RelatedChallengeID: challenge,
		Status:             StatusPending,
		SentAt:             now,
		ExpiresAt:          now.Add(ttl),
	}, nil
}

// IsChallengeRelated reports whether acceptance should lead to enrollment.
func (i *Invitation) IsChallengeRelated() bool {
	return !i.RelatedChallengeID.IsNil()
}

// IsExpiredAt reports whether the TTL has elapsed. The boundary instant
// counts as expired.
func (i *Invitation) IsExpiredAt(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// IsValidAt reports whether the invitation can still be accepted at now.
func (i *Invitation) IsValidAt(now time.Time) bool {
	return i.Status == StatusPending && !i.IsExpiredAt(now)
}

// CanResolve checks that the invitation is still pending.
// Use with ApplyAcceptance or ApplyExpiry in Execute callbacks.
func (i *Invitation) CanResolve() error {
	if i.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeAlreadyResolved, "invitation is already "+string(i.Status))
	}
	return nil
}

// ApplyAcceptance marks the invitation accepted. Call CanResolve first.
func (i *Invitation) ApplyAcceptance(now time.Time) {
	i.resolve(StatusAccepted, now)
}

// ApplyExpiry marks the invitation expired. Call CanResolve first.
func (i *Invitation) ApplyExpiry(now time.Time) {
	i.resolve(StatusExpired, now)
}

// ApplyResolution accepts the invitation, or expires it when the TTL has
// elapsed at now.
func (i *Invitation) ApplyResolution(now time.Time) {
	if i.IsExpiredAt(now) {
		i.ApplyExpiry(now)
		return
	}
	i.ApplyAcceptance(now)
}

func (i *Invitation) resolve(status Status, now time.Time) {
	resolved := now
	i.Status = status
	i.ResolvedAt = &resolved
}

// Clone returns a deep copy safe to hand out of a store.
func (i *Invitation) Clone() *Invitation {
	if i == nil {
		return nil
	}
	cp := *i
	if i.ResolvedAt != nil {
		resolved := *i.ResolvedAt
		cp.ResolvedAt = &resolved
	}
	return &cp
}
