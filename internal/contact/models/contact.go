package models

import (
	"sort"
	"time"

	"healthtrack/pkg/domain"
	dErrors "healthtrack/pkg/domain-errors"
	"healthtrack/pkg/email"
)

// maxAddressLength bounds stored addresses (RFC 5321 path limit).
const maxAddressLength = 254

// Contact is one address belonging to an owner.
//
// Invariants:
//   - Address is normalized (trimmed, lower-cased) and unique per owner
//   - At most one contact per owner has IsPrimary set
//   - Removing the primary never promotes another contact
type Contact struct {
	OwnerID   domain.OwnerID `json:"owner_id"`
	Address   string         `json:"address"`
	IsPrimary bool           `json:"is_primary"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewContact validates and constructs a contact.
func NewContact(owner domain.OwnerID, address string, primary bool, now time.Time) (*Contact, error) {
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contact owner cannot be empty")
	}
	normalized, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return &Contact{
		OwnerID:   owner,
		Address:   normalized,
		IsPrimary: primary,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NormalizeAddress returns the canonical form used for storage and lookups.
func NormalizeAddress(address string) (string, error) {
	normalized := email.Normalize(address)
	if normalized == "" {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "contact address cannot be empty")
	}
	if len(normalized) > maxAddressLength {
		return "", dErrors.New(dErrors.CodeInvariantViolation, "contact address is too long")
	}
	return normalized, nil
}

// Clone returns a copy safe to hand out of a store.
func (c *Contact) Clone() *Contact {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// PrimaryCount counts flagged contacts. A healthy owner has 0 or 1.
func PrimaryCount(contacts []*Contact) int {
	n := 0
	for _, c := range contacts {
		if c.IsPrimary {
			n++
		}
	}
	return n
}

// SortByAddress orders contacts for stable listings.
func SortByAddress(contacts []*Contact) {
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].Address < contacts[j].Address
	})
}

// ResolveOwner picks the owner for a reverse address lookup. Several owners
// sharing an address violates the per-owner uniqueness only in imported data;
// the lexicographically smallest owner ID wins so the answer is stable.
func ResolveOwner(owners []domain.OwnerID) (domain.OwnerID, bool) {
	if len(owners) == 0 {
		return "", false
	}
	best := owners[0]
	for _, o := range owners[1:] {
		if o < best {
			best = o
		}
	}
	return best, true
}
