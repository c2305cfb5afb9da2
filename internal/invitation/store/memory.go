package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"healthtrack/internal/invitation/models"
	"healthtrack/pkg/domain"
	"healthtrack/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded invitation store. Execute holds the write lock
// across validate and mutate, so concurrent resolutions of the same
// invitation serialize.
type InMemory struct {
	mu          sync.RWMutex
	invitations map[domain.InvitationID]*models.Invitation
}

func NewInMemory() *InMemory {
	return &InMemory{invitations: make(map[domain.InvitationID]*models.Invitation)}
}

func (s *InMemory) Create(_ context.Context, inv *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invitations[inv.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.invitations[inv.ID] = inv.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.InvitationID) (*models.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invitations[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return inv.Clone(), nil
}

// Execute loads the invitation, runs validate and, on success, mutate, then
// saves the result. A validate error is returned unchanged and nothing is
// written.
func (s *InMemory) Execute(_ context.Context, id domain.InvitationID, validate func(*models.Invitation) error, mutate func(*models.Invitation)) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.invitations[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.invitations[id] = working
	return working.Clone(), nil
}

// ExpirePending transitions every pending invitation with ExpiresAt <= now.
// Terminal invitations are never touched, so repeated calls are idempotent.
func (s *InMemory) ExpirePending(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for _, inv := range s.invitations {
		if inv.Status == models.StatusPending && inv.IsExpiredAt(now) {
			inv.ApplyExpiry(now)
			expired++
		}
	}
	return expired, nil
}

func (s *InMemory) ListByInviter(_ context.Context, inviter domain.OwnerID) ([]*models.Invitation, error) {
	return s.filter(func(inv *models.Invitation) bool { return inv.InviterID == inviter }), nil
}

func (s *InMemory) ListByInviteeContact(_ context.Context, contact string) ([]*models.Invitation, error) {
	return s.filter(func(inv *models.Invitation) bool { return inv.InviteeContact == contact }), nil
}

func (s *InMemory) ListByStatus(_ context.Context, status models.Status) ([]*models.Invitation, error) {
	return s.filter(func(inv *models.Invitation) bool { return inv.Status == status }), nil
}

// filter returns matching invitations ordered by SentAt, then ID.
func (s *InMemory) filter(match func(*models.Invitation) bool) []*models.Invitation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Invitation, 0)
	for _, inv := range s.invitations {
		if match(inv) {
			out = append(out, inv.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].SentAt.Before(out[j].SentAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
