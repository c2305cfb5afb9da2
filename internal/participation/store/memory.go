package store

import (
	"context"
	"sync"
	"time"

	"healthtrack/internal/participation/models"
	"healthtrack/pkg/domain"
	"healthtrack/pkg/platform/sentinel"
)

type key struct {
	owner     domain.OwnerID
	challenge domain.ChallengeID
}

// InMemory keeps participations keyed by (owner, challenge) with a
// per-challenge index. One RWMutex guards both maps, so Create's
// check-then-insert is atomic.
type InMemory struct {
	mu          sync.RWMutex
	records     map[key]*models.Participation
	byChallenge map[domain.ChallengeID]map[domain.OwnerID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		records:     make(map[key]*models.Participation),
		byChallenge: make(map[domain.ChallengeID]map[domain.OwnerID]struct{}),
	}
}

func (s *InMemory) Create(_ context.Context, p *models.Participation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{p.OwnerID, p.ChallengeID}
	if _, exists := s.records[k]; exists {
		return sentinel.ErrAlreadyUsed
	}
	s.records[k] = p.Clone()
	owners := s.byChallenge[p.ChallengeID]
	if owners == nil {
		owners = make(map[domain.OwnerID]struct{})
		s.byChallenge[p.ChallengeID] = owners
	}
	owners[p.OwnerID] = struct{}{}
	return nil
}

func (s *InMemory) UpdateProgress(_ context.Context, owner domain.OwnerID, challenge domain.ChallengeID, progress int, now time.Time) (*models.Participation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.records[key{owner, challenge}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p.Progress = progress
	p.UpdatedAt = now
	return p.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, owner domain.OwnerID, challenge domain.ChallengeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{owner, challenge}
	if _, ok := s.records[k]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, k)
	owners := s.byChallenge[challenge]
	delete(owners, owner)
	if len(owners) == 0 {
		delete(s.byChallenge, challenge)
	}
	return nil
}

func (s *InMemory) Find(_ context.Context, owner domain.OwnerID, challenge domain.ChallengeID) (*models.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.records[key{owner, challenge}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemory) ListByChallenge(_ context.Context, challenge domain.ChallengeID) ([]*models.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owners := s.byChallenge[challenge]
	out := make([]*models.Participation, 0, len(owners))
	for owner := range owners {
		out = append(out, s.records[key{owner, challenge}].Clone())
	}
	return out, nil
}

func (s *InMemory) ListByOwner(_ context.Context, owner domain.OwnerID) ([]*models.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Participation, 0)
	for k, p := range s.records {
		if k.owner == owner {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (s *InMemory) CountByChallenge(_ context.Context, challenge domain.ChallengeID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byChallenge[challenge]), nil
}

// CountByChallenges counts participants for each requested challenge in one
// snapshot. Challenges without participants are omitted.
func (s *InMemory) CountByChallenges(_ context.Context, challenges []domain.ChallengeID) (map[domain.ChallengeID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.ChallengeID]int, len(challenges))
	for _, c := range challenges {
		if n := len(s.byChallenge[c]); n > 0 {
			counts[c] = n
		}
	}
	return counts, nil
}
