package store

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"healthtrack/internal/contact/models"
	"healthtrack/pkg/domain"
	"healthtrack/pkg/platform/sentinel"
)

// numShards spreads owners across independent locks so promotions for
// different owners do not serialize behind one mutex.
const numShards = 64

type shard struct {
	mu       sync.RWMutex
	contacts map[domain.OwnerID]map[string]*models.Contact
}

// InMemory is a sharded in-memory contact store. Every multi-row mutation for
// an owner runs under that owner's shard lock, so clear-then-set is atomic.
//
// Lock order: shard lock, then indexMu.
type InMemory struct {
	shards [numShards]shard

	indexMu   sync.RWMutex
	byAddress map[string]map[domain.OwnerID]struct{}
}

func NewInMemory() *InMemory {
	s := &InMemory{byAddress: make(map[string]map[domain.OwnerID]struct{})}
	for i := range s.shards {
		s.shards[i].contacts = make(map[domain.OwnerID]map[string]*models.Contact)
	}
	return s
}

func (s *InMemory) shardFor(owner domain.OwnerID) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(owner))
	return &s.shards[h.Sum32()%numShards]
}

// Insert adds a non-primary contact. A primary flag on contact is ignored;
// primaries are only set by InsertPrimary and Promote.
func (s *InMemory) Insert(_ context.Context, contact *models.Contact) error {
	sh := s.shardFor(contact.OwnerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	owned := sh.contacts[contact.OwnerID]
	if _, exists := owned[contact.Address]; exists {
		return sentinel.ErrAlreadyUsed
	}
	stored := contact.Clone()
	stored.IsPrimary = false
	s.put(sh, stored)
	return nil
}

// InsertPrimary clears the owner's current primary and inserts contact as the
// new primary in one critical section.
func (s *InMemory) InsertPrimary(_ context.Context, contact *models.Contact) error {
	sh := s.shardFor(contact.OwnerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	owned := sh.contacts[contact.OwnerID]
	if _, exists := owned[contact.Address]; exists {
		return sentinel.ErrAlreadyUsed
	}
	clearPrimary(owned, "", contact.UpdatedAt)

	stored := contact.Clone()
	stored.IsPrimary = true
	s.put(sh, stored)
	return nil
}

func (s *InMemory) Promote(_ context.Context, owner domain.OwnerID, address string, now time.Time) (*models.Contact, error) {
	sh := s.shardFor(owner)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	owned := sh.contacts[owner]
	target, ok := owned[address]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clearPrimary(owned, address, now)
	if !target.IsPrimary {
		target.IsPrimary = true
		target.UpdatedAt = now
	}
	return target.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, owner domain.OwnerID, address string) error {
	sh := s.shardFor(owner)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	owned := sh.contacts[owner]
	if _, ok := owned[address]; !ok {
		return sentinel.ErrNotFound
	}
	delete(owned, address)
	if len(owned) == 0 {
		delete(sh.contacts, owner)
	}
	s.unindex(owner, address)
	return nil
}

func (s *InMemory) DeleteByOwner(_ context.Context, owner domain.OwnerID) (int, error) {
	sh := s.shardFor(owner)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	owned := sh.contacts[owner]
	for address := range owned {
		s.unindex(owner, address)
	}
	delete(sh.contacts, owner)
	return len(owned), nil
}

func (s *InMemory) FindPrimary(_ context.Context, owner domain.OwnerID) (*models.Contact, error) {
	sh := s.shardFor(owner)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	for _, c := range sh.contacts[owner] {
		if c.IsPrimary {
			return c.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListByOwner(_ context.Context, owner domain.OwnerID) ([]*models.Contact, error) {
	sh := s.shardFor(owner)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	out := make([]*models.Contact, 0, len(sh.contacts[owner]))
	for _, c := range sh.contacts[owner] {
		out = append(out, c.Clone())
	}
	models.SortByAddress(out)
	return out, nil
}

// FindOwnersByAddress returns every owner holding address, sorted ascending.
func (s *InMemory) FindOwnersByAddress(_ context.Context, address string) ([]domain.OwnerID, error) {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()

	owners := make([]domain.OwnerID, 0, len(s.byAddress[address]))
	for owner := range s.byAddress[address] {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners, nil
}

// put stores contact and indexes it. Caller holds the shard lock.
func (s *InMemory) put(sh *shard, contact *models.Contact) {
	owned := sh.contacts[contact.OwnerID]
	if owned == nil {
		owned = make(map[string]*models.Contact)
		sh.contacts[contact.OwnerID] = owned
	}
	owned[contact.Address] = contact

	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	holders := s.byAddress[contact.Address]
	if holders == nil {
		holders = make(map[domain.OwnerID]struct{})
		s.byAddress[contact.Address] = holders
	}
	holders[contact.OwnerID] = struct{}{}
}

func (s *InMemory) unindex(owner domain.OwnerID, address string) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	holders := s.byAddress[address]
	delete(holders, owner)
	if len(holders) == 0 {
		delete(s.byAddress, address)
	}
}

// clearPrimary unflags every primary except keep. Caller holds the shard lock.
func clearPrimary(owned map[string]*models.Contact, keep string, now time.Time) {
	for address, c := range owned {
		if c.IsPrimary && address != keep {
			c.IsPrimary = false
			c.UpdatedAt = now
		}
	}
}
