package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"healthtrack/internal/contact/models"
	"healthtrack/pkg/domain"
	"healthtrack/pkg/platform/sentinel"
)

type ContactStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *ContactStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
}

func TestContactStoreSuite(t *testing.T) {
	suite.Run(t, new(ContactStoreSuite))
}

func (s *ContactStoreSuite) newContact(owner domain.OwnerID, address string) *models.Contact {
	c, err := models.NewContact(owner, address, false, s.now)
	s.Require().NoError(err)
	return c
}

func (s *ContactStoreSuite) primaries(owner domain.OwnerID) int {
	contacts, err := s.store.ListByOwner(s.ctx, owner)
	s.Require().NoError(err)
	return models.PrimaryCount(contacts)
}

// TestInsert verifies per-owner address uniqueness.
func (s *ContactStoreSuite) TestInsert() {
	s.Run("rejects duplicate address for same owner", func() {
		s.Require().NoError(s.store.Insert(s.ctx, s.newContact("U1", "a@x.com")))
		err := s.store.Insert(s.ctx, s.newContact("U1", "a@x.com"))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("allows same address for different owners", func() {
		s.Require().NoError(s.store.Insert(s.ctx, s.newContact("U2", "shared@x.com")))
		s.Require().NoError(s.store.Insert(s.ctx, s.newContact("P1", "shared@x.com")))

		owners, err := s.store.FindOwnersByAddress(s.ctx, "shared@x.com")
		s.Require().NoError(err)
		s.Equal([]domain.OwnerID{"P1", "U2"}, owners)
	})

	s.Run("stored copy is isolated from caller", func() {
		c := s.newContact("U3", "iso@x.com")
		s.Require().NoError(s.store.Insert(s.ctx, c))
		c.IsPrimary = true
		s.Equal(0, s.primaries("U3"))
	})

	s.Run("primary flag on plain insert is ignored", func() {
		s.Require().NoError(s.store.InsertPrimary(s.ctx, s.newContact("U4", "first@x.com")))
		c := s.newContact("U4", "second@x.com")
		c.IsPrimary = true
		s.Require().NoError(s.store.Insert(s.ctx, c))

		s.Equal(1, s.primaries("U4"))
		primary, err := s.store.FindPrimary(s.ctx, "U4")
		s.Require().NoError(err)
		s.Equal("first@x.com", primary.Address)
	})
}

// TestInsertPrimary verifies the clear-then-insert unit.
func (s *ContactStoreSuite) TestInsertPrimary() {
	s.Require().NoError(s.store.InsertPrimary(s.ctx, s.newContact("U1", "a@x.com")))
	s.Require().NoError(s.store.InsertPrimary(s.ctx, s.newContact("U1", "b@x.com")))

	primary, err := s.store.FindPrimary(s.ctx, "U1")
	s.Require().NoError(err)
	s.Equal("b@x.com", primary.Address)
	s.Equal(1, s.primaries("U1"))

	s.Run("duplicate leaves current primary untouched", func() {
		err := s.store.InsertPrimary(s.ctx, s.newContact("U1", "a@x.com"))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)

		primary, err := s.store.FindPrimary(s.ctx, "U1")
		s.Require().NoError(err)
		s.Equal("b@x.com", primary.Address)
	})
}

// TestPromote verifies promotion semantics.
func (s *ContactStoreSuite) TestPromote() {
	s.Require().NoError(s.store.InsertPrimary(s.ctx, s.newContact("U1", "a@x.com")))
	s.Require().NoError(s.store.Insert(s.ctx, s.newContact("U1", "b@x.com")))

	s.Run("moves the flag", func() {
		later := s.now.Add(time.Hour)
		promoted, err := s.store.Promote(s.ctx, "U1", "b@x.com", later)
		s.Require().NoError(err)
		s.True(promoted.IsPrimary)
		s.Equal(later, promoted.UpdatedAt)
		s.Equal(1, s.primaries("U1"))
	})

	s.Run("promoting the current primary is a no-op", func() {
		_, err := s.store.Promote(s.ctx, "U1", "b@x.com", s.now)
		s.Require().NoError(err)
		s.Equal(1, s.primaries("U1"))
	})

	s.Run("unknown address returns ErrNotFound and changes nothing", func() {
		_, err := s.store.Promote(s.ctx, "U1", "zzz@x.com", s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)

		primary, err := s.store.FindPrimary(s.ctx, "U1")
		s.Require().NoError(err)
		s.Equal("b@x.com", primary.Address)
	})
}

// TestDelete verifies removal never promotes.
func (s *ContactStoreSuite) TestDelete() {
	s.Require().NoError(s.store.InsertPrimary(s.ctx, s.newContact("U1", "a@x.com")))
	s.Require().NoError(s.store.Insert(s.ctx, s.newContact("U1", "b@x.com")))

	s.Require().NoError(s.store.Delete(s.ctx, "U1", "a@x.com"))
	_, err := s.store.FindPrimary(s.ctx, "U1")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.Equal(0, s.primaries("U1"))

	s.ErrorIs(s.store.Delete(s.ctx, "U1", "a@x.com"), sentinel.ErrNotFound)

	owners, err := s.store.FindOwnersByAddress(s.ctx, "a@x.com")
	s.Require().NoError(err)
	s.Empty(owners)
}

func (s *ContactStoreSuite) TestDeleteByOwner() {
	s.Require().NoError(s.store.InsertPrimary(s.ctx, s.newContact("U1", "a@x.com")))
	s.Require().NoError(s.store.Insert(s.ctx, s.newContact("U1", "b@x.com")))
	s.Require().NoError(s.store.Insert(s.ctx, s.newContact("U2", "b@x.com")))

	n, err := s.store.DeleteByOwner(s.ctx, "U1")
	s.Require().NoError(err)
	s.Equal(2, n)

	contacts, err := s.store.ListByOwner(s.ctx, "U1")
	s.Require().NoError(err)
	s.Empty(contacts)

	owners, err := s.store.FindOwnersByAddress(s.ctx, "b@x.com")
	s.Require().NoError(err)
	s.Equal([]domain.OwnerID{"U2"}, owners)

	n, err = s.store.DeleteByOwner(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Zero(n)
}

// TestConcurrentPromotion verifies that racing promotions for one owner
// always leave exactly one primary.
func (s *ContactStoreSuite) TestConcurrentPromotion() {
	const addresses = 20
	for i := 0; i < addresses; i++ {
		s.Require().NoError(s.store.Insert(s.ctx, s.newContact("U1", fmt.Sprintf("c%02d@x.com", i))))
	}

	var wg sync.WaitGroup
	for round := 0; round < 10; round++ {
		for i := 0; i < addresses; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.store.Promote(s.ctx, "U1", fmt.Sprintf("c%02d@x.com", i), s.now)
				s.NoError(err)
			}(i)
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = s.store.InsertPrimary(s.ctx, s.newContact("U1", fmt.Sprintf("n%02d@x.com", i)))
			}(i)
		}
	}
	wg.Wait()

	s.Equal(1, s.primaries("U1"))
}
