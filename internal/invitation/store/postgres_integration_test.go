//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"healthtrack/internal/invitation/models"
	"healthtrack/internal/invitation/store"
	"healthtrack/pkg/domain"
	dErrors "healthtrack/pkg/domain-errors"
	"healthtrack/pkg/platform/sentinel"
	"healthtrack/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB, store.WithTxTimeout(5*time.Second))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "invitations"))
}

func (s *PostgresStoreSuite) create(sentAt time.Time, ttl time.Duration) *models.Invitation {
	inv, err := models.NewInvitation(domain.NewInvitationID(), "inviter", "friend@x.io", "walk",
		sentAt.UTC().Truncate(time.Microsecond), ttl)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), inv))
	return inv
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	inv := s.create(time.Now(), time.Hour)

	found, err := s.store.FindByID(ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal(inv.ID, found.ID)
	s.Equal(models.StatusPending, found.Status)
	s.True(inv.ExpiresAt.Equal(found.ExpiresAt))
	s.Nil(found.ResolvedAt)

	s.True(errors.Is(s.store.Create(ctx, inv), sentinel.ErrAlreadyUsed))
}

// TestConcurrentResolution races acceptance against the sweep on rows that are
// already past expiry; each row ends in exactly one terminal state.
func (s *PostgresStoreSuite) TestConcurrentResolution() {
	ctx := context.Background()
	now := time.Now()
	inv := s.create(now.Add(-2*time.Hour), time.Hour)

	var (
		wg       sync.WaitGroup
		accepts  atomic.Int32
		resolved atomic.Int32
		swept    atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, inv.ID,
				func(i *models.Invitation) error { return i.CanResolve() },
				func(i *models.Invitation) { i.ApplyResolution(now) })
			if err == nil {
				accepts.Add(1)
			} else if dErrors.HasCode(err, dErrors.CodeAlreadyResolved) {
				resolved.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			n, err := s.store.ExpirePending(ctx, now)
			s.NoError(err)
			swept.Add(int32(n))
		}()
	}
	wg.Wait()

	s.Equal(int32(1), accepts.Load()+swept.Load())
	found, err := s.store.FindByID(ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, found.Status)
	s.NotNil(found.ResolvedAt)
}

func (s *PostgresStoreSuite) TestExpirePendingIsIdempotent() {
	ctx := context.Background()
	now := time.Now()
	s.create(now.Add(-2*time.Hour), time.Hour)
	s.create(now, time.Hour)

	n, err := s.store.ExpirePending(ctx, now)
	s.Require().NoError(err)
	s.Equal(1, n)
	n, err = s.store.ExpirePending(ctx, now)
	s.Require().NoError(err)
	s.Equal(0, n)

	pending, err := s.store.ListByStatus(ctx, models.StatusPending)
	s.Require().NoError(err)
	s.Len(pending, 1)
	byInviter, err := s.store.ListByInviter(ctx, "inviter")
	s.Require().NoError(err)
	s.Len(byInviter, 2)
}

func (s *PostgresStoreSuite) TestNonUUIDIDsAreNotFound() {
	ctx := context.Background()
	s.create(time.Now(), time.Hour)

	for _, id := range []domain.InvitationID{"not-a-uuid", "abc", ""} {
		_, err := s.store.FindByID(ctx, id)
		s.ErrorIs(err, sentinel.ErrNotFound, "id %q", id)

		called := false
		_, err = s.store.Execute(ctx, id,
			func(*models.Invitation) error { called = true; return nil },
			func(*models.Invitation) { called = true })
		s.ErrorIs(err, sentinel.ErrNotFound, "id %q", id)
		s.False(called)
	}
}
