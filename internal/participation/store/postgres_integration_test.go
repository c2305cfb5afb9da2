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

	"healthtrack/internal/participation/models"
	"healthtrack/internal/participation/store"
	"healthtrack/pkg/domain"
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
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "participations"))
}

// TestConcurrentJoin verifies ON CONFLICT DO NOTHING lets exactly one insert win.
func (s *PostgresStoreSuite) TestConcurrentJoin() {
	ctx := context.Background()
	const goroutines = 40

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, _ := models.NewParticipation("o1", "walk", time.Now())
			err := s.store.Create(ctx, p)
			if err == nil {
				successes.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyUsed) {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *PostgresStoreSuite) TestProgressAndCounts() {
	ctx := context.Background()
	for _, owner := range []domain.OwnerID{"a", "b", "c"} {
		p, err := models.NewParticipation(owner, "walk", time.Now())
		s.Require().NoError(err)
		s.Require().NoError(s.store.Create(ctx, p))
	}
	p, err := models.NewParticipation("a", "run", time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, p))

	updated, err := s.store.UpdateProgress(ctx, "b", "walk", 75, time.Now())
	s.Require().NoError(err)
	s.Equal(75, updated.Progress)

	_, err = s.store.UpdateProgress(ctx, "z", "walk", 75, time.Now())
	s.True(errors.Is(err, sentinel.ErrNotFound))

	counts, err := s.store.CountByChallenges(ctx, []domain.ChallengeID{"walk", "run", "swim"})
	s.Require().NoError(err)
	s.Equal(map[domain.ChallengeID]int{"walk": 3, "run": 1}, counts)

	list, err := s.store.ListByChallenge(ctx, "walk")
	s.Require().NoError(err)
	s.Equal(1, models.RankOf(list, "b"))

	s.Require().NoError(s.store.Delete(ctx, "a", "run"))
	s.True(errors.Is(s.store.Delete(ctx, "a", "run"), sentinel.ErrNotFound))
}
