package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,AuditPublisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"healthtrack/internal/invitation/metrics"
	"healthtrack/internal/invitation/models"
	"healthtrack/internal/invitation/service/mocks"
	"healthtrack/internal/invitation/store"
	"healthtrack/pkg/domain"
	dErrors "healthtrack/pkg/domain-errors"
	"healthtrack/pkg/platform/audit"
	"healthtrack/pkg/platform/sentinel"
)

// =============================================================================
// Lifecycle Test Suite
// =============================================================================
// A controllable clock drives the expiry boundary against the in-memory
// store; mocks cover error translation and audit emission.

type LifecycleSuite struct {
	suite.Suite
	ctrl               *gomock.Controller
	mockStore          *mocks.MockStore
	mockAuditPublisher *mocks.MockAuditPublisher
	mocked             *Lifecycle
	lifecycle          *Lifecycle
	metrics            *metrics.Metrics

	mu  sync.Mutex
	now time.Time
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleSuite))
}

func (s *LifecycleSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.mockAuditPublisher = mocks.NewMockAuditPublisher(s.ctrl)
	s.now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.metrics = metrics.New(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var err error
	s.mocked, err = New(s.mockStore,
		WithLogger(logger),
		WithAuditPublisher(s.mockAuditPublisher),
		WithClock(s.clock))
	s.Require().NoError(err)
	s.lifecycle, err = New(store.NewInMemory(),
		WithLogger(logger),
		WithMetrics(s.metrics),
		WithClock(s.clock))
	s.Require().NoError(err)
}

func (s *LifecycleSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *LifecycleSuite) clock() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *LifecycleSuite) setNow(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = t
}

func (s *LifecycleSuite) TestNew() {
	_, err := New(nil)
	s.Require().Error(err)
	s.Contains(err.Error(), "invitation store is required")

	l, err := New(s.mockStore, WithDefaultTTL(48*time.Hour))
	s.Require().NoError(err)
	s.Equal(48*time.Hour, l.defaultTTL)

	l, err = New(s.mockStore, WithDefaultTTL(0))
	s.Require().NoError(err)
	s.Equal(models.DefaultTTL, l.defaultTTL)
}

func (s *LifecycleSuite) TestCreate() {
	ctx := context.Background()

	s.Run("pending with default ttl and normalized contact", func() {
		inv, err := s.lifecycle.Create(ctx, "inviter", " Friend@X.io ", "walk", 0)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, inv.Status)
		s.Equal("friend@x.io", inv.InviteeContact)
		s.Equal(s.now, inv.SentAt)
		s.Equal(s.now.Add(7*24*time.Hour), inv.ExpiresAt)
		s.False(inv.ID.IsNil())
	})

	s.Run("non-challenge invitation", func() {
		inv, err := s.lifecycle.Create(ctx, "inviter", "a@x.io", "", time.Hour)
		s.Require().NoError(err)
		s.False(inv.IsChallengeRelated())
	})

	s.Run("missing inviter or contact", func() {
		_, err := s.lifecycle.Create(ctx, "", "a@x.io", "walk", 0)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.lifecycle.Create(ctx, "inviter", "  ", "walk", 0)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("store failure and audit emission", func() {
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
		_, err := s.mocked.Create(ctx, "inviter", "a@x.io", "walk", 0)
		s.True(dErrors.HasCode(err, dErrors.CodeStorageFailure))

		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.mockAuditPublisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.Event) error {
				s.Equal(string(audit.EventInvitationCreated), e.Action)
				s.Equal("inviter", e.OwnerID)
				return nil
			})
		_, err = s.mocked.Create(ctx, "inviter", "a@x.io", "walk", 0)
		s.NoError(err)
	})
}

func (s *LifecycleSuite) TestAcceptExpirationBoundary() {
	ctx := context.Background()
	sent := s.now

	s.Run("one second before expiry succeeds", func() {
		s.setNow(sent)
		inv, err := s.lifecycle.Create(ctx, "inviter", "a@x.io", "walk", 7*24*time.Hour)
		s.Require().NoError(err)

		s.setNow(sent.Add(7*24*time.Hour - time.Second))
		accepted, err := s.lifecycle.Accept(ctx, inv.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusAccepted, accepted.Status)
		s.Require().NotNil(accepted.ResolvedAt)
	})

	s.Run("one second after expiry fails and persists expiry", func() {
		s.setNow(sent)
		inv, err := s.lifecycle.Create(ctx, "inviter", "b@x.io", "walk", 7*24*time.Hour)
		s.Require().NoError(err)

		s.setNow(sent.Add(7*24*time.Hour + time.Second))
		_, err = s.lifecycle.Accept(ctx, inv.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))

		stored, err := s.lifecycle.Get(ctx, inv.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusExpired, stored.Status)

		_, err = s.lifecycle.Accept(ctx, inv.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyResolved))
	})

	s.Run("exactly at expiry counts as expired", func() {
		s.setNow(sent)
		inv, err := s.lifecycle.Create(ctx, "inviter", "c@x.io", "", time.Hour)
		s.Require().NoError(err)

		s.setNow(sent.Add(time.Hour))
		_, err = s.lifecycle.Accept(ctx, inv.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeExpired))
	})

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Resolutions.WithLabelValues("accepted")))
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.Resolutions.WithLabelValues("expired_on_accept")))
}

func (s *LifecycleSuite) TestAcceptErrors() {
	ctx := context.Background()

	s.Run("unknown invitation", func() {
		_, err := s.lifecycle.Accept(ctx, domain.NewInvitationID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("empty id", func() {
		_, err := s.lifecycle.Accept(ctx, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("already accepted", func() {
		inv, err := s.lifecycle.Create(ctx, "inviter", "a@x.io", "walk", 0)
		s.Require().NoError(err)
		_, err = s.lifecycle.Accept(ctx, inv.ID)
		s.Require().NoError(err)

		_, err = s.lifecycle.Accept(ctx, inv.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyResolved))
	})

	s.Run("store failure", func() {
		id := domain.NewInvitationID()
		s.mockStore.EXPECT().Execute(gomock.Any(), id, gomock.Any(), gomock.Any()).
			Return(nil, errors.New("serialization failure"))

		_, err := s.mocked.Accept(ctx, id)
		s.True(dErrors.HasCode(err, dErrors.CodeStorageFailure))
	})

	s.Run("store not found", func() {
		id := domain.NewInvitationID()
		s.mockStore.EXPECT().Execute(gomock.Any(), id, gomock.Any(), gomock.Any()).
			Return(nil, sentinel.ErrNotFound)

		_, err := s.mocked.Accept(ctx, id)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *LifecycleSuite) TestConcurrentAccept() {
	ctx := context.Background()
	inv, err := s.lifecycle.Create(ctx, "inviter", "a@x.io", "walk", 0)
	s.Require().NoError(err)

	var (
		wg       sync.WaitGroup
		ok       atomic.Int32
		resolved atomic.Int32
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.lifecycle.Accept(ctx, inv.ID)
			if err == nil {
				ok.Add(1)
			} else if dErrors.HasCode(err, dErrors.CodeAlreadyResolved) {
				resolved.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), ok.Load())
	s.Equal(int32(1), resolved.Load())
}

func (s *LifecycleSuite) TestSweepExpired() {
	ctx := context.Background()
	sent := s.now
	for _, contact := range []string{"a@x.io", "b@x.io"} {
		_, err := s.lifecycle.Create(ctx, "inviter", contact, "walk", time.Hour)
		s.Require().NoError(err)
	}
	fresh, err := s.lifecycle.Create(ctx, "inviter", "c@x.io", "walk", 3*time.Hour)
	s.Require().NoError(err)

	s.setNow(sent.Add(2 * time.Hour))
	n, err := s.lifecycle.SweepExpired(ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = s.lifecycle.SweepExpired(ctx)
	s.Require().NoError(err)
	s.Equal(0, n, "second sweep with no intervening change is a no-op")

	s.True(s.lifecycle.IsValid(ctx, fresh.ID))
	expired, err := s.lifecycle.ListByStatus(ctx, models.StatusExpired)
	s.Require().NoError(err)
	s.Len(expired, 2)
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.Swept))

	s.Run("store failure surfaces", func() {
		s.mockStore.EXPECT().ExpirePending(gomock.Any(), gomock.Any()).Return(0, sentinel.ErrUnavailable)
		_, err := s.mocked.SweepExpired(ctx)
		s.True(dErrors.IsStorageFailure(err))
	})
}

func (s *LifecycleSuite) TestIsValidHasNoSideEffects() {
	ctx := context.Background()
	sent := s.now
	inv, err := s.lifecycle.Create(ctx, "inviter", "a@x.io", "walk", time.Hour)
	s.Require().NoError(err)

	s.True(s.lifecycle.IsValid(ctx, inv.ID))

	s.setNow(sent.Add(2 * time.Hour))
	s.False(s.lifecycle.IsValid(ctx, inv.ID))

	stored, err := s.lifecycle.Get(ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, stored.Status)

	s.False(s.lifecycle.IsValid(ctx, domain.NewInvitationID()))
	s.False(s.lifecycle.IsValid(ctx, ""))
}

func (s *LifecycleSuite) TestListings() {
	ctx := context.Background()
	_, err := s.lifecycle.Create(ctx, "alice", "Friend@x.io", "walk", 0)
	s.Require().NoError(err)
	_, err = s.lifecycle.Create(ctx, "bob", "friend@x.io", "run", 0)
	s.Require().NoError(err)

	byInviter, err := s.lifecycle.ListByInviter(ctx, "alice")
	s.Require().NoError(err)
	s.Len(byInviter, 1)

	byContact, err := s.lifecycle.ListByInviteeContact(ctx, "FRIEND@x.io")
	s.Require().NoError(err)
	s.Len(byContact, 2)

	_, err = s.lifecycle.ListByStatus(ctx, models.Status("cancelled"))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *LifecycleSuite) TestMalformedIDs() {
	ctx := context.Background()

	s.Run("inviter and challenge", func() {
		_, err := s.mocked.Create(ctx, " ", "a@x.io", "walk", 0)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.mocked.Create(ctx, "inviter\n", "a@x.io", "walk", 0)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.mocked.Create(ctx, "inviter", "a@x.io", "walk ", 0)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.mocked.ListByInviter(ctx, " inviter")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("invitation ids that are not uuids never reach the store", func() {
		for _, id := range []domain.InvitationID{"abc", "not-a-uuid", " ", "550E8400-E29B-41D4-A716-446655440000"} {
			_, err := s.mocked.Accept(ctx, id)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "id %q", id)
			s.False(dErrors.IsStorageFailure(err))
			_, err = s.mocked.Get(ctx, id)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "id %q", id)
			s.False(s.mocked.IsValid(ctx, id))
		}
	})

	s.Run("status strings are normalized", func() {
		_, err := s.lifecycle.Create(ctx, "inviter", "a@x.io", "walk", 0)
		s.Require().NoError(err)
		pending, err := s.lifecycle.ListByStatus(ctx, models.Status(" Pending "))
		s.Require().NoError(err)
		s.Len(pending, 1)
	})
}
