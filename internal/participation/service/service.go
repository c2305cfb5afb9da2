package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"healthtrack/internal/participation/metrics"
	"healthtrack/internal/participation/models"
	"healthtrack/internal/platform/tracing"
	"healthtrack/pkg/domain"
	dErrors "healthtrack/pkg/domain-errors"
	"healthtrack/pkg/platform/audit"
	"healthtrack/pkg/platform/sentinel"
	pstrings "healthtrack/pkg/platform/strings"
	"healthtrack/pkg/requestcontext"
)

// Store persists participations. Create must fail with
// sentinel.ErrAlreadyUsed when the (owner, challenge) pair already exists,
// checked atomically with the insert.
type Store interface {
	Create(ctx context.Context, p *models.Participation) error
	UpdateProgress(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID, progress int, now time.Time) (*models.Participation, error)
	Delete(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID) error
	Find(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID) (*models.Participation, error)
	ListByChallenge(ctx context.Context, challenge domain.ChallengeID) ([]*models.Participation, error)
	ListByOwner(ctx context.Context, owner domain.OwnerID) ([]*models.Participation, error)
	CountByChallenge(ctx context.Context, challenge domain.ChallengeID) (int, error)
	CountByChallenges(ctx context.Context, challenges []domain.ChallengeID) (map[domain.ChallengeID]int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Ledger records challenge enrollments and derives rankings from them. It
// does not check that a challenge exists; callers do.
type Ledger struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	clock          func() time.Time
	tracer         trace.Tracer
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(l *Ledger) {
		l.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithClock overrides the request-scoped time source.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

func New(store Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("participation store is required")
	}
	l := &Ledger{
		store:  store,
		tracer: tracing.Tracer("healthtrack/participation"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Join enrolls owner in challenge with zero progress.
func (l *Ledger) Join(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID) (_ *models.Participation, err error) {
	defer l.metrics.ObserveOperation("join", time.Now())
	ctx, span := l.start(ctx, "participation.Join", owner, challenge)
	defer tracing.End(span, &err)
	defer l.countRejection(&err)

	if err := requireIDs(owner, challenge); err != nil {
		return nil, err
	}
	p, err := models.NewParticipation(owner, challenge, l.now(ctx))
	if err != nil {
		return nil, asValidation(err)
	}
	if err := l.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeAlreadyJoined, "owner already joined this challenge")
		}
		return nil, storageError(err, "failed to join challenge")
	}

	l.metrics.IncrementJoins()
	l.logAudit(ctx, audit.EventChallengeJoined, owner, challenge)
	return p, nil
}

// UpdateProgress overwrites the owner's progress. Concurrent updates resolve
// last writer wins.
func (l *Ledger) UpdateProgress(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID, progress int) (_ *models.Participation, err error) {
	defer l.metrics.ObserveOperation("update_progress", time.Now())
	ctx, span := l.start(ctx, "participation.UpdateProgress", owner, challenge)
	span.SetAttributes(attribute.Int("progress", progress))
	defer tracing.End(span, &err)
	defer l.countRejection(&err)

	if err := requireIDs(owner, challenge); err != nil {
		return nil, err
	}
	if err := models.ValidateProgress(progress); err != nil {
		return nil, err
	}
	p, err := l.store.UpdateProgress(ctx, owner, challenge, progress, l.now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotEnrolled, "owner is not enrolled in this challenge")
		}
		return nil, storageError(err, "failed to update progress")
	}

	l.metrics.IncrementProgressUpdates()
	l.logAudit(ctx, audit.EventProgressUpdated, owner, challenge, "progress", progress)
	return p, nil
}

func (l *Ledger) Leave(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID) (err error) {
	defer l.metrics.ObserveOperation("leave", time.Now())
	ctx, span := l.start(ctx, "participation.Leave", owner, challenge)
	defer tracing.End(span, &err)
	defer l.countRejection(&err)

	if err := requireIDs(owner, challenge); err != nil {
		return err
	}
	if err := l.store.Delete(ctx, owner, challenge); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotEnrolled, "owner is not enrolled in this challenge")
		}
		return storageError(err, "failed to leave challenge")
	}

	l.metrics.IncrementLeaves()
	l.logAudit(ctx, audit.EventChallengeLeft, owner, challenge)
	return nil
}

// IsEnrolled never fails. A storage failure is logged and reported as false;
// use CheckEnrolled to tell the two apart.
func (l *Ledger) IsEnrolled(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID) bool {
	enrolled, err := l.CheckEnrolled(ctx, owner, challenge)
	if err != nil {
		if dErrors.IsStorageFailure(err) {
			l.metrics.IncrementEnrollmentCheckFailures()
			if l.logger != nil {
				l.logger.ErrorContext(ctx, "enrollment check failed, reporting not enrolled",
					"owner_id", owner,
					"challenge_id", challenge,
					"error", err)
			}
		}
		return false
	}
	return enrolled
}

func (l *Ledger) CheckEnrolled(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID) (bool, error) {
	if err := requireIDs(owner, challenge); err != nil {
		return false, err
	}
	if _, err := l.store.Find(ctx, owner, challenge); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, storageError(err, "failed to check enrollment")
	}
	return true, nil
}

// ListByChallenge returns a snapshot ordered by owner ID.
func (l *Ledger) ListByChallenge(ctx context.Context, challenge domain.ChallengeID) ([]*models.Participation, error) {
	if err := challenge.Validate(); err != nil {
		return nil, err
	}
	ps, err := l.store.ListByChallenge(ctx, challenge)
	if err != nil {
		return nil, storageError(err, "failed to list participants")
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].OwnerID < ps[j].OwnerID })
	return ps, nil
}

// ListByOwner returns a snapshot ordered by challenge ID.
func (l *Ledger) ListByOwner(ctx context.Context, owner domain.OwnerID) ([]*models.Participation, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	ps, err := l.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, storageError(err, "failed to list participations")
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].ChallengeID < ps[j].ChallengeID })
	return ps, nil
}

// Rank returns the owner's 1-based position in challenge, or
// models.NotRanked when the owner is not enrolled.
func (l *Ledger) Rank(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID) (_ int, err error) {
	defer l.metrics.ObserveOperation("rank", time.Now())
	ctx, span := l.start(ctx, "participation.Rank", owner, challenge)
	defer tracing.End(span, &err)

	if err := requireIDs(owner, challenge); err != nil {
		return models.NotRanked, err
	}
	ps, err := l.store.ListByChallenge(ctx, challenge)
	if err != nil {
		return models.NotRanked, storageError(err, "failed to rank participant")
	}
	return models.RankOf(ps, owner), nil
}

// Leaderboard returns the top limit standings. A non-positive limit returns
// the full board.
func (l *Ledger) Leaderboard(ctx context.Context, challenge domain.ChallengeID, limit int) ([]models.Standing, error) {
	if err := challenge.Validate(); err != nil {
		return nil, err
	}
	ps, err := l.store.ListByChallenge(ctx, challenge)
	if err != nil {
		return nil, storageError(err, "failed to build leaderboard")
	}
	standings := models.Standings(ps)
	if limit > 0 && limit < len(standings) {
		standings = standings[:limit]
	}
	return standings, nil
}

func (l *Ledger) ParticipantCount(ctx context.Context, challenge domain.ChallengeID) (int, error) {
	if err := challenge.Validate(); err != nil {
		return 0, err
	}
	n, err := l.store.CountByChallenge(ctx, challenge)
	if err != nil {
		return 0, storageError(err, "failed to count participants")
	}
	return n, nil
}

// MostPopular ranks the supplied catalog by participant count. Repeated
// catalog entries count once. Results reflect one snapshot; callers must
// re-query after concurrent changes.
func (l *Ledger) MostPopular(ctx context.Context, catalog []models.Challenge, limit int) (_ []models.Popularity, err error) {
	defer l.metrics.ObserveOperation("most_popular", time.Now())
	ctx, span := tracing.Start(ctx, l.tracer, "participation.MostPopular",
		attribute.Int("catalog_size", len(catalog)),
		attribute.Int("limit", limit))
	defer tracing.End(span, &err)

	if limit <= 0 || len(catalog) == 0 {
		return []models.Popularity{}, nil
	}
	ids := make([]domain.ChallengeID, len(catalog))
	for i, c := range catalog {
		ids[i] = c.ID
	}
	ids = pstrings.DedupeAndTrim(ids)

	counts, err := l.store.CountByChallenges(ctx, ids)
	if err != nil {
		return nil, storageError(err, "failed to count participants")
	}
	return models.TopByPopularity(ids, counts, limit), nil
}

func (l *Ledger) start(ctx context.Context, name string, owner domain.OwnerID, challenge domain.ChallengeID) (context.Context, trace.Span) {
	return tracing.Start(ctx, l.tracer, name,
		attribute.String("owner_id", owner.String()),
		attribute.String("challenge_id", challenge.String()))
}

func (l *Ledger) now(ctx context.Context) time.Time {
	if l.clock != nil {
		return l.clock()
	}
	return requestcontext.Now(ctx)
}

func (l *Ledger) countRejection(err *error) {
	if *err == nil || dErrors.IsStorageFailure(*err) {
		return
	}
	if code := dErrors.CodeOf(*err); code != "" {
		l.metrics.IncrementRejection(string(code))
	}
}

func (l *Ledger) logAudit(ctx context.Context, event audit.AuditEvent, owner domain.OwnerID, challenge domain.ChallengeID, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if l.logger != nil {
		args := append(attributes,
			"event", string(event),
			"log_type", "audit",
			"owner_id", owner.String(),
			"challenge_id", challenge.String(),
			"request_id", requestID)
		l.logger.InfoContext(ctx, string(event), args...)
	}
	if l.auditPublisher == nil {
		return
	}
	err := l.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(event),
		OwnerID:   owner.String(),
		Subject:   challenge.String(),
		ActorID:   requestcontext.ActorID(ctx),
		RequestID: requestID,
	})
	if err != nil && l.logger != nil {
		l.logger.WarnContext(ctx, "failed to publish audit event", "action", string(event), "error", err)
	}
}

func requireIDs(owner domain.OwnerID, challenge domain.ChallengeID) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	return challenge.Validate()
}

func asValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}

func storageError(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeStorageFailure, msg)
}
