package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"healthtrack/internal/invitation/metrics"
	"healthtrack/internal/invitation/models"
	"healthtrack/internal/platform/tracing"
	"healthtrack/pkg/domain"
	dErrors "healthtrack/pkg/domain-errors"
	"healthtrack/pkg/email"
	"healthtrack/pkg/platform/audit"
	"healthtrack/pkg/platform/sentinel"
	"healthtrack/pkg/requestcontext"
)

// Store persists invitations. Execute must hold a lock on the invitation
// across validate and mutate; ExpirePending must only touch pending rows.
type Store interface {
	Create(ctx context.Context, inv *models.Invitation) error
	FindByID(ctx context.Context, id domain.InvitationID) (*models.Invitation, error)
	Execute(ctx context.Context, id domain.InvitationID, validate func(*models.Invitation) error, mutate func(*models.Invitation)) (*models.Invitation, error)
	ExpirePending(ctx context.Context, now time.Time) (int, error)
	ListByInviter(ctx context.Context, inviter domain.OwnerID) ([]*models.Invitation, error)
	ListByInviteeContact(ctx context.Context, contact string) ([]*models.Invitation, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Invitation, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Lifecycle runs the pending -> accepted | expired state machine. It never
// enrolls anyone; callers act on an accepted invitation.
type Lifecycle struct {
	store          Store
	defaultTTL     time.Duration
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	clock          func() time.Time
	tracer         trace.Tracer
}

type Option func(*Lifecycle)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Lifecycle) {
		l.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(l *Lifecycle) {
		l.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Lifecycle) {
		l.metrics = m
	}
}

// WithClock overrides the request-scoped time source.
func WithClock(clock func() time.Time) Option {
	return func(l *Lifecycle) {
		l.clock = clock
	}
}

// WithDefaultTTL sets the TTL used when Create receives a non-positive one.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(l *Lifecycle) {
		if ttl > 0 {
			l.defaultTTL = ttl
		}
	}
}

func New(store Store, opts ...Option) (*Lifecycle, error) {
	if store == nil {
		return nil, errors.New("invitation store is required")
	}
	l := &Lifecycle{
		store:      store,
		defaultTTL: models.DefaultTTL,
		tracer:     tracing.Tracer("healthtrack/invitation"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Create sends a pending invitation. A non-positive ttl uses the default.
// relatedChallenge may be empty for invitations to non-challenge resources.
func (l *Lifecycle) Create(ctx context.Context, inviter domain.OwnerID, inviteeContact string, relatedChallenge domain.ChallengeID, ttl time.Duration) (_ *models.Invitation, err error) {
	ctx, span := tracing.Start(ctx, l.tracer, "invitation.Create",
		attribute.String("inviter_id", inviter.String()),
		attribute.String("challenge_id", relatedChallenge.String()))
	defer tracing.End(span, &err)

	if err := inviter.Validate(); err != nil {
		return nil, err
	}
	if !relatedChallenge.IsNil() {
		if err := relatedChallenge.Validate(); err != nil {
			return nil, err
		}
	}
	contact := email.Normalize(inviteeContact)
	if contact == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "invitee contact is required")
	}
	if ttl <= 0 {
		ttl = l.defaultTTL
	}

	inv, err := models.NewInvitation(domain.NewInvitationID(), inviter, contact, relatedChallenge, l.now(ctx), ttl)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := l.store.Create(ctx, inv); err != nil {
		return nil, storageError(err, "failed to create invitation")
	}

	l.metrics.IncrementCreated()
	l.logAudit(ctx, audit.EventInvitationCreated, inv, "expires_at", inv.ExpiresAt)
	return inv, nil
}

func (l *Lifecycle) Get(ctx context.Context, id domain.InvitationID) (*models.Invitation, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	inv, err := l.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "failed to load invitation")
	}
	return inv, nil
}

// Accept resolves a pending invitation. An invitation past its expiry is
// transitioned to expired and Expired is returned; the transition is kept.
//
// Uses the Execute callback pattern: the store holds the invitation lock
// across validation and mutation, so of two concurrent accepts exactly one
// succeeds and the other observes AlreadyResolved.
func (l *Lifecycle) Accept(ctx context.Context, id domain.InvitationID) (_ *models.Invitation, err error) {
	ctx, span := tracing.Start(ctx, l.tracer, "invitation.Accept",
		attribute.String("invitation_id", id.String()))
	defer tracing.End(span, &err)

	if err := id.Validate(); err != nil {
		return nil, err
	}

	now := l.now(ctx)
	inv, err := l.store.Execute(ctx, id,
		func(inv *models.Invitation) error {
			return inv.CanResolve()
		},
		func(inv *models.Invitation) {
			inv.ApplyResolution(now)
		},
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeAlreadyResolved) {
			l.metrics.IncrementResolution("already_resolved")
			return nil, err
		}
		return nil, translateStoreError(err, "failed to accept invitation")
	}

	if inv.Status == models.StatusExpired {
		l.metrics.IncrementResolution("expired_on_accept")
		l.logAudit(ctx, audit.EventInvitationExpired, inv)
		return nil, dErrors.New(dErrors.CodeExpired, "invitation has expired")
	}

	l.metrics.IncrementResolution("accepted")
	l.logAudit(ctx, audit.EventInvitationAccepted, inv)
	return inv, nil
}

// SweepExpired expires every pending invitation whose TTL has elapsed and
// returns how many changed. Safe to run repeatedly and alongside Accept.
func (l *Lifecycle) SweepExpired(ctx context.Context) (_ int, err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, l.tracer, "invitation.SweepExpired")
	defer tracing.End(span, &err)

	n, err := l.store.ExpirePending(ctx, l.now(ctx))
	if err != nil {
		return 0, storageError(err, "failed to sweep expired invitations")
	}
	span.SetAttributes(attribute.Int("expired", n))
	l.metrics.ObserveSweep(n, start)

	if n > 0 {
		if l.logger != nil {
			l.logger.InfoContext(ctx, string(audit.EventInvitationsSwept),
				"event", string(audit.EventInvitationsSwept),
				"log_type", "audit",
				"count", n,
				"request_id", requestcontext.RequestID(ctx))
		}
		l.emit(ctx, audit.Event{Action: string(audit.EventInvitationsSwept), Count: n})
	}
	return n, nil
}

func (l *Lifecycle) ListByInviter(ctx context.Context, inviter domain.OwnerID) ([]*models.Invitation, error) {
	if err := inviter.Validate(); err != nil {
		return nil, err
	}
	invs, err := l.store.ListByInviter(ctx, inviter)
	if err != nil {
		return nil, storageError(err, "failed to list invitations")
	}
	return invs, nil
}

func (l *Lifecycle) ListByInviteeContact(ctx context.Context, contact string) ([]*models.Invitation, error) {
	normalized := email.Normalize(contact)
	if normalized == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "invitee contact is required")
	}
	invs, err := l.store.ListByInviteeContact(ctx, normalized)
	if err != nil {
		return nil, storageError(err, "failed to list invitations")
	}
	return invs, nil
}

func (l *Lifecycle) ListByStatus(ctx context.Context, status models.Status) ([]*models.Invitation, error) {
	status, err := models.ParseStatus(string(status))
	if err != nil {
		return nil, err
	}
	invs, err := l.store.ListByStatus(ctx, status)
	if err != nil {
		return nil, storageError(err, "failed to list invitations")
	}
	return invs, nil
}

// IsValid reports whether id is pending and unexpired right now. It has no
// side effects: an overdue pending invitation stays pending until Accept or
// SweepExpired runs. Lookup failures report false.
func (l *Lifecycle) IsValid(ctx context.Context, id domain.InvitationID) bool {
	if id.Validate() != nil {
		return false
	}
	inv, err := l.store.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) && l.logger != nil {
			l.logger.ErrorContext(ctx, "invitation validity check failed",
				"invitation_id", id,
				"error", err)
		}
		return false
	}
	return inv.IsValidAt(l.now(ctx))
}

func (l *Lifecycle) now(ctx context.Context) time.Time {
	if l.clock != nil {
		return l.clock()
	}
	return requestcontext.Now(ctx)
}

func (l *Lifecycle) logAudit(ctx context.Context, event audit.AuditEvent, inv *models.Invitation, attributes ...any) {
	if l.logger != nil {
		args := append(attributes,
			"event", string(event),
			"log_type", "audit",
			"invitation_id", inv.ID.String(),
			"inviter_id", inv.InviterID.String(),
			"challenge_id", inv.RelatedChallengeID.String(),
			"request_id", requestcontext.RequestID(ctx))
		l.logger.InfoContext(ctx, string(event), args...)
	}
	l.emit(ctx, audit.Event{
		Action:  string(event),
		OwnerID: inv.InviterID.String(),
		Subject: inv.ID.String(),
	})
}

func (l *Lifecycle) emit(ctx context.Context, event audit.Event) {
	if l.auditPublisher == nil {
		return
	}
	event.ActorID = requestcontext.ActorID(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := l.auditPublisher.Emit(ctx, event); err != nil && l.logger != nil {
		l.logger.WarnContext(ctx, "failed to publish audit event", "action", event.Action, "error", err)
	}
}

func translateStoreError(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "invitation not found")
	}
	return storageError(err, msg)
}

func storageError(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeStorageFailure, msg)
}
