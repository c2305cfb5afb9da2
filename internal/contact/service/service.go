package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"healthtrack/internal/contact/metrics"
	"healthtrack/internal/contact/models"
	"healthtrack/internal/platform/tracing"
	"healthtrack/pkg/domain"
	dErrors "healthtrack/pkg/domain-errors"
	"healthtrack/pkg/platform/audit"
	"healthtrack/pkg/platform/sentinel"
	"healthtrack/pkg/requestcontext"
)

// Store persists contacts. InsertPrimary and Promote must clear the owner's
// other primaries and flag the target in one atomic unit.
type Store interface {
	Insert(ctx context.Context, contact *models.Contact) error
	InsertPrimary(ctx context.Context, contact *models.Contact) error
	Promote(ctx context.Context, owner domain.OwnerID, address string, now time.Time) (*models.Contact, error)
	Delete(ctx context.Context, owner domain.OwnerID, address string) error
	DeleteByOwner(ctx context.Context, owner domain.OwnerID) (int, error)
	FindPrimary(ctx context.Context, owner domain.OwnerID) (*models.Contact, error)
	ListByOwner(ctx context.Context, owner domain.OwnerID) ([]*models.Contact, error)
	FindOwnersByAddress(ctx context.Context, address string) ([]domain.OwnerID, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Registry maintains contact addresses per owner and guarantees that at most
// one of them is flagged primary.
type Registry struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	clock          func() time.Time
	tracer         trace.Tracer
}

type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(r *Registry) {
		r.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithClock overrides the request-scoped time source.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		r.clock = clock
	}
}

func New(store Store, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, errors.New("contact store is required")
	}
	r := &Registry{
		store:  store,
		tracer: tracing.Tracer("healthtrack/contact"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// AddContact registers address for owner. With makePrimary the new contact
// replaces the current primary atomically.
func (r *Registry) AddContact(ctx context.Context, owner domain.OwnerID, address string, makePrimary bool) (_ *models.Contact, err error) {
	defer r.metrics.ObserveOperation("add_contact", time.Now())
	ctx, span := tracing.Start(ctx, r.tracer, "contact.AddContact",
		attribute.String("owner_id", owner.String()),
		attribute.Bool("make_primary", makePrimary))
	defer tracing.End(span, &err)

	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	contact, err := models.NewContact(owner, address, makePrimary, r.now(ctx))
	if err != nil {
		return nil, asValidation(err)
	}

	if makePrimary {
		err = r.store.InsertPrimary(ctx, contact)
	} else {
		err = r.store.Insert(ctx, contact)
	}
	if err != nil {
		return nil, translateStoreError(err, "failed to add contact")
	}

	r.metrics.IncrementAdded()
	if makePrimary {
		r.metrics.IncrementPromotions()
	}
	r.logAudit(ctx, audit.EventContactAdded, owner, contact.Address,
		"is_primary", contact.IsPrimary)
	return contact, nil
}

// RemoveContact deletes one address. Removing the primary leaves the owner
// without one; no other contact is promoted.
func (r *Registry) RemoveContact(ctx context.Context, owner domain.OwnerID, address string) (err error) {
	defer r.metrics.ObserveOperation("remove_contact", time.Now())
	ctx, span := tracing.Start(ctx, r.tracer, "contact.RemoveContact",
		attribute.String("owner_id", owner.String()))
	defer tracing.End(span, &err)

	if err := requireOwner(owner); err != nil {
		return err
	}
	normalized, err := models.NormalizeAddress(address)
	if err != nil {
		return asValidation(err)
	}
	if err := r.store.Delete(ctx, owner, normalized); err != nil {
		return translateStoreError(err, "failed to remove contact")
	}

	r.metrics.AddRemoved(1)
	r.logAudit(ctx, audit.EventContactRemoved, owner, normalized)
	return nil
}

// SetPrimary flags address as the owner's only primary contact.
func (r *Registry) SetPrimary(ctx context.Context, owner domain.OwnerID, address string) (_ *models.Contact, err error) {
	defer r.metrics.ObserveOperation("set_primary", time.Now())
	ctx, span := tracing.Start(ctx, r.tracer, "contact.SetPrimary",
		attribute.String("owner_id", owner.String()))
	defer tracing.End(span, &err)

	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	normalized, err := models.NormalizeAddress(address)
	if err != nil {
		return nil, asValidation(err)
	}
	contact, err := r.store.Promote(ctx, owner, normalized, r.now(ctx))
	if err != nil {
		return nil, translateStoreError(err, "failed to set primary contact")
	}

	r.metrics.IncrementPromotions()
	r.logAudit(ctx, audit.EventContactPromoted, owner, normalized)
	return contact, nil
}

func (r *Registry) GetPrimary(ctx context.Context, owner domain.OwnerID) (_ *models.Contact, err error) {
	ctx, span := tracing.Start(ctx, r.tracer, "contact.GetPrimary",
		attribute.String("owner_id", owner.String()))
	defer tracing.End(span, &err)

	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	contact, err := r.store.FindPrimary(ctx, owner)
	if err != nil {
		return nil, translateStoreError(err, "failed to load primary contact")
	}
	return contact, nil
}

// ListContacts returns the owner's contacts ordered by address.
func (r *Registry) ListContacts(ctx context.Context, owner domain.OwnerID) (_ []*models.Contact, err error) {
	ctx, span := tracing.Start(ctx, r.tracer, "contact.ListContacts",
		attribute.String("owner_id", owner.String()))
	defer tracing.End(span, &err)

	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	contacts, err := r.store.ListByOwner(ctx, owner)
	if err != nil {
		return nil, translateStoreError(err, "failed to list contacts")
	}
	models.SortByAddress(contacts)
	return contacts, nil
}

// FindOwnerByContact resolves the owner holding address. When several owners
// share it the smallest owner ID is returned.
func (r *Registry) FindOwnerByContact(ctx context.Context, address string) (_ domain.OwnerID, err error) {
	defer r.metrics.ObserveOperation("find_owner", time.Now())
	ctx, span := tracing.Start(ctx, r.tracer, "contact.FindOwnerByContact")
	defer tracing.End(span, &err)

	normalized, err := models.NormalizeAddress(address)
	if err != nil {
		return "", asValidation(err)
	}
	owners, err := r.store.FindOwnersByAddress(ctx, normalized)
	if err != nil {
		return "", translateStoreError(err, "failed to look up contact owner")
	}
	owner, ok := models.ResolveOwner(owners)
	if !ok {
		return "", dErrors.New(dErrors.CodeNotFound, "no owner holds this contact")
	}
	if len(owners) > 1 && r.logger != nil {
		r.logger.WarnContext(ctx, "contact address shared by several owners",
			"owners", len(owners),
			"resolved_owner_id", owner)
	}
	return owner, nil
}

// RemoveAllForOwner deletes every contact of owner and returns how many were
// removed. Used when the owner itself is deleted.
func (r *Registry) RemoveAllForOwner(ctx context.Context, owner domain.OwnerID) (_ int, err error) {
	ctx, span := tracing.Start(ctx, r.tracer, "contact.RemoveAllForOwner",
		attribute.String("owner_id", owner.String()))
	defer tracing.End(span, &err)

	if err := requireOwner(owner); err != nil {
		return 0, err
	}
	removed, err := r.store.DeleteByOwner(ctx, owner)
	if err != nil {
		return 0, translateStoreError(err, "failed to remove owner contacts")
	}

	r.metrics.AddRemoved(removed)
	r.logAuditCount(ctx, audit.EventContactsPurged, owner, removed)
	return removed, nil
}

func (r *Registry) now(ctx context.Context) time.Time {
	if r.clock != nil {
		return r.clock()
	}
	return requestcontext.Now(ctx)
}

func (r *Registry) logAudit(ctx context.Context, event audit.AuditEvent, owner domain.OwnerID, address string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit", "owner_id", owner.String())
	if r.logger != nil {
		r.logger.InfoContext(ctx, string(event), args...)
	}
	if r.auditPublisher == nil {
		return
	}
	r.emit(ctx, audit.Event{
		Action:  string(event),
		OwnerID: owner.String(),
		Subject: address,
	})
}

func (r *Registry) logAuditCount(ctx context.Context, event audit.AuditEvent, owner domain.OwnerID, count int) {
	if r.logger != nil {
		r.logger.InfoContext(ctx, string(event),
			"event", string(event),
			"log_type", "audit",
			"owner_id", owner.String(),
			"count", count,
			"request_id", requestcontext.RequestID(ctx))
	}
	if r.auditPublisher == nil {
		return
	}
	r.emit(ctx, audit.Event{
		Action:  string(event),
		OwnerID: owner.String(),
		Count:   count,
	})
}

func (r *Registry) emit(ctx context.Context, event audit.Event) {
	event.ActorID = requestcontext.ActorID(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := r.auditPublisher.Emit(ctx, event); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "failed to publish audit event",
			"action", event.Action,
			"error", err)
	}
}

func requireOwner(owner domain.OwnerID) error {
	return owner.Validate()
}

func asValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}

func translateStoreError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "contact not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeDuplicateContact, "contact already registered for owner")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, msg)
	}
}
