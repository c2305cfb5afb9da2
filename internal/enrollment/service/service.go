// Package service turns accepted challenge invitations into participations.
//
// The invitation, contact and participation components never call each
// other. The Coordinator is the only place that sequences them:
//
//	Accept(invitation) -> FindOwnerByContact(invitee) -> Join(owner, challenge)
//
// Acceptance is recorded before enrollment is attempted, so a failure in the
// later steps leaves an accepted invitation that EnrollAccepted can retry.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"healthtrack/internal/enrollment/metrics"
	invitationModels "healthtrack/internal/invitation/models"
	participationModels "healthtrack/internal/participation/models"
	"healthtrack/internal/platform/tracing"
	"healthtrack/pkg/domain"
	dErrors "healthtrack/pkg/domain-errors"
	"healthtrack/pkg/requestcontext"
)

// Invitations is the slice of the invitation lifecycle the coordinator needs.
type Invitations interface {
	Accept(ctx context.Context, id domain.InvitationID) (*invitationModels.Invitation, error)
	Get(ctx context.Context, id domain.InvitationID) (*invitationModels.Invitation, error)
}

// Contacts resolves an invitee address to its owner.
type Contacts interface {
	FindOwnerByContact(ctx context.Context, address string) (domain.OwnerID, error)
}

// Ledger enrolls owners in challenges.
type Ledger interface {
	Join(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID) (*participationModels.Participation, error)
}

// Result describes a completed acceptance. Participation is nil when the
// invitation is not tied to a challenge or the invitee was already enrolled.
type Result struct {
	Invitation      *invitationModels.Invitation
	InviteeID       domain.OwnerID
	Participation   *participationModels.Participation
	AlreadyEnrolled bool
}

type Coordinator struct {
	invitations Invitations
	contacts    Contacts
	ledger      Ledger
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func New(invitations Invitations, contacts Contacts, ledger Ledger, opts ...Option) (*Coordinator, error) {
	if invitations == nil {
		return nil, errors.New("invitation lifecycle is required")
	}
	if contacts == nil {
		return nil, errors.New("contact registry is required")
	}
	if ledger == nil {
		return nil, errors.New("participation ledger is required")
	}
	c := &Coordinator{
		invitations: invitations,
		contacts:    contacts,
		ledger:      ledger,
		tracer:      tracing.Tracer("healthtrack/enrollment"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AcceptInvitation accepts the invitation and, for challenge invitations,
// enrolls the invitee. Errors from Accept are returned unchanged. If the
// invitee contact is not registered, NotFound is returned and the invitation
// stays accepted.
func (c *Coordinator) AcceptInvitation(ctx context.Context, id domain.InvitationID) (_ *Result, err error) {
	ctx, span := tracing.Start(ctx, c.tracer, "enrollment.AcceptInvitation",
		attribute.String("invitation_id", id.String()))
	defer tracing.End(span, &err)

	inv, err := c.invitations.Accept(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.enroll(ctx, inv)
}

// EnrollAccepted retries enrollment for an invitation that was accepted
// earlier but whose join did not complete.
func (c *Coordinator) EnrollAccepted(ctx context.Context, id domain.InvitationID) (_ *Result, err error) {
	ctx, span := tracing.Start(ctx, c.tracer, "enrollment.EnrollAccepted",
		attribute.String("invitation_id", id.String()))
	defer tracing.End(span, &err)

	inv, err := c.invitations.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case invitationModels.StatusAccepted:
	case invitationModels.StatusExpired:
		return nil, dErrors.New(dErrors.CodeExpired, "invitation has expired")
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "invitation has not been accepted")
	}
	return c.enroll(ctx, inv)
}

func (c *Coordinator) enroll(ctx context.Context, inv *invitationModels.Invitation) (*Result, error) {
	result := &Result{Invitation: inv}
	if !inv.IsChallengeRelated() {
		c.metrics.IncrementOutcome(metrics.OutcomeNoChallenge)
		return result, nil
	}

	owner, err := c.contacts.FindOwnerByContact(ctx, inv.InviteeContact)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			c.metrics.IncrementOutcome(metrics.OutcomeUnregistered)
			c.logWarn(ctx, "invitee contact is not registered", inv)
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "invitee contact is not registered")
		}
		c.metrics.IncrementOutcome(metrics.OutcomeFailed)
		return nil, err
	}
	result.InviteeID = owner

	p, err := c.ledger.Join(ctx, owner, inv.RelatedChallengeID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeAlreadyJoined) {
			c.metrics.IncrementOutcome(metrics.OutcomeAlreadyEnrolled)
			result.AlreadyEnrolled = true
			return result, nil
		}
		c.metrics.IncrementOutcome(metrics.OutcomeFailed)
		c.logWarn(ctx, "enrollment after acceptance failed", inv, "error", err)
		return nil, err
	}
	c.metrics.IncrementOutcome(metrics.OutcomeEnrolled)
	result.Participation = p
	return result, nil
}

func (c *Coordinator) logWarn(ctx context.Context, msg string, inv *invitationModels.Invitation, attributes ...any) {
	if c.logger == nil {
		return
	}
	args := append(attributes,
		"invitation_id", inv.ID.String(),
		"challenge_id", inv.RelatedChallengeID.String(),
		"request_id", requestcontext.RequestID(ctx))
	c.logger.WarnContext(ctx, msg, args...)
}
