package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers membership changes with regulatory weight
	// (contact changes for patients and providers).
	CategoryCompliance EventCategory = "compliance"
	// CategoryOperations covers routine activity (joins, progress, sweeps).
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from service logic to capture key actions. It is
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	OwnerID   string        `json:"owner_id,omitempty"`
	Subject   string        `json:"subject,omitempty"`
	ActorID   string        `json:"actor_id,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Count     int           `json:"count,omitempty"`
}

type AuditEvent string

const (
	// Contact events
	EventContactAdded    AuditEvent = "contact_added"
	EventContactRemoved  AuditEvent = "contact_removed"
	EventContactPromoted AuditEvent = "contact_promoted"
	EventContactsPurged  AuditEvent = "contacts_purged"

	// Participation events
	EventChallengeJoined AuditEvent = "challenge_joined"
	EventChallengeLeft   AuditEvent = "challenge_left"
	EventProgressUpdated AuditEvent = "progress_updated"

	// Invitation events
	EventInvitationCreated  AuditEvent = "invitation_created"
	EventInvitationAccepted AuditEvent = "invitation_accepted"
	EventInvitationExpired  AuditEvent = "invitation_expired"
	EventInvitationsSwept   AuditEvent = "invitations_swept"
)

// CategoryOf maps an action to its category.
func CategoryOf(action AuditEvent) EventCategory {
	switch action {
	case EventContactAdded, EventContactRemoved, EventContactPromoted, EventContactsPurged:
		return CategoryCompliance
	default:
		return CategoryOperations
	}
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
