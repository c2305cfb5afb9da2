package models

import (
	"time"

	"healthtrack/pkg/domain"
	dErrors "healthtrack/pkg/domain-errors"
)

const (
	MinProgress = 0
	MaxProgress = 100
)

// Participation is one owner's enrollment in one challenge.
//
// Invariants:
//   - (OwnerID, ChallengeID) is unique
//   - Progress is within [MinProgress, MaxProgress]
type Participation struct {
	OwnerID     domain.OwnerID     `json:"owner_id"`
	ChallengeID domain.ChallengeID `json:"challenge_id"`
	Progress    int                `json:"progress"`
	JoinedAt    time.Time          `json:"joined_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// NewParticipation builds a fresh enrollment with zero progress.
func NewParticipation(owner domain.OwnerID, challenge domain.ChallengeID, now time.Time) (*Participation, error) {
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "participation owner cannot be empty")
	}
	if challenge.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "participation challenge cannot be empty")
	}
	return &Participation{
		OwnerID:     owner,
		ChallengeID: challenge,
		Progress:    MinProgress,
		JoinedAt:    now,
		UpdatedAt:   now,
	}, nil
}

// ValidateProgress rejects values outside [MinProgress, MaxProgress].
func ValidateProgress(progress int) error {
	if progress < MinProgress || progress > MaxProgress {
		return dErrors.New(dErrors.CodeInvalidProgress, "progress must be between 0 and 100")
	}
	return nil
}

// Clone returns a copy safe to hand out of a store.
func (p *Participation) Clone() *Participation {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// Challenge is the catalog entry owned by the challenge service. Only ID is
// read here.
type Challenge struct {
	ID          domain.ChallengeID `json:"id"`
	CreatorID   domain.OwnerID     `json:"creator_id"`
	StartDate   time.Time          `json:"start_date"`
	EndDate     time.Time          `json:"end_date"`
	Goal        string             `json:"goal"`
	Description string             `json:"description"`
}
