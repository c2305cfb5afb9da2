package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthtrack/pkg/domain"
	dErrors "healthtrack/pkg/domain-errors"
)

var sentAt = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func newPending(t *testing.T, ttl time.Duration) *Invitation {
	t.Helper()
	inv, err := NewInvitation(domain.NewInvitationID(), "inviter", "friend@x.io", "walk", sentAt, ttl)
	require.NoError(t, err)
	return inv
}

func TestNewInvitation(t *testing.T) {
	t.Run("non-positive ttl uses the default", func(t *testing.T) {
		inv := newPending(t, 0)
		assert.Equal(t, sentAt.Add(DefaultTTL), inv.ExpiresAt)
		assert.Equal(t, StatusPending, inv.Status)
		assert.Nil(t, inv.ResolvedAt)

		inv = newPending(t, -time.Hour)
		assert.Equal(t, sentAt.Add(DefaultTTL), inv.ExpiresAt)
	})

	t.Run("explicit ttl", func(t *testing.T) {
		inv := newPending(t, time.Hour)
		assert.Equal(t, sentAt.Add(time.Hour), inv.ExpiresAt)
	})

	t.Run("missing fields violate invariants", func(t *testing.T) {
		_, err := NewInvitation("", "inviter", "a@x.io", "", sentAt, 0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		_, err = NewInvitation(domain.NewInvitationID(), "", "a@x.io", "", sentAt, 0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		_, err = NewInvitation(domain.NewInvitationID(), "inviter", "", "", sentAt, 0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestExpiryBoundary(t *testing.T) {
	inv := newPending(t, DefaultTTL)

	assert.False(t, inv.IsExpiredAt(inv.ExpiresAt.Add(-time.Second)))
	assert.True(t, inv.IsExpiredAt(inv.ExpiresAt))
	assert.True(t, inv.IsExpiredAt(inv.ExpiresAt.Add(time.Second)))

	assert.True(t, inv.IsValidAt(inv.ExpiresAt.Add(-time.Second)))
	assert.False(t, inv.IsValidAt(inv.ExpiresAt))
}

func TestResolution(t *testing.T) {
	t.Run("accept before expiry", func(t *testing.T) {
		inv := newPending(t, DefaultTTL)
		require.NoError(t, inv.CanResolve())
		at := inv.ExpiresAt.Add(-time.Second)
		inv.ApplyResolution(at)
		assert.Equal(t, StatusAccepted, inv.Status)
		require.NotNil(t, inv.ResolvedAt)
		assert.Equal(t, at, *inv.ResolvedAt)
	})

	t.Run("resolution after expiry expires", func(t *testing.T) {
		inv := newPending(t, DefaultTTL)
		inv.ApplyResolution(inv.ExpiresAt.Add(time.Second))
		assert.Equal(t, StatusExpired, inv.Status)
	})

	t.Run("terminal invitations cannot resolve again", func(t *testing.T) {
		inv := newPending(t, DefaultTTL)
		inv.ApplyAcceptance(sentAt)
		err := inv.CanResolve()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyResolved))
	})
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusAccepted))
	assert.True(t, StatusPending.CanTransitionTo(StatusExpired))
	assert.False(t, StatusPending.CanTransitionTo(StatusPending))
	assert.False(t, StatusAccepted.CanTransitionTo(StatusExpired))
	assert.False(t, StatusExpired.CanTransitionTo(StatusAccepted))

	s, err := ParseStatus(" Expired ")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, s)
	_, err = ParseStatus("cancelled")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestCloneIsDeep(t *testing.T) {
	inv := newPending(t, DefaultTTL)
	inv.ApplyAcceptance(sentAt)
	cp := inv.Clone()
	*cp.ResolvedAt = sentAt.Add(time.Hour)
	assert.Equal(t, sentAt, *inv.ResolvedAt)
}
