package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthtrack/pkg/domain"
	dErrors "healthtrack/pkg/domain-errors"
)

func TestNewContact(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("normalizes address", func(t *testing.T) {
		c, err := NewContact("U1", "  A@X.com ", true, now)
		require.NoError(t, err)
		assert.Equal(t, "a@x.com", c.Address)
		assert.True(t, c.IsPrimary)
		assert.Equal(t, now, c.CreatedAt)
		assert.Equal(t, now, c.UpdatedAt)
	})

	t.Run("rejects empty owner", func(t *testing.T) {
		_, err := NewContact("", "a@x.com", false, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects blank address", func(t *testing.T) {
		_, err := NewContact("U1", "   ", false, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects oversized address", func(t *testing.T) {
		_, err := NewContact("U1", strings.Repeat("a", 250)+"@x.com", false, now)
		require.Error(t, err)
	})
}

func TestPrimaryCountAndSort(t *testing.T) {
	contacts := []*Contact{
		{OwnerID: "U1", Address: "c@x.com"},
		{OwnerID: "U1", Address: "a@x.com", IsPrimary: true},
		{OwnerID: "U1", Address: "b@x.com"},
	}
	assert.Equal(t, 1, PrimaryCount(contacts))

	SortByAddress(contacts)
	assert.Equal(t, "a@x.com", contacts[0].Address)
	assert.Equal(t, "c@x.com", contacts[2].Address)
}

func TestResolveOwner(t *testing.T) {
	_, ok := ResolveOwner(nil)
	assert.False(t, ok)

	owner, ok := ResolveOwner([]domain.OwnerID{"P9", "U2", "P10"})
	require.True(t, ok)
	assert.Equal(t, domain.OwnerID("P10"), owner)
}

func TestClone(t *testing.T) {
	var nilContact *Contact
	assert.Nil(t, nilContact.Clone())

	c := &Contact{OwnerID: "U1", Address: "a@x.com"}
	cp := c.Clone()
	cp.IsPrimary = true
	assert.False(t, c.IsPrimary)
}
