package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "healthtrack/pkg/domain-errors"
)

// TestParseOpaqueIDs_Invariants validates the parsing invariant:
// "owner and challenge IDs are non-empty, bounded, printable tokens"
func TestParseOpaqueIDs_Invariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"empty string", "", "", true},
		{"whitespace only", "   ", "", true},
		{"embedded space", "U 1", "", true},
		{"null byte", "U1\x00", "", true},
		{"zero-width space", "U\u200B1", "", true},
		{"oversized input", strings.Repeat("a", 1000), "", true},
		{"short token", "U1", "U1", false},
		{"surrounding whitespace trimmed", "  CH1 ", "CH1", false},
		{"uuid form", "550e8400-e29b-41d4-a716-446655440000", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, errOwner := ParseOwnerID(tt.input)
			challenge, errChallenge := ParseChallengeID(tt.input)
			if tt.wantErr {
				require.Error(t, errOwner)
				require.Error(t, errChallenge)
				assert.True(t, dErrors.HasCode(errOwner, dErrors.CodeValidation))
				assert.True(t, dErrors.HasCode(errChallenge, dErrors.CodeValidation))
				return
			}
			require.NoError(t, errOwner)
			require.NoError(t, errChallenge)
			assert.Equal(t, OwnerID(tt.want), owner)
			assert.Equal(t, ChallengeID(tt.want), challenge)
		})
	}
}

func TestParseInvitationID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseInvitationID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseInvitationID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseInvitationID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("normalizes uppercase UUID", func(t *testing.T) {
		parsed, err := ParseInvitationID("550E8400-E29B-41D4-A716-446655440000")
		require.NoError(t, err)
		assert.Equal(t, InvitationID("550e8400-e29b-41d4-a716-446655440000"), parsed)
	})

	t.Run("minted IDs round-trip", func(t *testing.T) {
		minted := NewInvitationID()
		parsed, err := ParseInvitationID(minted.String())
		require.NoError(t, err)
		assert.Equal(t, minted, parsed)
		assert.False(t, parsed.IsNil())
	})
}

func TestValidateTypedIDs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"empty", "", true},
		{"whitespace only", " ", true},
		{"newline inside", "a\nb", true},
		{"trailing space", "owner-1 ", true},
		{"leading tab", "\towner-1", true},
		{"canonical", "owner-1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errOwner := OwnerID(tt.input).Validate()
			errChallenge := ChallengeID(tt.input).Validate()
			if tt.wantErr {
				assert.True(t, dErrors.HasCode(errOwner, dErrors.CodeValidation))
				assert.True(t, dErrors.HasCode(errChallenge, dErrors.CodeValidation))
				return
			}
			assert.NoError(t, errOwner)
			assert.NoError(t, errChallenge)
		})
	}

	t.Run("invitation ids", func(t *testing.T) {
		assert.NoError(t, NewInvitationID().Validate())
		assert.True(t, dErrors.HasCode(InvitationID("not-a-uuid").Validate(), dErrors.CodeValidation))
		assert.True(t, dErrors.HasCode(InvitationID("550E8400-E29B-41D4-A716-446655440000").Validate(), dErrors.CodeValidation))
		assert.True(t, dErrors.HasCode(InvitationID("").Validate(), dErrors.CodeValidation))
	})
}
