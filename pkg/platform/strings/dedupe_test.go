package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type challengeID string

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{name: "trims whitespace", input: []string{"  foo  ", "bar  "}, expected: []string{"foo", "bar"}},
		{name: "removes repeats keeping first position", input: []string{"foo", "bar", "foo", "baz", "bar"}, expected: []string{"foo", "bar", "baz"}},
		{name: "drops blanks", input: []string{"foo", "", "  ", "bar"}, expected: []string{"foo", "bar"}},
		{name: "trimmed values collide", input: []string{" foo", "foo "}, expected: []string{"foo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimTypedIDs(t *testing.T) {
	got := DedupeAndTrim([]challengeID{"walk", " run", "walk", "run "})
	assert.Equal(t, []challengeID{"walk", "run"}, got)
}
