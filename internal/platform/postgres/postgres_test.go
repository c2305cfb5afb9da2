package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatements(t *testing.T) {
	stmts := statements(schema)
	require.NotEmpty(t, stmts)
	for _, s := range stmts {
		assert.NotContains(t, s, ";")
		assert.NotEmpty(t, s)
	}
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS contacts")
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "contacts_pkey"}

	assert.True(t, IsUniqueViolation(pgErr, ""))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert contact: %w", pgErr), "contacts_pkey"))
	assert.False(t, IsUniqueViolation(pgErr, "contacts_one_primary_per_owner"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
}
