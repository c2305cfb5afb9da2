package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"healthtrack/internal/contact/models"
	"healthtrack/internal/platform/postgres"
	"healthtrack/pkg/domain"
	"healthtrack/pkg/platform/sentinel"
	"healthtrack/pkg/platform/tx"
)

const contactColumns = `owner_id, address, is_primary, created_at, updated_at`

// PostgresStore persists contacts in PostgreSQL.
//
// Multi-row changes for one owner run in a transaction that first takes a
// transaction-scoped advisory lock on the owner, so promotions for the same
// owner serialize even when the owner has no rows yet. The partial unique
// index contacts_one_primary_per_owner backs the invariant at the table level.
type PostgresStore struct {
	db        *sql.DB
	txTimeout time.Duration
}

type PostgresOption func(*PostgresStore)

// WithTxTimeout bounds how long a locked multi-row change may run.
func WithTxTimeout(d time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		s.txTimeout = d
	}
}

// NewPostgres constructs a PostgreSQL-backed contact store.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert adds a non-primary contact; see InMemory.Insert.
func (s *PostgresStore) Insert(ctx context.Context, contact *models.Contact) error {
	return insertContact(ctx, tx.Conn(ctx, s.db), contact, false)
}

func (s *PostgresStore) InsertPrimary(ctx context.Context, contact *models.Contact) error {
	return s.withOwnerLock(ctx, contact.OwnerID, func(ctx context.Context, q tx.DBTX) error {
		var exists bool
		err := q.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM contacts WHERE owner_id = $1 AND address = $2)`,
			contact.OwnerID.String(), contact.Address,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check contact exists: %w", err)
		}
		if exists {
			return sentinel.ErrAlreadyUsed
		}
		if err := clearPrimaries(ctx, q, contact.OwnerID, "", contact.UpdatedAt); err != nil {
			return err
		}
		return insertContact(ctx, q, contact, true)
	})
}

func (s *PostgresStore) Promote(ctx context.Context, owner domain.OwnerID, address string, now time.Time) (*models.Contact, error) {
	var promoted *models.Contact
	err := s.withOwnerLock(ctx, owner, func(ctx context.Context, q tx.DBTX) error {
		var exists bool
		if err := q.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM contacts WHERE owner_id = $1 AND address = $2)`,
			owner.String(), address,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check contact exists: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		if err := clearPrimaries(ctx, q, owner, address, now); err != nil {
			return err
		}
		c, err := scanContact(q.QueryRowContext(ctx, `
			UPDATE contacts
			SET is_primary = TRUE,
			    updated_at = CASE WHEN is_primary THEN updated_at ELSE $3 END
			WHERE owner_id = $1 AND address = $2
			RETURNING `+contactColumns,
			owner.String(), address, now,
		))
		if err != nil {
			return fmt.Errorf("set primary contact: %w", err)
		}
		promoted = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}

func (s *PostgresStore) Delete(ctx context.Context, owner domain.OwnerID, address string) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM contacts WHERE owner_id = $1 AND address = $2`, owner.String(), address)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete contact rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteByOwner(ctx context.Context, owner domain.OwnerID) (int, error) {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM contacts WHERE owner_id = $1`, owner.String())
	if err != nil {
		return 0, fmt.Errorf("delete contacts by owner: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete contacts rows affected: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) FindPrimary(ctx context.Context, owner domain.OwnerID) (*models.Contact, error) {
	c, err := scanContact(tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE owner_id = $1 AND is_primary`, owner.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find primary contact: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner domain.OwnerID) ([]*models.Contact, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE owner_id = $1 ORDER BY address COLLATE "C"`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindOwnersByAddress(ctx context.Context, address string) ([]domain.OwnerID, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT owner_id FROM contacts WHERE address = $1 ORDER BY owner_id COLLATE "C"`, address)
	if err != nil {
		return nil, fmt.Errorf("find owners by address: %w", err)
	}
	defer rows.Close()

	owners := make([]domain.OwnerID, 0, 1)
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, domain.OwnerID(owner))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owners: %w", err)
	}
	return owners, nil
}

// withOwnerLock runs fn in a transaction holding the owner's advisory lock.
func (s *PostgresStore) withOwnerLock(ctx context.Context, owner domain.OwnerID, fn func(ctx context.Context, q tx.DBTX) error) error {
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}
	return tx.RunInTx(ctx, s.db, func(ctx context.Context) error {
		q := tx.Conn(ctx, s.db)
		if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, owner.String()); err != nil {
			return fmt.Errorf("lock owner contacts: %w", err)
		}
		return fn(ctx, q)
	})
}

func insertContact(ctx context.Context, q tx.DBTX, contact *models.Contact, primary bool) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES ($1, $2, $3, $4, $5)
	`, contact.OwnerID.String(), contact.Address, primary, contact.CreatedAt, contact.UpdatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "contacts_pkey") {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func clearPrimaries(ctx context.Context, q tx.DBTX, owner domain.OwnerID, keep string, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE contacts
		SET is_primary = FALSE, updated_at = $3
		WHERE owner_id = $1 AND is_primary AND address <> $2
	`, owner.String(), keep, now)
	if err != nil {
		return fmt.Errorf("clear primary contacts: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var (
		c     models.Contact
		owner string
	)
	if err := row.Scan(&owner, &c.Address, &c.IsPrimary, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.OwnerID = domain.OwnerID(owner)
	return &c, nil
}
