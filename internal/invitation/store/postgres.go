package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"healthtrack/internal/invitation/models"
	"healthtrack/internal/platform/postgres"
	"healthtrack/pkg/domain"
	"healthtrack/pkg/platform/sentinel"
	"healthtrack/pkg/platform/tx"
)

const invitationColumns = `id, inviter_id, invitee_contact, related_challenge_id, status, sent_at, expires_at, resolved_at`

// PostgresStore persists invitations in PostgreSQL. Execute locks the row
// with SELECT ... FOR UPDATE for the duration of validate and mutate.
type PostgresStore struct {
	db        *sql.DB
	txTimeout time.Duration
}

type PostgresOption func(*PostgresStore)

// WithTxTimeout bounds how long Execute may hold the row lock.
func WithTxTimeout(d time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		s.txTimeout = d
	}
}

// NewPostgres constructs a PostgreSQL-backed invitation store.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *PostgresStore) Create(ctx context.Context, inv *models.Invitation) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO invitations (`+invitationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, inv.ID.String(), inv.InviterID.String(), inv.InviteeContact, inv.RelatedChallengeID.String(),
		string(inv.Status), inv.SentAt, inv.ExpiresAt, nullTime(inv.ResolvedAt))
	if err != nil {
		if postgres.IsUniqueViolation(err, "invitations_pkey") {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

// FindByID reports sentinel.ErrNotFound for IDs that are not UUIDs, the same
// as the in-memory store, instead of the driver's encoding error.
func (s *PostgresStore) FindByID(ctx context.Context, id domain.InvitationID) (*models.Invitation, error) {
	if !isUUID(id) {
		return nil, sentinel.ErrNotFound
	}
	inv, err := scanInvitation(tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE id = $1`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find invitation: %w", err)
	}
	return inv, nil
}

func (s *PostgresStore) Execute(ctx context.Context, id domain.InvitationID, validate func(*models.Invitation) error, mutate func(*models.Invitation)) (*models.Invitation, error) {
	if !isUUID(id) {
		return nil, sentinel.ErrNotFound
	}
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	var result *models.Invitation
	err := tx.RunInTx(ctx, s.db, func(ctx context.Context) error {
		q := tx.Conn(ctx, s.db)
		inv, err := scanInvitation(q.QueryRowContext(ctx,
			`SELECT `+invitationColumns+` FROM invitations WHERE id = $1 FOR UPDATE`, id.String()))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sentinel.ErrNotFound
			}
			return fmt.Errorf("lock invitation: %w", err)
		}
		if err := validate(inv); err != nil {
			return err
		}
		mutate(inv)

		_, err = q.ExecContext(ctx, `
			UPDATE invitations
			SET status = $2, resolved_at = $3
			WHERE id = $1
		`, id.String(), string(inv.Status), nullTime(inv.ResolvedAt))
		if err != nil {
			return fmt.Errorf("update invitation: %w", err)
		}
		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExpirePending is a single conditional update; rows already resolved by a
// concurrent Execute no longer match the status predicate.
func (s *PostgresStore) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE invitations
		SET status = $1, resolved_at = $2
		WHERE status = $3 AND expires_at <= $2
	`, string(models.StatusExpired), now, string(models.StatusPending))
	if err != nil {
		return 0, fmt.Errorf("expire pending invitations: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire pending rows affected: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) ListByInviter(ctx context.Context, inviter domain.OwnerID) ([]*models.Invitation, error) {
	return s.list(ctx, `WHERE inviter_id = $1`, inviter.String())
}

func (s *PostgresStore) ListByInviteeContact(ctx context.Context, contact string) ([]*models.Invitation, error) {
	return s.list(ctx, `WHERE invitee_contact = $1`, contact)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status) ([]*models.Invitation, error) {
	return s.list(ctx, `WHERE status = $1`, string(status))
}

func (s *PostgresStore) list(ctx context.Context, where string, arg string) ([]*models.Invitation, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations `+where+` ORDER BY sent_at, id`, arg)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Invitation, 0)
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invitations: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row rowScanner) (*models.Invitation, error) {
	var (
		inv                        models.Invitation
		id, inviter, challenge, st string
		resolved                   sql.NullTime
	)
	if err := row.Scan(&id, &inviter, &inv.InviteeContact, &challenge, &st,
		&inv.SentAt, &inv.ExpiresAt, &resolved); err != nil {
		return nil, err
	}
	inv.ID = domain.InvitationID(id)
	inv.InviterID = domain.OwnerID(inviter)
	inv.RelatedChallengeID = domain.ChallengeID(challenge)
	inv.Status = models.Status(st)
	if resolved.Valid {
		t := resolved.Time
		inv.ResolvedAt = &t
	}
	return &inv, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUUID(id domain.InvitationID) bool {
	_, err := uuid.Parse(id.String())
	return err == nil
}
