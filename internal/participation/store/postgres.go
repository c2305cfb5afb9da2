package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"healthtrack/internal/participation/models"
	"healthtrack/pkg/domain"
	"healthtrack/pkg/platform/sentinel"
	"healthtrack/pkg/platform/tx"
)

const participationColumns = `owner_id, challenge_id, progress, joined_at, updated_at`

// PostgresStore persists participations in PostgreSQL. Join uniqueness is
// enforced by the (owner_id, challenge_id) primary key.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed participation store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts p, reporting sentinel.ErrAlreadyUsed when the pair exists.
func (s *PostgresStore) Create(ctx context.Context, p *models.Participation) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO participations (`+participationColumns+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (owner_id, challenge_id) DO NOTHING
	`, p.OwnerID.String(), p.ChallengeID.String(), p.Progress, p.JoinedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert participation: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert participation rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) UpdateProgress(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID, progress int, now time.Time) (*models.Participation, error) {
	p, err := scanParticipation(tx.Conn(ctx, s.db).QueryRowContext(ctx, `
		UPDATE participations
		SET progress = $3, updated_at = $4
		WHERE owner_id = $1 AND challenge_id = $2
		RETURNING `+participationColumns,
		owner.String(), challenge.String(), progress, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("update participation progress: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Delete(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM participations WHERE owner_id = $1 AND challenge_id = $2`,
		owner.String(), challenge.String())
	if err != nil {
		return fmt.Errorf("delete participation: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete participation rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID) (*models.Participation, error) {
	p, err := scanParticipation(tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+participationColumns+` FROM participations WHERE owner_id = $1 AND challenge_id = $2`,
		owner.String(), challenge.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find participation: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListByChallenge(ctx context.Context, challenge domain.ChallengeID) ([]*models.Participation, error) {
	return s.list(ctx,
		`SELECT `+participationColumns+` FROM participations WHERE challenge_id = $1`,
		challenge.String())
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner domain.OwnerID) ([]*models.Participation, error) {
	return s.list(ctx,
		`SELECT `+participationColumns+` FROM participations WHERE owner_id = $1`,
		owner.String())
}

func (s *PostgresStore) CountByChallenge(ctx context.Context, challenge domain.ChallengeID) (int, error) {
	var n int
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participations WHERE challenge_id = $1`, challenge.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count participations: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountByChallenges(ctx context.Context, challenges []domain.ChallengeID) (map[domain.ChallengeID]int, error) {
	counts := make(map[domain.ChallengeID]int, len(challenges))
	if len(challenges) == 0 {
		return counts, nil
	}
	ids := make([]string, len(challenges))
	for i, c := range challenges {
		ids[i] = c.String()
	}

	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT challenge_id, COUNT(*)
		FROM participations
		WHERE challenge_id = ANY($1)
		GROUP BY challenge_id
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("count participations by challenge: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan participation count: %w", err)
		}
		counts[domain.ChallengeID(id)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participation counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) list(ctx context.Context, query string, arg string) ([]*models.Participation, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Participation, 0)
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participation: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participations: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipation(row rowScanner) (*models.Participation, error) {
	var (
		p                models.Participation
		owner, challenge string
	)
	if err := row.Scan(&owner, &challenge, &p.Progress, &p.JoinedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.OwnerID = domain.OwnerID(owner)
	p.ChallengeID = domain.ChallengeID(challenge)
	return &p, nil
}
