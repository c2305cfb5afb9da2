package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"healthtrack/internal/participation/models"
	"healthtrack/pkg/domain"
	"healthtrack/pkg/platform/sentinel"
)

// Key layout. Each challenge owns three hashes keyed by owner ID; each owner
// has a set of joined challenges.
const (
	challengeKeyPrefix = "ptc:ch:"
	ownerKeyPrefix     = "ptc:own:"
)

var (
	// createScript inserts only when the owner has no progress entry yet.
	createScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[3]) == 0 then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[1], ARGV[4])
redis.call('HSET', KEYS[3], ARGV[1], ARGV[5])
redis.call('SADD', KEYS[4], ARGV[2])
return 1
`)

	// updateScript overwrites progress for an existing entry and returns its
	// join time.
	updateScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return false
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[3], ARGV[1], ARGV[3])
return redis.call('HGET', KEYS[2], ARGV[1])
`)

	deleteScript = redis.NewScript(`
if redis.call('HDEL', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HDEL', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[3], ARGV[1])
redis.call('SREM', KEYS[4], ARGV[2])
return 1
`)
)

// RedisStore keeps the ledger in Redis so several processes share one view.
// Multi-key changes run as Lua scripts and are atomic on the server.
//
// Requires a single Redis node (or a primary with replicas). The scripts
// touch one owner's set and one challenge's hashes together, and those keys
// hash to different slots, so Redis Cluster rejects them with CROSSSLOT.
// The constructor takes *redis.Client rather than redis.UniversalClient so
// a cluster client cannot be passed in.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed participation store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func progressKey(c domain.ChallengeID) string { return challengeKeyPrefix + string(c) + ":progress" }
func joinedKey(c domain.ChallengeID) string   { return challengeKeyPrefix + string(c) + ":joined" }
func updatedKey(c domain.ChallengeID) string  { return challengeKeyPrefix + string(c) + ":updated" }
func ownerKey(o domain.OwnerID) string        { return ownerKeyPrefix + string(o) }

func (s *RedisStore) Create(ctx context.Context, p *models.Participation) error {
	created, err := createScript.Run(ctx, s.client,
		[]string{progressKey(p.ChallengeID), joinedKey(p.ChallengeID), updatedKey(p.ChallengeID), ownerKey(p.OwnerID)},
		p.OwnerID.String(), p.ChallengeID.String(), p.Progress, p.JoinedAt.UnixNano(), p.UpdatedAt.UnixNano(),
	).Int()
	if err != nil {
		return fmt.Errorf("create participation: %w", err)
	}
	if created == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *RedisStore) UpdateProgress(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID, progress int, now time.Time) (*models.Participation, error) {
	joined, err := updateScript.Run(ctx, s.client,
		[]string{progressKey(challenge), joinedKey(challenge), updatedKey(challenge)},
		owner.String(), progress, now.UnixNano(),
	).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("update participation progress: %w", err)
	}
	joinedAt, err := parseNanos(joined)
	if err != nil {
		return nil, fmt.Errorf("decode join time: %w", err)
	}
	return &models.Participation{
		OwnerID:     owner,
		ChallengeID: challenge,
		Progress:    progress,
		JoinedAt:    joinedAt,
		UpdatedAt:   time.Unix(0, now.UnixNano()).UTC(),
	}, nil
}

func (s *RedisStore) Delete(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID) error {
	deleted, err := deleteScript.Run(ctx, s.client,
		[]string{progressKey(challenge), joinedKey(challenge), updatedKey(challenge), ownerKey(owner)},
		owner.String(), challenge.String(),
	).Int()
	if err != nil {
		return fmt.Errorf("delete participation: %w", err)
	}
	if deleted == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, owner domain.OwnerID, challenge domain.ChallengeID) (*models.Participation, error) {
	found, err := s.fetch(ctx, []key{{owner, challenge}})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return found[0], nil
}

func (s *RedisStore) ListByChallenge(ctx context.Context, challenge domain.ChallengeID) ([]*models.Participation, error) {
	pipe := s.client.Pipeline()
	progress := pipe.HGetAll(ctx, progressKey(challenge))
	joined := pipe.HGetAll(ctx, joinedKey(challenge))
	updated := pipe.HGetAll(ctx, updatedKey(challenge))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}

	out := make([]*models.Participation, 0, len(progress.Val()))
	for owner, raw := range progress.Val() {
		p, err := decode(domain.OwnerID(owner), challenge, raw, joined.Val()[owner], updated.Val()[owner])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *RedisStore) ListByOwner(ctx context.Context, owner domain.OwnerID) ([]*models.Participation, error) {
	challenges, err := s.client.SMembers(ctx, ownerKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("list owner challenges: %w", err)
	}
	keys := make([]key, len(challenges))
	for i, c := range challenges {
		keys[i] = key{owner, domain.ChallengeID(c)}
	}
	return s.fetch(ctx, keys)
}

func (s *RedisStore) CountByChallenge(ctx context.Context, challenge domain.ChallengeID) (int, error) {
	n, err := s.client.HLen(ctx, progressKey(challenge)).Result()
	if err != nil {
		return 0, fmt.Errorf("count participations: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) CountByChallenges(ctx context.Context, challenges []domain.ChallengeID) (map[domain.ChallengeID]int, error) {
	counts := make(map[domain.ChallengeID]int, len(challenges))
	if len(challenges) == 0 {
		return counts, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(challenges))
	for i, c := range challenges {
		cmds[i] = pipe.HLen(ctx, progressKey(c))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("count participations by challenge: %w", err)
	}
	for i, c := range challenges {
		if n := cmds[i].Val(); n > 0 {
			counts[c] = int(n)
		}
	}
	return counts, nil
}

// fetch loads the given pairs in one round trip. Pairs removed concurrently
// are skipped.
func (s *RedisStore) fetch(ctx context.Context, keys []key) ([]*models.Participation, error) {
	if len(keys) == 0 {
		return []*models.Participation{}, nil
	}
	type fields struct{ progress, joined, updated *redis.StringCmd }

	pipe := s.client.Pipeline()
	cmds := make([]fields, len(keys))
	for i, k := range keys {
		owner := k.owner.String()
		cmds[i] = fields{
			progress: pipe.HGet(ctx, progressKey(k.challenge), owner),
			joined:   pipe.HGet(ctx, joinedKey(k.challenge), owner),
			updated:  pipe.HGet(ctx, updatedKey(k.challenge), owner),
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load participations: %w", err)
	}

	out := make([]*models.Participation, 0, len(keys))
	for i, k := range keys {
		raw, err := cmds[i].progress.Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load participation: %w", err)
		}
		p, err := decode(k.owner, k.challenge, raw, cmds[i].joined.Val(), cmds[i].updated.Val())
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func decode(owner domain.OwnerID, challenge domain.ChallengeID, progress, joined, updated string) (*models.Participation, error) {
	n, err := strconv.Atoi(progress)
	if err != nil {
		return nil, fmt.Errorf("decode progress for %s/%s: %w", owner, challenge, err)
	}
	joinedAt, err := parseNanos(joined)
	if err != nil {
		return nil, fmt.Errorf("decode join time for %s/%s: %w", owner, challenge, err)
	}
	updatedAt, err := parseNanos(updated)
	if err != nil {
		return nil, fmt.Errorf("decode update time for %s/%s: %w", owner, challenge, err)
	}
	return &models.Participation{
		OwnerID:     owner,
		ChallengeID: challenge,
		Progress:    n,
		JoinedAt:    joinedAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func parseNanos(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}
