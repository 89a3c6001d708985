package state

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/tirtabot/internal/types"
)

const (
	redisIndexPrefix = "session:idx:"
	redisRowPrefix   = "session:row:"
	redisSeqKey      = "session:seq"
	redisScanCount   = 100
)

// RedisStore keeps each session row in a hash and indexes a sender's rows
// in a sorted set scored by expiration in milliseconds. Index members are
// "<seq>:<id>" with seq zero-padded from a global counter, so rows sharing
// an expiration sort by creation order.
type RedisStore struct {
	client redis.Cmdable
	opts   options
}

func NewRedisStore(client redis.Cmdable, opts ...Option) *RedisStore {
	if client == nil {
		panic("state: redis client required")
	}
	return &RedisStore{client: client, opts: buildOptions(opts)}
}

func indexKey(sender types.SenderID) string { return redisIndexPrefix + string(sender) }
func rowKey(id string) string { return redisRowPrefix + id }

func indexMember(seq int64, id string) string { return fmt.Sprintf("%020d:%s", seq, id) }

// memberID strips the sequence prefix from an index member.
func memberID(member string) string {
	if _, id, ok := strings.Cut(member, ":"); ok {
		return id
	}
	return member
}

// indexRow is the active row with the highest score in a sender index.
type indexRow struct {
	member    string
	expiresMs int64
}

func (r *indexRow) id() string { return memberID(r.member) }

// indexExpiry never moves the index expiration before that of the latest
// active row, so a shorter TTL cannot drop rows that are still live.
func (r *indexRow) indexExpiry(expiresMs int64) time.Time {
	if r != nil && r.expiresMs > expiresMs {
		expiresMs = r.expiresMs
	}
	return time.UnixMilli(expiresMs)
}

func (s *RedisStore) Start(ctx context.Context, sender types.SenderID) (*types.Session, error) {
	now := s.opts.now()
	expiresMs := now.Add(s.opts.ttl).UnixMilli()
	session := &types.Session{
		ID:        types.NewSessionID(),
		Sender:    sender,
		ExpiresAt: time.UnixMilli(expiresMs),
	}
	id := string(session.ID)

	seq, err := s.client.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return nil, fmt.Errorf("state: redis start session: %w", err)
	}
	current, err := s.latest(ctx, sender, now)
	if err != nil {
		return nil, fmt.Errorf("state: redis start session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, rowKey(id), map[string]any{
		"sender":     string(sender),
		"context":    "",
		"subject":    "",
		"expires_at": expiresMs,
	})
	pipe.PExpireAt(ctx, rowKey(id), session.ExpiresAt)
	pipe.ZAdd(ctx, indexKey(sender), redis.Z{Score: float64(expiresMs), Member: indexMember(seq, id)})
	pipe.PExpireAt(ctx, indexKey(sender), current.indexExpiry(expiresMs))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("state: redis start session: %w", err)
	}
	return session, nil
}

// latest returns the active row with the highest score, the newest one on
// a tie, or nil when the sender has none.
func (s *RedisStore) latest(ctx context.Context, sender types.SenderID, now time.Time) (*indexRow, error) {
	rows, err := s.client.ZRevRangeByScoreWithScores(ctx, indexKey(sender), &redis.ZRangeBy{
		Min:   "(" + strconv.FormatInt(now.UnixMilli(), 10),
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	member, _ := rows[0].Member.(string)
	return &indexRow{member: member, expiresMs: int64(rows[0].Score)}, nil
}

func (s *RedisStore) update(ctx context.Context, sender types.SenderID, field, value string) error {
	now := s.opts.now()
	row, err := s.latest(ctx, sender, now)
	if err != nil {
		return fmt.Errorf("state: redis update session %s: %w", field, err)
	}
	if row == nil {
		return nil
	}

	expiresMs := now.Add(s.opts.ttl).UnixMilli()
	expiresAt := time.UnixMilli(expiresMs)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, rowKey(row.id()), field, value, "expires_at", expiresMs)
	pipe.PExpireAt(ctx, rowKey(row.id()), expiresAt)
	pipe.ZAdd(ctx, indexKey(sender), redis.Z{Score: float64(expiresMs), Member: row.member})
	pipe.PExpireAt(ctx, indexKey(sender), row.indexExpiry(expiresMs))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("state: redis update session %s: %w", field, err)
	}
	return nil
}

func (s *RedisStore) UpdateTopic(ctx context.Context, sender types.SenderID, topic types.Topic) error {
	return s.update(ctx, sender, "context", string(topic))
}

func (s *RedisStore) UpdateSubject(ctx context.Context, sender types.SenderID, subject string) error {
	return s.update(ctx, sender, "subject", subject)
}

func (s *RedisStore) Get(ctx context.Context, sender types.SenderID) (*types.Session, error) {
	row, err := s.latest(ctx, sender, s.opts.now())
	if err != nil {
		return nil, fmt.Errorf("state: redis get session: %w", err)
	}
	if row == nil {
		return nil, nil
	}
	id := row.id()

	fields, err := s.client.HGetAll(ctx, rowKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("state: redis get session: %w", err)
	}
	// The hash expired between the index read and this one.
	if len(fields) == 0 {
		return nil, nil
	}

	topic, err := types.ParseTopic(fields["context"])
	if err != nil {
		return nil, fmt.Errorf("state: session %s: %w", id, err)
	}
	expiresMs, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("state: session %s: bad expires_at: %w", id, err)
	}
	return &types.Session{
		ID:        types.SessionID(id),
		Sender:    types.SenderID(fields["sender"]),
		Topic:     topic,
		Subject:   fields["subject"],
		ExpiresAt: time.UnixMilli(expiresMs),
	}, nil
}

// PruneExpired walks every sender index and removes rows whose score is at
// or before now.
func (s *RedisStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	upper := strconv.FormatInt(now.UnixMilli(), 10)
	var (
		removed int64
		cursor  uint64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisIndexPrefix+"*", redisScanCount).Result()
		if err != nil {
			return removed, fmt.Errorf("state: redis scan sessions: %w", err)
		}
		for _, key := range keys {
			members, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "-inf", Max: upper}).Result()
			if err != nil {
				return removed, fmt.Errorf("state: redis prune %s: %w", key, err)
			}
			if len(members) == 0 {
				continue
			}
			pipe := s.client.TxPipeline()
			for _, member := range members {
				pipe.Del(ctx, rowKey(memberID(member)))
			}
			pipe.ZRemRangeByScore(ctx, key, "-inf", upper)
			if _, err := pipe.Exec(ctx); err != nil {
				return removed, fmt.Errorf("state: redis prune %s: %w", key, err)
			}
			removed += int64(len(members))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return removed, nil
}
