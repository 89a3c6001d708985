package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/user/tirtabot/internal/types"
)

// pgxQuerier is the subset of pgxpool.Pool used by PostgresStore.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists sessions in the sessions table. sender_id is not
// unique; every statement resolves to the active row with the latest
// expires_at, and the most recently inserted one (highest seq) on a tie.
type PostgresStore struct {
	db   pgxQuerier
	opts options
}

// NewPostgresStore wraps a pgx pool (or any compatible querier).
func NewPostgresStore(db pgxQuerier, opts ...Option) *PostgresStore {
	if db == nil {
		panic("state: pgx pool required")
	}
	return &PostgresStore{db: db, opts: buildOptions(opts)}
}

const (
	insertSessionSQL = `
		INSERT INTO sessions (id, sender_id, expires_at)
		VALUES ($1, $2, $3)`

	latestSessionIDSQL = `
		SELECT id FROM sessions
		WHERE sender_id = $3 AND expires_at > $4
		ORDER BY expires_at DESC, seq DESC
		LIMIT 1`

	updateTopicSQL = `
		UPDATE sessions SET context = $1, expires_at = $2
		WHERE id = (` + latestSessionIDSQL + `)`

	updateSubjectSQL = `
		UPDATE sessions SET subject = $1, expires_at = $2
		WHERE id = (` + latestSessionIDSQL + `)`

	selectSessionSQL = `
		SELECT id, sender_id, context, subject, expires_at
		FROM sessions
		WHERE sender_id = $1 AND expires_at > $2
		ORDER BY expires_at DESC, seq DESC
		LIMIT 1`

	pruneSessionsSQL = `DELETE FROM sessions WHERE expires_at <= $1`
)

func (s *PostgresStore) Start(ctx context.Context, sender types.SenderID) (*types.Session, error) {
	session := &types.Session{
		ID:        types.NewSessionID(),
		Sender:    sender,
		ExpiresAt: s.opts.now().Add(s.opts.ttl),
	}
	if _, err := s.db.Exec(ctx, insertSessionSQL, string(session.ID), string(sender), session.ExpiresAt); err != nil {
		return nil, fmt.Errorf("state: insert session: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) UpdateTopic(ctx context.Context, sender types.SenderID, topic types.Topic) error {
	now := s.opts.now()
	if _, err := s.db.Exec(ctx, updateTopicSQL, string(topic), now.Add(s.opts.ttl), string(sender), now); err != nil {
		return fmt.Errorf("state: update session context: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSubject(ctx context.Context, sender types.SenderID, subject string) error {
	now := s.opts.now()
	if _, err := s.db.Exec(ctx, updateSubjectSQL, subject, now.Add(s.opts.ttl), string(sender), now); err != nil {
		return fmt.Errorf("state: update session subject: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sender types.SenderID) (*types.Session, error) {
	var (
		id, senderID, topic, subject string
		expiresAt                    time.Time
	)
	err := s.db.QueryRow(ctx, selectSessionSQL, string(sender), s.opts.now()).
		Scan(&id, &senderID, &topic, &subject, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("state: select session: %w", err)
	}

	parsed, err := types.ParseTopic(topic)
	if err != nil {
		return nil, fmt.Errorf("state: session %s: %w", id, err)
	}
	return &types.Session{
		ID:        types.SessionID(id),
		Sender:    types.SenderID(senderID),
		Topic:     parsed,
		Subject:   subject,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *PostgresStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, pruneSessionsSQL, now)
	if err != nil {
		return 0, fmt.Errorf("state: prune sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
