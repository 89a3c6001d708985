// internal/state/memory.go
package state

import (
	"context"
	"sync"
	"time"

	"github.com/user/tirtabot/internal/types"
)

// MemoryStore keeps session rows in process memory. It is used by the local
// chat console and by tests.
type MemoryStore struct {
	opts options
	mu   sync.RWMutex
	rows map[types.SenderID][]*types.Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		opts: buildOptions(opts),
		rows: make(map[types.SenderID][]*types.Session),
	}
}

// Start appends a fresh row without looking at existing ones.
func (s *MemoryStore) Start(_ context.Context, sender types.SenderID) (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := &types.Session{
		ID:        types.NewSessionID(),
		Sender:    sender,
		ExpiresAt: s.opts.now().Add(s.opts.ttl),
	}
	s.rows[sender] = append(s.rows[sender], session)
	copied := *session
	return &copied, nil
}

// latest returns the active row with the latest expiration. Rows are kept in
// creation order, so the newest row wins a tie. Caller holds mu.
func (s *MemoryStore) latest(sender types.SenderID, now time.Time) *types.Session {
	var found *types.Session
	for _, row := range s.rows[sender] {
		if !row.Active(now) {
			continue
		}
		if found == nil || !row.ExpiresAt.Before(found.ExpiresAt) {
			found = row
		}
	}
	return found
}

func (s *MemoryStore) UpdateTopic(_ context.Context, sender types.SenderID, topic types.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	if row := s.latest(sender, now); row != nil {
		row.Topic = topic
		row.ExpiresAt = now.Add(s.opts.ttl)
	}
	return nil
}

func (s *MemoryStore) UpdateSubject(_ context.Context, sender types.SenderID, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	if row := s.latest(sender, now); row != nil {
		row.Subject = subject
		row.ExpiresAt = now.Add(s.opts.ttl)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sender types.SenderID) (*types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.latest(sender, s.opts.now())
	if row == nil {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

// PruneExpired drops rows that are no longer active at now.
func (s *MemoryStore) PruneExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for sender, rows := range s.rows {
		kept := rows[:0]
		for _, row := range rows {
			if row.Active(now) {
				kept = append(kept, row)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(s.rows, sender)
		} else {
			s.rows[sender] = kept
		}
	}
	return removed, nil
}
