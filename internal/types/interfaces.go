// internal/types/interfaces.go
package types

import (
	"context"
	"time"
)

// SessionStore persists one conversation row per sender. Reads return the
// active row with the latest expiration; writes target that same row.
type SessionStore interface {
	Start(ctx context.Context, sender SenderID) (*Session, error)
	UpdateTopic(ctx context.Context, sender SenderID, topic Topic) error
	UpdateSubject(ctx context.Context, sender SenderID, subject string) error
	// Get returns nil without error when the sender has no active session.
	Get(ctx context.Context, sender SenderID) (*Session, error)
}

// SessionPruner removes rows that expired at or before the given time.
type SessionPruner interface {
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
}

// CustomerStore is the read-only view of the billing database.
type CustomerStore interface {
	// GetCustomer returns nil without error when the number is unknown.
	GetCustomer(ctx context.Context, number string) (*Customer, error)
	CheckCustomer(ctx context.Context, number string) (bool, error)
	OpenBills(ctx context.Context, number string) ([]Bill, error)
	RecentPayments(ctx context.Context, number string, limit int) ([]Payment, error)
}

// Channel executes outbound actions for senders of one messaging channel.
type Channel interface {
	SetTyping(ctx context.Context, sender SenderID, on bool) error
	SendText(ctx context.Context, sender SenderID, text string) error
	SendLocation(ctx context.Context, sender SenderID, place Place) error
}
