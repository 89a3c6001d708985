// internal/types/ids.go
package types

import (
	"strings"

	"github.com/google/uuid"
)

// SenderID identifies one conversation partner on one channel, formatted
// as "<channel>:<id>" (for example "telegram:12345").
type SenderID string
type SessionID string
type RunID string

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func NewRunID() RunID {
	return RunID(uuid.New().String())
}

func NewSenderID(channel, id string) SenderID {
	return SenderID(channel + ":" + id)
}

// Channel returns the channel prefix of the sender, or "" when the ID is
// not channel-qualified.
func (s SenderID) Channel() string {
	channel, _, ok := strings.Cut(string(s), ":")
	if !ok {
		return ""
	}
	return channel
}

// Local returns the channel-local part of the sender.
func (s SenderID) Local() string {
	_, local, ok := strings.Cut(string(s), ":")
	if !ok {
		return string(s)
	}
	return local
}
