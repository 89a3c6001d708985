package delivery

import (
	"fmt"
	"sync"

	"github.com/user/tirtabot/internal/types"
)

// Registry routes senders to the channel named by their prefix
// (e.g. "telegram:", "console:").
type Registry struct {
	mu       sync.RWMutex
	channels map[string]types.Channel
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]types.Channel),
	}
}

// Register adds the channel serving senders of the form "<name>:<id>".
func (r *Registry) Register(name string, channel types.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[name] = channel
}

// Channel returns the channel registered for the sender's prefix.
func (r *Registry) Channel(sender types.SenderID) (types.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[sender.Channel()]
	if !ok {
		return nil, fmt.Errorf("no delivery channel for sender: %s", sender)
	}
	return ch, nil
}

// Names lists the registered channel names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	return names
}
