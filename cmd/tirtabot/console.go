package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/user/tirtabot/internal/types"
)

const consoleChannelName = "console"

// consoleChannel prints outbound actions to a terminal.
type consoleChannel struct {
	mu  sync.Mutex
	out io.Writer
}

var _ types.Channel = (*consoleChannel)(nil)

func newConsoleChannel(out io.Writer) *consoleChannel {
	return &consoleChannel{out: out}
}

func (c *consoleChannel) SetTyping(_ context.Context, _ types.SenderID, on bool) error {
	if !on {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, "  ...")
	return err
}

func (c *consoleChannel) SendText(_ context.Context, _ types.SenderID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "bot> %s\n\n", text)
	return err
}

func (c *consoleChannel) SendLocation(_ context.Context, _ types.SenderID, place types.Place) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "bot> [lokasi] %s\n     %s\n     %.7f,%.7f %s\n\n",
		place.Name, place.Address, place.Latitude, place.Longitude, place.URL)
	return err
}
