package engine

import (
	"fmt"
	"time"

	"github.com/user/tirtabot/internal/types"
)

// Pacing holds the simulated typing durations placed before each message.
type Pacing struct {
	Short  time.Duration // short prompts such as asking for a customer number
	Normal time.Duration // greetings, menus, stubs and not-found replies
	Long   time.Duration // replies carrying customer or billing data
	Gap    time.Duration // pause between the two messages of one turn
}

func DefaultPacing() Pacing {
	return Pacing{
		Short:  2 * time.Second,
		Normal: 3 * time.Second,
		Long:   5 * time.Second,
		Gap:    2 * time.Second,
	}
}

// Validate requires non-negative durations with Short <= Normal <= Long.
func (p Pacing) Validate() error {
	if p.Short < 0 || p.Normal < 0 || p.Long < 0 || p.Gap < 0 {
		return fmt.Errorf("pacing durations must not be negative: %+v", p)
	}
	if p.Short > p.Normal || p.Normal > p.Long {
		return fmt.Errorf("pacing must satisfy short <= normal <= long, got %s/%s/%s", p.Short, p.Normal, p.Long)
	}
	return nil
}

// script accumulates the outbound actions of one turn.
type script struct {
	pacing  Pacing
	actions []types.Action
}

func (s *script) typed(wait time.Duration, send types.Action) {
	if len(s.actions) > 0 {
		s.actions = append(s.actions, types.Wait(s.pacing.Gap))
	}
	s.actions = append(s.actions,
		types.TypingOn(),
		types.Wait(wait),
		types.TypingOff(),
		send,
	)
}

func (s *script) text(wait time.Duration, text string) {
	s.typed(wait, types.SendText(text))
}

func (s *script) location(wait time.Duration, place types.Place) {
	s.typed(wait, types.SendLocation(place))
}
