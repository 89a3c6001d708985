package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/tirtabot/internal/metrics"
	"github.com/user/tirtabot/internal/types"
)

// Executor performs a turn's actions in order on the sender's channel.
type Executor struct {
	registry *Registry
	metrics  *metrics.Metrics
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewExecutor(registry *Registry, m *metrics.Metrics) *Executor {
	return &Executor{registry: registry, metrics: m, sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Deliver runs actions in order. A channel reporting ErrChatGone abandons
// the remaining actions. A failed send ends the turn with a
// KindChannelUnavailable error; failed typing indicators are only logged.
func (x *Executor) Deliver(ctx context.Context, sender types.SenderID, actions []types.Action) error {
	ch, err := x.registry.Channel(sender)
	if err != nil {
		return types.NewError(types.KindChannelUnavailable, "deliver", err)
	}
	name := sender.Channel()

	for i, action := range actions {
		var err error
		switch action.Kind {
		case types.ActionWait:
			if err := x.sleep(ctx, action.Delay); err != nil {
				return fmt.Errorf("delivery: wait interrupted: %w", err)
			}
			continue
		case types.ActionTypingOn:
			err = ch.SetTyping(ctx, sender, true)
		case types.ActionTypingOff:
			err = ch.SetTyping(ctx, sender, false)
		case types.ActionSendText:
			err = ch.SendText(ctx, sender, action.Text)
		case types.ActionSendLocation:
			if action.Place == nil {
				err = errors.New("location action without place")
				break
			}
			err = ch.SendLocation(ctx, sender, *action.Place)
		default:
			slog.Warn("unknown action skipped", "sender", string(sender), "kind", string(action.Kind))
			continue
		}

		if err == nil {
			x.metrics.ObserveDelivery(name, string(action.Kind), "ok")
			continue
		}
		if errors.Is(err, types.ErrChatGone) {
			x.metrics.ObserveDelivery(name, string(action.Kind), "gone")
			slog.Info("chat gone, dropping remaining actions", "sender", string(sender), "dropped", len(actions)-i-1)
			return err
		}
		x.metrics.ObserveDelivery(name, string(action.Kind), "error")
		if action.Kind == types.ActionTypingOn || action.Kind == types.ActionTypingOff {
			slog.Warn("typing indicator failed", "sender", string(sender), "error", err)
			continue
		}
		slog.Error("send failed", "sender", string(sender), "kind", string(action.Kind), "error", err)
		return types.NewError(types.KindChannelUnavailable, string(action.Kind), err)
	}
	return nil
}
