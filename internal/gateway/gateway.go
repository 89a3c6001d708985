package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/user/tirtabot/internal/metrics"
	"github.com/user/tirtabot/internal/types"
)

// Engine decides the actions of one conversation turn.
type Engine interface {
	HandleMessage(ctx context.Context, sender types.SenderID, text string) ([]types.Action, error)
	FailureActions() []types.Action
}

// Deliverer performs a turn's actions on the sender's channel.
type Deliverer interface {
	Deliver(ctx context.Context, sender types.SenderID, actions []types.Action) error
}

// Gateway orchestrates inbound events into runs. Each event is wrapped in a
// Run and enqueued on its sender's lane, so that session read-modify-write
// never interleaves for one sender.
type Gateway struct {
	engine   Engine
	delivery Deliverer
	metrics  *metrics.Metrics
	Queue    *Queue

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Gateway.
type Option func(*Gateway)

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
		g.Queue.SetMetrics(m)
	}
}

// New creates a Gateway with the given concurrency limit for simultaneous
// turns across senders.
func New(engine Engine, delivery Deliverer, maxConcurrent int64, opts ...Option) *Gateway {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	g := &Gateway{
		engine:   engine,
		delivery: delivery,
		Queue:    NewQueue(maxConcurrent),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.Queue.SetProcessor(g.process)
	return g
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context, stops the queue, and waits for any
// outstanding work to finish.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
	g.wg.Wait()
}

// RunOption configures optional behavior on a Run.
type RunOption func(*Run)

// WithOnActions hands the turn's actions to fn instead of delivering them.
func WithOnActions(fn func([]types.Action, error)) RunOption {
	return func(r *Run) { r.OnActions = fn }
}

// HandleInbound wraps the event in a Run and enqueues it on the sender's
// lane.
func (g *Gateway) HandleInbound(ctx context.Context, event *types.InboundEvent, opts ...RunOption) error {
	if event == nil || event.Sender == "" {
		return errors.New("gateway: inbound event without sender")
	}
	run := NewRun(event)
	for _, opt := range opts {
		opt(run)
	}
	return g.Queue.Enqueue(run)
}

func (g *Gateway) process(run *Run) error {
	run.start()
	err := g.turn(run)
	run.finish(err)
	return err
}

func (g *Gateway) turn(run *Run) error {
	ctx := run.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	actions, err := g.engine.HandleMessage(ctx, run.Sender, run.Event.Text)
	if err != nil {
		g.metrics.ObserveFailure("engine")
		if run.OnActions != nil {
			run.OnActions(nil, err)
			return err
		}
		// Best effort: the customer should not be left without an answer.
		if derr := g.delivery.Deliver(ctx, run.Sender, g.engine.FailureActions()); derr != nil {
			slog.Warn("failure reply not delivered", "sender", string(run.Sender), "error", derr)
		}
		return err
	}

	if run.OnActions != nil {
		run.OnActions(actions, nil)
		return nil
	}
	if err := g.delivery.Deliver(ctx, run.Sender, actions); err != nil {
		if errors.Is(err, types.ErrChatGone) {
			slog.Info("chat gone, turn abandoned", "sender", string(run.Sender))
			return nil
		}
		g.metrics.ObserveFailure("delivery")
		return err
	}
	return nil
}
