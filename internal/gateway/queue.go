package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/tirtabot/internal/metrics"
	"github.com/user/tirtabot/internal/types"
)

// DefaultIdleTimeout is how long an empty sender lane is kept before its
// goroutine exits.
const DefaultIdleTimeout = 10 * time.Minute

const laneBuffer = 100

var ErrQueueClosed = errors.New("queue closed")

// Queue manages per-sender lanes with a global concurrency semaphore.
// Each sender gets its own FIFO channel (lane) so that messages from one
// sender are processed sequentially, while the semaphore limits the total
// number of concurrent turns across all senders.
type Queue struct {
	lanes       map[types.SenderID]chan *Run
	semaphore   *semaphore.Weighted
	processor   func(*Run) error
	active      atomic.Int64
	idleTimeout time.Duration
	metrics     *metrics.Metrics
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// NewQueue creates a Queue that allows up to maxConcurrent runs to execute
// simultaneously across all sender lanes.
func NewQueue(maxConcurrent int64) *Queue {
	return &Queue{
		lanes:       make(map[types.SenderID]chan *Run),
		semaphore:   semaphore.NewWeighted(maxConcurrent),
		idleTimeout: DefaultIdleTimeout,
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// processors to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	q.closed = true
	for sender, lane := range q.lanes {
		close(lane)
		delete(q.lanes, sender)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a Run to the sender's lane, creating the lane (and its
// goroutine) on first use. Returns an error if the lane's buffer is full.
func (q *Queue) Enqueue(run *Run) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	lane, exists := q.lanes[run.Sender]
	if !exists {
		lane = make(chan *Run, laneBuffer)
		q.lanes[run.Sender] = lane
		q.metrics.SetLanes(len(q.lanes))
		q.wg.Add(1)
		go q.processLane(run.Sender, lane)
	}

	select {
	case lane <- run:
		return nil
	default:
		return fmt.Errorf("queue full for sender %s", run.Sender)
	}
}

// processLane drains a single sender lane, acquiring a semaphore slot
// before running the processor synchronously. The lane removes itself
// after idleTimeout without traffic.
func (q *Queue) processLane(sender types.SenderID, lane chan *Run) {
	defer q.wg.Done()
	idle := time.NewTimer(q.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case run, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				abandon(run, err)
				drain(lane, err)
				return
			}
			if q.processor != nil {
				q.active.Add(1)
				run.Ctx = q.ctx
				if err := q.processor(run); err != nil {
					slog.Error("run failed", "run_id", string(run.ID), "sender", string(run.Sender), "error", err)
				}
				q.active.Add(-1)
			}
			q.semaphore.Release(1)
			idle.Reset(q.idleTimeout)
		case <-idle.C:
			if q.reap(sender, lane) {
				return
			}
			idle.Reset(q.idleTimeout)
		case <-q.ctx.Done():
			drain(lane, q.ctx.Err())
			return
		}
	}
}

// abandon tells a caller waiting on run that it will never be processed.
func abandon(run *Run, err error) {
	slog.Warn("run dropped", "run_id", string(run.ID), "sender", string(run.Sender), "error", err)
	if run.OnActions != nil {
		run.OnActions(nil, err)
	}
}

// drain abandons the runs still buffered in lane without blocking.
func drain(lane chan *Run, err error) {
	for {
		select {
		case run, ok := <-lane:
			if !ok {
				return
			}
			abandon(run, err)
		default:
			return
		}
	}
}

// reap removes an empty lane from the map. Enqueue holds mu while sending,
// so a run cannot land in a lane after it was removed.
func (q *Queue) reap(sender types.SenderID, lane chan *Run) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(lane) > 0 {
		return false
	}
	if q.lanes[sender] == lane {
		delete(q.lanes, sender)
	}
	q.metrics.SetLanes(len(q.lanes))
	return true
}

// Lanes returns the number of sender lanes currently held.
func (q *Queue) Lanes() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.lanes)
}

// WaitIdle blocks until no runs are actively being processed, or the timeout
// expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// SetProcessor sets the function invoked for each dequeued Run.
func (q *Queue) SetProcessor(fn func(*Run) error) {
	q.processor = fn
}

// SetIdleTimeout changes how long empty lanes are kept. Call before Start.
func (q *Queue) SetIdleTimeout(d time.Duration) {
	if d > 0 {
		q.idleTimeout = d
	}
}

// SetMetrics reports the lane count to m. Call before Start.
func (q *Queue) SetMetrics(m *metrics.Metrics) {
	q.metrics = m
}
