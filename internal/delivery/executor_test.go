package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/user/tirtabot/internal/types"
)

// recordingChannel logs every call and fails the calls listed in fail.
type recordingChannel struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (c *recordingChannel) record(call string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return c.fail[call]
}

func (c *recordingChannel) SetTyping(_ context.Context, _ types.SenderID, on bool) error {
	return c.record(fmt.Sprintf("typing:%t", on))
}

func (c *recordingChannel) SendText(_ context.Context, _ types.SenderID, text string) error {
	return c.record("text:" + text)
}

func (c *recordingChannel) SendLocation(_ context.Context, _ types.SenderID, place types.Place) error {
	return c.record("location:" + place.Name)
}

func newTestExecutor(ch types.Channel) (*Executor, *[]time.Duration) {
	reg := NewRegistry()
	reg.Register("test", ch)
	x := NewExecutor(reg, nil)
	var waits []time.Duration
	x.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return x, &waits
}

func turn() []types.Action {
	return []types.Action{
		types.TypingOn(),
		types.Wait(3 * time.Second),
		types.TypingOff(),
		types.SendText("first"),
		types.Wait(2 * time.Second),
		types.TypingOn(),
		types.Wait(time.Second),
		types.TypingOff(),
		types.SendLocation(types.Place{Name: "office"}),
	}
}

func TestExecutorRunsActionsInOrder(t *testing.T) {
	ch := &recordingChannel{}
	x, waits := newTestExecutor(ch)

	if err := x.Deliver(context.Background(), "test:1", turn()); err != nil {
		t.Fatal(err)
	}

	want := []string{"typing:true", "typing:false", "text:first", "typing:true", "typing:false", "location:office"}
	if fmt.Sprint(ch.calls) != fmt.Sprint(want) {
		t.Errorf("calls = %v, want %v", ch.calls, want)
	}
	if fmt.Sprint(*waits) != fmt.Sprint([]time.Duration{3 * time.Second, 2 * time.Second, time.Second}) {
		t.Errorf("unexpected waits: %v", *waits)
	}
}

func TestExecutorChatGoneAbandonsTurn(t *testing.T) {
	ch := &recordingChannel{fail: map[string]error{"text:first": fmt.Errorf("telegram: %w", types.ErrChatGone)}}
	x, _ := newTestExecutor(ch)

	err := x.Deliver(context.Background(), "test:1", turn())
	if !errors.Is(err, types.ErrChatGone) {
		t.Fatalf("expected ErrChatGone, got %v", err)
	}
	if last := ch.calls[len(ch.calls)-1]; last != "text:first" {
		t.Errorf("expected delivery to stop at the failed send, last call %s", last)
	}
}

func TestExecutorSendFailureIsChannelUnavailable(t *testing.T) {
	ch := &recordingChannel{fail: map[string]error{"text:first": errors.New("bad gateway")}}
	x, _ := newTestExecutor(ch)

	err := x.Deliver(context.Background(), "test:1", turn())
	if types.KindOf(err) != types.KindChannelUnavailable {
		t.Fatalf("expected channel unavailable, got %v", err)
	}
	if len(ch.calls) != 3 {
		t.Errorf("expected no calls after the failed send, got %v", ch.calls)
	}
}

func TestExecutorTypingFailureIsIgnored(t *testing.T) {
	ch := &recordingChannel{fail: map[string]error{"typing:true": errors.New("rate limited")}}
	x, _ := newTestExecutor(ch)

	if err := x.Deliver(context.Background(), "test:1", turn()); err != nil {
		t.Fatalf("typing failures should not fail the turn: %v", err)
	}
	if len(ch.calls) != 6 {
		t.Errorf("expected all calls to be attempted, got %v", ch.calls)
	}
}

func TestExecutorUnknownChannel(t *testing.T) {
	x, _ := newTestExecutor(&recordingChannel{})

	err := x.Deliver(context.Background(), "other:1", turn())
	if types.KindOf(err) != types.KindChannelUnavailable {
		t.Fatalf("expected channel unavailable, got %v", err)
	}
}

func TestExecutorCancelledWait(t *testing.T) {
	ch := &recordingChannel{}
	x, _ := newTestExecutor(ch)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := x.Deliver(ctx, "test:1", turn())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(ch.calls) != 1 {
		t.Errorf("expected delivery to stop at the first wait, got %v", ch.calls)
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
