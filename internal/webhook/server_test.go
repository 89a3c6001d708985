package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/user/tirtabot/internal/gateway"
	"github.com/user/tirtabot/internal/state"
	"github.com/user/tirtabot/internal/types"
)

type mockGateway struct {
	lastEvent  *types.InboundEvent
	actions    []types.Action
	turnErr    error
	enqueueErr error
	hold       bool
}

func (m *mockGateway) HandleInbound(_ context.Context, event *types.InboundEvent, opts ...gateway.RunOption) error {
	m.lastEvent = event
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	run := gateway.NewRun(event)
	for _, opt := range opts {
		opt(run)
	}
	if !m.hold && run.OnActions != nil {
		run.OnActions(m.actions, m.turnErr)
	}
	return nil
}

func setupServer(t *testing.T, mock *mockGateway) (*Server, *state.MemoryStore) {
	t.Helper()
	sessions := state.NewMemoryStore()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tirtabot_engine_turns_total 1\n"))
	})
	return NewServer(Config{
		Gateway:         mock,
		Sessions:        sessions,
		MetricsHandler:  metrics,
		ResponseTimeout: 100 * time.Millisecond,
	}), sessions
}

func post(srv http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupServer(t, &mockGateway{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := setupServer(t, &mockGateway{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "tirtabot_engine_turns_total") {
		t.Fatalf("unexpected metrics response: %d %s", w.Code, w.Body.String())
	}
}

func TestPostMessageReturnsActions(t *testing.T) {
	office := types.Place{Latitude: -6.87, Longitude: 107.55, Name: "Kantor"}
	mock := &mockGateway{actions: []types.Action{
		types.TypingOn(),
		types.Wait(3 * time.Second),
		types.TypingOff(),
		types.SendText("Halo"),
		types.SendLocation(office),
	}}
	srv, _ := setupServer(t, mock)

	w := post(srv, `{"sender":"6281234567890","text":"halo"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if mock.lastEvent.Sender != "http:6281234567890" || mock.lastEvent.Text != "halo" {
		t.Errorf("unexpected event: %+v", mock.lastEvent)
	}

	var resp messageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Actions) != 5 {
		t.Fatalf("expected 5 actions, got %d", len(resp.Actions))
	}
	if resp.Actions[1].Kind != types.ActionWait || resp.Actions[1].DelayMS != 3000 {
		t.Errorf("unexpected wait action: %+v", resp.Actions[1])
	}
	if resp.Actions[3].Text != "Halo" {
		t.Errorf("unexpected text action: %+v", resp.Actions[3])
	}
	if resp.Actions[4].Place == nil || *resp.Actions[4].Place != office {
		t.Errorf("unexpected location action: %+v", resp.Actions[4])
	}
}

func TestPostMessageKeepsChannelPrefix(t *testing.T) {
	mock := &mockGateway{}
	srv, _ := setupServer(t, mock)

	post(srv, `{"sender":"whatsapp:628123","text":"1"}`)

	if mock.lastEvent.Sender != "whatsapp:628123" {
		t.Errorf("expected prefixed sender to be kept, got %s", mock.lastEvent.Sender)
	}
}

func TestPostMessageValidation(t *testing.T) {
	srv, _ := setupServer(t, &mockGateway{})

	for _, body := range []string{`not json`, `{"text":"halo"}`, `{"sender":"  "}`} {
		if w := post(srv, body); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", body, w.Code)
		}
	}
}

func TestPostMessageStoreFailure(t *testing.T) {
	mock := &mockGateway{turnErr: types.NewError(types.KindStoreUnavailable, "get session", errors.New("down"))}
	srv, _ := setupServer(t, mock)

	if w := post(srv, `{"sender":"1","text":"halo"}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestPostMessageQueueFull(t *testing.T) {
	srv, _ := setupServer(t, &mockGateway{enqueueErr: errors.New("queue full for sender http:1")})

	if w := post(srv, `{"sender":"1","text":"halo"}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestPostMessageTimeout(t *testing.T) {
	srv, _ := setupServer(t, &mockGateway{hold: true})

	if w := post(srv, `{"sender":"1","text":"halo"}`); w.Code != http.StatusGatewayTimeout {
		t.Errorf("expected status 504, got %d", w.Code)
	}
}

func TestGetSession(t *testing.T) {
	srv, sessions := setupServer(t, &mockGateway{})
	ctx := context.Background()
	sender := types.NewSenderID("telegram", "42")
	if _, err := sessions.Start(ctx, sender); err != nil {
		t.Fatal(err)
	}
	if err := sessions.UpdateTopic(ctx, sender, types.TopicBill); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/telegram:42", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var got types.Session
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Sender != sender || got.Topic != types.TopicBill {
		t.Errorf("unexpected session: %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/sessions/telegram:43", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestUnconfiguredEndpoints(t *testing.T) {
	srv := NewServer(Config{})

	if w := post(srv, `{"sender":"1","text":"halo"}`); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 without gateway, got %d", w.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/telegram:42", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 without session store, got %d", w.Code)
	}
}

func TestListenAndServeShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ListenAndServe(ctx, "127.0.0.1:0", http.NotFoundHandler()) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
