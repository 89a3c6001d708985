// Package webhook serves the HTTP surface: health and metrics endpoints, a
// message endpoint for bridges that execute actions themselves, and a
// read-only session lookup.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/user/tirtabot/internal/gateway"
	"github.com/user/tirtabot/internal/types"
)

// DefaultChannel prefixes senders posted without one.
const DefaultChannel = "http"

// DefaultResponseTimeout bounds how long POST /v1/messages waits for the
// sender's lane to run the turn.
const DefaultResponseTimeout = 30 * time.Second

// Dispatcher accepts inbound events; *gateway.Gateway implements it.
type Dispatcher interface {
	HandleInbound(ctx context.Context, event *types.InboundEvent, opts ...gateway.RunOption) error
}

// Config holds the server's dependencies.
type Config struct {
	Gateway         Dispatcher
	Sessions        types.SessionStore
	MetricsHandler  http.Handler
	ResponseTimeout time.Duration
}

// Server is the chi-routed HTTP handler.
type Server struct {
	gateway  Dispatcher
	sessions types.SessionStore
	timeout  time.Duration
	router   chi.Router
}

// NewServer creates a Server from cfg. Endpoints whose dependency is nil
// answer 503.
func NewServer(cfg Config) *Server {
	s := &Server{
		gateway:  cfg.Gateway,
		sessions: cfg.Sessions,
		timeout:  cfg.ResponseTimeout,
		router:   chi.NewRouter(),
	}
	if s.timeout <= 0 {
		s.timeout = DefaultResponseTimeout
	}

	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}
	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", s.handleMessage)
		r.Get("/sessions/{sender}", s.handleSession)
	})
	return s
}

// ServeHTTP delegates to the router, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// messageRequest is the JSON body for POST /v1/messages.
type messageRequest struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type actionResponse struct {
	Kind    types.ActionKind `json:"kind"`
	DelayMS int64            `json:"delay_ms,omitempty"`
	Text    string           `json:"text,omitempty"`
	Place   *types.Place     `json:"place,omitempty"`
}

type messageResponse struct {
	Sender  string           `json:"sender"`
	Actions []actionResponse `json:"actions"`
}

type turnResult struct {
	actions []types.Action
	err     error
}

func normalizeSender(raw string) types.SenderID {
	sender := types.SenderID(strings.TrimSpace(raw))
	if sender.Channel() == "" {
		return types.NewSenderID(DefaultChannel, string(sender))
	}
	return sender
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	if s.gateway == nil {
		writeError(w, http.StatusServiceUnavailable, "gateway not configured")
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Sender) == "" {
		writeError(w, http.StatusBadRequest, "sender is required")
		return
	}

	sender := normalizeSender(req.Sender)
	event := &types.InboundEvent{Source: DefaultChannel, Sender: sender, Text: req.Text}
	results := make(chan turnResult, 1)
	err := s.gateway.HandleInbound(r.Context(), event, gateway.WithOnActions(func(actions []types.Action, err error) {
		results <- turnResult{actions, err}
	}))
	if err != nil {
		slog.Error("enqueue message failed", "sender", string(sender), "error", err)
		writeError(w, http.StatusServiceUnavailable, "busy")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	select {
	case res := <-results:
		if res.err != nil {
			slog.Error("turn failed", "sender", string(sender), "kind", string(types.KindOf(res.err)), "error", res.err)
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Sender: string(sender), Actions: toResponse(res.actions)})
	case <-ctx.Done():
		writeError(w, http.StatusGatewayTimeout, "timed out waiting for reply")
	}
}

func toResponse(actions []types.Action) []actionResponse {
	out := make([]actionResponse, 0, len(actions))
	for _, a := range actions {
		out = append(out, actionResponse{
			Kind:    a.Kind,
			DelayMS: a.Delay.Milliseconds(),
			Text:    a.Text,
			Place:   a.Place,
		})
	}
	return out
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session store not configured")
		return
	}
	sender := normalizeSender(chi.URLParam(r, "sender"))

	session, err := s.sessions.Get(r.Context(), sender)
	if err != nil {
		slog.Error("get session failed", "sender", string(sender), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// ListenAndServe serves s on addr until ctx is done, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
