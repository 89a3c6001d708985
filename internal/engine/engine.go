// Package engine decides the reply to every inbound customer message. It
// reads and updates the sender's session, queries the billing database and
// returns the outbound actions without performing them.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/user/tirtabot/internal/metrics"
	"github.com/user/tirtabot/internal/reply"
	"github.com/user/tirtabot/internal/types"
)

var tracer = otel.Tracer("tirtabot.internal.engine")

// Turn outcomes, used as metric labels and span attributes.
const (
	OutcomeGreeting         = "greeting"
	OutcomeAskSubject       = "ask_subject"
	OutcomeCustomer         = "customer"
	OutcomeBills            = "bills"
	OutcomeHistory          = "history"
	OutcomeCustomerNotFound = "customer_not_found"
	OutcomeBillsEmpty       = "bills_empty"
	OutcomeHistoryEmpty     = "history_empty"
	OutcomeStub             = "stub"
	OutcomeOffice           = "office"
	OutcomeUnrecognized     = "unrecognized"
	OutcomeError            = "error"
)

type Engine struct {
	sessions  types.SessionStore
	customers types.CustomerStore
	replies   *reply.Renderer
	pacing    Pacing
	now       func() time.Time
	metrics   *metrics.Metrics
}

type Option func(*Engine)

func WithPacing(p Pacing) Option {
	return func(e *Engine) { e.pacing = p }
}

// WithClock overrides the time used for the greeting salutation.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func New(sessions types.SessionStore, customers types.CustomerStore, replies *reply.Renderer, opts ...Option) (*Engine, error) {
	if sessions == nil || customers == nil || replies == nil {
		return nil, fmt.Errorf("engine: session store, customer store and renderer are required")
	}
	e := &Engine{
		sessions:  sessions,
		customers: customers,
		replies:   replies,
		pacing:    DefaultPacing(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.pacing.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return e, nil
}

// HandleMessage runs one conversation turn for sender. Session writes are
// committed before the data they select is fetched, so a failed fetch
// leaves a valid session behind. Store failures are returned as
// KindStoreUnavailable errors with no actions.
func (e *Engine) HandleMessage(ctx context.Context, sender types.SenderID, text string) ([]types.Action, error) {
	ctx, span := tracer.Start(ctx, "engine.handle_message")
	defer span.End()
	span.SetAttributes(attribute.String("tirtabot.sender", string(sender)))

	started := time.Now()
	s := &script{pacing: e.pacing}
	outcome, err := e.dispatch(ctx, sender, strings.TrimSpace(text), s)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.ObserveTurn(OutcomeError, time.Since(started).Seconds())
		return nil, err
	}
	span.SetAttributes(attribute.String("tirtabot.outcome", outcome))
	e.metrics.ObserveTurn(outcome, time.Since(started).Seconds())
	return s.actions, nil
}

// FailureActions is the reply sent when a turn fails on the stores.
func (e *Engine) FailureActions() []types.Action {
	s := &script{pacing: e.pacing}
	s.text(e.pacing.Short, e.replies.SystemError())
	return s.actions
}

func storeError(op string, err error) error {
	return types.NewError(types.KindStoreUnavailable, op, err)
}

func (e *Engine) dispatch(ctx context.Context, sender types.SenderID, text string, s *script) (string, error) {
	session, err := e.sessions.Get(ctx, sender)
	if err != nil {
		return "", storeError("get session", err)
	}

	if session == nil {
		slog.Info("starting session", "sender", sender)
		if _, err := e.sessions.Start(ctx, sender); err != nil {
			return "", storeError("start session", err)
		}
		greeting, err := e.replies.Greeting(e.now())
		if err != nil {
			return "", err
		}
		s.text(e.pacing.Normal, greeting)
		return OutcomeGreeting, nil
	}

	if option, ok := types.ParseMenuOption(text); ok {
		return e.menu(ctx, session, option, s)
	}

	if session.Topic.Lookup() {
		return e.lookup(ctx, session, text, s)
	}

	slog.Info("keyword not found", "sender", sender, "message", text, "kind", types.KindUnrecognizedInput)
	msg, err := e.replies.KeywordNotFound()
	if err != nil {
		return "", err
	}
	s.text(e.pacing.Normal, msg)
	return OutcomeUnrecognized, nil
}

func (e *Engine) menu(ctx context.Context, session *types.Session, option types.MenuOption, s *script) (string, error) {
	if topic := option.Topic(); topic != types.TopicNone {
		if err := e.sessions.UpdateTopic(ctx, session.Sender, topic); err != nil {
			return "", storeError("update topic", err)
		}
		if session.Subject == "" {
			s.text(e.pacing.Short, e.replies.AskSubject())
			return OutcomeAskSubject, nil
		}
		return e.fetch(ctx, session.Sender, topic, session.Subject, s)
	}

	outcome := OutcomeStub
	switch option {
	case types.MenuPayBill:
		s.text(e.pacing.Normal, e.replies.Payment())
	case types.MenuNewConnection:
		s.text(e.pacing.Normal, e.replies.Registration())
	case types.MenuComplaint:
		s.text(e.pacing.Normal, e.replies.Complaint())
	case types.MenuComplaintStatus:
		s.text(e.pacing.Normal, e.replies.ComplaintStatus())
	case types.MenuOutageInfo:
		s.text(e.pacing.Normal, e.replies.OutageInfo())
	case types.MenuOfficeLocation:
		s.location(e.pacing.Normal, e.replies.OfficeLocation())
		outcome = OutcomeOffice
	}

	// A fresh row shadows the current one, clearing topic and subject.
	if _, err := e.sessions.Start(ctx, session.Sender); err != nil {
		return "", storeError("reset session", err)
	}
	return outcome, nil
}

// lookup treats text as a customer number for the active topic.
func (e *Engine) lookup(ctx context.Context, session *types.Session, number string, s *script) (string, error) {
	slog.Info("searching", "sender", session.Sender, "message", number, "topic", session.Topic.String())

	exists, err := e.customers.CheckCustomer(ctx, number)
	if err != nil {
		return "", storeError("check customer", err)
	}
	if !exists {
		slog.Info("customer not found", "sender", session.Sender, "message", number, "kind", types.KindNotFound)
		msg, err := e.replies.CustomerNotFound(number)
		if err != nil {
			return "", err
		}
		s.text(e.pacing.Normal, msg)
		return OutcomeCustomerNotFound, nil
	}

	if err := e.sessions.UpdateSubject(ctx, session.Sender, number); err != nil {
		return "", storeError("update subject", err)
	}
	return e.fetch(ctx, session.Sender, session.Topic, number, s)
}

// fetch renders the data reply for topic, or its empty variant, followed by
// the context prompt.
func (e *Engine) fetch(ctx context.Context, sender types.SenderID, topic types.Topic, number string, s *script) (string, error) {
	var (
		msg     string
		wait    = e.pacing.Long
		outcome string
		err     error
	)

	switch topic {
	case types.TopicCustomer:
		customer, ferr := e.customers.GetCustomer(ctx, number)
		if ferr != nil {
			return "", storeError("get customer", ferr)
		}
		if customer == nil {
			slog.Info("customer not found", "sender", sender, "message", number, "kind", types.KindNotFound)
			msg, err = e.replies.CustomerNotFound(number)
			wait, outcome = e.pacing.Normal, OutcomeCustomerNotFound
		} else {
			msg, err = e.replies.Customer(customer)
			outcome = OutcomeCustomer
		}

	case types.TopicBill:
		bills, ferr := e.customers.OpenBills(ctx, number)
		if ferr != nil {
			return "", storeError("get open bills", ferr)
		}
		if len(bills) == 0 {
			slog.Info("bill not found", "sender", sender, "message", number, "kind", types.KindEmptyResult)
			msg, err = e.replies.BillNotFound(number)
			wait, outcome = e.pacing.Normal, OutcomeBillsEmpty
		} else {
			msg, err = e.replies.Bills(number, bills)
			outcome = OutcomeBills
		}

	case types.TopicHistory:
		payments, ferr := e.customers.RecentPayments(ctx, number, reply.HistoryLimit)
		if ferr != nil {
			return "", storeError("get recent payments", ferr)
		}
		if len(payments) == 0 {
			slog.Info("history payment not found", "sender", sender, "message", number, "kind", types.KindEmptyResult)
			msg, err = e.replies.HistoryNotFound(number)
			wait, outcome = e.pacing.Normal, OutcomeHistoryEmpty
		} else {
			msg, err = e.replies.History(number, payments)
			outcome = OutcomeHistory
		}

	default:
		return "", fmt.Errorf("engine: no data for topic %s", topic)
	}
	if err != nil {
		return "", err
	}
	s.text(wait, msg)

	prompt, err := e.replies.ContextPrompt()
	if err != nil {
		return "", err
	}
	s.text(e.pacing.Normal, prompt)
	return outcome, nil
}
