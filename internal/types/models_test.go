// internal/types/models_test.go
package types

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseTopic(t *testing.T) {
	for _, s := range []string{"", "customer", "bill", "history"} {
		topic, err := ParseTopic(s)
		if err != nil {
			t.Fatalf("ParseTopic(%q): %v", s, err)
		}
		if string(topic) != s {
			t.Errorf("expected %q, got %q", s, topic)
		}
	}
	if _, err := ParseTopic("payment"); err == nil {
		t.Error("expected error for unknown topic")
	}
}

func TestTopicLookup(t *testing.T) {
	if TopicNone.Lookup() {
		t.Error("TopicNone should not accept lookups")
	}
	for _, topic := range []Topic{TopicCustomer, TopicBill, TopicHistory} {
		if !topic.Lookup() {
			t.Errorf("expected %s to accept lookups", topic)
		}
	}
}

func TestSessionActiveIsStrict(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := &Session{ExpiresAt: now}
	if s.Active(now) {
		t.Error("session expiring exactly now must be inactive")
	}
	s.ExpiresAt = now.Add(time.Nanosecond)
	if !s.Active(now) {
		t.Error("expected session to be active")
	}
	var missing *Session
	if missing.Active(now) {
		t.Error("nil session must be inactive")
	}
}

func TestParseMenuOption(t *testing.T) {
	for i, want := range MenuOptions {
		got, ok := ParseMenuOption(fmt.Sprint(i + 1))
		if !ok || got != want {
			t.Errorf("digit %d: expected %v, got %v (ok=%v)", i+1, want, got, ok)
		}
	}
	for _, text := range []string{"0", "10", "a", "", " 1"} {
		if _, ok := ParseMenuOption(text); ok {
			t.Errorf("expected %q to be rejected", text)
		}
	}
}

func TestMenuOptionTopic(t *testing.T) {
	if MenuCustomerInfo.Topic() != TopicCustomer || MenuBillInfo.Topic() != TopicBill || MenuPaymentHistory.Topic() != TopicHistory {
		t.Error("unexpected topic mapping for lookup options")
	}
	if MenuPayBill.Topic() != TopicNone || MenuOfficeLocation.Topic() != TopicNone {
		t.Error("non-lookup options must map to TopicNone")
	}
	for _, o := range MenuOptions {
		if o.Label() == "" {
			t.Errorf("option %d has no label", o)
		}
	}
}

func TestErrorKind(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("handle message: %w", NewError(KindStoreUnavailable, "get session", base))
	if KindOf(err) != KindStoreUnavailable {
		t.Errorf("expected store unavailable, got %q", KindOf(err))
	}
	if !errors.Is(err, base) {
		t.Error("expected error chain to include base error")
	}
	if KindOf(base) != "" {
		t.Error("expected no kind for plain error")
	}
}
