//go:build integration

package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/user/tirtabot/internal/delivery"
	"github.com/user/tirtabot/internal/engine"
	"github.com/user/tirtabot/internal/gateway"
	"github.com/user/tirtabot/internal/reply"
	"github.com/user/tirtabot/internal/state"
	"github.com/user/tirtabot/internal/types"
	"github.com/user/tirtabot/internal/webhook"
)

// billing is an in-memory stand-in for the billing database.
type billing struct {
	customers map[string]*types.Customer
	bills     map[string][]types.Bill
}

func newBilling() *billing {
	return &billing{
		customers: map[string]*types.Customer{
			"0101010001": {Number: "0101010001", Name: "BUDI", Address: "JL. MERDEKA 1", Status: "AKTIF"},
		},
		bills: map[string][]types.Bill{
			"0101010001": {{Year: 2026, Month: 9, Usage: 10, WaterCharge: 40000, FixedCharge: 7500, Total: 47500}},
		},
	}
}

func (b *billing) GetCustomer(_ context.Context, number string) (*types.Customer, error) {
	return b.customers[number], nil
}

func (b *billing) CheckCustomer(_ context.Context, number string) (bool, error) {
	_, ok := b.customers[number]
	return ok, nil
}

func (b *billing) OpenBills(_ context.Context, number string) ([]types.Bill, error) {
	return b.bills[number], nil
}

func (b *billing) RecentPayments(_ context.Context, _ string, _ int) ([]types.Payment, error) {
	return nil, nil
}

// recorder is a channel that keeps every text it is asked to send.
type recorder struct {
	mu    sync.Mutex
	texts []string
	sent  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{sent: make(chan struct{}, 64)}
}

func (r *recorder) SetTyping(context.Context, types.SenderID, bool) error { return nil }

func (r *recorder) SendText(_ context.Context, _ types.SenderID, text string) error {
	r.mu.Lock()
	r.texts = append(r.texts, text)
	r.mu.Unlock()
	r.sent <- struct{}{}
	return nil
}

func (r *recorder) SendLocation(_ context.Context, _ types.SenderID, place types.Place) error {
	return r.SendText(context.Background(), "", "location:"+place.Name)
}

func (r *recorder) waitFor(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-r.sent:
		case <-deadline:
			t.Fatalf("timeout waiting for %d messages, got %d", n, i)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func newEngine(t *testing.T, sessions types.SessionStore) *engine.Engine {
	t.Helper()
	replies, err := reply.New(reply.Options{
		OrgName:  "BLUD Air Minum Kota Cimahi",
		Office:   types.Place{Name: "Kantor Pusat", Latitude: -6.8693818, Longitude: 107.5541125},
		Location: time.UTC,
	})
	if err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(sessions, newBilling(), replies, engine.WithPacing(engine.Pacing{}))
	if err != nil {
		t.Fatal(err)
	}
	return eng
}

func TestEndToEnd(t *testing.T) {
	sessions := state.NewMemoryStore()
	channels := delivery.NewRegistry()
	rec := newRecorder()
	channels.Register("test", rec)

	gw := gateway.New(newEngine(t, sessions), delivery.NewExecutor(channels, nil), 2)
	ctx := context.Background()
	gw.Start(ctx)
	defer gw.Stop()

	sender := types.NewSenderID("test", "user1")
	for _, text := range []string{"halo", "2", "0101010001"} {
		if err := gw.HandleInbound(ctx, &types.InboundEvent{Source: "test", Sender: sender, Text: text}); err != nil {
			t.Fatal(err)
		}
	}

	// greeting, ask-for-subject, bills, context prompt
	texts := rec.waitFor(t, 4)
	if !strings.HasPrefix(texts[0], "Halo, selamat") {
		t.Errorf("expected greeting first, got %q", texts[0])
	}
	if texts[1] != "Berapa nomor pelanggan Anda?" {
		t.Errorf("expected ask-for-subject second, got %q", texts[1])
	}
	if !strings.Contains(texts[2], "tagihan Anda dengan Nomor Pelanggan 0101010001") {
		t.Errorf("expected bills third, got %q", texts[2])
	}
	if !strings.HasPrefix(texts[3], "Untuk melakukan pengecekan") {
		t.Errorf("expected context prompt last, got %q", texts[3])
	}

	session, err := sessions.Get(ctx, sender)
	if err != nil {
		t.Fatal(err)
	}
	if session == nil || session.Topic != types.TopicBill || session.Subject != "0101010001" {
		t.Errorf("unexpected session after bill lookup: %+v", session)
	}
}

func TestEndToEndHTTPWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	sessions := state.NewRedisStore(client)

	gw := gateway.New(newEngine(t, sessions), delivery.NewExecutor(delivery.NewRegistry(), nil), 2)
	ctx := context.Background()
	gw.Start(ctx)
	defer gw.Stop()

	srv := httptest.NewServer(webhook.NewServer(webhook.Config{Gateway: gw, Sessions: sessions}))
	defer srv.Close()

	post := func(text string) []string {
		t.Helper()
		body := strings.NewReader(`{"sender":"wa:628123","text":"` + text + `"}`)
		resp, err := http.Post(srv.URL+"/v1/messages", "application/json", body)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("POST %q: status %d", text, resp.StatusCode)
		}
		var out struct {
			Actions []struct {
				Kind string `json:"kind"`
				Text string `json:"text"`
			} `json:"actions"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		var texts []string
		for _, a := range out.Actions {
			if a.Text != "" {
				texts = append(texts, a.Text)
			}
		}
		return texts
	}

	if texts := post("halo"); len(texts) != 1 || !strings.HasPrefix(texts[0], "Halo, selamat") {
		t.Fatalf("expected greeting, got %q", texts)
	}
	texts := post("1")
	if len(texts) != 1 || texts[0] != "Berapa nomor pelanggan Anda?" {
		t.Fatalf("expected ask-for-subject, got %q", texts)
	}
	texts = post("0101010001")
	if len(texts) != 2 || !strings.Contains(texts[0], "BUDI") {
		t.Fatalf("expected customer data and prompt, got %q", texts)
	}

	resp, err := http.Get(srv.URL + "/v1/sessions/wa:628123")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session lookup: status %d", resp.StatusCode)
	}
	var session types.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatal(err)
	}
	if session.Topic != types.TopicCustomer || session.Subject != "0101010001" {
		t.Errorf("unexpected session: %+v", session)
	}
}
