// internal/types/models.go
package types

import (
	"fmt"
	"time"
)

// Topic is the subject area a free-text reply is interpreted against.
type Topic string

const (
	TopicNone     Topic = ""
	TopicCustomer Topic = "customer"
	TopicBill     Topic = "bill"
	TopicHistory  Topic = "history"
)

// ParseTopic converts a persisted topic value back into a Topic.
func ParseTopic(s string) (Topic, error) {
	switch Topic(s) {
	case TopicNone, TopicCustomer, TopicBill, TopicHistory:
		return Topic(s), nil
	}
	return TopicNone, fmt.Errorf("unknown topic %q", s)
}

// Lookup reports whether free text should be treated as a customer number
// while this topic is active.
func (t Topic) Lookup() bool {
	return t == TopicCustomer || t == TopicBill || t == TopicHistory
}

func (t Topic) String() string {
	if t == TopicNone {
		return "none"
	}
	return string(t)
}

// Session is the persisted conversation state of one sender. An empty
// Subject means no customer number is bound yet.
type Session struct {
	ID        SessionID `json:"id"`
	Sender    SenderID  `json:"sender"`
	Topic     Topic     `json:"topic,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Active reports whether the session is still valid at now. A session that
// expires exactly at now is already expired.
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.ExpiresAt.After(now)
}

type Customer struct {
	Number    string `json:"number"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Kelurahan string `json:"kelurahan"`
	Kecamatan string `json:"kecamatan"`
	ReadRoute string `json:"read_route"`
	Golongan  string `json:"golongan"`
	MeterSize string `json:"meter_size"`
	Status    string `json:"status"`
}

// Bill is one unpaid billing period. Penalty and Total are computed by the
// billing database; Total already includes Penalty.
type Bill struct {
	Year        int   `json:"year"`
	Month       int   `json:"month"`
	Usage       int64 `json:"usage"`
	WaterCharge int64 `json:"water_charge"`
	FixedCharge int64 `json:"fixed_charge"`
	Penalty     int64 `json:"penalty"`
	Total       int64 `json:"total"`
}

// Payment is one settled billing period.
type Payment struct {
	Year    int       `json:"year"`
	Month   int       `json:"month"`
	Usage   int64     `json:"usage"`
	Amount  int64     `json:"amount"`
	PaidAt  time.Time `json:"paid_at"`
	Cashier string    `json:"cashier"`
}

// Place is a structured location payload.
type Place struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	URL       string  `json:"url,omitempty"`
}

type InboundEvent struct {
	Source string   `json:"source"`
	Sender SenderID `json:"sender"`
	Text   string   `json:"text"`
}
