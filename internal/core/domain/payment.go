package domain

import (
	"encoding/json"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusSuccess PaymentStatus = "SUCCESS"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

type Payment struct {
	ID                string
	UserID            string
	OrderID           string // empty until linked; a payment may exist without an order
	Amount            int64  // minor units
	Currency          string
	Status            PaymentStatus
	ProviderReference string // idempotency key for webhook processing; empty until the provider responds
	History           []PaymentEvent
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type PaymentEventKind string

const (
	PaymentEventSuccess PaymentEventKind = "success"
	PaymentEventFailure PaymentEventKind = "failure"
	PaymentEventUnknown PaymentEventKind = "unknown"
)

// PaymentEvent is one reconciled provider event. History is append-only:
// replays and later events never overwrite earlier entries, and the raw
// provider payload rides along for forward compatibility.
type PaymentEvent struct {
	Kind       PaymentEventKind `json:"kind"`
	Reference  string           `json:"reference"`
	Amount     int64            `json:"amount,omitempty"`
	PaidAt     string           `json:"paid_at,omitempty"`
	Channel    string           `json:"channel,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Raw        json.RawMessage  `json:"raw,omitempty"`
	ObservedAt time.Time        `json:"observed_at"`
}
