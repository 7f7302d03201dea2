package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is one topup transaction keyed by the gateway-facing reference.
// The raw payload accumulates callback payloads by shallow merge; fields seen
// in earlier deliveries survive later partial ones.
type Invoice struct {
	Reference  string          `json:"reference"`
	UserID     string          `json:"user_id"`
	Credits    int64           `json:"credits"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Wallet holds one user's credit balance. Created lazily on first settlement.
type Wallet struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerEntry is the immutable audit record of one credit event. ExternalID
// carries the gateway reference and is unique: it is the duplicate-detection
// key for the whole pipeline.
type LedgerEntry struct {
	ID         uuid.UUID       `json:"id"`
	UserID     string          `json:"user_id"`
	Reason     string          `json:"reason"`
	Credits    int64           `json:"credits"`
	Amount     decimal.Decimal `json:"amount"`
	ExternalID string          `json:"external_id"`
	CreatedAt  time.Time       `json:"created_at"`
}
