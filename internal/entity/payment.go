package entity

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// PaymentIntentRecord mirrors a Stripe PaymentIntent locally so webhook
// delivery can be consumed exactly once.
type PaymentIntentRecord struct {
	bun.BaseModel `bun:"table:payment_intents"`

	ID           int64           `bun:",pk,autoincrement"`
	IntentID     string          `bun:"intent_id"`
	UserID       int64           `bun:"user_id"`
	AmountCents  int64           `bun:"amount_cents"`
	Currency     string          `bun:"currency"`
	Status       IntentStatus    `bun:"status"`
	OrderPayload json.RawMessage `bun:"order_payload,type:jsonb,nullzero"`
	ConsumedAt   time.Time       `bun:"consumed_at,nullzero"`
	CreatedAt    time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// ManualPayment tracks an out-of-band payment by reference number.
type ManualPayment struct {
	bun.BaseModel `bun:"table:manual_payments"`

	ID           int64               `bun:",pk,autoincrement"`
	Reference    string              `bun:"reference"`
	UserID       int64               `bun:"user_id"`
	AmountCents  int64               `bun:"amount_cents"`
	Currency     string              `bun:"currency"`
	Method       string              `bun:"method"`
	Status       ManualPaymentStatus `bun:"status"`
	OrderPayload json.RawMessage     `bun:"order_payload,type:jsonb,nullzero"`
	ExpiresAt    time.Time           `bun:"expires_at"`
	VerifiedAt   time.Time           `bun:"verified_at,nullzero"`
	CreatedAt    time.Time           `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// Expired reports whether the payment window has closed.
func (m *ManualPayment) Expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && now.After(m.ExpiresAt)
}
