package events

import (
	"encoding/json"
	"time"
)

// Event type names carried on the bus.
const (
	TypeShipmentCreated = "shipment.created"
	TypePaymentConsumed = "payment.consumed"
)

// Envelope frames every published event so consumers can dispatch on
// Type before decoding the payload.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Wrap marshals payload into an Envelope ready for publishing.
func Wrap(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	})
}

// ShipmentCreated is emitted once per created shipment.
type ShipmentCreated struct {
	ShipmentID     int64  `json:"shipment_id"`
	ShipmentNumber string `json:"shipment_number"`
	TrackingNumber string `json:"tracking_number"`
	UserID         int64  `json:"user_id"`
	ServiceType    string `json:"service_type"`
	PriceCents     int64  `json:"price_cents"`
}

// PaymentConsumed is emitted when a payment settles and its shipments
// are created.
type PaymentConsumed struct {
	IntentID    string `json:"intent_id,omitempty"`
	Reference   string `json:"reference,omitempty"`
	UserID      int64  `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
	Shipments   int    `json:"shipments"`
}
