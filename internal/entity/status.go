package entity

import "strings"

// PackageStatus is the closed set of package/shipment lifecycle states.
type PackageStatus string

const (
	StatusPending        PackageStatus = "pending"
	StatusProcessing     PackageStatus = "processing"
	StatusInTransit      PackageStatus = "in_transit"
	StatusOutForDelivery PackageStatus = "out_for_delivery"
	StatusDelivered      PackageStatus = "delivered"
	StatusFailed         PackageStatus = "failed"
	StatusReturned       PackageStatus = "returned"
)

// packageTransitions is the allowed edge set. Delivered and returned
// are terminal.
var packageTransitions = map[PackageStatus][]PackageStatus{
	StatusPending:        {StatusProcessing},
	StatusProcessing:     {StatusInTransit, StatusFailed},
	StatusInTransit:      {StatusOutForDelivery, StatusFailed, StatusReturned},
	StatusOutForDelivery: {StatusDelivered, StatusFailed, StatusReturned},
	StatusFailed:         {StatusInTransit, StatusReturned},
}

// Valid reports whether s names a known package status.
func (s PackageStatus) Valid() bool {
	_, ok := packageTransitions[s]
	return ok || s == StatusDelivered || s == StatusReturned
}

// CanTransitionTo reports whether the edge s -> next is allowed.
func (s PackageStatus) CanTransitionTo(next PackageStatus) bool {
	for _, allowed := range packageTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions exist from s.
func (s PackageStatus) Terminal() bool {
	return len(packageTransitions[s]) == 0 && s.Valid()
}

// Display renders the status for end users: underscores become spaces
// and each word is capitalized.
func (s PackageStatus) Display() string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// PaymentStatus is the payment state of a shipment.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentUnpaid:  {PaymentPending, PaymentPaid},
	PaymentPending: {PaymentPaid, PaymentFailed},
	PaymentFailed:  {PaymentPending},
}

// CanTransitionTo reports whether the edge s -> next is allowed.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IntentStatus is the local lifecycle of a recorded Stripe intent.
type IntentStatus string

const (
	IntentPending  IntentStatus = "pending"
	IntentConsumed IntentStatus = "consumed"
	IntentFailed   IntentStatus = "failed"
)

// ManualPaymentStatus is the lifecycle of a bank-transfer payment.
type ManualPaymentStatus string

const (
	ManualPending  ManualPaymentStatus = "pending"
	ManualVerified ManualPaymentStatus = "verified"
	ManualExpired  ManualPaymentStatus = "expired"
)
