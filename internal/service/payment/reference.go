package payment

import "github.com/courierhq/dispatch/internal/ident"

// NewPaymentReference generates a manual payment reference the user
// quotes on their bank transfer.
func NewPaymentReference() string {
	return "MP-" + ident.TimestampPart() + ident.RandomPart(6)
}
