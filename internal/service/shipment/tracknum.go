package shipment

import "github.com/courierhq/dispatch/internal/ident"

// NewTrackingNumber generates a public tracking number: a millisecond
// timestamp in base36 plus a random suffix.
func NewTrackingNumber() string {
	return "DT" + ident.TimestampPart() + ident.RandomPart(6)
}

// NewShipmentNumber generates an internal shipment number.
func NewShipmentNumber() string {
	return "SHP-" + ident.TimestampPart() + ident.RandomPart(4)
}
