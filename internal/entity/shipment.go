package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Shipment is one paid (or payable) delivery order. Each shipment owns
// exactly one package; the package carries the public tracking number.
type Shipment struct {
	bun.BaseModel `bun:"table:shipments,alias:s"`

	ID                int64         `bun:",pk,autoincrement"`
	ShipmentNumber    string        `bun:"shipment_number"`
	UserID            int64         `bun:"user_id"`
	Customer          string        `bun:"customer"`
	ServiceType       string        `bun:"service_type"`
	ServiceLabel      string        `bun:"service_label"`
	Status            PackageStatus `bun:"status"`
	PaymentStatus     PaymentStatus `bun:"payment_status"`
	OriginPostal      string        `bun:"origin_postal"`
	DestinationPostal string        `bun:"destination_postal"`
	PriceCents        int64         `bun:"price_cents"`
	CreatedAt         time.Time     `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time     `bun:"updated_at,nullzero"`

	Package *Package `bun:"rel:has-one,join:id=shipment_id"`
}

// Package is the physical parcel behind a shipment.
type Package struct {
	bun.BaseModel `bun:"table:packages,alias:p"`

	ID               int64         `bun:",pk,autoincrement"`
	TrackingNumber   string        `bun:"tracking_number"`
	ShipmentID       int64         `bun:"shipment_id"`
	UserID           int64         `bun:"user_id"`
	Status           PackageStatus `bun:"status"`
	CurrentLocation  string        `bun:"current_location,nullzero"`
	RecipientName    string        `bun:"recipient_name"`
	RecipientAddress string        `bun:"recipient_address"`
	RecipientPhone   string        `bun:"recipient_phone,nullzero"`
	WeightKg         float64       `bun:"weight_kg"`
	CreatedAt        time.Time     `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time     `bun:"updated_at,nullzero"`

	History []*TrackingEvent `bun:"rel:has-many,join:id=package_id"`
}

// TrackingEvent is one append-only status/location record for a package.
type TrackingEvent struct {
	bun.BaseModel `bun:"table:package_tracking_history"`

	ID          int64         `bun:",pk,autoincrement"`
	PackageID   int64         `bun:"package_id"`
	Status      PackageStatus `bun:"status"`
	Location    string        `bun:"location,nullzero"`
	Description string        `bun:"description,nullzero"`
	OccurredAt  time.Time     `bun:"occurred_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// CartItem mirrors a prospective shipment until checkout.
type CartItem struct {
	bun.BaseModel `bun:"table:cart_items"`

	ID                int64     `bun:",pk,autoincrement"`
	UserID            int64     `bun:"user_id"`
	Customer          string    `bun:"customer"`
	ServiceType       string    `bun:"service_type"`
	RecipientName     string    `bun:"recipient_name"`
	RecipientAddress  string    `bun:"recipient_address"`
	RecipientPhone    string    `bun:"recipient_phone,nullzero"`
	OriginPostal      string    `bun:"origin_postal"`
	DestinationPostal string    `bun:"destination_postal"`
	WeightKg          float64   `bun:"weight_kg"`
	PriceCents        int64     `bun:"price_cents"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
