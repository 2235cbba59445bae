package dto

import (
	"time"

	"github.com/courierhq/dispatch/internal/entity"
)

// UserResponse is the public view of an account.
type UserResponse struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"email_verified"`
	Phone         string    `json:"phone,omitempty"`
	Province      string    `json:"province,omitempty"`
	PostalCode    string    `json:"postal_code,omitempty"`
	Role          string    `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewUserResponse maps a user entity.
func NewUserResponse(u *entity.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Phone:         u.Phone,
		Province:      u.Province,
		PostalCode:    u.PostalCode,
		Role:          u.Role,
		CreatedAt:     u.CreatedAt,
	}
}

// TrackingEventResponse is one history row of a tracked package.
type TrackingEventResponse struct {
	Status        string    `json:"status"`
	StatusDisplay string    `json:"status_display"`
	Location      string    `json:"location,omitempty"`
	Description   string    `json:"description,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PackageResponse is the public tracking view of a package.
type PackageResponse struct {
	ID               int64                   `json:"id"`
	TrackingNumber   string                  `json:"tracking_number"`
	Status           string                  `json:"status"`
	StatusDisplay    string                  `json:"status_display"`
	CurrentLocation  string                  `json:"current_location,omitempty"`
	RecipientName    string                  `json:"recipient_name"`
	RecipientAddress string                  `json:"recipient_address"`
	WeightKg         float64                 `json:"weight_kg"`
	CreatedAt        time.Time               `json:"created_at"`
	History          []TrackingEventResponse `json:"history"`
}

// NewPackageResponse maps a package entity with its history.
func NewPackageResponse(p *entity.Package) PackageResponse {
	history := make([]TrackingEventResponse, 0, len(p.History))
	for _, ev := range p.History {
		history = append(history, TrackingEventResponse{
			Status:        string(ev.Status),
			StatusDisplay: ev.Status.Display(),
			Location:      ev.Location,
			Description:   ev.Description,
			OccurredAt:    ev.OccurredAt,
		})
	}
	return PackageResponse{
		ID:               p.ID,
		TrackingNumber:   p.TrackingNumber,
		Status:           string(p.Status),
		StatusDisplay:    p.Status.Display(),
		CurrentLocation:  p.CurrentLocation,
		RecipientName:    p.RecipientName,
		RecipientAddress: p.RecipientAddress,
		WeightKg:         p.WeightKg,
		CreatedAt:        p.CreatedAt,
		History:          history,
	}
}

// ShipmentResponse is the owner's view of a shipment.
type ShipmentResponse struct {
	ID                int64     `json:"id"`
	ShipmentNumber    string    `json:"shipment_number"`
	Customer          string    `json:"customer"`
	ServiceType       string    `json:"service_type"`
	ServiceLabel      string    `json:"service_label"`
	Status            string    `json:"status"`
	PaymentStatus     string    `json:"payment_status"`
	OriginPostal      string    `json:"origin_postal"`
	DestinationPostal string    `json:"destination_postal"`
	PriceCents        int64     `json:"price_cents"`
	TrackingNumber    string    `json:"tracking_number,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewShipmentResponse maps a shipment entity.
func NewShipmentResponse(s *entity.Shipment) ShipmentResponse {
	resp := ShipmentResponse{
		ID:                s.ID,
		ShipmentNumber:    s.ShipmentNumber,
		Customer:          s.Customer,
		ServiceType:       s.ServiceType,
		ServiceLabel:      s.ServiceLabel,
		Status:            string(s.Status),
		PaymentStatus:     string(s.PaymentStatus),
		OriginPostal:      s.OriginPostal,
		DestinationPostal: s.DestinationPostal,
		PriceCents:        s.PriceCents,
		CreatedAt:         s.CreatedAt,
	}
	if s.Package != nil {
		resp.TrackingNumber = s.Package.TrackingNumber
	}
	return resp
}

// NewShipmentResponses maps a slice of shipments.
func NewShipmentResponses(shipments []*entity.Shipment) []ShipmentResponse {
	out := make([]ShipmentResponse, 0, len(shipments))
	for _, s := range shipments {
		out = append(out, NewShipmentResponse(s))
	}
	return out
}

// CartItemResponse is one priced cart row.
type CartItemResponse struct {
	ID                int64     `json:"id"`
	Customer          string    `json:"customer"`
	ServiceType       string    `json:"service_type"`
	RecipientName     string    `json:"recipient_name"`
	RecipientAddress  string    `json:"recipient_address"`
	RecipientPhone    string    `json:"recipient_phone,omitempty"`
	OriginPostal      string    `json:"origin_postal"`
	DestinationPostal string    `json:"destination_postal"`
	WeightKg          float64   `json:"weight_kg"`
	PriceCents        int64     `json:"price_cents"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewCartItemResponse maps a cart item entity.
func NewCartItemResponse(item *entity.CartItem) CartItemResponse {
	return CartItemResponse{
		ID:                item.ID,
		Customer:          item.Customer,
		ServiceType:       item.ServiceType,
		RecipientName:     item.RecipientName,
		RecipientAddress:  item.RecipientAddress,
		RecipientPhone:    item.RecipientPhone,
		OriginPostal:      item.OriginPostal,
		DestinationPostal: item.DestinationPostal,
		WeightKg:          item.WeightKg,
		PriceCents:        item.PriceCents,
		CreatedAt:         item.CreatedAt,
	}
}

// ManualPaymentResponse is the payer's view of a bank-transfer payment.
type ManualPaymentResponse struct {
	Reference   string     `json:"reference"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	Method      string     `json:"method"`
	Status      string     `json:"status"`
	ExpiresAt   time.Time  `json:"expires_at"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewManualPaymentResponse maps a manual payment entity.
func NewManualPaymentResponse(mp *entity.ManualPayment) ManualPaymentResponse {
	resp := ManualPaymentResponse{
		Reference:   mp.Reference,
		AmountCents: mp.AmountCents,
		Currency:    mp.Currency,
		Method:      mp.Method,
		Status:      string(mp.Status),
		ExpiresAt:   mp.ExpiresAt,
		CreatedAt:   mp.CreatedAt,
	}
	if !mp.VerifiedAt.IsZero() {
		v := mp.VerifiedAt
		resp.VerifiedAt = &v
	}
	return resp
}
