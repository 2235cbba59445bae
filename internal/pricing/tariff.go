package pricing

import (
	"fmt"
	"math"
	"strings"
)

// Base rate shared by every tariff, in cents.
const (
	baseCents  = 1200
	perKgCents = 85

	// MaxWeightKg is the heaviest parcel the tariff covers.
	MaxWeightKg = 1000
)

// Service tiers and their price multipliers in basis points (10000 = 1x).
var serviceMultiplierBps = map[string]int64{
	"standard":  10000,
	"direct":    12500,
	"rush":      15000,
	"sameday":   20000,
	"exclusive": 25000,
}

var serviceLabels = map[string]string{
	"standard":  "Standard Ground",
	"direct":    "Direct Drive",
	"rush":      "Rush",
	"sameday":   "Same Day",
	"exclusive": "Exclusive Use",
}

// customerDiscountBps is the static per-customer discount table.
// Unknown customers are rejected; "default" is the walk-in rate.
var customerDiscountBps = map[string]int64{
	"default":      0,
	"maple-retail": 500,
	"northline":    1000,
	"acme":         750,
}

// KnownService reports whether tier names a priced service.
func KnownService(tier string) bool {
	_, ok := serviceMultiplierBps[strings.ToLower(tier)]
	return ok
}

// KnownCustomer reports whether customer has a tariff entry.
func KnownCustomer(customer string) bool {
	_, ok := customerDiscountBps[strings.ToLower(customer)]
	return ok
}

// ServiceLabel returns the display label for a service tier.
func ServiceLabel(tier string) string {
	if label, ok := serviceLabels[strings.ToLower(tier)]; ok {
		return label
	}
	return tier
}

// Quote prices a shipment server-side. The distance component is the
// absolute difference of the numeric portions of the postal codes,
// one cent per ten units, matching the published tariff sheet.
func Quote(customer, serviceType, originPostal, destinationPostal string, weightKg float64) (int64, error) {
	if weightKg <= 0 || weightKg > MaxWeightKg {
		return 0, fmt.Errorf("weight out of range: %v", weightKg)
	}

	multiplier, ok := serviceMultiplierBps[strings.ToLower(serviceType)]
	if !ok {
		return 0, fmt.Errorf("unknown service type: %q", serviceType)
	}

	discount, ok := customerDiscountBps[strings.ToLower(customer)]
	if !ok {
		return 0, fmt.Errorf("unknown customer: %q", customer)
	}

	distance := postalValue(originPostal) - postalValue(destinationPostal)
	if distance < 0 {
		distance = -distance
	}

	cents := float64(baseCents) + perKgCents*weightKg + float64(distance)/10
	cents = cents * float64(multiplier) / 10000
	cents = cents * float64(10000-discount) / 10000

	return int64(math.Round(cents)), nil
}

// postalValue extracts the digits of a postal code as an integer.
// Canadian codes contribute their numeric characters only.
func postalValue(postal string) int64 {
	var v int64
	for _, r := range postal {
		if r >= '0' && r <= '9' {
			v = v*10 + int64(r-'0')
		}
	}
	return v
}
