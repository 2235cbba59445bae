// Package ident generates the human-facing identifiers the platform
// hands out: tracking numbers, shipment numbers and payment references.
package ident

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

// Alphabet without 0/O and 1/I so identifiers survive being read aloud
// over the phone.
const alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// TimestampPart encodes the current millisecond timestamp in base36.
func TimestampPart() string {
	return strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
}

// RandomPart returns n characters drawn from the phone-friendly
// alphabet. Uniqueness is ultimately enforced by the database; callers
// retry on collision.
func RandomPart(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the platform source is broken;
		// fall back to a timestamp-derived suffix.
		return strings.ToUpper(strconv.FormatInt(time.Now().UnixNano(), 36))[:n]
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out)
}
