package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuoteStandardDefault(t *testing.T) {
	// 1200 + 85*5 + 80000/10 = 9625 cents at 1x.
	cents, err := Quote("default", "standard", "10001", "90001", 5)
	require.NoError(t, err)
	require.Equal(t, int64(9625), cents)
}

func TestQuoteServiceMultipliers(t *testing.T) {
	base, err := Quote("default", "standard", "10001", "90001", 5)
	require.NoError(t, err)

	sameday, err := Quote("default", "sameday", "10001", "90001", 5)
	require.NoError(t, err)
	require.Equal(t, base*2, sameday)

	exclusive, err := Quote("default", "exclusive", "10001", "90001", 5)
	require.NoError(t, err)
	require.Greater(t, exclusive, sameday)
}

func TestQuoteCustomerDiscount(t *testing.T) {
	full, err := Quote("default", "rush", "10001", "90001", 2)
	require.NoError(t, err)

	discounted, err := Quote("northline", "rush", "10001", "90001", 2)
	require.NoError(t, err)
	require.Less(t, discounted, full)
}

func TestQuoteRejectsBadInput(t *testing.T) {
	_, err := Quote("default", "standard", "10001", "90001", 0)
	require.Error(t, err)

	_, err = Quote("default", "standard", "10001", "90001", MaxWeightKg+1)
	require.Error(t, err)

	_, err = Quote("default", "teleport", "10001", "90001", 1)
	require.Error(t, err)

	_, err = Quote("nobody", "standard", "10001", "90001", 1)
	require.Error(t, err)
}

func TestQuoteIsSymmetric(t *testing.T) {
	a, err := Quote("default", "standard", "10001", "90001", 3)
	require.NoError(t, err)
	b, err := Quote("default", "standard", "90001", "10001", 3)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestQuoteCanadianPostal(t *testing.T) {
	// Canadian codes contribute digits only; same FSA digits on both
	// ends price at the base distance of zero.
	a, err := Quote("default", "standard", "M5V 2T6", "M5V 2T6", 1)
	require.NoError(t, err)
	require.Equal(t, int64(1285), a)
}
