package validate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPhoneNormalization(t *testing.T) {
	got, ok := Phone("(416) 555-0199", "CA")
	require.True(t, ok)
	require.Equal(t, "+14165550199", got)

	got, ok = Phone("+1 416 555 0199", "")
	require.True(t, ok)
	require.Equal(t, "+14165550199", got)

	got, ok = Phone("+44 7911 123456", "GB")
	require.True(t, ok)
	require.Equal(t, "+447911123456", got)
}

func TestPhoneRejects(t *testing.T) {
	_, ok := Phone("123", "CA")
	require.False(t, ok)

	// NANP area codes cannot start with 0 or 1.
	_, ok = Phone("1165550199", "US")
	require.False(t, ok)

	_, ok = Phone("+14165550199", "ZZ")
	require.False(t, ok)

	_, ok = Phone("", "CA")
	require.False(t, ok)
}

func TestPostal(t *testing.T) {
	got, ok := Postal("10001")
	require.True(t, ok)
	require.Equal(t, "10001", got)

	got, ok = Postal("m5v 2t6")
	require.True(t, ok)
	require.Equal(t, "M5V2T6", got)

	_, ok = Postal("ABCDE")
	require.False(t, ok)

	_, ok = Postal("1234")
	require.False(t, ok)
}
