package entity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackageStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to PackageStatus
		ok       bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusProcessing, StatusInTransit, true},
		{StatusInTransit, StatusOutForDelivery, true},
		{StatusOutForDelivery, StatusDelivered, true},
		{StatusFailed, StatusInTransit, true},
		{StatusInTransit, StatusReturned, true},

		{StatusPending, StatusDelivered, false},
		{StatusDelivered, StatusInTransit, false},
		{StatusReturned, StatusPending, false},
		{StatusPending, StatusPending, false},
		{StatusDelivered, StatusReturned, false},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestPackageStatusValid(t *testing.T) {
	require.True(t, StatusPending.Valid())
	require.True(t, StatusDelivered.Valid())
	require.True(t, StatusReturned.Valid())
	require.False(t, PackageStatus("in transit").Valid())
	require.False(t, PackageStatus("").Valid())
}

func TestPackageStatusTerminal(t *testing.T) {
	require.True(t, StatusDelivered.Terminal())
	require.True(t, StatusReturned.Terminal())
	require.False(t, StatusInTransit.Terminal())
	require.False(t, PackageStatus("bogus").Terminal())
}

func TestPackageStatusDisplay(t *testing.T) {
	require.Equal(t, "Out For Delivery", StatusOutForDelivery.Display())
	require.Equal(t, "In Transit", StatusInTransit.Display())
	require.Equal(t, "Delivered", StatusDelivered.Display())
}

func TestPaymentStatusTransitions(t *testing.T) {
	require.True(t, PaymentUnpaid.CanTransitionTo(PaymentPending))
	require.True(t, PaymentPending.CanTransitionTo(PaymentPaid))
	require.True(t, PaymentFailed.CanTransitionTo(PaymentPending))
	require.False(t, PaymentPaid.CanTransitionTo(PaymentPending))
	require.False(t, PaymentPaid.CanTransitionTo(PaymentFailed))
}
