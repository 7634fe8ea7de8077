package model

import (
	"fmt"
	"testing"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestClassOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorClass
	}{
		{ErrWrongFrom, ClassAuthorization},
		{ErrAccessDenied, ClassAuthorization},
		{ErrSoldToken, ClassState},
		{errorsmod.Wrapf(ErrTimeout, "order %d", 7), ClassState},
		{ErrExceedsMaxEP, ClassValidation},
		{ErrNoShares, ClassFunds},
		{fmt.Errorf("boom: %w", ErrNoFunds), ClassFunds},
		{fmt.Errorf("plain"), ClassNone},
		{nil, ClassNone},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, ClassOf(tc.err), "%v", tc.err)
	}
}

func TestFormatUnits(t *testing.T) {
	v, ok := sdkmath.NewIntFromString("1500000000000000000")
	require.True(t, ok)
	require.Equal(t, "1.5", FormatUnits(v, NativeDecimals))
	require.Equal(t, "0", FormatUnits(Amount{}, NativeDecimals))
	require.Equal(t, "0.25", FormatUnits(NewAmount(25), 2))
}

func TestZeroOrderHasNoBid(t *testing.T) {
	o := ZeroOrder()
	require.False(t, o.HasBid())
	require.True(t, o.StartPrice.IsZero())

	o.LastBidder = Address{1}
	o.LastBidPrice = NewAmount(10)
	require.True(t, o.HasBid())
}

func TestOrderTypeText(t *testing.T) {
	b, err := English.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "ENGLISH", string(b))
	require.Equal(t, "UNKNOWN", OrderType(9).String())
}
