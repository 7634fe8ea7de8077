package model

import "github.com/shopspring/decimal"

// NativeDecimals is the number of fractional digits of the native coin.
const NativeDecimals = 18

// FormatUnits renders a base-unit amount as a decimal string, e.g.
// 1500000000000000000 with 18 decimals is "1.5".
func FormatUnits(a Amount, decimals int32) string {
	if a.IsNil() {
		return "0"
	}
	return decimal.NewFromBigInt(a.BigInt(), -decimals).String()
}

// OrZero replaces an unset amount with zero so arithmetic never sees a nil
// big.Int.
func OrZero(a Amount) Amount {
	if a.IsNil() {
		return ZeroAmount()
	}
	return a
}

// MaxAmount returns the larger of a and b.
func MaxAmount(a, b Amount) Amount {
	if a.GT(b) {
		return a
	}
	return b
}
