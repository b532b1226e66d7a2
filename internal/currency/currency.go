package currency

import (
	"github.com/shopspring/decimal"
)

// Minor-unit precision per ISO 4217 currency code. Anything not listed uses
// defaultPrecision.
var precisions = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0,
	"KMF": 0, "KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0,
	"VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,

	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

const defaultPrecision int32 = 2

func Precision(code string) int32 {
	if p, ok := precisions[code]; ok {
		return p
	}
	return defaultPrecision
}

// ToMinorUnit converts a whole-unit amount to the provider's integer minor
// units. Three-decimal currencies are additionally rounded up to the nearest
// multiple of ten: the provider only accepts that subset of minor-unit
// values for them.
func ToMinorUnit(amount decimal.Decimal, code string) int64 {
	p := Precision(code)
	minor := amount.Shift(p).Round(0).IntPart()
	if p == 3 {
		if rem := minor % 10; rem != 0 {
			minor += 10 - rem
		}
	}
	return minor
}

// ToWholeUnit is the inverse of ToMinorUnit.
func ToWholeUnit(minor int64, code string) decimal.Decimal {
	return decimal.New(minor, -Precision(code))
}

// RoundToPrecision rounds a whole-unit amount to the currency's standard
// number of decimal places. Status-threshold comparisons go through this so
// rounding noise never reads as "not yet complete".
func RoundToPrecision(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(Precision(code))
}
