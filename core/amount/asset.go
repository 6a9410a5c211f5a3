package amount

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// MantissaDigits is the number of significant digits a fractional asset
// amount carries on the ledger.
const MantissaDigits = 16

// MinExponent is the exponent reported for a zero fractional amount.
const MinExponent int32 = -96

// Asset identifies what an amount is denominated in. Integral assets (native
// drops, tokens without decimals) can only hold whole units.
type Asset struct {
	Code     string `yaml:"code" toml:"Code"`
	Integral bool   `yaml:"integral" toml:"Integral"`
}

// String returns the asset code.
func (a Asset) String() string {
	return strings.TrimSpace(a.Code)
}

// RoundingMode selects the direction used when an amount is quantised.
type RoundingMode uint8

const (
	// ToNearest rounds half to even.
	ToNearest RoundingMode = iota
	// Upward rounds toward positive infinity.
	Upward
	// Downward rounds toward negative infinity.
	Downward
	// TowardZero truncates.
	TowardZero
)

// String returns the lower-case name of the mode.
func (m RoundingMode) String() string {
	switch m {
	case ToNearest:
		return "nearest"
	case Upward:
		return "upward"
	case Downward:
		return "downward"
	case TowardZero:
		return "toward_zero"
	default:
		return "unknown"
	}
}

// Exponent reports the decimal exponent at which the asset stores v. Integral
// assets always report zero; fractional assets keep MantissaDigits
// significant digits, so 1000.03 reports -12.
func Exponent(asset Asset, v decimal.Decimal) int32 {
	if asset.Integral {
		return 0
	}
	if v.IsZero() {
		return MinExponent
	}
	return msd(v) - (MantissaDigits - 1)
}

// Round quantises v for the asset at the given scale using mode. The
// effective quantum is never finer than the asset can represent: integral
// assets never round below units and fractional assets never keep more than
// MantissaDigits significant digits.
func Round(asset Asset, v decimal.Decimal, scale int32, mode RoundingMode) decimal.Decimal {
	exp := scale
	if asset.Integral {
		if exp < 0 {
			exp = 0
		}
	} else if e := Exponent(asset, v); e > exp {
		exp = e
	}
	return roundAt(v, exp, mode)
}

// Canonical rounds v to the asset's native precision, independent of any
// loan scale.
func Canonical(asset Asset, v decimal.Decimal, mode RoundingMode) decimal.Decimal {
	return Round(asset, v, MinExponent, mode)
}

// IsRounded reports whether v is already representable at scale.
func IsRounded(asset Asset, v decimal.Decimal, scale int32) bool {
	return Round(asset, v, scale, Downward).Equal(Round(asset, v, scale, Upward))
}

func roundAt(v decimal.Decimal, exp int32, mode RoundingMode) decimal.Decimal {
	places := -exp
	switch mode {
	case Upward:
		return v.RoundCeil(places)
	case Downward:
		return v.RoundFloor(places)
	case TowardZero:
		return v.RoundDown(places)
	default:
		return v.RoundBank(places)
	}
}

// msd returns the exponent of the most significant digit of a non-zero v.
func msd(v decimal.Decimal) int32 {
	coeff := new(big.Int).Abs(v.Coefficient())
	return v.Exponent() + int32(len(coeff.String())) - 1
}
