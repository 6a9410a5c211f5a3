package amount

import "github.com/shopspring/decimal"

// TenthBips is a rate in units of one tenth of a basis point.
type TenthBips uint32

const (
	// TenthBipsPerUnity is the rate representing 100%.
	TenthBipsPerUnity TenthBips = 100_000
	// TenthBipsPerPercent is the rate representing 1%.
	TenthBipsPerPercent TenthBips = 1_000
)

// Decimal returns the rate as a fraction of one.
func (r TenthBips) Decimal() decimal.Decimal {
	return decimal.New(int64(r), -5)
}

// TenthBipsOf returns rate applied to v. The result is exact.
func TenthBipsOf(v decimal.Decimal, rate TenthBips) decimal.Decimal {
	return v.Mul(decimal.NewFromInt(int64(rate))).Shift(-5)
}
