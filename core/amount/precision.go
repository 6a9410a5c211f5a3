package amount

import "github.com/shopspring/decimal"

// WorkingDigits bounds the significant digits kept by intermediate results.
// Products and quotients are rounded half-even to this many digits so every
// node computes the same value regardless of global decimal settings.
const WorkingDigits = 38

var one = decimal.NewFromInt(1)

// Trim rounds v to WorkingDigits significant digits.
func Trim(v decimal.Decimal) decimal.Decimal {
	if v.IsZero() {
		return decimal.Zero
	}
	exp := msd(v) - (WorkingDigits - 1)
	if v.Exponent() >= exp {
		return v
	}
	return v.RoundBank(-exp)
}

// Mul multiplies at working precision.
func Mul(a, b decimal.Decimal) decimal.Decimal {
	return Trim(a.Mul(b))
}

// Quo divides at working precision. b must be non-zero.
func Quo(a, b decimal.Decimal) decimal.Decimal {
	if a.IsZero() {
		return decimal.Zero
	}
	places := WorkingDigits - msd(a) + msd(b)
	return Trim(a.DivRound(b, places))
}

// Pow raises x to a non-negative integer power by repeated squaring at
// working precision.
func Pow(x decimal.Decimal, n uint32) decimal.Decimal {
	result := one
	base := x
	for n > 0 {
		if n&1 == 1 {
			result = Mul(result, base)
		}
		n >>= 1
		if n > 0 {
			base = Mul(base, base)
		}
	}
	return result
}

// CeilQuo returns the smallest integer not less than a/b for positive b.
func CeilQuo(a, b decimal.Decimal) decimal.Decimal {
	q, r := a.QuoRem(b, 0)
	if r.Sign() > 0 {
		q = q.Add(one)
	}
	return q
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	return Max(lo, Min(v, hi))
}
