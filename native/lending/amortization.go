package lending

import (
	"github.com/shopspring/decimal"

	"lendledger/core/amount"
)

var (
	zero           = decimal.Zero
	one            = decimal.NewFromInt(1)
	secondsPerYear = decimal.NewFromInt(SecondsPerYear)
)

func decimalOf(v uint32) decimal.Decimal {
	return decimal.NewFromInt(int64(v))
}

// PeriodicRate converts an annual rate to the rate charged over interval
// seconds.
func PeriodicRate(rate amount.TenthBips, interval uint32) decimal.Decimal {
	return amount.Quo(amount.TenthBipsOf(decimalOf(interval), rate), secondsPerYear)
}

// paymentFactor is the level-payment annuity factor r(1+r)^n / ((1+r)^n - 1),
// or 1/n for an interest-free schedule.
func paymentFactor(periodicRate decimal.Decimal, n uint32) decimal.Decimal {
	if n == 0 {
		return zero
	}
	if periodicRate.IsZero() {
		return amount.Quo(one, decimalOf(n))
	}
	raised := amount.Pow(one.Add(periodicRate), n)
	return amount.Quo(amount.Mul(periodicRate, raised), raised.Sub(one))
}

// PeriodicPayment is the level payment that retires principal over n
// payments at periodicRate.
func PeriodicPayment(principal, periodicRate decimal.Decimal, n uint32) decimal.Decimal {
	if principal.IsZero() || n == 0 {
		return zero
	}
	if periodicRate.IsZero() {
		return amount.Quo(principal, decimalOf(n))
	}
	return amount.Mul(principal, paymentFactor(periodicRate, n))
}

// principalFromPayment reverses PeriodicPayment.
func principalFromPayment(periodicPayment, periodicRate decimal.Decimal, n uint32) decimal.Decimal {
	if n == 0 {
		return zero
	}
	if periodicRate.IsZero() {
		return periodicPayment.Mul(decimalOf(n))
	}
	return amount.Quo(periodicPayment, paymentFactor(periodicRate, n))
}

// ComputeRawLoanState returns the unrounded balances a loan would carry with
// n payments of periodicPayment left.
func ComputeRawLoanState(periodicPayment, periodicRate decimal.Decimal, n uint32, managementFeeRate amount.TenthBips) LoanState {
	if n == 0 {
		return LoanState{ValueOutstanding: zero, PrincipalOutstanding: zero, InterestDue: zero, ManagementFeeDue: zero}
	}
	value := periodicPayment.Mul(decimalOf(n))
	principal := principalFromPayment(periodicPayment, periodicRate, n)
	gross := value.Sub(principal)
	fee := amount.TenthBipsOf(gross, managementFeeRate)
	return LoanState{
		ValueOutstanding:     value,
		PrincipalOutstanding: principal,
		InterestDue:          gross.Sub(fee),
		ManagementFeeDue:     fee,
	}
}

func constructLoanState(totalValue, principal, managementFee decimal.Decimal) LoanState {
	return LoanState{
		ValueOutstanding:     totalValue,
		PrincipalOutstanding: principal,
		InterestDue:          totalValue.Sub(principal).Sub(managementFee),
		ManagementFeeDue:     managementFee,
	}
}

// ManagementFee is the broker's share of interest, rounded toward zero at scale.
func ManagementFee(asset amount.Asset, interest decimal.Decimal, rate amount.TenthBips, scale int32) decimal.Decimal {
	return amount.Round(asset, amount.TenthBipsOf(interest, rate), scale, amount.TowardZero)
}

// splitInterest divides an interest amount into the vault's net share and the
// broker's management fee.
func splitInterest(asset amount.Asset, interest decimal.Decimal, rate amount.TenthBips, scale int32) (net, fee decimal.Decimal) {
	fee = ManagementFee(asset, interest, rate, scale)
	return interest.Sub(fee), fee
}

// RoundPeriodicPayment rounds the periodic payment up so that the schedule
// never falls short.
func RoundPeriodicPayment(asset amount.Asset, periodicPayment decimal.Decimal, scale int32) decimal.Decimal {
	return amount.Round(asset, periodicPayment, scale, amount.Upward)
}

// ComputeLoanProperties derives the schedule for principal repaid over n
// payments every interval seconds at the annual rate. The loan scale is the
// coarser of minimumScale and the scale the asset needs for the total value.
func ComputeLoanProperties(asset amount.Asset, principal decimal.Decimal, rate amount.TenthBips, interval, n uint32, managementFeeRate amount.TenthBips, minimumScale int32) LoanProperties {
	periodicRate := PeriodicRate(rate, interval)
	periodicPayment := PeriodicPayment(principal, periodicRate, n)

	total := amount.Canonical(asset, periodicPayment.Mul(decimalOf(n)), amount.ToNearest)
	scale := minimumScale
	if e := amount.Exponent(asset, total); e > scale {
		scale = e
	}
	total = amount.Round(asset, total, scale, amount.ToNearest)
	roundedPrincipal := amount.Round(asset, principal, scale, amount.ToNearest)
	fee := ManagementFee(asset, total.Sub(roundedPrincipal), managementFeeRate, scale)

	firstPrincipal := zero
	if n > 0 {
		start := ComputeRawLoanState(periodicPayment, periodicRate, n, managementFeeRate)
		next := ComputeRawLoanState(periodicPayment, periodicRate, n-1, managementFeeRate)
		firstPrincipal = start.PrincipalOutstanding.Sub(next.PrincipalOutstanding)
	}

	return LoanProperties{
		PeriodicPayment:           periodicPayment,
		TotalValueOutstanding:     total,
		ManagementFeeOwedToBroker: fee,
		LoanScale:                 scale,
		FirstPaymentPrincipal:     firstPrincipal,
	}
}

// CheckLoanGuards rejects schedules that cannot amortize cleanly at the loan
// scale. It returns nil when the schedule is usable.
func CheckLoanGuards(asset amount.Asset, principal decimal.Decimal, expectInterest bool, paymentTotal uint32, props LoanProperties) error {
	const op = "loan guards"
	interest := props.TotalValueOutstanding.Sub(principal)
	if expectInterest && interest.Sign() <= 0 {
		return fail(CodePrecisionLoss, op, "interest %s rounds away", interest)
	}
	if !expectInterest && interest.Sign() > 0 {
		return fail(CodeInternal, op, "interest-free schedule accrues %s", interest)
	}
	if props.FirstPaymentPrincipal.Sign() <= 0 {
		return fail(CodePrecisionLoss, op, "first payment does not reduce principal")
	}
	rounded := RoundPeriodicPayment(asset, props.PeriodicPayment, props.LoanScale)
	if rounded.Sign() <= 0 {
		return fail(CodePrecisionLoss, op, "periodic payment rounds to zero")
	}
	if got := amount.CeilQuo(props.TotalValueOutstanding, rounded); !got.Equal(decimalOf(paymentTotal)) {
		return fail(CodePrecisionLoss, op, "schedule settles in %s payments, want %d", got, paymentTotal)
	}
	return nil
}
