package lending

import (
	"github.com/shopspring/decimal"

	"lendledger/core/amount"
)

// OverpaymentOutcome is the decision taken on an overpayment attempt.
type OverpaymentOutcome uint8

const (
	// OverpaymentApplied means the loan was re-amortized.
	OverpaymentApplied OverpaymentOutcome = iota + 1
	// OverpaymentDeclined means the loan is unchanged and the funds were not
	// taken. It is not an error.
	OverpaymentDeclined
)

func (o OverpaymentOutcome) String() string {
	switch o {
	case OverpaymentApplied:
		return "applied"
	case OverpaymentDeclined:
		return "declined"
	default:
		return "unknown"
	}
}

// OverpaymentResult is the outcome of TryOverpayment. Loan and Parts are only
// meaningful when the overpayment was applied.
type OverpaymentResult struct {
	Outcome OverpaymentOutcome
	Loan    Loan
	Parts   PaymentParts
	Reason  string
}

func declined(loan Loan, reason string) OverpaymentResult {
	return OverpaymentResult{Outcome: OverpaymentDeclined, Loan: loan, Reason: reason}
}

// ComputeOverpaymentComponents splits an overpayment into the overpayment
// fee, the one-time penalty interest and the remaining principal reduction.
func ComputeOverpaymentComponents(asset amount.Asset, loan Loan, managementFeeRate amount.TenthBips, overpayment decimal.Decimal) ExtendedPaymentComponents {
	scale := loan.LoanScale
	fee := amount.Round(asset, amount.TenthBipsOf(overpayment, loan.OverpaymentFee), scale, amount.ToNearest)
	penalty := amount.Round(asset, amount.TenthBipsOf(overpayment, loan.OverpaymentInterestRate), scale, amount.ToNearest)
	netPenalty, penaltyFee := splitInterest(asset, penalty, managementFeeRate, scale)
	principal := overpayment.Sub(fee).Sub(penalty)
	return extendComponents(PaymentComponents{
		TrackedValueDelta:         principal,
		TrackedPrincipalDelta:     principal,
		TrackedManagementFeeDelta: zero,
		SpecialCase:               SpecialExtra,
	}, fee.Add(penaltyFee), netPenalty)
}

// TryOverpayment re-amortizes the loan as if its principal had been reduced
// by the overpayment's principal component, keeping the remaining payment
// count. The accumulated rounding carry of the current schedule is applied to
// the new one. The input loan is never modified; an applied result carries
// the loan to commit.
func TryOverpayment(asset amount.Asset, loan Loan, managementFeeRate amount.TenthBips, c ExtendedPaymentComponents) (OverpaymentResult, error) {
	const op = "overpayment"
	if loan.PaymentRemaining == 0 {
		return OverpaymentResult{}, fail(CodeInternal, op, "loan has no payments remaining")
	}
	reduction := c.TrackedPrincipalDelta
	if reduction.Sign() <= 0 {
		return declined(loan, "no principal reduction"), nil
	}

	n := loan.PaymentRemaining
	scale := loan.LoanScale
	periodicRate := PeriodicRate(loan.InterestRate, loan.PaymentInterval)
	raw := ComputeRawLoanState(loan.PeriodicPayment, periodicRate, n, managementFeeRate)
	rounded := loan.State()
	carry := rounded.Sub(raw)

	newPrincipal := rounded.PrincipalOutstanding.Sub(reduction)
	if newPrincipal.Sign() <= 0 {
		return declined(loan, "overpayment retires principal"), nil
	}
	newRawPrincipal := amount.Max(raw.PrincipalOutstanding.Sub(reduction), zero)
	props := ComputeLoanProperties(asset, newRawPrincipal, loan.InterestRate, loan.PaymentInterval, n, managementFeeRate, scale)
	newRaw := ComputeRawLoanState(props.PeriodicPayment, periodicRate, n, managementFeeRate).Apply(carry)

	newFee := amount.Clamp(amount.Round(asset, newRaw.ManagementFeeDue, scale, amount.ToNearest), zero, rounded.ManagementFeeDue)
	newValue := amount.Clamp(
		amount.Round(asset, newPrincipal.Add(newRaw.InterestOutstanding()), scale, amount.Upward),
		newPrincipal.Add(newFee), rounded.ValueOutstanding)
	props.TotalValueOutstanding = newValue

	if props.PeriodicPayment.Sign() <= 0 {
		return declined(loan, "periodic payment vanishes"), nil
	}
	expectInterest := newValue.Sub(newPrincipal).Sign() != 0
	if err := CheckLoanGuards(asset, newPrincipal, expectInterest, n, props); err != nil {
		return declined(loan, err.Error()), nil
	}

	// The value may fall by more than the principal reduction as future
	// interest shrinks, but never by less.
	if newValue.GreaterThan(rounded.ValueOutstanding.Sub(reduction)) {
		return declined(loan, "loan value would increase"), nil
	}

	newState := constructLoanState(newValue, newPrincipal, newFee)
	deltas := rounded.Sub(newState)

	next := loan
	next.PeriodicPayment = props.PeriodicPayment
	next.PrincipalOutstanding = newPrincipal
	next.TotalValueOutstanding = newValue
	next.ManagementFeeOutstanding = newFee

	return OverpaymentResult{
		Outcome: OverpaymentApplied,
		Loan:    next,
		Parts: PaymentParts{
			PrincipalPaid: reduction,
			InterestPaid:  c.UntrackedInterest,
			ValueChange:   c.UntrackedInterest.Sub(deltas.Interest),
			FeePaid:       c.UntrackedManagementFee,
		},
	}, nil
}
