package lending

import (
	"github.com/shopspring/decimal"

	"lendledger/core/amount"
)

// PaymentResult is the loan after a payment and how the payment was split.
// Overpayment is set when an overpayment was attempted, whatever its outcome.
type PaymentResult struct {
	Loan        Loan
	Parts       PaymentParts
	Overpayment *OverpaymentResult
}

// ApplyPayment applies one decomposed payment to the loan and returns the
// updated loan. A final payment zeroes every balance; a scheduled step
// advances the due dates by one interval; an extra payment only reduces
// balances.
func ApplyPayment(loan Loan, c ExtendedPaymentComponents) (Loan, PaymentParts, error) {
	const op = "apply payment"
	next := loan
	periods := uint32(1)
	switch c.SpecialCase {
	case SpecialFinal:
		next.PaymentRemaining = 0
		next.PreviousPaymentDate = loan.NextPaymentDueDate
		next.NextPaymentDueDate = 0
		next.PrincipalOutstanding = zero
		next.TotalValueOutstanding = zero
		next.ManagementFeeOutstanding = zero
	default:
		if c.SpecialCase == SpecialExtra {
			periods = 0
		} else {
			if loan.PaymentRemaining <= 1 {
				return loan, PaymentParts{}, fail(CodeInternal, op, "scheduled step on the last payment")
			}
			next.PaymentRemaining--
			next.PreviousPaymentDate = loan.NextPaymentDueDate
			next.NextPaymentDueDate = saturatingAdd(loan.NextPaymentDueDate, loan.PaymentInterval)
		}
		next.PrincipalOutstanding = loan.PrincipalOutstanding.Sub(c.TrackedPrincipalDelta)
		next.TotalValueOutstanding = loan.TotalValueOutstanding.Sub(c.TrackedValueDelta)
		next.ManagementFeeOutstanding = loan.ManagementFeeOutstanding.Sub(c.TrackedManagementFeeDelta)
		if next.PrincipalOutstanding.Sign() < 0 || next.ManagementFeeOutstanding.Sign() < 0 ||
			next.TotalValueOutstanding.LessThan(next.PrincipalOutstanding.Add(next.ManagementFeeOutstanding)) {
			return loan, PaymentParts{}, fail(CodeInternal, op, "balances would go negative")
		}
	}
	return next, PaymentParts{
		PrincipalPaid: c.TrackedPrincipalDelta,
		InterestPaid:  c.TrackedInterestPart().Add(c.UntrackedInterest),
		ValueChange:   c.UntrackedInterest,
		FeePaid:       c.TrackedManagementFeeDelta.Add(c.UntrackedManagementFee),
		Periods:       periods,
	}, nil
}

// MakePayment settles amt against the loan at ledger time now. Full and late
// payments are single settlement events. Regular payments settle as many
// scheduled payments as amt covers, up to MaxPaymentsPerTransaction; an
// overpayment additionally applies whatever is left to principal when the
// loan allows it. The input loan is never modified.
func MakePayment(asset amount.Asset, loan Loan, managementFeeRate amount.TenthBips, amt decimal.Decimal, kind PaymentKind, now uint32) (PaymentResult, error) {
	const op = "make payment"
	if loan.Defaulted() || loan.PaymentRemaining == 0 || loan.PrincipalOutstanding.Sign() <= 0 {
		return PaymentResult{}, fail(CodeAlreadySettled, op, "loan %s has nothing outstanding", loan.ID)
	}
	if loan.NextPaymentDueDate == 0 {
		return PaymentResult{}, fail(CodeInternal, op, "loan %s has no due date", loan.ID)
	}
	if amt.Sign() <= 0 {
		return PaymentResult{}, fail(CodeMalformed, op, "amount %s must be positive", amt)
	}
	if kind != PaymentLate && expired(now, overdueAt(loan)) {
		return PaymentResult{}, fail(CodeExpired, op, "payment overdue since %d", overdueAt(loan))
	}

	periodicRate := PeriodicRate(loan.InterestRate, loan.PaymentInterval)
	switch kind {
	case PaymentFull:
		c, err := computeFullPayment(asset, loan, periodicRate, managementFeeRate, amt, now)
		if err != nil {
			return PaymentResult{}, err
		}
		next, parts, err := ApplyPayment(loan, c)
		if err != nil {
			return PaymentResult{}, err
		}
		return PaymentResult{Loan: next, Parts: parts}, nil
	case PaymentLate:
		regular := computeRegularPayment(asset, loan, periodicRate, managementFeeRate)
		c, err := computeLatePayment(asset, loan, regular, managementFeeRate, amt, now)
		if err != nil {
			return PaymentResult{}, err
		}
		next, parts, err := ApplyPayment(loan, c)
		if err != nil {
			return PaymentResult{}, err
		}
		return PaymentResult{Loan: next, Parts: parts}, nil
	case PaymentRegular, PaymentOverpayment:
	default:
		return PaymentResult{}, fail(CodeMalformed, op, "unknown payment kind %d", kind)
	}

	current := loan
	var parts PaymentParts
	var due decimal.Decimal
	for current.PaymentRemaining > 0 && parts.Periods < MaxPaymentsPerTransaction {
		c := computeRegularPayment(asset, current, periodicRate, managementFeeRate)
		due = c.TotalDue
		if amt.LessThan(parts.Total().Add(c.TotalDue)) {
			break
		}
		next, step, err := ApplyPayment(current, c)
		if err != nil {
			return PaymentResult{}, err
		}
		current = next
		parts = parts.Add(step)
		if c.SpecialCase == SpecialFinal {
			break
		}
	}
	if parts.Periods == 0 {
		return PaymentResult{}, fail(CodeInsufficientPayment, op, "%s due, %s offered", due, amt)
	}

	result := PaymentResult{Loan: current, Parts: parts}
	if kind != PaymentOverpayment || !current.AllowsOverpayment() || current.PaymentRemaining == 0 ||
		parts.Periods >= MaxPaymentsPerTransaction {
		return result, nil
	}
	left := amt.Sub(parts.Total())
	overpayment := amount.Round(asset, amount.Min(left, current.TotalValueOutstanding), current.LoanScale, amount.Downward)
	if overpayment.Sign() <= 0 {
		return result, nil
	}
	c := ComputeOverpaymentComponents(asset, current, managementFeeRate, overpayment)
	attempt, err := TryOverpayment(asset, current, managementFeeRate, c)
	if err != nil {
		return PaymentResult{}, err
	}
	result.Overpayment = &attempt
	if attempt.Outcome == OverpaymentApplied {
		result.Loan = attempt.Loan
		result.Parts = parts.Add(attempt.Parts)
	}
	return result, nil
}
