package lending

import (
	"github.com/shopspring/decimal"

	"lendledger/core/amount"
)

// LatePaymentInterest is the penalty interest on principal for the seconds
// elapsed since the missed due date.
func LatePaymentInterest(principal decimal.Decimal, lateRate amount.TenthBips, now, nextDue uint32) decimal.Decimal {
	if now <= nextDue {
		return zero
	}
	return amount.Mul(principal, PeriodicRate(lateRate, now-nextDue))
}

// AccruedInterest is the interest earned on principal since the later of the
// start date and the last payment.
func AccruedInterest(principal, periodicRate decimal.Decimal, now, startDate, prevPaymentDate, interval uint32) decimal.Decimal {
	if periodicRate.IsZero() || interval == 0 {
		return zero
	}
	last := startDate
	if prevPaymentDate > last {
		last = prevPaymentDate
	}
	if now <= last {
		return zero
	}
	return amount.Quo(amount.Mul(amount.Mul(principal, periodicRate), decimalOf(now-last)), decimalOf(interval))
}

// PrepaymentPenalty is the close interest charged on the theoretical principal.
func PrepaymentPenalty(principal decimal.Decimal, closeRate amount.TenthBips) decimal.Decimal {
	return amount.TenthBipsOf(principal, closeRate)
}

// computeLatePayment is the scheduled payment plus penalty interest and the
// late fee. The due date and grace period must both have passed.
func computeLatePayment(asset amount.Asset, loan Loan, regular ExtendedPaymentComponents, managementFeeRate amount.TenthBips, amt decimal.Decimal, now uint32) (ExtendedPaymentComponents, error) {
	const op = "late payment"
	if !expired(now, overdueAt(loan)) {
		return ExtendedPaymentComponents{}, fail(CodeTooSoon, op, "grace period ends at %d", overdueAt(loan))
	}
	penalty := amount.Round(asset,
		LatePaymentInterest(loan.PrincipalOutstanding, loan.LateInterestRate, now, loan.NextPaymentDueDate),
		loan.LoanScale, amount.ToNearest)
	netPenalty, penaltyFee := splitInterest(asset, penalty, managementFeeRate, loan.LoanScale)

	late := extendComponents(regular.PaymentComponents,
		regular.UntrackedManagementFee.Add(loan.LateFee).Add(penaltyFee),
		regular.UntrackedInterest.Add(netPenalty))
	if amt.LessThan(late.TotalDue) {
		return ExtendedPaymentComponents{}, fail(CodeInsufficientPayment, op, "%s due, %s offered", late.TotalDue, amt)
	}
	return late, nil
}

// computeFullPayment retires the loan early: principal, interest accrued
// since the last payment, the prepayment penalty and the close fee. Interest
// the schedule expected but that has not accrued is forgiven, so the
// untracked interest may be negative.
func computeFullPayment(asset amount.Asset, loan Loan, periodicRate decimal.Decimal, managementFeeRate amount.TenthBips, amt decimal.Decimal, now uint32) (ExtendedPaymentComponents, error) {
	const op = "full payment"
	if loan.PaymentRemaining <= 1 {
		return ExtendedPaymentComponents{}, fail(CodeNoPermission, op, "final payment must be made as a regular payment")
	}
	rawPrincipal := principalFromPayment(loan.PeriodicPayment, periodicRate, loan.PaymentRemaining)
	interest := AccruedInterest(rawPrincipal, periodicRate, now, loan.StartDate, loan.PreviousPaymentDate, loan.PaymentInterval).
		Add(PrepaymentPenalty(rawPrincipal, loan.CloseInterestRate))
	rounded := amount.Round(asset, interest, loan.LoanScale, amount.Downward)
	netInterest, interestFee := splitInterest(asset, rounded, managementFeeRate, loan.LoanScale)

	state := loan.State()
	full := extendComponents(PaymentComponents{
		TrackedValueDelta:         state.ValueOutstanding,
		TrackedPrincipalDelta:     state.PrincipalOutstanding,
		TrackedManagementFeeDelta: state.ManagementFeeDue,
		SpecialCase:               SpecialFinal,
	},
		loan.CloseFee.Add(interestFee).Sub(state.ManagementFeeDue),
		netInterest.Sub(state.InterestDue))
	if amt.LessThan(full.TotalDue) {
		return ExtendedPaymentComponents{}, fail(CodeInsufficientPayment, op, "%s due, %s offered", full.TotalDue, amt)
	}
	return full, nil
}

func expired(now, t uint32) bool {
	return now > t
}

// overdueAt is the last second a scheduled payment is accepted without a
// late penalty.
func overdueAt(loan Loan) uint32 {
	return saturatingAdd(loan.NextPaymentDueDate, loan.GracePeriod)
}

func saturatingAdd(a, b uint32) uint32 {
	if sum := a + b; sum >= a {
		return sum
	}
	return ^uint32(0)
}
