package lending

import (
	"github.com/shopspring/decimal"

	"lendledger/core/amount"
)

// ComputePaymentComponents decomposes the next scheduled payment. The target
// is the rounded theoretical state one payment later; the difference from
// the stored state carries any accumulated rounding error into this payment.
func ComputePaymentComponents(asset amount.Asset, scale int32, totalValue, principal, managementFee, periodicPayment, periodicRate decimal.Decimal, paymentsRemaining uint32, managementFeeRate amount.TenthBips) PaymentComponents {
	roundedPayment := RoundPeriodicPayment(asset, periodicPayment, scale)
	if paymentsRemaining <= 1 || totalValue.LessThanOrEqual(roundedPayment) {
		return PaymentComponents{
			TrackedValueDelta:         totalValue,
			TrackedPrincipalDelta:     principal,
			TrackedManagementFeeDelta: managementFee,
			SpecialCase:               SpecialFinal,
		}
	}

	raw := ComputeRawLoanState(periodicPayment, periodicRate, paymentsRemaining-1, managementFeeRate)
	target := LoanState{
		ValueOutstanding:     amount.Round(asset, raw.ValueOutstanding, scale, amount.ToNearest),
		PrincipalOutstanding: amount.Round(asset, raw.PrincipalOutstanding, scale, amount.ToNearest),
		InterestDue:          amount.Round(asset, raw.InterestDue, scale, amount.ToNearest),
		ManagementFeeDue:     amount.Round(asset, raw.ManagementFeeDue, scale, amount.ToNearest),
	}
	current := constructLoanState(totalValue, principal, managementFee)
	deltas := current.Sub(target).NonNegative()

	// Principal is bounded by what is owed; interest and fee are bounded by
	// what is owed and by what is left of the payment after principal.
	deltas.Principal = amount.Min(deltas.Principal, current.PrincipalOutstanding)
	deltas.Interest = amount.Min(deltas.Interest,
		amount.Min(amount.Max(zero, roundedPayment.Sub(deltas.Principal)), current.InterestDue))
	deltas.ManagementFee = amount.Max(zero, amount.Min(deltas.ManagementFee,
		amount.Min(roundedPayment.Sub(deltas.Principal.Add(deltas.Interest)), current.ManagementFeeDue)))

	if excess := deltas.Total().Sub(current.ValueOutstanding); excess.Sign() > 0 {
		deltas = trimExcess(deltas, excess)
	}
	if excess := deltas.Total().Sub(roundedPayment); excess.Sign() > 0 {
		deltas = trimExcess(deltas, excess)
	}

	value := amount.Clamp(deltas.Total(), zero, totalValue)
	return PaymentComponents{
		TrackedValueDelta:         value,
		TrackedPrincipalDelta:     amount.Clamp(deltas.Principal, zero, principal),
		TrackedManagementFeeDelta: amount.Clamp(deltas.ManagementFee, zero, managementFee),
	}
}

// trimExcess removes excess from the deltas taking interest first, then the
// management fee, and principal last.
func trimExcess(d LoanStateDeltas, excess decimal.Decimal) LoanStateDeltas {
	take := func(component *decimal.Decimal) {
		if excess.Sign() <= 0 || component.Sign() <= 0 {
			return
		}
		part := amount.Min(*component, excess)
		*component = component.Sub(part)
		excess = excess.Sub(part)
	}
	take(&d.Interest)
	take(&d.ManagementFee)
	take(&d.Principal)
	return d
}

// computeRegularPayment extends the scheduled components with the loan's
// service fee.
func computeRegularPayment(asset amount.Asset, loan Loan, periodicRate decimal.Decimal, managementFeeRate amount.TenthBips) ExtendedPaymentComponents {
	c := ComputePaymentComponents(asset, loan.LoanScale,
		loan.TotalValueOutstanding, loan.PrincipalOutstanding, loan.ManagementFeeOutstanding,
		loan.PeriodicPayment, periodicRate, loan.PaymentRemaining, managementFeeRate)
	return extendComponents(c, loan.ServiceFee, zero)
}
