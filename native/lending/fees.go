package lending

import (
	"github.com/shopspring/decimal"

	"lendledger/core/amount"
)

// FeeIncrements estimates how many units of processing fee a payment request
// costs. One unit covers PaymentsPerFeeIncrement scheduled payments; full and
// late payments always cost one unit.
func FeeIncrements(asset amount.Asset, loan Loan, amt decimal.Decimal, kind PaymentKind, now uint32) uint32 {
	if kind == PaymentFull || kind == PaymentLate {
		return 1
	}
	if loan.PaymentRemaining <= PaymentsPerFeeIncrement || expired(now, overdueAt(loan)) {
		return 1
	}
	regular := RoundPeriodicPayment(asset, loan.PeriodicPayment, loan.LoanScale).Add(loan.ServiceFee)
	if regular.Sign() <= 0 || amt.Sign() <= 0 {
		return 1
	}
	var estimate decimal.Decimal
	if kind == PaymentOverpayment {
		estimate = amount.CeilQuo(amt, regular)
	} else {
		estimate, _ = amt.QuoRem(regular, 0)
	}
	estimate = amount.Min(estimate, decimalOf(MaxPaymentsPerTransaction))
	increments := amount.CeilQuo(estimate, decimalOf(PaymentsPerFeeIncrement))
	if increments.LessThan(one) {
		return 1
	}
	return uint32(increments.IntPart())
}
