package lending

import (
	"testing"

	"lendledger/core/amount"
)

func TestOverpaymentReamortizes(t *testing.T) {
	cases := []struct {
		name       string
		fee        amount.TenthBips
		penalty    amount.TenthBips
		principal  string
		interest   string
		feePaid    string
		remaining  string
		valueDelta string
	}{
		{name: "plain", principal: "150", interest: "0", feePaid: "0", remaining: "1050", valueDelta: "0"},
		{name: "overpayment fee", fee: 10_000, principal: "145", interest: "0", feePaid: "5", remaining: "1055", valueDelta: "0"},
		{name: "penalty interest", penalty: 10_000, principal: "145", interest: "5", feePaid: "0", remaining: "1055", valueDelta: "5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := pointsRequest()
			req.OverpaymentFee = tc.fee
			req.OverpaymentInterestRate = tc.penalty
			loan := originate(t, points, req).Loan

			res, err := MakePayment(points, loan, 0, dec("150"), PaymentOverpayment, start)
			if err != nil {
				t.Fatalf("pay: %v", err)
			}
			if res.Overpayment == nil || res.Overpayment.Outcome != OverpaymentApplied {
				t.Fatalf("expected applied overpayment, got %+v", res.Overpayment)
			}
			parts := res.Parts
			if parts.Periods != 1 || !parts.Total().Equal(dec("150")) {
				t.Fatalf("expected one period and 150 consumed, got %+v", parts)
			}
			if !parts.PrincipalPaid.Equal(dec(tc.principal)) || !parts.InterestPaid.Equal(dec(tc.interest)) ||
				!parts.FeePaid.Equal(dec(tc.feePaid)) || !parts.ValueChange.Equal(dec(tc.valueDelta)) {
				t.Fatalf("unexpected parts %+v", parts)
			}
			next := res.Loan
			if !next.PrincipalOutstanding.Equal(dec(tc.remaining)) || !next.TotalValueOutstanding.Equal(dec(tc.remaining)) {
				t.Fatalf("unexpected balances principal=%s value=%s", next.PrincipalOutstanding, next.TotalValueOutstanding)
			}
			if next.PaymentRemaining != 11 || next.NextPaymentDueDate != start+1200 {
				t.Fatalf("overpayment must keep the schedule, remaining=%d next=%d", next.PaymentRemaining, next.NextPaymentDueDate)
			}
			if rounded := RoundPeriodicPayment(points, next.PeriodicPayment, next.LoanScale); !rounded.Equal(dec("96")) {
				t.Fatalf("expected periodic payment to round to 96, got %s", rounded)
			}
		})
	}
}

func TestOverpaymentDeclinedKeepsRegularPayment(t *testing.T) {
	req := pointsRequest()
	req.OverpaymentFee = amount.TenthBipsPerUnity
	loan := originate(t, points, req).Loan

	res, err := MakePayment(points, loan, 0, dec("150"), PaymentOverpayment, start)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if res.Overpayment == nil || res.Overpayment.Outcome != OverpaymentDeclined || res.Overpayment.Reason == "" {
		t.Fatalf("expected declined overpayment with a reason, got %+v", res.Overpayment)
	}
	if res.Parts.Periods != 1 || !res.Parts.Total().Equal(dec("100")) {
		t.Fatalf("regular payment must still apply, got %+v", res.Parts)
	}
	if !res.Loan.PrincipalOutstanding.Equal(dec("1100")) || res.Loan.PaymentRemaining != 11 {
		t.Fatalf("unexpected loan %+v", res.Loan)
	}
}

func TestOverpaymentIgnoredWithoutFlag(t *testing.T) {
	req := pointsRequest()
	req.AllowOverpayment = false
	loan := originate(t, points, req).Loan

	res, err := MakePayment(points, loan, 0, dec("150"), PaymentOverpayment, start)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if res.Overpayment != nil || !res.Parts.Total().Equal(dec("100")) {
		t.Fatalf("overpayment attempted on a loan that forbids it: %+v", res)
	}
}

func TestTryOverpaymentDeclines(t *testing.T) {
	loan := originate(t, points, pointsRequest()).Loan

	c := ComputeOverpaymentComponents(points, loan, 0, dec("0"))
	res, err := TryOverpayment(points, loan, 0, c)
	if err != nil {
		t.Fatalf("try overpayment: %v", err)
	}
	if res.Outcome != OverpaymentDeclined {
		t.Fatalf("expected decline for zero reduction")
	}

	c = ComputeOverpaymentComponents(points, loan, 0, loan.PrincipalOutstanding)
	res, err = TryOverpayment(points, loan, 0, c)
	if err != nil {
		t.Fatalf("try overpayment: %v", err)
	}
	if res.Outcome != OverpaymentDeclined || !res.Loan.PrincipalOutstanding.Equal(loan.PrincipalOutstanding) {
		t.Fatalf("expected decline when the principal would be retired, got %+v", res)
	}

	closed := loan
	closed.PaymentRemaining = 0
	if _, err := TryOverpayment(points, closed, 0, c); err == nil {
		t.Fatalf("expected error for a closed loan")
	}
}

func TestOverpaymentComponentsSplit(t *testing.T) {
	req := pointsRequest()
	req.OverpaymentFee = 10_000
	req.OverpaymentInterestRate = 20_000
	loan := originate(t, points, req).Loan

	c := ComputeOverpaymentComponents(points, loan, 10_000, dec("100"))
	if c.SpecialCase != SpecialExtra {
		t.Fatalf("expected extra payment")
	}
	// fee 10, penalty 20 of which 2 is management fee.
	if !c.TrackedPrincipalDelta.Equal(dec("70")) || !c.UntrackedManagementFee.Equal(dec("12")) || !c.UntrackedInterest.Equal(dec("18")) {
		t.Fatalf("unexpected components %+v", c)
	}
	if !c.TotalDue.Equal(dec("100")) {
		t.Fatalf("components do not add up: %s", c.TotalDue)
	}
}
