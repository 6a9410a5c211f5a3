package lending

import (
	"testing"

	"lendledger/core/amount"
)

func TestPeriodicRate(t *testing.T) {
	got := PeriodicRate(12_000, 600)
	want := amount.Quo(dec("72"), dec("31536000"))
	if !got.Equal(want) {
		t.Fatalf("unexpected periodic rate %s, want %s", got, want)
	}
	if !PeriodicRate(0, 600).IsZero() {
		t.Fatalf("zero annual rate must yield zero periodic rate")
	}
}

func TestPeriodicPaymentInterestFree(t *testing.T) {
	if got := PeriodicPayment(dec("1200"), PeriodicRate(0, 600), 12); !got.Equal(dec("100")) {
		t.Fatalf("expected 100, got %s", got)
	}
	if got := PeriodicPayment(dec("1200"), PeriodicRate(0, 600), 0); !got.IsZero() {
		t.Fatalf("expected zero payment for empty schedule, got %s", got)
	}
}

func TestPrincipalFromPaymentRoundTrip(t *testing.T) {
	rate := PeriodicRate(12_000, 600)
	pp := PeriodicPayment(dec("1000"), rate, 12)
	back := principalFromPayment(pp, rate, 12)
	if diff := back.Sub(dec("1000")).Abs(); diff.GreaterThan(dec("1e-25")) {
		t.Fatalf("principal drifted by %s", diff)
	}
}

func TestLoanPropertiesScenario(t *testing.T) {
	minimumScale := amount.Exponent(usd, dec("10000"))
	props := ComputeLoanProperties(usd, dec("1000"), 12_000, 600, 12, 0, minimumScale)
	if props.LoanScale != -11 {
		t.Fatalf("expected loan scale -11, got %d", props.LoanScale)
	}
	if props.PeriodicPayment.LessThan(dec("83.3333")) || props.PeriodicPayment.GreaterThan(dec("83.3348")) {
		t.Fatalf("unexpected periodic payment %s", props.PeriodicPayment)
	}
	interest := props.TotalValueOutstanding.Sub(dec("1000"))
	if interest.LessThan(dec("0.014")) || interest.GreaterThan(dec("0.016")) {
		t.Fatalf("unexpected total interest %s", interest)
	}
	if !amount.IsRounded(usd, props.TotalValueOutstanding, props.LoanScale) {
		t.Fatalf("total value %s not rounded at scale %d", props.TotalValueOutstanding, props.LoanScale)
	}
	if props.FirstPaymentPrincipal.Sign() <= 0 {
		t.Fatalf("first payment must reduce principal")
	}
	if err := CheckLoanGuards(usd, dec("1000"), true, 12, props); err != nil {
		t.Fatalf("guards: %v", err)
	}
	rounded := RoundPeriodicPayment(usd, props.PeriodicPayment, props.LoanScale)
	if got := amount.CeilQuo(props.TotalValueOutstanding, rounded); !got.Equal(dec("12")) {
		t.Fatalf("schedule settles in %s payments", got)
	}
}

func TestLoanPropertiesManagementFee(t *testing.T) {
	props := ComputeLoanProperties(usd, dec("1000"), 12_000, 600, 12, 10_000, amount.Exponent(usd, dec("10000")))
	interest := props.TotalValueOutstanding.Sub(dec("1000"))
	want := ManagementFee(usd, interest, 10_000, props.LoanScale)
	if !props.ManagementFeeOwedToBroker.Equal(want) {
		t.Fatalf("expected fee %s, got %s", want, props.ManagementFeeOwedToBroker)
	}
	if props.ManagementFeeOwedToBroker.Sign() <= 0 || props.ManagementFeeOwedToBroker.GreaterThan(interest) {
		t.Fatalf("fee %s outside (0, %s]", props.ManagementFeeOwedToBroker, interest)
	}
}

func TestManagementFeeRoundsTowardZero(t *testing.T) {
	if got := ManagementFee(usd, dec("1.23456"), 10_000, -2); !got.Equal(dec("0.12")) {
		t.Fatalf("expected 0.12, got %s", got)
	}
	net, fee := splitInterest(usd, dec("1.23456"), 10_000, -2)
	if !net.Add(fee).Equal(dec("1.23456")) {
		t.Fatalf("split %s + %s does not add up", net, fee)
	}
}

func TestRawLoanStateSplitsFee(t *testing.T) {
	rate := PeriodicRate(12_000, 600)
	pp := PeriodicPayment(dec("1000"), rate, 12)
	state := ComputeRawLoanState(pp, rate, 12, 10_000)
	if !state.ValueOutstanding.Equal(pp.Mul(dec("12"))) {
		t.Fatalf("value %s is not payments times count", state.ValueOutstanding)
	}
	gross := state.ValueOutstanding.Sub(state.PrincipalOutstanding)
	if !state.InterestOutstanding().Equal(gross) {
		t.Fatalf("interest %s does not match gross %s", state.InterestOutstanding(), gross)
	}
	if empty := ComputeRawLoanState(pp, rate, 0, 10_000); !empty.ValueOutstanding.IsZero() {
		t.Fatalf("expected empty state, got %+v", empty)
	}
}

func TestLoanGuards(t *testing.T) {
	cases := []struct {
		name      string
		principal string
		rate      uint32
		n         uint32
		want      *Error
	}{
		{name: "even split", principal: "10", n: 4},
		{name: "payment count drifts", principal: "10", n: 6, want: ErrPrecisionLoss},
		{name: "interest rounds away", principal: "100", rate: 1_000, n: 2, want: ErrPrecisionLoss},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			props := ComputeLoanProperties(points, dec(tc.principal), amount.TenthBips(tc.rate), 600, tc.n, 0, 0)
			err := CheckLoanGuards(points, dec(tc.principal), tc.rate != 0, tc.n, props)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			requireCode(t, err, tc.want)
		})
	}
}

func TestPaymentComponentsFinal(t *testing.T) {
	c := ComputePaymentComponents(points, 0, dec("100"), dec("90"), dec("2"), dec("100"), PeriodicRate(0, 600), 1, 0)
	if c.SpecialCase != SpecialFinal {
		t.Fatalf("expected final payment, got %d", c.SpecialCase)
	}
	if !c.TrackedValueDelta.Equal(dec("100")) || !c.TrackedPrincipalDelta.Equal(dec("90")) || !c.TrackedManagementFeeDelta.Equal(dec("2")) {
		t.Fatalf("final payment must take every balance, got %+v", c)
	}
}

func TestPaymentComponentsBoundedByPayment(t *testing.T) {
	rate := PeriodicRate(12_000, 600)
	props := ComputeLoanProperties(usd, dec("1000"), 12_000, 600, 12, 10_000, -11)
	c := ComputePaymentComponents(usd, props.LoanScale, props.TotalValueOutstanding, dec("1000"),
		props.ManagementFeeOwedToBroker, props.PeriodicPayment, rate, 12, 10_000)
	if c.SpecialCase != SpecialNone {
		t.Fatalf("expected a scheduled step, got %d", c.SpecialCase)
	}
	rounded := RoundPeriodicPayment(usd, props.PeriodicPayment, props.LoanScale)
	if c.TrackedValueDelta.GreaterThan(rounded) {
		t.Fatalf("tracked value %s exceeds payment %s", c.TrackedValueDelta, rounded)
	}
	if c.TrackedPrincipalDelta.Sign() <= 0 || c.TrackedInterestPart().Sign() < 0 {
		t.Fatalf("unexpected components %+v", c)
	}
}

func TestTrimExcessOrder(t *testing.T) {
	d := LoanStateDeltas{Principal: dec("10"), Interest: dec("3"), ManagementFee: dec("2")}
	got := trimExcess(d, dec("4"))
	if !got.Interest.IsZero() || !got.ManagementFee.Equal(dec("1")) || !got.Principal.Equal(dec("10")) {
		t.Fatalf("unexpected trim %+v", got)
	}
}
