package lending

import (
	"testing"
)

func TestImpairAndUnimpair(t *testing.T) {
	p := originate(t, points, pointsRequest())

	impaired, err := Impair(p, start+100)
	if err != nil {
		t.Fatalf("impair: %v", err)
	}
	if !impaired.Loan.Impaired() || impaired.Loan.NextPaymentDueDate != start+100 {
		t.Fatalf("impair must flag the loan and pull the due date forward, got %+v", impaired.Loan)
	}
	if !impaired.Vault.LossUnrealized.Equal(dec("1200")) {
		t.Fatalf("unexpected unrealized loss %s", impaired.Vault.LossUnrealized)
	}

	_, err = Manage(impaired, ActionImpair, start+150)
	requireCode(t, err, ErrNoPermission)

	res, err := Manage(impaired, ActionUnimpair, start+200)
	if err != nil {
		t.Fatalf("unimpair: %v", err)
	}
	restored := res.Position
	if restored.Loan.Impaired() || restored.Loan.NextPaymentDueDate != start+600 || !restored.Vault.LossUnrealized.IsZero() {
		t.Fatalf("unimpair did not restore the schedule: %+v", restored.Loan)
	}

	_, err = Manage(restored, ActionUnimpair, start+250)
	requireCode(t, err, ErrNoPermission)
}

func TestUnimpairAfterScheduledDate(t *testing.T) {
	p := originate(t, points, pointsRequest())
	impaired, err := Impair(p, start+100)
	if err != nil {
		t.Fatalf("impair: %v", err)
	}
	restored, err := Unimpair(impaired, start+700)
	if err != nil {
		t.Fatalf("unimpair: %v", err)
	}
	if restored.Loan.NextPaymentDueDate != start+1300 {
		t.Fatalf("expected due date one interval from now, got %d", restored.Loan.NextPaymentDueDate)
	}
}

func TestImpairOverdueKeepsDueDate(t *testing.T) {
	p := originate(t, points, pointsRequest())
	impaired, err := Impair(p, start+650)
	if err != nil {
		t.Fatalf("impair: %v", err)
	}
	if impaired.Loan.NextPaymentDueDate != start+600 {
		t.Fatalf("overdue loan due date moved to %d", impaired.Loan.NextPaymentDueDate)
	}
}

func TestDefaultWaitsForGracePeriod(t *testing.T) {
	p := originate(t, points, pointsRequest())

	for _, now := range []uint32{start + 659, start + 660} {
		_, err := Manage(p, ActionDefault, now)
		requireCode(t, err, ErrTooSoon)
	}

	res, err := Manage(p, ActionDefault, start+661)
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	// Minimum cover is 10% of 1200 and 10% of that is liquidated.
	if !res.Covered.Equal(dec("12")) {
		t.Fatalf("expected 12 covered, got %s", res.Covered)
	}
	loan, broker, vault := res.Position.Loan, res.Position.Broker, res.Position.Vault
	if !loan.Defaulted() || loan.PaymentRemaining != 0 || !loan.PrincipalOutstanding.IsZero() ||
		!loan.TotalValueOutstanding.IsZero() || !loan.ManagementFeeOutstanding.IsZero() {
		t.Fatalf("default did not zero the loan: %+v", loan)
	}
	if got := vault.AssetsAvailable.Sub(p.Vault.AssetsAvailable); !got.Equal(res.Covered) {
		t.Fatalf("vault available grew by %s, covered %s", got, res.Covered)
	}
	if !vault.AssetsTotal.Equal(dec("8812")) || !vault.AssetsAvailable.Equal(dec("8812")) {
		t.Fatalf("unexpected vault total=%s available=%s", vault.AssetsTotal, vault.AssetsAvailable)
	}
	if !broker.CoverAvailable.Equal(dec("188")) || !broker.DebtTotal.IsZero() {
		t.Fatalf("unexpected broker cover=%s debt=%s", broker.CoverAvailable, broker.DebtTotal)
	}

	transfers := DefaultTransfers(res.Position, res.Covered)
	if len(transfers) != 1 || transfers[0].From != broker.Account || transfers[0].To != vault.Account || !transfers[0].Amount.Equal(dec("12")) {
		t.Fatalf("unexpected default transfers %+v", transfers)
	}
}

func TestDefaultIsTerminal(t *testing.T) {
	p := originate(t, points, pointsRequest())
	res, err := Manage(p, ActionDefault, start+661)
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	defaulted := res.Position
	for _, action := range []ManageAction{ActionImpair, ActionUnimpair, ActionDefault} {
		_, err := Manage(defaulted, action, start+700)
		requireCode(t, err, ErrAlreadySettled)
	}
	_, err = MakePayment(points, defaulted.Loan, 0, dec("100"), PaymentLate, start+700)
	requireCode(t, err, ErrAlreadySettled)
}

func TestDefaultReleasesImpairment(t *testing.T) {
	p := originate(t, points, pointsRequest())
	impaired, err := Impair(p, start+100)
	if err != nil {
		t.Fatalf("impair: %v", err)
	}
	res, err := Default(impaired, start+161)
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if !res.Position.Vault.LossUnrealized.IsZero() {
		t.Fatalf("unrealized loss %s left after default", res.Position.Vault.LossUnrealized)
	}
}

func TestDefaultRejectsShortCover(t *testing.T) {
	p := originate(t, points, pointsRequest())
	// The default needs 12 of cover.
	p.Broker.CoverAvailable = dec("5")
	_, err := Default(p, start+661)
	requireCode(t, err, ErrInternal)

	p.Broker.CoverAvailable = dec("12")
	res, err := Default(p, start+661)
	if err != nil {
		t.Fatalf("default with exact cover: %v", err)
	}
	if !res.Covered.Equal(dec("12")) || !res.Position.Broker.CoverAvailable.IsZero() {
		t.Fatalf("expected cover drained to zero, covered=%s", res.Covered)
	}
}

func TestManageRejectsUnknownAction(t *testing.T) {
	p := originate(t, points, pointsRequest())
	_, err := Manage(p, ManageAction(9), start)
	requireCode(t, err, ErrMalformed)
}

func TestParseNames(t *testing.T) {
	for _, k := range []PaymentKind{PaymentRegular, PaymentLate, PaymentFull, PaymentOverpayment} {
		if got, ok := ParsePaymentKind(k.String()); !ok || got != k {
			t.Fatalf("payment kind %s does not round trip", k)
		}
	}
	for _, a := range []ManageAction{ActionImpair, ActionUnimpair, ActionDefault} {
		if got, ok := ParseManageAction(a.String()); !ok || got != a {
			t.Fatalf("action %s does not round trip", a)
		}
	}
	if _, ok := ParseManageAction("close"); ok {
		t.Fatalf("unexpected action parsed")
	}
}
