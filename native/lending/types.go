package lending

import (
	"encoding/hex"

	"github.com/shopspring/decimal"

	"lendledger/core/amount"
	"lendledger/crypto"
)

// ID identifies a loan, broker or vault record.
type ID [32]byte

// String returns the hex form of the identifier.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool {
	return id == ID{}
}

// LoanFlags tracks the lifecycle and feature switches of a loan.
type LoanFlags uint32

const (
	// FlagOverpayment permits payments above the scheduled amount.
	FlagOverpayment LoanFlags = 1 << iota
	// FlagImpaired marks a loan whose expected value is held as unrealized loss.
	FlagImpaired
	// FlagDefaulted marks a written-off loan. It is terminal.
	FlagDefaulted
)

// Has reports whether every bit in f is set.
func (l LoanFlags) Has(f LoanFlags) bool {
	return l&f == f
}

// Loan is the borrower's obligation to a broker's vault. All monetary fields
// are rounded to LoanScale.
type Loan struct {
	ID       ID
	BrokerID ID
	Sequence uint32
	Borrower crypto.Address
	Flags    LoanFlags

	LoanScale int32

	StartDate           uint32
	PaymentInterval     uint32
	GracePeriod         uint32
	PreviousPaymentDate uint32
	NextPaymentDueDate  uint32
	PaymentTotal        uint32
	PaymentRemaining    uint32

	PeriodicPayment          decimal.Decimal
	PrincipalOutstanding     decimal.Decimal
	TotalValueOutstanding    decimal.Decimal
	ManagementFeeOutstanding decimal.Decimal

	InterestRate            amount.TenthBips
	LateInterestRate        amount.TenthBips
	CloseInterestRate       amount.TenthBips
	OverpaymentInterestRate amount.TenthBips
	OverpaymentFee          amount.TenthBips

	OriginationFee decimal.Decimal
	ServiceFee     decimal.Decimal
	LateFee        decimal.Decimal
	CloseFee       decimal.Decimal
}

// State returns the rounded balances currently stored on the loan.
func (l Loan) State() LoanState {
	return constructLoanState(l.TotalValueOutstanding, l.PrincipalOutstanding, l.ManagementFeeOutstanding)
}

// Impaired reports whether the loan is impaired.
func (l Loan) Impaired() bool { return l.Flags.Has(FlagImpaired) }

// Defaulted reports whether the loan has been written off.
func (l Loan) Defaulted() bool { return l.Flags.Has(FlagDefaulted) }

// AllowsOverpayment reports whether the loan accepts overpayments.
func (l Loan) AllowsOverpayment() bool { return l.Flags.Has(FlagOverpayment) }

// OwedToVault is the loan value excluding the broker's management fee.
func (l Loan) OwedToVault() decimal.Decimal {
	return l.TotalValueOutstanding.Sub(l.ManagementFeeOutstanding)
}

// Broker manages a book of loans funded by one vault and holds the first-loss
// cover for them.
type Broker struct {
	ID      ID
	VaultID ID
	Owner   crypto.Address
	Account crypto.Address

	ManagementFeeRate    amount.TenthBips
	CoverRateMinimum     amount.TenthBips
	CoverRateLiquidation amount.TenthBips

	DebtTotal      decimal.Decimal
	DebtMaximum    decimal.Decimal
	CoverAvailable decimal.Decimal

	LoanSequence uint32
	OwnerCount   uint32
}

// MinimumCover is the cover the broker is expected to hold for its debt,
// rounded up at scale.
func (b Broker) MinimumCover(asset amount.Asset, scale int32) decimal.Decimal {
	return amount.Round(asset, amount.TenthBipsOf(b.DebtTotal, b.CoverRateMinimum), scale, amount.Upward)
}

// Vault pools lender assets that brokers lend out.
type Vault struct {
	ID      ID
	Owner   crypto.Address
	Account crypto.Address
	Asset   amount.Asset

	AssetsTotal     decimal.Decimal
	AssetsAvailable decimal.Decimal
	LossUnrealized  decimal.Decimal
}

// Scale is the exponent at which vault aggregates are kept.
func (v Vault) Scale() int32 {
	return amount.Exponent(v.Asset, v.AssetsTotal)
}

// PaymentKind selects how a payment amount is interpreted.
type PaymentKind uint8

const (
	PaymentRegular PaymentKind = iota
	PaymentLate
	PaymentFull
	PaymentOverpayment
)

func (k PaymentKind) String() string {
	switch k {
	case PaymentRegular:
		return "regular"
	case PaymentLate:
		return "late"
	case PaymentFull:
		return "full"
	case PaymentOverpayment:
		return "overpayment"
	default:
		return "unknown"
	}
}

// ParsePaymentKind maps a name produced by PaymentKind.String back to its kind.
func ParsePaymentKind(name string) (PaymentKind, bool) {
	for _, k := range []PaymentKind{PaymentRegular, PaymentLate, PaymentFull, PaymentOverpayment} {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

// ManageAction is a lifecycle transition requested by the broker.
type ManageAction uint8

const (
	ActionImpair ManageAction = iota + 1
	ActionUnimpair
	ActionDefault
)

func (a ManageAction) String() string {
	switch a {
	case ActionImpair:
		return "impair"
	case ActionUnimpair:
		return "unimpair"
	case ActionDefault:
		return "default"
	default:
		return "unknown"
	}
}

// ParseManageAction maps a name produced by ManageAction.String back to its action.
func ParseManageAction(name string) (ManageAction, bool) {
	for _, a := range []ManageAction{ActionImpair, ActionUnimpair, ActionDefault} {
		if a.String() == name {
			return a, true
		}
	}
	return 0, false
}

// LoanState is a snapshot of a loan's balances. Interest is always derived.
type LoanState struct {
	ValueOutstanding     decimal.Decimal
	PrincipalOutstanding decimal.Decimal
	InterestDue          decimal.Decimal
	ManagementFeeDue     decimal.Decimal
}

// InterestOutstanding is the interest plus management fee still owed.
func (s LoanState) InterestOutstanding() decimal.Decimal {
	return s.InterestDue.Add(s.ManagementFeeDue)
}

// Sub returns the per-field difference s - o.
func (s LoanState) Sub(o LoanState) LoanStateDeltas {
	return LoanStateDeltas{
		Principal:     s.PrincipalOutstanding.Sub(o.PrincipalOutstanding),
		Interest:      s.InterestDue.Sub(o.InterestDue),
		ManagementFee: s.ManagementFeeDue.Sub(o.ManagementFeeDue),
	}
}

// Apply adds deltas to each field of s.
func (s LoanState) Apply(d LoanStateDeltas) LoanState {
	return LoanState{
		ValueOutstanding:     s.ValueOutstanding.Add(d.Total()),
		PrincipalOutstanding: s.PrincipalOutstanding.Add(d.Principal),
		InterestDue:          s.InterestDue.Add(d.Interest),
		ManagementFeeDue:     s.ManagementFeeDue.Add(d.ManagementFee),
	}
}

// LoanStateDeltas is a per-field difference between two loan states.
type LoanStateDeltas struct {
	Principal     decimal.Decimal
	Interest      decimal.Decimal
	ManagementFee decimal.Decimal
}

// Total is the change in loan value.
func (d LoanStateDeltas) Total() decimal.Decimal {
	return d.Principal.Add(d.Interest).Add(d.ManagementFee)
}

// NonNegative floors every field at zero.
func (d LoanStateDeltas) NonNegative() LoanStateDeltas {
	return LoanStateDeltas{
		Principal:     amount.Max(d.Principal, decimal.Zero),
		Interest:      amount.Max(d.Interest, decimal.Zero),
		ManagementFee: amount.Max(d.ManagementFee, decimal.Zero),
	}
}

// LoanProperties describes an amortization schedule.
type LoanProperties struct {
	PeriodicPayment           decimal.Decimal
	TotalValueOutstanding     decimal.Decimal
	ManagementFeeOwedToBroker decimal.Decimal
	LoanScale                 int32
	FirstPaymentPrincipal     decimal.Decimal
}

// SpecialCase marks payments that are not a plain scheduled step.
type SpecialCase uint8

const (
	SpecialNone SpecialCase = iota
	// SpecialFinal pays off every remaining balance.
	SpecialFinal
	// SpecialExtra reduces balances without advancing the schedule.
	SpecialExtra
)

// PaymentComponents is the tracked portion of one payment: the amounts that
// reduce the loan's stored balances.
type PaymentComponents struct {
	TrackedValueDelta         decimal.Decimal
	TrackedPrincipalDelta     decimal.Decimal
	TrackedManagementFeeDelta decimal.Decimal
	SpecialCase               SpecialCase
}

// TrackedInterestPart is the interest share of the tracked value.
func (c PaymentComponents) TrackedInterestPart() decimal.Decimal {
	return c.TrackedValueDelta.Sub(c.TrackedPrincipalDelta).Sub(c.TrackedManagementFeeDelta)
}

// ExtendedPaymentComponents adds the fees and interest that are paid without
// touching the schedule.
type ExtendedPaymentComponents struct {
	PaymentComponents
	UntrackedManagementFee decimal.Decimal
	UntrackedInterest      decimal.Decimal
	TotalDue               decimal.Decimal
}

func extendComponents(c PaymentComponents, fee, interest decimal.Decimal) ExtendedPaymentComponents {
	return ExtendedPaymentComponents{
		PaymentComponents:      c,
		UntrackedManagementFee: fee,
		UntrackedInterest:      interest,
		TotalDue:               c.TrackedValueDelta.Add(interest).Add(fee),
	}
}

// PaymentParts summarises how a payment was distributed.
type PaymentParts struct {
	// PrincipalPaid goes to the vault and reduces the loan principal.
	PrincipalPaid decimal.Decimal
	// InterestPaid goes to the vault.
	InterestPaid decimal.Decimal
	// ValueChange is the signed change in the loan's value to the vault not
	// accounted for by the schedule. It adjusts the vault's assets total.
	ValueChange decimal.Decimal
	// FeePaid goes to the broker.
	FeePaid decimal.Decimal
	// Periods is the number of scheduled payments settled.
	Periods uint32
}

// Add accumulates o into p.
func (p PaymentParts) Add(o PaymentParts) PaymentParts {
	return PaymentParts{
		PrincipalPaid: p.PrincipalPaid.Add(o.PrincipalPaid),
		InterestPaid:  p.InterestPaid.Add(o.InterestPaid),
		ValueChange:   p.ValueChange.Add(o.ValueChange),
		FeePaid:       p.FeePaid.Add(o.FeePaid),
		Periods:       p.Periods + o.Periods,
	}
}

// Total is the amount the payer handed over.
func (p PaymentParts) Total() decimal.Decimal {
	return p.PrincipalPaid.Add(p.InterestPaid).Add(p.FeePaid)
}
