package lending

import (
	"math"

	"github.com/shopspring/decimal"

	"lendledger/core/amount"
	"lendledger/crypto"
)

// OriginationRequest describes a loan a broker and borrower have agreed on.
// Zero PaymentInterval, PaymentTotal and GracePeriod select the configured
// defaults.
type OriginationRequest struct {
	Borrower  crypto.Address
	Principal decimal.Decimal

	InterestRate            amount.TenthBips
	LateInterestRate        amount.TenthBips
	CloseInterestRate       amount.TenthBips
	OverpaymentInterestRate amount.TenthBips
	OverpaymentFee          amount.TenthBips

	OriginationFee decimal.Decimal
	ServiceFee     decimal.Decimal
	LateFee        decimal.Decimal
	CloseFee       decimal.Decimal

	PaymentInterval  uint32
	PaymentTotal     uint32
	GracePeriod      uint32
	AllowOverpayment bool
}

// Origination is a newly funded loan together with the updated broker and
// vault and the transfers that disburse the principal.
type Origination struct {
	Position   Position
	Properties LoanProperties
	Transfers  []Transfer
}

func (r OriginationRequest) withDefaults(cfg Config) OriginationRequest {
	if r.PaymentInterval == 0 {
		r.PaymentInterval = cfg.DefaultPaymentInterval
	}
	if r.PaymentTotal == 0 {
		r.PaymentTotal = cfg.DefaultPaymentTotal
	}
	if r.GracePeriod == 0 {
		r.GracePeriod = cfg.DefaultGracePeriod
		if r.GracePeriod > r.PaymentInterval {
			r.GracePeriod = r.PaymentInterval
		}
	}
	return r
}

func (r OriginationRequest) validate(cfg Config) error {
	const op = "originate"
	if r.Borrower.IsZero() {
		return fail(CodeMalformed, op, "borrower required")
	}
	if r.Principal.Sign() <= 0 {
		return fail(CodeMalformed, op, "principal %s must be positive", r.Principal)
	}
	for _, fee := range []decimal.Decimal{r.OriginationFee, r.ServiceFee, r.LateFee, r.CloseFee} {
		if fee.Sign() < 0 {
			return fail(CodeMalformed, op, "fee %s must not be negative", fee)
		}
	}
	if r.OriginationFee.GreaterThan(r.Principal) {
		return fail(CodeMalformed, op, "origination fee %s exceeds principal", r.OriginationFee)
	}
	rates := []struct {
		name  string
		value amount.TenthBips
		max   amount.TenthBips
	}{
		{"interest rate", r.InterestRate, cfg.MaxInterestRate},
		{"late interest rate", r.LateInterestRate, cfg.MaxLateInterestRate},
		{"close interest rate", r.CloseInterestRate, cfg.MaxCloseInterestRate},
		{"overpayment interest rate", r.OverpaymentInterestRate, cfg.MaxOverpaymentInterestRate},
		{"overpayment fee", r.OverpaymentFee, cfg.MaxOverpaymentFeeRate},
	}
	for _, rate := range rates {
		if rate.value > rate.max {
			return fail(CodeMalformed, op, "%s %d exceeds %d", rate.name, rate.value, rate.max)
		}
	}
	if r.PaymentInterval < cfg.MinPaymentInterval {
		return fail(CodeMalformed, op, "payment interval %d below %d", r.PaymentInterval, cfg.MinPaymentInterval)
	}
	if r.GracePeriod > r.PaymentInterval {
		return fail(CodeMalformed, op, "grace period %d exceeds payment interval %d", r.GracePeriod, r.PaymentInterval)
	}
	return nil
}

// Originate funds a new loan from the broker's vault at ledger time now.
func Originate(cfg Config, broker Broker, vault Vault, req OriginationRequest, now uint32) (Origination, error) {
	const op = "originate"
	req = req.withDefaults(cfg)
	if err := req.validate(cfg); err != nil {
		return Origination{}, err
	}
	if uint64(now)+uint64(req.PaymentInterval)*uint64(req.PaymentTotal) > math.MaxUint32 ||
		uint64(now)+uint64(req.PaymentInterval)*uint64(req.PaymentTotal)+uint64(req.GracePeriod) > math.MaxUint32 {
		return Origination{}, fail(CodeMalformed, op, "schedule ends beyond the representable time range")
	}
	if broker.ManagementFeeRate > cfg.MaxManagementFeeRate {
		return Origination{}, fail(CodeMalformed, op, "management fee rate %d exceeds %d", broker.ManagementFeeRate, cfg.MaxManagementFeeRate)
	}

	asset := vault.Asset
	if vault.AssetsAvailable.LessThan(req.Principal) {
		return Origination{}, fail(CodeInsufficientFunds, op, "vault holds %s, %s requested", vault.AssetsAvailable, req.Principal)
	}
	vaultScale := vault.Scale()
	props := ComputeLoanProperties(asset, req.Principal, req.InterestRate, req.PaymentInterval, req.PaymentTotal, broker.ManagementFeeRate, vaultScale)
	for _, v := range []decimal.Decimal{req.Principal, req.OriginationFee, req.ServiceFee, req.LateFee, req.CloseFee} {
		if !amount.IsRounded(asset, v, props.LoanScale) {
			return Origination{}, fail(CodePrecisionLoss, op, "%s has too much precision for scale %d", v, props.LoanScale)
		}
	}
	if err := CheckLoanGuards(asset, req.Principal, req.InterestRate != 0, req.PaymentTotal, props); err != nil {
		return Origination{}, err
	}
	if props.ManagementFeeOwedToBroker.Sign() < 0 || props.TotalValueOutstanding.Sign() <= 0 || props.PeriodicPayment.Sign() <= 0 {
		return Origination{}, fail(CodeInternal, op, "computed schedule is invalid")
	}

	state := constructLoanState(props.TotalValueOutstanding, req.Principal, props.ManagementFeeOwedToBroker)
	newDebt := req.Principal.Add(state.InterestDue)
	debtTotal := broker.DebtTotal.Add(newDebt)
	if broker.DebtMaximum.Sign() != 0 && debtTotal.GreaterThan(broker.DebtMaximum) {
		return Origination{}, fail(CodeLimitExceeded, op, "debt %s would exceed maximum %s", debtTotal, broker.DebtMaximum)
	}
	required := amount.Round(asset, amount.TenthBipsOf(debtTotal, broker.CoverRateMinimum), props.LoanScale, amount.Upward)
	if broker.CoverAvailable.LessThan(required) {
		return Origination{}, fail(CodeInsufficientFunds, op, "cover %s below minimum %s for debt %s", broker.CoverAvailable, required, debtTotal)
	}

	flags := LoanFlags(0)
	if req.AllowOverpayment {
		flags |= FlagOverpayment
	}
	loan := Loan{
		ID:                       LoanIDFor(broker.ID, broker.LoanSequence),
		BrokerID:                 broker.ID,
		Sequence:                 broker.LoanSequence,
		Borrower:                 req.Borrower,
		Flags:                    flags,
		LoanScale:                props.LoanScale,
		StartDate:                now,
		PaymentInterval:          req.PaymentInterval,
		GracePeriod:              req.GracePeriod,
		PreviousPaymentDate:      0,
		NextPaymentDueDate:       now + req.PaymentInterval,
		PaymentTotal:             req.PaymentTotal,
		PaymentRemaining:         req.PaymentTotal,
		PeriodicPayment:          props.PeriodicPayment,
		PrincipalOutstanding:     req.Principal,
		TotalValueOutstanding:    props.TotalValueOutstanding,
		ManagementFeeOutstanding: props.ManagementFeeOwedToBroker,
		InterestRate:             req.InterestRate,
		LateInterestRate:         req.LateInterestRate,
		CloseInterestRate:        req.CloseInterestRate,
		OverpaymentInterestRate:  req.OverpaymentInterestRate,
		OverpaymentFee:           req.OverpaymentFee,
		OriginationFee:           req.OriginationFee,
		ServiceFee:               req.ServiceFee,
		LateFee:                  req.LateFee,
		CloseFee:                 req.CloseFee,
	}

	vault.AssetsAvailable = vault.AssetsAvailable.Sub(req.Principal)
	vault.AssetsTotal = vault.AssetsTotal.Add(state.InterestDue)
	if vault.AssetsAvailable.GreaterThan(vault.AssetsTotal) {
		return Origination{}, fail(CodeInternal, op, "vault available %s exceeds total %s", vault.AssetsAvailable, vault.AssetsTotal)
	}
	broker.DebtTotal = adjustImprecise(asset, broker.DebtTotal, newDebt, vaultScale)
	broker.LoanSequence++
	broker.OwnerCount++

	var transfers []Transfer
	transfers = appendTransfer(transfers, vault.Account, req.Borrower, req.Principal.Sub(req.OriginationFee))
	transfers = appendTransfer(transfers, vault.Account, broker.Owner, req.OriginationFee)

	return Origination{
		Position:   Position{Loan: loan, Broker: broker, Vault: vault},
		Properties: props,
		Transfers:  transfers,
	}, nil
}

// DeleteLoan releases a closed loan from its broker. When the last loan goes,
// any debt left on the broker is rounding residue that nothing can repay; it
// is forgiven and returned.
func DeleteLoan(loan Loan, broker Broker) (Broker, decimal.Decimal, error) {
	if loan.PaymentRemaining != 0 {
		return broker, zero, fail(CodeNoPermission, "delete loan", "loan %s still has %d payments", loan.ID, loan.PaymentRemaining)
	}
	if broker.OwnerCount > 0 {
		broker.OwnerCount--
	}
	forgiven := zero
	if broker.OwnerCount == 0 && !broker.DebtTotal.IsZero() {
		forgiven = broker.DebtTotal
		broker.DebtTotal = zero
	}
	return broker, forgiven, nil
}

// IsDebtDust reports whether the debt rounds to nothing at the vault's scale.
func IsDebtDust(debt decimal.Decimal, vault Vault) bool {
	return amount.Round(vault.Asset, debt, vault.Scale(), amount.TowardZero).IsZero()
}

// DeleteBroker checks that a broker can be closed by account and returns the
// transfer handing its remaining cover back to the owner.
func DeleteBroker(broker Broker, vault Vault, account crypto.Address) ([]Transfer, error) {
	const op = "delete broker"
	if account != broker.Owner {
		return nil, fail(CodeNoPermission, op, "%s does not own broker %s", account, broker.ID)
	}
	if broker.OwnerCount != 0 {
		return nil, fail(CodeNoPermission, op, "broker %s still has %d loans", broker.ID, broker.OwnerCount)
	}
	if !IsDebtDust(broker.DebtTotal, vault) {
		return nil, fail(CodeNoPermission, op, "broker %s still owes %s", broker.ID, broker.DebtTotal)
	}
	return appendTransfer(nil, broker.Account, broker.Owner, broker.CoverAvailable), nil
}

// DepositCover adds first-loss capital to the broker.
func DepositCover(broker Broker, amt decimal.Decimal) (Broker, error) {
	if amt.Sign() <= 0 {
		return broker, fail(CodeMalformed, "deposit cover", "amount %s must be positive", amt)
	}
	broker.CoverAvailable = broker.CoverAvailable.Add(amt)
	return broker, nil
}

// WithdrawCover removes first-loss capital as long as the broker keeps its
// minimum cover.
func WithdrawCover(broker Broker, vault Vault, amt decimal.Decimal) (Broker, error) {
	const op = "withdraw cover"
	if amt.Sign() <= 0 {
		return broker, fail(CodeMalformed, op, "amount %s must be positive", amt)
	}
	remaining := broker.CoverAvailable.Sub(amt)
	if minimum := broker.MinimumCover(vault.Asset, vault.Scale()); remaining.LessThan(minimum) {
		return broker, fail(CodeInsufficientFunds, op, "cover %s would fall below minimum %s", remaining, minimum)
	}
	broker.CoverAvailable = remaining
	return broker, nil
}
