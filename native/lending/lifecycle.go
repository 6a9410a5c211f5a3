package lending

import (
	"github.com/shopspring/decimal"

	"lendledger/core/amount"
)

// Position bundles the loan with the broker and vault it draws on. Lifecycle
// and settlement functions take a Position by value and return the next one.
type Position struct {
	Loan   Loan
	Broker Broker
	Vault  Vault
}

// ManageResult is the position after a lifecycle transition. Covered is the
// first-loss cover moved from the broker to the vault by a default.
type ManageResult struct {
	Position Position
	Covered  decimal.Decimal
}

// CheckManage reports whether action is legal for the loan's current state.
func CheckManage(loan Loan, action ManageAction) error {
	const op = "manage loan"
	if loan.Defaulted() || loan.PaymentRemaining == 0 {
		return fail(CodeAlreadySettled, op, "loan %s is closed", loan.ID)
	}
	switch action {
	case ActionImpair:
		if loan.Impaired() {
			return fail(CodeNoPermission, op, "loan %s is already impaired", loan.ID)
		}
	case ActionUnimpair:
		if !loan.Impaired() {
			return fail(CodeNoPermission, op, "loan %s is not impaired", loan.ID)
		}
	case ActionDefault:
	default:
		return fail(CodeMalformed, op, "unknown action %d", action)
	}
	return nil
}

// Manage applies one lifecycle transition at ledger time now.
func Manage(p Position, action ManageAction, now uint32) (ManageResult, error) {
	if err := CheckManage(p.Loan, action); err != nil {
		return ManageResult{}, err
	}
	switch action {
	case ActionImpair:
		next, err := Impair(p, now)
		return ManageResult{Position: next, Covered: zero}, err
	case ActionUnimpair:
		next, err := Unimpair(p, now)
		return ManageResult{Position: next, Covered: zero}, err
	default:
		return Default(p, now)
	}
}

// Impair books the loan's value to the vault as unrealized loss and, if the
// loan is not yet overdue, pulls the due date forward to now.
func Impair(p Position, now uint32) (Position, error) {
	const op = "impair"
	loan, vault := p.Loan, p.Vault
	loss := vault.LossUnrealized.Add(loan.OwedToVault())
	if headroom := vault.AssetsTotal.Sub(vault.AssetsAvailable); loss.GreaterThan(headroom) {
		return p, fail(CodeLimitExceeded, op, "unrealized loss %s exceeds %s lent out", loss, headroom)
	}
	vault.LossUnrealized = loss
	loan.Flags |= FlagImpaired
	if !expired(now, loan.NextPaymentDueDate) {
		loan.NextPaymentDueDate = now
	}
	p.Loan, p.Vault = loan, vault
	return p, nil
}

// Unimpair reverses Impair. The due date returns to the regular schedule, or
// to one interval from now when the scheduled date has already passed.
func Unimpair(p Position, now uint32) (Position, error) {
	const op = "unimpair"
	loan, vault := p.Loan, p.Vault
	owed := loan.OwedToVault()
	if vault.LossUnrealized.LessThan(owed) {
		return p, fail(CodeInternal, op, "unrealized loss %s below loan value %s", vault.LossUnrealized, owed)
	}
	vault.LossUnrealized = vault.LossUnrealized.Sub(owed)
	loan.Flags &^= FlagImpaired

	last := loan.StartDate
	if loan.PreviousPaymentDate > last {
		last = loan.PreviousPaymentDate
	}
	normal := saturatingAdd(last, loan.PaymentInterval)
	if expired(now, normal) {
		loan.NextPaymentDueDate = saturatingAdd(now, loan.PaymentInterval)
	} else {
		loan.NextPaymentDueDate = normal
	}
	p.Loan, p.Vault = loan, vault
	return p, nil
}

// Default writes the loan off once its grace period has passed. The broker's
// cover absorbs up to the liquidation share of its minimum cover; the vault
// realizes the rest as a loss. A broker holding less cover than that share is
// an inconsistent ledger and fails with CodeInternal.
func Default(p Position, now uint32) (ManageResult, error) {
	const op = "default"
	loan, broker, vault := p.Loan, p.Broker, p.Vault
	if !expired(now, overdueAt(loan)) {
		return ManageResult{}, fail(CodeTooSoon, op, "grace period ends at %d", overdueAt(loan))
	}
	asset := vault.Asset
	vaultScale := vault.Scale()
	owed := loan.OwedToVault()

	minimumCover := amount.TenthBipsOf(broker.DebtTotal, broker.CoverRateMinimum)
	covered := amount.Round(asset,
		amount.Min(amount.TenthBipsOf(minimumCover, broker.CoverRateLiquidation), owed),
		loan.LoanScale, amount.Upward)
	if broker.CoverAvailable.LessThan(covered) {
		return ManageResult{}, fail(CodeInternal, op, "cover %s below covered amount %s", broker.CoverAvailable, covered)
	}
	uncovered := owed.Sub(covered)

	if vault.AssetsTotal.LessThan(uncovered) {
		return ManageResult{}, fail(CodeInternal, op, "vault total %s below write-off %s", vault.AssetsTotal, uncovered)
	}
	vault.AssetsTotal = vault.AssetsTotal.Sub(amount.Round(asset, uncovered, vaultScale, amount.Downward))
	vault.AssetsAvailable = vault.AssetsAvailable.Add(covered)
	if vault.AssetsAvailable.GreaterThan(vault.AssetsTotal) && !asset.Integral && isDust(vault.AssetsAvailable.Sub(vault.AssetsTotal), vault.AssetsAvailable) {
		vault.AssetsTotal = vault.AssetsAvailable
	}
	if vault.AssetsAvailable.GreaterThan(vault.AssetsTotal) {
		return ManageResult{}, fail(CodeLimitExceeded, op, "vault available %s exceeds total %s", vault.AssetsAvailable, vault.AssetsTotal)
	}
	if loan.Impaired() {
		if vault.LossUnrealized.LessThan(owed) {
			return ManageResult{}, fail(CodeInternal, op, "unrealized loss %s below loan value %s", vault.LossUnrealized, owed)
		}
		vault.LossUnrealized = vault.LossUnrealized.Sub(owed)
	}

	broker.DebtTotal = adjustImprecise(asset, broker.DebtTotal, owed.Neg(), vaultScale)
	broker.CoverAvailable = broker.CoverAvailable.Sub(covered)

	loan.Flags |= FlagDefaulted
	loan.TotalValueOutstanding = zero
	loan.PrincipalOutstanding = zero
	loan.ManagementFeeOutstanding = zero
	loan.PaymentRemaining = 0
	loan.NextPaymentDueDate = 0

	return ManageResult{Position: Position{Loan: loan, Broker: broker, Vault: vault}, Covered: covered}, nil
}

// dustRatio is the relative size below which a vault available/total
// mismatch is attributed to rounding.
var dustRatio = decimal.New(1, -13)

func isDust(difference, reference decimal.Decimal) bool {
	return difference.LessThanOrEqual(reference.Abs().Mul(dustRatio))
}

// adjustImprecise adds delta to an aggregate kept at scale, flooring the
// result at zero.
func adjustImprecise(asset amount.Asset, value, delta decimal.Decimal, scale int32) decimal.Decimal {
	v := amount.Round(asset, value.Add(delta), scale, amount.ToNearest)
	if v.Sign() < 0 {
		return zero
	}
	return v
}
