package lending

import (
	"github.com/shopspring/decimal"

	"lendledger/core/amount"
	"lendledger/crypto"
)

// Transfer moves an amount of the vault asset between two accounts.
type Transfer struct {
	From   crypto.Address
	To     crypto.Address
	Amount decimal.Decimal
}

func appendTransfer(transfers []Transfer, from, to crypto.Address, amt decimal.Decimal) []Transfer {
	if amt.Sign() <= 0 {
		return transfers
	}
	return append(transfers, Transfer{From: from, To: to, Amount: amt})
}

// Settlement is a payment applied to a position: the new records, how the
// payment was split and the asset movements that realize it.
type Settlement struct {
	Position    Position
	Parts       PaymentParts
	ToVault     decimal.Decimal
	ToBroker    decimal.Decimal
	FeeToOwner  bool
	Transfers   []Transfer
	Overpayment *OverpaymentResult
}

// SettlePayment takes amt from payer against the position's loan and updates
// the broker and vault aggregates to match. The broker's fee goes to its
// owner while the broker holds its minimum cover, and into the cover pool
// otherwise. An impaired loan is unimpaired before the payment is applied.
func SettlePayment(p Position, payer crypto.Address, amt decimal.Decimal, kind PaymentKind, now uint32) (Settlement, error) {
	const op = "settle payment"
	asset := p.Vault.Asset
	feeToOwner := p.Broker.CoverAvailable.GreaterThanOrEqual(p.Broker.MinimumCover(asset, p.Loan.LoanScale))

	if p.Loan.Impaired() && !p.Loan.Defaulted() {
		next, err := Unimpair(p, now)
		if err != nil {
			return Settlement{}, err
		}
		p = next
	}

	result, err := MakePayment(asset, p.Loan, p.Broker.ManagementFeeRate, amt, kind, now)
	if err != nil {
		return Settlement{}, err
	}
	parts := result.Parts
	if parts.PrincipalPaid.Sign() < 0 || parts.InterestPaid.Sign() < 0 || parts.FeePaid.Sign() < 0 {
		return Settlement{}, fail(CodeLimitExceeded, op, "negative payment component")
	}

	broker, vault := p.Broker, p.Vault
	vaultScale := vault.Scale()
	toVaultRaw := parts.PrincipalPaid.Add(parts.InterestPaid)
	toVault := amount.Round(asset, toVaultRaw, vaultScale, amount.Downward)
	broker.DebtTotal = adjustImprecise(asset, broker.DebtTotal, toVaultRaw.Sub(parts.ValueChange).Neg(), vaultScale)

	vault.AssetsAvailable = vault.AssetsAvailable.Add(toVault)
	vault.AssetsTotal = vault.AssetsTotal.Add(parts.ValueChange)
	if vault.AssetsAvailable.GreaterThan(vault.AssetsTotal) {
		return Settlement{}, fail(CodeInternal, op, "vault available %s exceeds total %s", vault.AssetsAvailable, vault.AssetsTotal)
	}

	payee := broker.Owner
	if !feeToOwner {
		payee = broker.Account
		broker.CoverAvailable = broker.CoverAvailable.Add(parts.FeePaid)
	}
	var transfers []Transfer
	transfers = appendTransfer(transfers, payer, vault.Account, toVault)
	transfers = appendTransfer(transfers, payer, payee, parts.FeePaid)

	return Settlement{
		Position:    Position{Loan: result.Loan, Broker: broker, Vault: vault},
		Parts:       parts,
		ToVault:     toVault,
		ToBroker:    parts.FeePaid,
		FeeToOwner:  feeToOwner,
		Transfers:   transfers,
		Overpayment: result.Overpayment,
	}, nil
}

// DefaultTransfers returns the movement of covered first-loss capital from
// the broker's pseudo-account to the vault's.
func DefaultTransfers(p Position, covered decimal.Decimal) []Transfer {
	return appendTransfer(nil, p.Broker.Account, p.Vault.Account, covered)
}
