package txn

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
	"lukechampine.com/blake3"

	"lendledger/core/amount"
	"lendledger/crypto"
	"lendledger/native/lending"
)

// Kind names a ledger transaction type.
type Kind string

const (
	KindCreateVault   Kind = "create_vault"
	KindDepositVault  Kind = "deposit_vault"
	KindCreateBroker  Kind = "create_broker"
	KindDepositCover  Kind = "deposit_cover"
	KindWithdrawCover Kind = "withdraw_cover"
	KindOriginate     Kind = "originate"
	KindPay           Kind = "pay"
	KindManage        Kind = "manage"
	KindDeleteLoan    Kind = "delete_loan"
	KindDeleteBroker  Kind = "delete_broker"
)

// Tx is a single ledger transaction. Only the fields its Kind reads need to
// be set.
type Tx struct {
	Kind Kind
	// Time is the ledger close time the transaction executes at.
	Time    uint32
	Account crypto.Address

	Asset    amount.Asset
	Sequence uint32

	VaultID  lending.ID
	BrokerID lending.ID
	LoanID   lending.ID

	Amount  decimal.Decimal
	Payment lending.PaymentKind
	Action  lending.ManageAction

	Broker *lending.BrokerRequest
	Loan   *lending.OriginationRequest
}

// Validate checks that the fields the transaction kind requires are present.
func (tx *Tx) Validate() error {
	if tx == nil {
		return fmt.Errorf("txn: nil transaction")
	}
	switch tx.Kind {
	case KindCreateVault, KindDeleteBroker:
		if tx.Account.IsZero() {
			return fmt.Errorf("txn: %s requires an owner account", tx.Kind)
		}
	case KindDepositVault, KindDepositCover, KindWithdrawCover, KindPay:
		if tx.Account.IsZero() {
			return fmt.Errorf("txn: %s requires an account", tx.Kind)
		}
	case KindCreateBroker:
		if tx.Broker == nil {
			return fmt.Errorf("txn: %s requires a broker request", tx.Kind)
		}
	case KindOriginate:
		if tx.Loan == nil {
			return fmt.Errorf("txn: %s requires a loan request", tx.Kind)
		}
	case KindManage, KindDeleteLoan:
	default:
		return fmt.Errorf("txn: unknown kind %q", tx.Kind)
	}
	return nil
}

// hash derives the transaction identifier from its kind, its close time and
// the processor's running nonce.
func (tx *Tx) hash(nonce uint64) string {
	h := blake3.New(32, nil)
	_, _ = h.Write([]byte(tx.Kind))
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[:4], tx.Time)
	binary.BigEndian.PutUint64(buf[4:], nonce)
	_, _ = h.Write(buf[:])
	_, _ = h.Write(tx.Account.Bytes())
	_, _ = h.Write(tx.LoanID[:])
	_, _ = h.Write(tx.BrokerID[:])
	return hex.EncodeToString(h.Sum(nil))
}
