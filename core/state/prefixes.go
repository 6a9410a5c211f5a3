package state

import (
	"strings"

	"lendledger/crypto"
	"lendledger/native/lending"
)

var (
	vaultPrefix       = []byte("lending/vault/")
	brokerPrefix      = []byte("lending/broker/")
	loanPrefix        = []byte("lending/loan/")
	brokerLoansPrefix = []byte("lending/broker-loans/")
	balancePrefix     = []byte("balance/")
)

func recordKey(prefix []byte, id lending.ID) []byte {
	buf := make([]byte, len(prefix)+len(id))
	copy(buf, prefix)
	copy(buf[len(prefix):], id[:])
	return buf
}

// VaultKey is the storage key of a vault record.
func VaultKey(id lending.ID) []byte { return recordKey(vaultPrefix, id) }

// BrokerKey is the storage key of a broker record.
func BrokerKey(id lending.ID) []byte { return recordKey(brokerPrefix, id) }

// LoanKey is the storage key of a loan record.
func LoanKey(id lending.ID) []byte { return recordKey(loanPrefix, id) }

// BrokerLoansKey is the storage key of a broker's loan index.
func BrokerLoansKey(id lending.ID) []byte { return recordKey(brokerLoansPrefix, id) }

// BalanceKey is the storage key of an account balance in one asset.
func BalanceKey(asset string, addr crypto.Address) []byte {
	code := strings.ToUpper(strings.TrimSpace(asset))
	encoded := addr.String()
	buf := make([]byte, 0, len(balancePrefix)+len(code)+1+len(encoded))
	buf = append(buf, balancePrefix...)
	buf = append(buf, code...)
	buf = append(buf, '/')
	buf = append(buf, encoded...)
	return buf
}
