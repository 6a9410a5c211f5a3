package state

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/shopspring/decimal"

	"lendledger/core/amount"
	"lendledger/crypto"
	"lendledger/native/lending"
)

// Manager stores lending records and account balances in a key-value store.
// It satisfies the lending engine's state interface.
type Manager struct {
	kv KV
}

// NewManager creates a state manager operating on the provided store.
func NewManager(kv KV) *Manager {
	return &Manager{kv: kv}
}

// load decodes the record under key into out. The boolean reports whether
// the key existed.
func (m *Manager) load(key []byte, out interface{}) (bool, error) {
	data, err := m.kv.Get(key)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) store(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.kv.Put(key, encoded)
}

// GetVault returns the vault stored under id, or nil when absent.
func (m *Manager) GetVault(id lending.ID) (*lending.Vault, error) {
	stored := new(storedVault)
	ok, err := m.load(VaultKey(id), stored)
	if err != nil || !ok {
		return nil, err
	}
	return stored.vault()
}

// PutVault stores the vault record.
func (m *Manager) PutVault(v *lending.Vault) error {
	if v == nil {
		return fmt.Errorf("state: nil vault")
	}
	return m.store(VaultKey(v.ID), newStoredVault(v))
}

// GetBroker returns the broker stored under id, or nil when absent.
func (m *Manager) GetBroker(id lending.ID) (*lending.Broker, error) {
	stored := new(storedBroker)
	ok, err := m.load(BrokerKey(id), stored)
	if err != nil || !ok {
		return nil, err
	}
	return stored.broker()
}

// PutBroker stores the broker record.
func (m *Manager) PutBroker(b *lending.Broker) error {
	if b == nil {
		return fmt.Errorf("state: nil broker")
	}
	return m.store(BrokerKey(b.ID), newStoredBroker(b))
}

// DeleteBroker removes the broker record together with its loan index.
func (m *Manager) DeleteBroker(id lending.ID) error {
	if err := m.kv.Delete(BrokerKey(id)); err != nil {
		return err
	}
	return m.kv.Delete(BrokerLoansKey(id))
}

// GetLoan returns the loan stored under id, or nil when absent.
func (m *Manager) GetLoan(id lending.ID) (*lending.Loan, error) {
	stored := new(storedLoan)
	ok, err := m.load(LoanKey(id), stored)
	if err != nil || !ok {
		return nil, err
	}
	return stored.loan()
}

// PutLoan stores the loan record and indexes it under its broker.
func (m *Manager) PutLoan(l *lending.Loan) error {
	if l == nil {
		return fmt.Errorf("state: nil loan")
	}
	if err := m.store(LoanKey(l.ID), newStoredLoan(l)); err != nil {
		return err
	}
	return m.indexLoan(l.BrokerID, l.ID, true)
}

// DeleteLoan removes the loan record and its index entry.
func (m *Manager) DeleteLoan(id lending.ID) error {
	loan, err := m.GetLoan(id)
	if err != nil {
		return err
	}
	if loan == nil {
		return nil
	}
	if err := m.kv.Delete(LoanKey(id)); err != nil {
		return err
	}
	return m.indexLoan(loan.BrokerID, id, false)
}

// BrokerLoans lists the ids of every stored loan of a broker in creation
// order.
func (m *Manager) BrokerLoans(broker lending.ID) ([]lending.ID, error) {
	var list [][]byte
	if _, err := m.load(BrokerLoansKey(broker), &list); err != nil {
		return nil, err
	}
	ids := make([]lending.ID, 0, len(list))
	for _, raw := range list {
		var id lending.ID
		copy(id[:], raw)
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Manager) indexLoan(broker, loan lending.ID, add bool) error {
	key := BrokerLoansKey(broker)
	var list [][]byte
	if _, err := m.load(key, &list); err != nil {
		return err
	}
	pos := -1
	for i, existing := range list {
		if bytes.Equal(existing, loan[:]) {
			pos = i
			break
		}
	}
	switch {
	case add && pos < 0:
		list = append(list, append([]byte(nil), loan[:]...))
	case !add && pos >= 0:
		list = append(list[:pos], list[pos+1:]...)
	default:
		return nil
	}
	return m.store(key, list)
}

// Balance retrieves the balance of addr in asset. Unknown accounts hold zero.
func (m *Manager) Balance(asset amount.Asset, addr crypto.Address) (decimal.Decimal, error) {
	var raw string
	ok, err := m.load(BalanceKey(asset.Code, addr), &raw)
	if err != nil || !ok {
		return decimal.Zero, err
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("state: decode balance: %w", err)
	}
	return v, nil
}

// SetBalance stores an account balance for the provided asset.
func (m *Manager) SetBalance(asset amount.Asset, addr crypto.Address, value decimal.Decimal) error {
	if addr.IsZero() {
		return fmt.Errorf("address must not be empty")
	}
	if strings.TrimSpace(asset.Code) == "" {
		return fmt.Errorf("asset code must not be empty")
	}
	if value.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	return m.store(BalanceKey(asset.Code, addr), value.String())
}

// Credit adds value to the balance of addr.
func (m *Manager) Credit(asset amount.Asset, addr crypto.Address, value decimal.Decimal) error {
	current, err := m.Balance(asset, addr)
	if err != nil {
		return err
	}
	return m.SetBalance(asset, addr, current.Add(value))
}

// Transfer moves value of asset between two accounts.
func (m *Manager) Transfer(asset amount.Asset, from, to crypto.Address, value decimal.Decimal) error {
	if value.Sign() < 0 {
		return fmt.Errorf("state: negative transfer %s", value)
	}
	if value.IsZero() || from == to {
		return nil
	}
	balance, err := m.Balance(asset, from)
	if err != nil {
		return err
	}
	if balance.LessThan(value) {
		return fmt.Errorf("state: %s holds %s %s, cannot send %s", from, balance, asset.Code, value)
	}
	if err := m.SetBalance(asset, from, balance.Sub(value)); err != nil {
		return err
	}
	return m.Credit(asset, to, value)
}
