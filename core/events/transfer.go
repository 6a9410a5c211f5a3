package events

import (
	"strings"

	"github.com/shopspring/decimal"

	"lendledger/crypto"
)

const (
	// TypeTransfer is emitted for every asset balance movement.
	TypeTransfer = "transfer.asset"
)

// Transfer describes an asset movement between two accounts.
type Transfer struct {
	Asset  string
	From   crypto.Address
	To     crypto.Address
	Amount decimal.Decimal
	Reason string
}

func (Transfer) EventType() string { return TypeTransfer }

// Record flattens the transfer into its canonical payload.
func (e Transfer) Record() *Record {
	attrs := map[string]string{
		"from":   e.From.String(),
		"to":     e.To.String(),
		"amount": e.Amount.String(),
	}
	if asset := strings.TrimSpace(e.Asset); asset != "" {
		attrs["asset"] = asset
	}
	if reason := strings.TrimSpace(e.Reason); reason != "" {
		attrs["reason"] = reason
	}
	return &Record{Type: TypeTransfer, Attributes: attrs}
}
