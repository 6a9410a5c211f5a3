package lending

import (
	"testing"

	"github.com/shopspring/decimal"

	"lendledger/core/amount"
	"lendledger/crypto"
)

const start uint32 = 1_000

var (
	usd    = amount.Asset{Code: "USD"}
	points = amount.Asset{Code: "PTS", Integral: true}
)

func makeAddress(prefix crypto.AddressPrefix, b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	for i := range raw {
		raw[i] = b
	}
	return crypto.MustNewAddress(prefix, raw)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fundedBroker returns a vault holding funds and a broker over it with the
// given cover. Minimum and liquidation cover rates are both 10%.
func fundedBroker(asset amount.Asset, funds, cover string, managementFeeRate amount.TenthBips) (Broker, Vault) {
	vault := NewVault(makeAddress(crypto.AccountPrefix, 0x01), asset, 1)
	vault.AssetsTotal = dec(funds)
	vault.AssetsAvailable = dec(funds)
	broker := NewBroker(makeAddress(crypto.AccountPrefix, 0x02), vault.ID, 1, managementFeeRate, 10_000, 10_000)
	broker.CoverAvailable = dec(cover)
	return broker, vault
}

// pointsRequest is an interest-free loan of 1200 units repaid in twelve
// payments of 100 every ten minutes.
func pointsRequest() OriginationRequest {
	return OriginationRequest{
		Borrower:         makeAddress(crypto.AccountPrefix, 0x03),
		Principal:        dec("1200"),
		PaymentInterval:  600,
		PaymentTotal:     12,
		GracePeriod:      60,
		AllowOverpayment: true,
	}
}

// usdRequest is 1000 USD at 12% a year repaid in twelve ten-minute periods.
func usdRequest() OriginationRequest {
	return OriginationRequest{
		Borrower:        makeAddress(crypto.AccountPrefix, 0x04),
		Principal:       dec("1000"),
		InterestRate:    12_000,
		PaymentInterval: 600,
		PaymentTotal:    12,
		GracePeriod:     60,
	}
}

func originate(t *testing.T, asset amount.Asset, req OriginationRequest) Position {
	t.Helper()
	broker, vault := fundedBroker(asset, "10000", "200", 0)
	return originateWith(t, broker, vault, req)
}

func originateWith(t *testing.T, broker Broker, vault Vault, req OriginationRequest) Position {
	t.Helper()
	orig, err := Originate(DefaultConfig(), broker, vault, req, start)
	if err != nil {
		t.Fatalf("originate: %v", err)
	}
	return orig.Position
}

func requireCode(t *testing.T, err error, want *Error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want.Code)
	}
	code, ok := CodeOf(err)
	if !ok || code != want.Code {
		t.Fatalf("expected %s error, got %v", want.Code, err)
	}
}
