package state

import (
	"fmt"

	"github.com/shopspring/decimal"

	"lendledger/core/amount"
	"lendledger/crypto"
	"lendledger/native/lending"
)

// The stored forms keep decimals as strings, addresses in bech32 and the
// signed loan scale bit-cast to uint32, since RLP has no signed integers.

type storedVault struct {
	ID              [32]byte
	Owner           string
	Account         string
	AssetCode       string
	AssetIntegral   bool
	AssetsTotal     string
	AssetsAvailable string
	LossUnrealized  string
}

type storedBroker struct {
	ID                   [32]byte
	VaultID              [32]byte
	Owner                string
	Account              string
	ManagementFeeRate    uint32
	CoverRateMinimum     uint32
	CoverRateLiquidation uint32
	DebtTotal            string
	DebtMaximum          string
	CoverAvailable       string
	LoanSequence         uint32
	OwnerCount           uint32
}

type storedLoan struct {
	ID                       [32]byte
	BrokerID                 [32]byte
	Sequence                 uint32
	Borrower                 string
	Flags                    uint32
	LoanScale                uint32
	StartDate                uint32
	PaymentInterval          uint32
	GracePeriod              uint32
	PreviousPaymentDate      uint32
	NextPaymentDueDate       uint32
	PaymentTotal             uint32
	PaymentRemaining         uint32
	PeriodicPayment          string
	PrincipalOutstanding     string
	TotalValueOutstanding    string
	ManagementFeeOutstanding string
	InterestRate             uint32
	LateInterestRate         uint32
	CloseInterestRate        uint32
	OverpaymentInterestRate  uint32
	OverpaymentFee           uint32
	OriginationFee           string
	ServiceFee               string
	LateFee                  string
	CloseFee                 string
}

func newStoredVault(v *lending.Vault) *storedVault {
	return &storedVault{
		ID:              v.ID,
		Owner:           v.Owner.String(),
		Account:         v.Account.String(),
		AssetCode:       v.Asset.Code,
		AssetIntegral:   v.Asset.Integral,
		AssetsTotal:     v.AssetsTotal.String(),
		AssetsAvailable: v.AssetsAvailable.String(),
		LossUnrealized:  v.LossUnrealized.String(),
	}
}

func (s *storedVault) vault() (*lending.Vault, error) {
	var d decoder
	v := &lending.Vault{
		ID:              s.ID,
		Owner:           d.address(s.Owner),
		Account:         d.address(s.Account),
		Asset:           amount.Asset{Code: s.AssetCode, Integral: s.AssetIntegral},
		AssetsTotal:     d.decimal(s.AssetsTotal),
		AssetsAvailable: d.decimal(s.AssetsAvailable),
		LossUnrealized:  d.decimal(s.LossUnrealized),
	}
	if d.err != nil {
		return nil, fmt.Errorf("state: decode vault %s: %w", lending.ID(s.ID), d.err)
	}
	return v, nil
}

func newStoredBroker(b *lending.Broker) *storedBroker {
	return &storedBroker{
		ID:                   b.ID,
		VaultID:              b.VaultID,
		Owner:                b.Owner.String(),
		Account:              b.Account.String(),
		ManagementFeeRate:    uint32(b.ManagementFeeRate),
		CoverRateMinimum:     uint32(b.CoverRateMinimum),
		CoverRateLiquidation: uint32(b.CoverRateLiquidation),
		DebtTotal:            b.DebtTotal.String(),
		DebtMaximum:          b.DebtMaximum.String(),
		CoverAvailable:       b.CoverAvailable.String(),
		LoanSequence:         b.LoanSequence,
		OwnerCount:           b.OwnerCount,
	}
}

func (s *storedBroker) broker() (*lending.Broker, error) {
	var d decoder
	b := &lending.Broker{
		ID:                   s.ID,
		VaultID:              s.VaultID,
		Owner:                d.address(s.Owner),
		Account:              d.address(s.Account),
		ManagementFeeRate:    amount.TenthBips(s.ManagementFeeRate),
		CoverRateMinimum:     amount.TenthBips(s.CoverRateMinimum),
		CoverRateLiquidation: amount.TenthBips(s.CoverRateLiquidation),
		DebtTotal:            d.decimal(s.DebtTotal),
		DebtMaximum:          d.decimal(s.DebtMaximum),
		CoverAvailable:       d.decimal(s.CoverAvailable),
		LoanSequence:         s.LoanSequence,
		OwnerCount:           s.OwnerCount,
	}
	if d.err != nil {
		return nil, fmt.Errorf("state: decode broker %s: %w", lending.ID(s.ID), d.err)
	}
	return b, nil
}

func newStoredLoan(l *lending.Loan) *storedLoan {
	return &storedLoan{
		ID:                       l.ID,
		BrokerID:                 l.BrokerID,
		Sequence:                 l.Sequence,
		Borrower:                 l.Borrower.String(),
		Flags:                    uint32(l.Flags),
		LoanScale:                uint32(l.LoanScale),
		StartDate:                l.StartDate,
		PaymentInterval:          l.PaymentInterval,
		GracePeriod:              l.GracePeriod,
		PreviousPaymentDate:      l.PreviousPaymentDate,
		NextPaymentDueDate:       l.NextPaymentDueDate,
		PaymentTotal:             l.PaymentTotal,
		PaymentRemaining:         l.PaymentRemaining,
		PeriodicPayment:          l.PeriodicPayment.String(),
		PrincipalOutstanding:     l.PrincipalOutstanding.String(),
		TotalValueOutstanding:    l.TotalValueOutstanding.String(),
		ManagementFeeOutstanding: l.ManagementFeeOutstanding.String(),
		InterestRate:             uint32(l.InterestRate),
		LateInterestRate:         uint32(l.LateInterestRate),
		CloseInterestRate:        uint32(l.CloseInterestRate),
		OverpaymentInterestRate:  uint32(l.OverpaymentInterestRate),
		OverpaymentFee:           uint32(l.OverpaymentFee),
		OriginationFee:           l.OriginationFee.String(),
		ServiceFee:               l.ServiceFee.String(),
		LateFee:                  l.LateFee.String(),
		CloseFee:                 l.CloseFee.String(),
	}
}

func (s *storedLoan) loan() (*lending.Loan, error) {
	var d decoder
	l := &lending.Loan{
		ID:                       s.ID,
		BrokerID:                 s.BrokerID,
		Sequence:                 s.Sequence,
		Borrower:                 d.address(s.Borrower),
		Flags:                    lending.LoanFlags(s.Flags),
		LoanScale:                int32(s.LoanScale),
		StartDate:                s.StartDate,
		PaymentInterval:          s.PaymentInterval,
		GracePeriod:              s.GracePeriod,
		PreviousPaymentDate:      s.PreviousPaymentDate,
		NextPaymentDueDate:       s.NextPaymentDueDate,
		PaymentTotal:             s.PaymentTotal,
		PaymentRemaining:         s.PaymentRemaining,
		PeriodicPayment:          d.decimal(s.PeriodicPayment),
		PrincipalOutstanding:     d.decimal(s.PrincipalOutstanding),
		TotalValueOutstanding:    d.decimal(s.TotalValueOutstanding),
		ManagementFeeOutstanding: d.decimal(s.ManagementFeeOutstanding),
		InterestRate:             amount.TenthBips(s.InterestRate),
		LateInterestRate:         amount.TenthBips(s.LateInterestRate),
		CloseInterestRate:        amount.TenthBips(s.CloseInterestRate),
		OverpaymentInterestRate:  amount.TenthBips(s.OverpaymentInterestRate),
		OverpaymentFee:           amount.TenthBips(s.OverpaymentFee),
		OriginationFee:           d.decimal(s.OriginationFee),
		ServiceFee:               d.decimal(s.ServiceFee),
		LateFee:                  d.decimal(s.LateFee),
		CloseFee:                 d.decimal(s.CloseFee),
	}
	if d.err != nil {
		return nil, fmt.Errorf("state: decode loan %s: %w", lending.ID(s.ID), d.err)
	}
	return l, nil
}

// decoder keeps the first conversion error so record decoding reads as a
// single struct literal.
type decoder struct {
	err error
}

func (d *decoder) decimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil && d.err == nil {
		d.err = err
	}
	return v
}

func (d *decoder) address(s string) crypto.Address {
	var addr crypto.Address
	if err := addr.UnmarshalText([]byte(s)); err != nil && d.err == nil {
		d.err = err
	}
	return addr
}
