package lending

import (
	"fmt"

	"lendledger/core/amount"
)

const (
	// SecondsPerYear converts annual rates to per-second rates.
	SecondsPerYear = 31_536_000
	// MaxPaymentsPerTransaction bounds how many scheduled payments one
	// payment request may settle.
	MaxPaymentsPerTransaction = 100
	// PaymentsPerFeeIncrement is the number of scheduled payments covered by
	// one unit of processing fee.
	PaymentsPerFeeIncrement = 5
)

// Config captures the protocol limits for loan origination.
type Config struct {
	MaxManagementFeeRate       amount.TenthBips `toml:"MaxManagementFeeRate"`
	MaxCoverRate               amount.TenthBips `toml:"MaxCoverRate"`
	MaxInterestRate            amount.TenthBips `toml:"MaxInterestRate"`
	MaxLateInterestRate        amount.TenthBips `toml:"MaxLateInterestRate"`
	MaxCloseInterestRate       amount.TenthBips `toml:"MaxCloseInterestRate"`
	MaxOverpaymentInterestRate amount.TenthBips `toml:"MaxOverpaymentInterestRate"`
	MaxOverpaymentFeeRate      amount.TenthBips `toml:"MaxOverpaymentFeeRate"`
	MinPaymentInterval         uint32           `toml:"MinPaymentInterval"`
	DefaultPaymentInterval     uint32           `toml:"DefaultPaymentInterval"`
	DefaultPaymentTotal        uint32           `toml:"DefaultPaymentTotal"`
	DefaultGracePeriod         uint32           `toml:"DefaultGracePeriod"`
}

// DefaultConfig returns the protocol defaults.
func DefaultConfig() Config {
	return Config{
		MaxManagementFeeRate:       10_000,
		MaxCoverRate:               amount.TenthBipsPerUnity,
		MaxInterestRate:            amount.TenthBipsPerUnity,
		MaxLateInterestRate:        amount.TenthBipsPerUnity,
		MaxCloseInterestRate:       amount.TenthBipsPerUnity,
		MaxOverpaymentInterestRate: amount.TenthBipsPerUnity,
		MaxOverpaymentFeeRate:      amount.TenthBipsPerUnity,
		MinPaymentInterval:         60,
		DefaultPaymentInterval:     60,
		DefaultPaymentTotal:        1,
		DefaultGracePeriod:         60,
	}
}

// Validate checks that the limits are internally consistent.
func (c Config) Validate() error {
	rates := []struct {
		name  string
		value amount.TenthBips
	}{
		{"MaxManagementFeeRate", c.MaxManagementFeeRate},
		{"MaxCoverRate", c.MaxCoverRate},
		{"MaxInterestRate", c.MaxInterestRate},
		{"MaxLateInterestRate", c.MaxLateInterestRate},
		{"MaxCloseInterestRate", c.MaxCloseInterestRate},
		{"MaxOverpaymentInterestRate", c.MaxOverpaymentInterestRate},
		{"MaxOverpaymentFeeRate", c.MaxOverpaymentFeeRate},
	}
	for _, r := range rates {
		if r.value > amount.TenthBipsPerUnity {
			return fmt.Errorf("%s %d exceeds %d", r.name, r.value, amount.TenthBipsPerUnity)
		}
	}
	if c.MinPaymentInterval == 0 {
		return fmt.Errorf("MinPaymentInterval must be positive")
	}
	if c.DefaultPaymentInterval < c.MinPaymentInterval {
		return fmt.Errorf("DefaultPaymentInterval %d below MinPaymentInterval %d", c.DefaultPaymentInterval, c.MinPaymentInterval)
	}
	if c.DefaultPaymentTotal == 0 {
		return fmt.Errorf("DefaultPaymentTotal must be positive")
	}
	if c.DefaultGracePeriod > c.DefaultPaymentInterval {
		return fmt.Errorf("DefaultGracePeriod %d exceeds DefaultPaymentInterval %d", c.DefaultGracePeriod, c.DefaultPaymentInterval)
	}
	return nil
}
