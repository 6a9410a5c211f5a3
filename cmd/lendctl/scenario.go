package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"lendledger/core/amount"
	"lendledger/core/txn"
	"lendledger/native/lending"
)

// Scenario seeds a ledger and replays a sequence of loan operations.
type Scenario struct {
	Asset    AssetSpec         `yaml:"asset"`
	Accounts map[string]string `yaml:"accounts"`
	Steps    []Step            `yaml:"steps"`
}

// AssetSpec names the single asset the scenario moves.
type AssetSpec struct {
	Code     string `yaml:"code"`
	Integral bool   `yaml:"integral"`
}

// Step is one ledger transaction. Vaults, brokers and loans are referred to
// by the name given in the step that created them.
type Step struct {
	At      uint32 `yaml:"at"`
	Op      string `yaml:"op"`
	Name    string `yaml:"name"`
	Account string `yaml:"account"`
	Vault   string `yaml:"vault"`
	Broker  string `yaml:"broker"`
	Loan    string `yaml:"loan"`
	Amount  string `yaml:"amount"`
	Kind    string `yaml:"kind"`
	Action  string `yaml:"action"`
	// Expect names the failure the step must produce, e.g. "too soon".
	Expect string `yaml:"expect"`

	Sequence             uint32 `yaml:"sequence"`
	ManagementFeeRate    uint32 `yaml:"management_fee_rate"`
	CoverRateMinimum     uint32 `yaml:"cover_rate_minimum"`
	CoverRateLiquidation uint32 `yaml:"cover_rate_liquidation"`
	DebtMaximum          string `yaml:"debt_maximum"`

	Terms *LoanTerms `yaml:"terms"`
}

// LoanTerms are the origination parameters of a loan.
type LoanTerms struct {
	Borrower                string `yaml:"borrower"`
	Principal               string `yaml:"principal"`
	InterestRate            uint32 `yaml:"interest_rate"`
	LateInterestRate        uint32 `yaml:"late_interest_rate"`
	CloseInterestRate       uint32 `yaml:"close_interest_rate"`
	OverpaymentInterestRate uint32 `yaml:"overpayment_interest_rate"`
	OverpaymentFee          uint32 `yaml:"overpayment_fee"`
	OriginationFee          string `yaml:"origination_fee"`
	ServiceFee              string `yaml:"service_fee"`
	LateFee                 string `yaml:"late_fee"`
	CloseFee                string `yaml:"close_fee"`
	PaymentInterval         uint32 `yaml:"payment_interval"`
	PaymentTotal            uint32 `yaml:"payment_total"`
	GracePeriod             uint32 `yaml:"grace_period"`
	AllowOverpayment        bool   `yaml:"allow_overpayment"`
}

// LoadScenario reads the YAML scenario from disk and validates the result.
func LoadScenario(path string) (*Scenario, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("scenario path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer file.Close()

	var sc Scenario
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	sc.normalize()
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) normalize() {
	sc.Asset.Code = strings.ToUpper(strings.TrimSpace(sc.Asset.Code))
	var at uint32
	for i := range sc.Steps {
		step := &sc.Steps[i]
		step.Op = strings.ToLower(strings.TrimSpace(step.Op))
		step.Name = strings.TrimSpace(step.Name)
		step.Kind = strings.ToLower(strings.TrimSpace(step.Kind))
		step.Action = strings.ToLower(strings.TrimSpace(step.Action))
		step.Expect = strings.ToLower(strings.TrimSpace(step.Expect))
		if step.Kind == "" {
			step.Kind = lending.PaymentRegular.String()
		}
		// Steps without a time run at the time of the step before them.
		if step.At == 0 {
			step.At = at
		}
		at = step.At
	}
}

func (sc *Scenario) validate() error {
	if sc.Asset.Code == "" {
		return fmt.Errorf("asset: code is required")
	}
	for name, bal := range sc.Accounts {
		if _, err := parseAmount(bal); err != nil {
			return fmt.Errorf("accounts: %s: %w", name, err)
		}
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("steps: at least one step is required")
	}
	for i, step := range sc.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("steps[%d] (%s): %w", i, step.Op, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	switch txn.Kind(s.Op) {
	case txn.KindCreateVault, txn.KindCreateBroker, txn.KindOriginate:
		if s.Name == "" {
			return fmt.Errorf("name is required")
		}
	case txn.KindDepositVault, txn.KindDepositCover, txn.KindWithdrawCover, txn.KindManage, txn.KindDeleteLoan, txn.KindDeleteBroker:
	case txn.KindPay:
		if _, ok := lending.ParsePaymentKind(s.Kind); !ok {
			return fmt.Errorf("unknown payment kind %q", s.Kind)
		}
	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
	if txn.Kind(s.Op) == txn.KindManage {
		if _, ok := lending.ParseManageAction(s.Action); !ok {
			return fmt.Errorf("unknown action %q", s.Action)
		}
	}
	if txn.Kind(s.Op) == txn.KindOriginate && s.Terms == nil {
		return fmt.Errorf("terms are required")
	}
	return nil
}

func (sc *Scenario) asset() amount.Asset {
	return amount.Asset{Code: sc.Asset.Code, Integral: sc.Asset.Integral}
}

// parseAmount reads an optional decimal. Empty strings are zero.
func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if v.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("negative amount %q", raw)
	}
	return v, nil
}
