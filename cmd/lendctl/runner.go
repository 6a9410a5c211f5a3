package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"lendledger/core/amount"
	"lendledger/core/state"
	"lendledger/core/txn"
	"lendledger/crypto"
	"lendledger/native/lending"
)

// Report is the JSON document printed after a scenario run.
type Report struct {
	Steps    []StepResult          `json:"steps"`
	Accounts map[string]string     `json:"accounts"`
	Vaults   map[string]VaultView  `json:"vaults"`
	Brokers  map[string]BrokerView `json:"brokers"`
	Loans    map[string]LoanView   `json:"loans"`
}

// StepResult records how one step went.
type StepResult struct {
	Index         int    `json:"index"`
	Op            string `json:"op"`
	At            uint32 `json:"at"`
	TxID          string `json:"txId,omitempty"`
	FeeIncrements uint32 `json:"feeIncrements,omitempty"`
	Periods       uint32 `json:"periods,omitempty"`
	Covered       string `json:"covered,omitempty"`
	Overpayment   string `json:"overpayment,omitempty"`
	Error         string `json:"error,omitempty"`
}

type VaultView struct {
	ID              string `json:"id"`
	AssetsTotal     string `json:"assetsTotal"`
	AssetsAvailable string `json:"assetsAvailable"`
	LossUnrealized  string `json:"lossUnrealized"`
	Balance         string `json:"balance"`
}

type BrokerView struct {
	ID             string `json:"id"`
	Deleted        bool   `json:"deleted,omitempty"`
	DebtTotal      string `json:"debtTotal"`
	CoverAvailable string `json:"coverAvailable"`
	OwnerCount     uint32 `json:"ownerCount"`
	Balance        string `json:"balance"`
}

type LoanView struct {
	ID                       string `json:"id"`
	Deleted                  bool   `json:"deleted,omitempty"`
	Impaired                 bool   `json:"impaired,omitempty"`
	Defaulted                bool   `json:"defaulted,omitempty"`
	PaymentRemaining         uint32 `json:"paymentRemaining"`
	NextPaymentDueDate       uint32 `json:"nextPaymentDueDate"`
	PeriodicPayment          string `json:"periodicPayment"`
	PrincipalOutstanding     string `json:"principalOutstanding"`
	TotalValueOutstanding    string `json:"totalValueOutstanding"`
	ManagementFeeOutstanding string `json:"managementFeeOutstanding"`
}

type runner struct {
	sc       *Scenario
	proc     *txn.Processor
	asset    amount.Asset
	accounts map[string]crypto.Address
	vaults   map[string]lending.ID
	brokers  map[string]lending.ID
	loans    map[string]lending.ID
	// covers keeps each broker's pseudo-account so it can be reported after
	// the broker is deleted.
	covers map[string]crypto.Address
}

// accountAddress derives the ledger address behind a scenario account name.
func accountAddress(name string) crypto.Address {
	return crypto.DeriveAddress(crypto.AccountPrefix, "lendctl/account", []byte(name))
}

func newRunner(sc *Scenario, proc *txn.Processor) *runner {
	r := &runner{
		sc:       sc,
		proc:     proc,
		asset:    sc.asset(),
		accounts: make(map[string]crypto.Address, len(sc.Accounts)),
		vaults:   make(map[string]lending.ID),
		brokers:  make(map[string]lending.ID),
		loans:    make(map[string]lending.ID),
		covers:   make(map[string]crypto.Address),
	}
	for name := range sc.Accounts {
		r.accounts[name] = accountAddress(name)
	}
	return r
}

// Run seeds the scenario accounts, applies every step and snapshots the
// resulting ledger.
func (r *runner) Run(ctx context.Context) (*Report, error) {
	err := r.proc.Seed(func(m *state.Manager) error {
		for name, raw := range r.sc.Accounts {
			bal, err := parseAmount(raw)
			if err != nil {
				return err
			}
			if bal.IsZero() {
				continue
			}
			if err := m.Credit(r.asset, r.accounts[name], bal); err != nil {
				return fmt.Errorf("seed %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for i, step := range r.sc.Steps {
		result, err := r.apply(ctx, i, step)
		report.Steps = append(report.Steps, result)
		if err != nil {
			return report, err
		}
	}
	if err := r.snapshot(report); err != nil {
		return report, err
	}
	return report, nil
}

func (r *runner) apply(ctx context.Context, index int, step Step) (StepResult, error) {
	result := StepResult{Index: index, Op: step.Op, At: step.At}
	tx, err := r.build(step)
	if err != nil {
		return result, fmt.Errorf("step %d: %w", index, err)
	}
	receipt, err := r.proc.Apply(ctx, tx)
	if step.Expect != "" {
		code, ok := lending.CodeOf(err)
		if !ok || code.String() != step.Expect {
			return result, fmt.Errorf("step %d: expected %q, got %v", index, step.Expect, err)
		}
		result.Error = err.Error()
		return result, nil
	}
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("step %d: %w", index, err)
	}

	result.TxID = receipt.ID
	result.FeeIncrements = receipt.FeeIncrements
	switch tx.Kind {
	case txn.KindCreateVault:
		r.vaults[step.Name] = receipt.Vault.ID
	case txn.KindCreateBroker:
		r.brokers[step.Name] = receipt.Broker.ID
		r.covers[step.Name] = receipt.Broker.Account
	case txn.KindOriginate:
		r.loans[step.Name] = receipt.Loan.ID
	case txn.KindPay:
		result.Periods = receipt.Settlement.Parts.Periods
		if ovp := receipt.Settlement.Overpayment; ovp != nil {
			result.Overpayment = ovp.Outcome.String()
			if ovp.Reason != "" {
				result.Overpayment += ": " + ovp.Reason
			}
		}
	case txn.KindManage:
		if tx.Action == lending.ActionDefault {
			result.Covered = receipt.Transition.Covered.String()
		}
	}
	return result, nil
}

func (r *runner) build(step Step) (*txn.Tx, error) {
	tx := &txn.Tx{Kind: txn.Kind(step.Op), Time: step.At, Asset: r.asset, Sequence: step.Sequence}
	var err error
	if step.Account != "" {
		if tx.Account, err = r.account(step.Account); err != nil {
			return nil, err
		}
	}
	if tx.Amount, err = parseAmount(step.Amount); err != nil {
		return nil, err
	}
	switch tx.Kind {
	case txn.KindDepositVault:
		tx.VaultID, err = lookup(r.vaults, "vault", step.Vault)
	case txn.KindCreateBroker:
		req := &lending.BrokerRequest{
			Owner:                tx.Account,
			Sequence:             step.Sequence,
			ManagementFeeRate:    amount.TenthBips(step.ManagementFeeRate),
			CoverRateMinimum:     amount.TenthBips(step.CoverRateMinimum),
			CoverRateLiquidation: amount.TenthBips(step.CoverRateLiquidation),
		}
		if req.VaultID, err = lookup(r.vaults, "vault", step.Vault); err != nil {
			return nil, err
		}
		if req.DebtMaximum, err = parseAmount(step.DebtMaximum); err != nil {
			return nil, err
		}
		tx.Broker = req
	case txn.KindDepositCover, txn.KindWithdrawCover, txn.KindDeleteBroker:
		tx.BrokerID, err = lookup(r.brokers, "broker", step.Broker)
	case txn.KindOriginate:
		if tx.BrokerID, err = lookup(r.brokers, "broker", step.Broker); err != nil {
			return nil, err
		}
		tx.Loan, err = r.terms(step.Terms)
	case txn.KindPay:
		tx.Payment, _ = lending.ParsePaymentKind(step.Kind)
		tx.LoanID, err = lookup(r.loans, "loan", step.Loan)
	case txn.KindManage:
		tx.Action, _ = lending.ParseManageAction(step.Action)
		tx.LoanID, err = lookup(r.loans, "loan", step.Loan)
	case txn.KindDeleteLoan:
		tx.LoanID, err = lookup(r.loans, "loan", step.Loan)
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *runner) terms(t *LoanTerms) (*lending.OriginationRequest, error) {
	borrower, err := r.account(t.Borrower)
	if err != nil {
		return nil, err
	}
	req := &lending.OriginationRequest{
		Borrower:                borrower,
		InterestRate:            amount.TenthBips(t.InterestRate),
		LateInterestRate:        amount.TenthBips(t.LateInterestRate),
		CloseInterestRate:       amount.TenthBips(t.CloseInterestRate),
		OverpaymentInterestRate: amount.TenthBips(t.OverpaymentInterestRate),
		OverpaymentFee:          amount.TenthBips(t.OverpaymentFee),
		PaymentInterval:         t.PaymentInterval,
		PaymentTotal:            t.PaymentTotal,
		GracePeriod:             t.GracePeriod,
		AllowOverpayment:        t.AllowOverpayment,
	}
	fields := []struct {
		raw string
		dst *decimal.Decimal
	}{
		{t.Principal, &req.Principal},
		{t.OriginationFee, &req.OriginationFee},
		{t.ServiceFee, &req.ServiceFee},
		{t.LateFee, &req.LateFee},
		{t.CloseFee, &req.CloseFee},
	}
	for _, f := range fields {
		if *f.dst, err = parseAmount(f.raw); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func (r *runner) account(name string) (crypto.Address, error) {
	addr, ok := r.accounts[name]
	if !ok {
		return crypto.Address{}, fmt.Errorf("unknown account %q", name)
	}
	return addr, nil
}

func lookup(ids map[string]lending.ID, kind, name string) (lending.ID, error) {
	id, ok := ids[name]
	if !ok {
		return lending.ID{}, fmt.Errorf("unknown %s %q", kind, name)
	}
	return id, nil
}

func (r *runner) snapshot(report *Report) error {
	st := r.proc.State()
	report.Accounts = make(map[string]string, len(r.accounts))
	for name, addr := range r.accounts {
		bal, err := st.Balance(r.asset, addr)
		if err != nil {
			return err
		}
		report.Accounts[name] = bal.String()
	}

	report.Vaults = make(map[string]VaultView, len(r.vaults))
	for name, id := range r.vaults {
		v, err := st.GetVault(id)
		if err != nil || v == nil {
			return fmt.Errorf("snapshot vault %s: %v", name, err)
		}
		bal, err := st.Balance(r.asset, v.Account)
		if err != nil {
			return err
		}
		report.Vaults[name] = VaultView{
			ID:              id.String(),
			AssetsTotal:     v.AssetsTotal.String(),
			AssetsAvailable: v.AssetsAvailable.String(),
			LossUnrealized:  v.LossUnrealized.String(),
			Balance:         bal.String(),
		}
	}

	report.Brokers = make(map[string]BrokerView, len(r.brokers))
	for name, id := range r.brokers {
		b, err := st.GetBroker(id)
		if err != nil {
			return fmt.Errorf("snapshot broker %s: %w", name, err)
		}
		bal, err := st.Balance(r.asset, r.covers[name])
		if err != nil {
			return err
		}
		if b == nil {
			report.Brokers[name] = BrokerView{ID: id.String(), Deleted: true, Balance: bal.String()}
			continue
		}
		report.Brokers[name] = BrokerView{
			ID:             id.String(),
			DebtTotal:      b.DebtTotal.String(),
			CoverAvailable: b.CoverAvailable.String(),
			OwnerCount:     b.OwnerCount,
			Balance:        bal.String(),
		}
	}

	report.Loans = make(map[string]LoanView, len(r.loans))
	for name, id := range r.loans {
		l, err := st.GetLoan(id)
		if err != nil {
			return err
		}
		if l == nil {
			report.Loans[name] = LoanView{ID: id.String(), Deleted: true}
			continue
		}
		report.Loans[name] = LoanView{
			ID:                       id.String(),
			Impaired:                 l.Impaired(),
			Defaulted:                l.Defaulted(),
			PaymentRemaining:         l.PaymentRemaining,
			NextPaymentDueDate:       l.NextPaymentDueDate,
			PeriodicPayment:          l.PeriodicPayment.String(),
			PrincipalOutstanding:     l.PrincipalOutstanding.String(),
			TotalValueOutstanding:    l.TotalValueOutstanding.String(),
			ManagementFeeOutstanding: l.ManagementFeeOutstanding.String(),
		}
	}
	return nil
}
