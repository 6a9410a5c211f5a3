package lending

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"lendledger/core/amount"
	"lendledger/core/events"
	"lendledger/crypto"
	nativecommon "lendledger/native/common"
)

var (
	errNilState   = errors.New("lending engine: state not configured")
	errNilRequest = errors.New("lending engine: request must not be nil")
)

// ModuleName is the pause namespace of the engine. Individual actions are
// paused under ModuleName + "." + action.
const ModuleName = "lending"

const (
	actionCreateVault   = "create_vault"
	actionDepositVault  = "deposit_vault"
	actionCreateBroker  = "create_broker"
	actionOriginate     = "originate"
	actionPay           = "pay"
	actionManage        = "manage"
	actionDepositCover  = "deposit_cover"
	actionWithdrawCover = "withdraw_cover"
	actionDeleteLoan    = "delete_loan"
	actionDeleteBroker  = "delete_broker"
)

// Actions lists every engine action that can be paused on its own.
func Actions() []string {
	return []string{
		actionCreateVault, actionDepositVault, actionCreateBroker,
		actionOriginate, actionPay, actionManage,
		actionDepositCover, actionWithdrawCover, actionDeleteLoan,
		actionDeleteBroker,
	}
}

// engineState is the ledger the engine reads and mutates. Get methods return
// a nil record and a nil error when nothing is stored under the id.
type engineState interface {
	GetVault(id ID) (*Vault, error)
	PutVault(vault *Vault) error
	GetBroker(id ID) (*Broker, error)
	PutBroker(broker *Broker) error
	DeleteBroker(id ID) error
	GetLoan(id ID) (*Loan, error)
	PutLoan(loan *Loan) error
	DeleteLoan(id ID) error
	Balance(asset amount.Asset, addr crypto.Address) (decimal.Decimal, error)
	Transfer(asset amount.Asset, from, to crypto.Address, amt decimal.Decimal) error
}

// Metrics receives lending activity for export.
type Metrics interface {
	ObservePayment(kind, outcome string, periods uint32)
	RecordOverpaymentDeclined(reason string)
	RecordTransition(action string)
	ObserveDefaultCovered(fraction float64)
}

type noopMetrics struct{}

func (noopMetrics) ObservePayment(string, string, uint32) {}
func (noopMetrics) RecordOverpaymentDeclined(string)      {}
func (noopMetrics) RecordTransition(string)               {}
func (noopMetrics) ObserveDefaultCovered(float64)         {}

// Engine binds the loan calculations to ledger records, asset transfers,
// events and metrics.
type Engine struct {
	state   engineState
	config  Config
	pauses  nativecommon.PauseView
	emitter events.Emitter
	logger  *slog.Logger
	metrics Metrics
	now     uint32
}

// NewEngine constructs a lending engine enforcing the supplied limits.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		config:  cfg,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		metrics: noopMetrics{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses configures the pause view consulted before every mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event sink. A nil emitter discards events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	e.emitter = emitter
}

// SetLogger replaces the engine logger. A nil logger restores slog.Default.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger.With("module", ModuleName)
}

// SetMetrics configures the metrics sink. A nil sink disables metrics.
func (e *Engine) SetMetrics(m Metrics) {
	if e == nil {
		return
	}
	if m == nil {
		m = noopMetrics{}
	}
	e.metrics = m
}

// SetTime records the close time of the ledger the next operations apply to.
func (e *Engine) SetTime(now uint32) {
	if e == nil {
		return
	}
	e.now = now
}

// Time returns the ledger close time operations are evaluated at.
func (e *Engine) Time() uint32 {
	if e == nil {
		return 0
	}
	return e.now
}

// Config returns the limits the engine enforces.
func (e *Engine) Config() Config {
	if e == nil {
		return DefaultConfig()
	}
	return e.config
}

// Vault returns the stored vault or a NotFound error.
func (e *Engine) Vault(id ID) (*Vault, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	vault, err := e.state.GetVault(id)
	if err != nil {
		return nil, fmt.Errorf("lending engine: load vault: %w", err)
	}
	if vault == nil {
		return nil, fail(CodeNotFound, "load vault", "vault %s not found", id)
	}
	return vault, nil
}

// Broker returns the stored broker or a NotFound error.
func (e *Engine) Broker(id ID) (*Broker, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	broker, err := e.state.GetBroker(id)
	if err != nil {
		return nil, fmt.Errorf("lending engine: load broker: %w", err)
	}
	if broker == nil {
		return nil, fail(CodeNotFound, "load broker", "broker %s not found", id)
	}
	return broker, nil
}

// Loan returns the stored loan or a NotFound error.
func (e *Engine) Loan(id ID) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	loan, err := e.state.GetLoan(id)
	if err != nil {
		return nil, fmt.Errorf("lending engine: load loan: %w", err)
	}
	if loan == nil {
		return nil, fail(CodeNotFound, "load loan", "loan %s not found", id)
	}
	return loan, nil
}

// CreateVault opens an empty vault holding asset.
func (e *Engine) CreateVault(owner crypto.Address, asset amount.Asset, sequence uint32) (*Vault, error) {
	if err := e.guard(actionCreateVault); err != nil {
		return nil, err
	}
	if owner.IsZero() || asset.Code == "" {
		return nil, fail(CodeMalformed, "create vault", "owner and asset are required")
	}
	vault := NewVault(owner, asset, sequence)
	if existing, err := e.state.GetVault(vault.ID); err != nil {
		return nil, fmt.Errorf("lending engine: load vault: %w", err)
	} else if existing != nil {
		return nil, fail(CodeMalformed, "create vault", "vault %s already exists", vault.ID)
	}
	if err := e.state.PutVault(&vault); err != nil {
		return nil, fmt.Errorf("lending engine: store vault: %w", err)
	}
	return &vault, nil
}

// DepositVault moves lender assets from the depositor into the vault.
func (e *Engine) DepositVault(id ID, from crypto.Address, amt decimal.Decimal) (*Vault, error) {
	const op = "deposit vault"
	if err := e.guard(actionDepositVault); err != nil {
		return nil, err
	}
	vault, err := e.Vault(id)
	if err != nil {
		return nil, err
	}
	if amt.Sign() <= 0 || !amount.IsRounded(vault.Asset, amt, amount.MinExponent) {
		return nil, fail(CodeMalformed, op, "invalid amount %s", amt)
	}
	if err := e.requireBalance(vault.Asset, from, amt); err != nil {
		return nil, err
	}
	vault.AssetsAvailable = vault.AssetsAvailable.Add(amt)
	vault.AssetsTotal = vault.AssetsTotal.Add(amt)
	if err := e.transfer(vault.Asset, []Transfer{{From: from, To: vault.Account, Amount: amt}}, "vault_deposit"); err != nil {
		return nil, err
	}
	if err := e.state.PutVault(vault); err != nil {
		return nil, fmt.Errorf("lending engine: store vault: %w", err)
	}
	return vault, nil
}

// BrokerRequest configures a new broker.
type BrokerRequest struct {
	Owner                crypto.Address
	VaultID              ID
	Sequence             uint32
	ManagementFeeRate    amount.TenthBips
	CoverRateMinimum     amount.TenthBips
	CoverRateLiquidation amount.TenthBips
	DebtMaximum          decimal.Decimal
}

// CreateBroker opens a broker lending out of an existing vault.
func (e *Engine) CreateBroker(req *BrokerRequest) (*Broker, error) {
	const op = "create broker"
	if err := e.guard(actionCreateBroker); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errNilRequest
	}
	if req.Owner.IsZero() {
		return nil, fail(CodeMalformed, op, "owner is required")
	}
	if req.ManagementFeeRate > e.config.MaxManagementFeeRate ||
		req.CoverRateMinimum > e.config.MaxCoverRate || req.CoverRateLiquidation > e.config.MaxCoverRate {
		return nil, fail(CodeMalformed, op, "rate above configured maximum")
	}
	if req.DebtMaximum.Sign() < 0 {
		return nil, fail(CodeMalformed, op, "debt maximum %s is negative", req.DebtMaximum)
	}
	if _, err := e.Vault(req.VaultID); err != nil {
		return nil, err
	}
	broker := NewBroker(req.Owner, req.VaultID, req.Sequence, req.ManagementFeeRate, req.CoverRateMinimum, req.CoverRateLiquidation)
	broker.DebtMaximum = req.DebtMaximum
	if existing, err := e.state.GetBroker(broker.ID); err != nil {
		return nil, fmt.Errorf("lending engine: load broker: %w", err)
	} else if existing != nil {
		return nil, fail(CodeMalformed, op, "broker %s already exists", broker.ID)
	}
	if err := e.state.PutBroker(&broker); err != nil {
		return nil, fmt.Errorf("lending engine: store broker: %w", err)
	}
	return &broker, nil
}

// Originate funds a loan from the broker's vault and disburses the principal
// to the borrower.
func (e *Engine) Originate(brokerID ID, req *OriginationRequest) (*Origination, error) {
	if err := e.guard(actionOriginate); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, errNilRequest
	}
	broker, err := e.Broker(brokerID)
	if err != nil {
		return nil, err
	}
	vault, err := e.Vault(broker.VaultID)
	if err != nil {
		return nil, err
	}
	orig, err := Originate(e.config, *broker, *vault, *req, e.now)
	if err != nil {
		return nil, err
	}
	if existing, err := e.state.GetLoan(orig.Position.Loan.ID); err != nil {
		return nil, fmt.Errorf("lending engine: load loan: %w", err)
	} else if existing != nil {
		return nil, fail(CodeInternal, "originate", "loan %s already exists", orig.Position.Loan.ID)
	}
	if err := e.transfer(vault.Asset, orig.Transfers, "origination"); err != nil {
		return nil, err
	}
	if err := e.storePosition(orig.Position); err != nil {
		return nil, err
	}
	e.emit(NewLoanCreatedEvent(orig.Position.Loan))
	e.logger.Info("loan originated",
		"loan", orig.Position.Loan.ID.String(),
		"broker", broker.ID.String(),
		"payments", orig.Position.Loan.PaymentTotal)
	return &orig, nil
}

// Pay applies a borrower payment to the loan and moves the funds to the
// vault and the broker.
func (e *Engine) Pay(loanID ID, payer crypto.Address, amt decimal.Decimal, kind PaymentKind) (*Settlement, error) {
	if err := e.guard(actionPay); err != nil {
		return nil, err
	}
	settlement, err := e.pay(loanID, payer, amt, kind)
	if err != nil {
		e.metrics.ObservePayment(kind.String(), outcomeOf(err), 0)
		return nil, err
	}
	e.metrics.ObservePayment(kind.String(), "applied", settlement.Parts.Periods)
	return settlement, nil
}

func (e *Engine) pay(loanID ID, payer crypto.Address, amt decimal.Decimal, kind PaymentKind) (*Settlement, error) {
	const op = "pay"
	pos, err := e.loadPosition(loanID)
	if err != nil {
		return nil, err
	}
	if kind == PaymentOverpayment && !pos.Loan.AllowsOverpayment() {
		return nil, fail(CodeNoPermission, op, "loan %s does not accept overpayments", loanID)
	}
	if amt.Sign() <= 0 {
		return nil, fail(CodeMalformed, op, "amount %s must be positive", amt)
	}
	if err := e.requireBalance(pos.Vault.Asset, payer, amt); err != nil {
		return nil, err
	}
	wasImpaired := pos.Loan.Impaired()
	settlement, err := SettlePayment(pos, payer, amt, kind, e.now)
	if err != nil {
		return nil, err
	}
	if err := e.transfer(pos.Vault.Asset, settlement.Transfers, "payment"); err != nil {
		return nil, err
	}
	if err := e.storePosition(settlement.Position); err != nil {
		return nil, err
	}

	loan := settlement.Position.Loan
	if wasImpaired && !loan.Impaired() {
		e.emit(NewLoanTransitionEvent(loan, ActionUnimpair, zero))
		e.metrics.RecordTransition(ActionUnimpair.String())
	}
	if ovp := settlement.Overpayment; ovp != nil && ovp.Outcome == OverpaymentDeclined {
		e.emit(NewOverpaymentDeclinedEvent(loan, ovp.Reason))
		e.metrics.RecordOverpaymentDeclined(ovp.Reason)
		e.logger.Debug("overpayment declined", "loan", loanID.String(), "reason", ovp.Reason)
	}
	e.emit(NewLoanPaidEvent(loan, kind, settlement.Parts))
	return &settlement, nil
}

// Manage applies one lifecycle transition to the loan.
func (e *Engine) Manage(loanID ID, action ManageAction) (*ManageResult, error) {
	if err := e.guard(actionManage); err != nil {
		return nil, err
	}
	pos, err := e.loadPosition(loanID)
	if err != nil {
		return nil, err
	}
	result, err := Manage(pos, action, e.now)
	if err != nil {
		return nil, err
	}
	if action == ActionDefault {
		if err := e.transfer(pos.Vault.Asset, DefaultTransfers(result.Position, result.Covered), "default_cover"); err != nil {
			return nil, err
		}
		if owed := pos.Loan.OwedToVault(); owed.Sign() > 0 {
			// Histogram input only; the exactness flag does not matter.
			fraction, _ := result.Covered.Div(owed).Float64()
			e.metrics.ObserveDefaultCovered(fraction)
		}
	}
	if err := e.storePosition(result.Position); err != nil {
		return nil, err
	}
	e.emit(NewLoanTransitionEvent(result.Position.Loan, action, result.Covered))
	e.metrics.RecordTransition(action.String())
	e.logger.Info("loan transition",
		"loan", loanID.String(),
		"action", action.String(),
		"nextPaymentDueDate", result.Position.Loan.NextPaymentDueDate)
	return &result, nil
}

// DepositCover moves first-loss capital from the depositor into the
// broker's pseudo-account.
func (e *Engine) DepositCover(brokerID ID, from crypto.Address, amt decimal.Decimal) (*Broker, error) {
	if err := e.guard(actionDepositCover); err != nil {
		return nil, err
	}
	broker, err := e.Broker(brokerID)
	if err != nil {
		return nil, err
	}
	vault, err := e.Vault(broker.VaultID)
	if err != nil {
		return nil, err
	}
	next, err := DepositCover(*broker, amt)
	if err != nil {
		return nil, err
	}
	if err := e.requireBalance(vault.Asset, from, amt); err != nil {
		return nil, err
	}
	if err := e.transfer(vault.Asset, []Transfer{{From: from, To: broker.Account, Amount: amt}}, "cover_deposit"); err != nil {
		return nil, err
	}
	if err := e.state.PutBroker(&next); err != nil {
		return nil, fmt.Errorf("lending engine: store broker: %w", err)
	}
	e.emit(NewCoverEvent(EventTypeCoverDeposited, next, from.String(), amt))
	return &next, nil
}

// WithdrawCover returns first-loss capital to the recipient while the broker
// keeps its minimum cover.
func (e *Engine) WithdrawCover(brokerID ID, to crypto.Address, amt decimal.Decimal) (*Broker, error) {
	if err := e.guard(actionWithdrawCover); err != nil {
		return nil, err
	}
	broker, err := e.Broker(brokerID)
	if err != nil {
		return nil, err
	}
	vault, err := e.Vault(broker.VaultID)
	if err != nil {
		return nil, err
	}
	next, err := WithdrawCover(*broker, *vault, amt)
	if err != nil {
		return nil, err
	}
	if err := e.transfer(vault.Asset, []Transfer{{From: broker.Account, To: to, Amount: amt}}, "cover_withdrawal"); err != nil {
		return nil, err
	}
	if err := e.state.PutBroker(&next); err != nil {
		return nil, fmt.Errorf("lending engine: store broker: %w", err)
	}
	e.emit(NewCoverEvent(EventTypeCoverWithdrawn, next, to.String(), amt))
	return &next, nil
}

// DeleteLoan removes a paid-off or defaulted loan from the ledger.
func (e *Engine) DeleteLoan(loanID ID) error {
	if err := e.guard(actionDeleteLoan); err != nil {
		return err
	}
	loan, err := e.Loan(loanID)
	if err != nil {
		return err
	}
	broker, err := e.Broker(loan.BrokerID)
	if err != nil {
		return err
	}
	vault, err := e.Vault(broker.VaultID)
	if err != nil {
		return err
	}
	next, forgiven, err := DeleteLoan(*loan, *broker)
	if err != nil {
		return err
	}
	if !forgiven.IsZero() {
		if IsDebtDust(forgiven, *vault) {
			e.logger.Debug("broker debt forgiven", "broker", broker.ID.String(), "debt", forgiven.String())
		} else {
			e.logger.Warn("broker debt forgiven above vault precision", "broker", broker.ID.String(), "debt", forgiven.String())
		}
	}
	if err := e.state.DeleteLoan(loanID); err != nil {
		return fmt.Errorf("lending engine: delete loan: %w", err)
	}
	if err := e.state.PutBroker(&next); err != nil {
		return fmt.Errorf("lending engine: store broker: %w", err)
	}
	e.emit(NewLoanDeletedEvent(*loan))
	return nil
}

// DeleteBroker closes a broker with no loans left and returns its cover to
// the owner.
func (e *Engine) DeleteBroker(brokerID ID, account crypto.Address) (*Broker, error) {
	if err := e.guard(actionDeleteBroker); err != nil {
		return nil, err
	}
	broker, err := e.Broker(brokerID)
	if err != nil {
		return nil, err
	}
	vault, err := e.Vault(broker.VaultID)
	if err != nil {
		return nil, err
	}
	transfers, err := DeleteBroker(*broker, *vault, account)
	if err != nil {
		return nil, err
	}
	if err := e.transfer(vault.Asset, transfers, "cover_release"); err != nil {
		return nil, err
	}
	if err := e.state.DeleteBroker(brokerID); err != nil {
		return nil, fmt.Errorf("lending engine: delete broker: %w", err)
	}
	e.emit(NewBrokerDeletedEvent(*broker))
	e.logger.Info("broker deleted", "broker", brokerID.String(), "cover", broker.CoverAvailable.String())
	return broker, nil
}

// FeeIncrements estimates the processing fee units for a payment request.
func (e *Engine) FeeIncrements(loanID ID, amt decimal.Decimal, kind PaymentKind) (uint32, error) {
	pos, err := e.loadPosition(loanID)
	if err != nil {
		return 0, err
	}
	return FeeIncrements(pos.Vault.Asset, pos.Loan, amt, kind, e.now), nil
}

func (e *Engine) guard(action string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nativecommon.GuardAction(e.pauses, ModuleName, action)
}

func (e *Engine) loadPosition(loanID ID) (Position, error) {
	loan, err := e.Loan(loanID)
	if err != nil {
		return Position{}, err
	}
	broker, err := e.Broker(loan.BrokerID)
	if err != nil {
		return Position{}, err
	}
	vault, err := e.Vault(broker.VaultID)
	if err != nil {
		return Position{}, err
	}
	return Position{Loan: *loan, Broker: *broker, Vault: *vault}, nil
}

func (e *Engine) storePosition(p Position) error {
	if err := e.state.PutLoan(&p.Loan); err != nil {
		return fmt.Errorf("lending engine: store loan: %w", err)
	}
	if err := e.state.PutBroker(&p.Broker); err != nil {
		return fmt.Errorf("lending engine: store broker: %w", err)
	}
	if err := e.state.PutVault(&p.Vault); err != nil {
		return fmt.Errorf("lending engine: store vault: %w", err)
	}
	return nil
}

func (e *Engine) requireBalance(asset amount.Asset, addr crypto.Address, amt decimal.Decimal) error {
	balance, err := e.state.Balance(asset, addr)
	if err != nil {
		return fmt.Errorf("lending engine: load balance: %w", err)
	}
	if balance.LessThan(amt) {
		return fail(CodeInsufficientFunds, "check balance", "%s holds %s, %s required", addr, balance, amt)
	}
	return nil
}

func (e *Engine) transfer(asset amount.Asset, transfers []Transfer, reason string) error {
	for _, t := range transfers {
		if err := e.state.Transfer(asset, t.From, t.To, t.Amount); err != nil {
			return fmt.Errorf("lending engine: transfer %s: %w", reason, err)
		}
		e.emit(events.Transfer{Asset: asset.Code, From: t.From, To: t.To, Amount: t.Amount, Reason: reason}.Record())
	}
	return nil
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func outcomeOf(err error) string {
	if code, ok := CodeOf(err); ok {
		return strings.ReplaceAll(code.String(), " ", "_")
	}
	return "error"
}
