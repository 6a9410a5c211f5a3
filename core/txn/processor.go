package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lendledger/core/events"
	"lendledger/core/state"
	"lendledger/native/lending"
	lendotel "lendledger/observability/otel"
	"lendledger/storage"
)

var (
	errNilDatabase = errors.New("txn: database not configured")
	errNilEngine   = errors.New("txn: engine not configured")
)

// History stores the events of committed transactions.
type History interface {
	Record(ctx context.Context, txID string, ledgerTime uint32, evs []events.Event) error
}

// Metrics receives the outcome of every processed transaction.
type Metrics interface {
	ObserveTx(kind, outcome string, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveTx(string, string, time.Duration) {}

// Receipt describes a committed transaction.
type Receipt struct {
	ID   string
	Kind Kind
	Time uint32

	// FeeIncrements is the number of base fee units a payment is charged.
	FeeIncrements uint32

	Vault       *lending.Vault
	Broker      *lending.Broker
	Loan        *lending.Loan
	Settlement  *lending.Settlement
	Transition  *lending.ManageResult
	Origination *lending.Origination

	Events []events.Event
}

// Processor executes transactions against the ledger one at a time. Every
// transaction runs against a write buffer that is committed only when the
// engine accepts it.
type Processor struct {
	mu      sync.Mutex
	db      storage.Database
	engine  *lending.Engine
	history History
	emitter events.Emitter
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics Metrics
	nonce   uint64
}

// NewProcessor binds the engine to the database.
func NewProcessor(db storage.Database, engine *lending.Engine) *Processor {
	return &Processor{
		db:      db,
		engine:  engine,
		emitter: events.NoopEmitter{},
		tracer:  lendotel.Tracer("lendledger/core/txn"),
		logger:  slog.Default(),
		metrics: noopMetrics{},
	}
}

// SetHistory configures where committed events are journaled.
func (p *Processor) SetHistory(h History) { p.history = h }

// SetEmitter configures the subscriber notified of committed events.
func (p *Processor) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		p.emitter = events.NoopEmitter{}
		return
	}
	p.emitter = emitter
}

// SetLogger replaces the processor logger.
func (p *Processor) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	p.logger = logger
}

// SetMetrics configures the transaction metrics sink.
func (p *Processor) SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	p.metrics = m
}

// State returns a read view of the committed ledger.
func (p *Processor) State() *state.Manager {
	return state.NewManager(p.db)
}

// Seed runs fn against a write buffer and commits it. It bypasses the
// engine and is meant for genesis balances.
func (p *Processor) Seed(fn func(*state.Manager) error) error {
	if p == nil || p.db == nil {
		return errNilDatabase
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	overlay := state.NewOverlay(p.db)
	if err := fn(state.NewManager(overlay)); err != nil {
		overlay.Discard()
		return err
	}
	return overlay.Commit()
}

// Apply executes tx. Rejected transactions leave the ledger untouched.
func (p *Processor) Apply(ctx context.Context, tx *Tx) (*Receipt, error) {
	if p == nil || p.db == nil {
		return nil, errNilDatabase
	}
	if p.engine == nil {
		return nil, errNilEngine
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	p.nonce++
	id := tx.hash(p.nonce)
	ctx, span := p.tracer.Start(ctx, "lending."+string(tx.Kind), trace.WithAttributes(
		attribute.String("tx.id", id),
		attribute.Int64("tx.time", int64(tx.Time)),
	))
	defer span.End()

	overlay := state.NewOverlay(p.db)
	recorder := &events.Recorder{}
	p.engine.SetState(state.NewManager(overlay))
	p.engine.SetEmitter(recorder)
	p.engine.SetTime(tx.Time)
	defer p.engine.SetState(nil)

	receipt := &Receipt{ID: id, Kind: tx.Kind, Time: tx.Time}
	if err := p.dispatch(tx, receipt); err != nil {
		overlay.Discard()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		code := "unclassified"
		if c, ok := lending.CodeOf(err); ok {
			code = c.String()
		}
		p.logger.Debug("transaction rejected", "tx", id, "kind", string(tx.Kind), "code", code, "error", err)
		p.metrics.ObserveTx(string(tx.Kind), "rejected", time.Since(started))
		return nil, err
	}
	span.SetAttributes(attribute.Int("tx.writes", overlay.Dirty()))
	if err := overlay.Commit(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.metrics.ObserveTx(string(tx.Kind), "failed", time.Since(started))
		return nil, fmt.Errorf("txn: commit: %w", err)
	}
	p.metrics.ObserveTx(string(tx.Kind), "committed", time.Since(started))

	receipt.Events = recorder.Drain()
	if p.history != nil {
		if err := p.history.Record(ctx, id, tx.Time, receipt.Events); err != nil {
			p.logger.Error("journal append failed", "tx", id, "error", err)
		}
	}
	for _, evt := range receipt.Events {
		p.emitter.Emit(evt)
	}
	return receipt, nil
}

func (p *Processor) dispatch(tx *Tx, r *Receipt) error {
	e := p.engine
	var err error
	switch tx.Kind {
	case KindCreateVault:
		r.Vault, err = e.CreateVault(tx.Account, tx.Asset, tx.Sequence)
	case KindDepositVault:
		r.Vault, err = e.DepositVault(tx.VaultID, tx.Account, tx.Amount)
	case KindCreateBroker:
		r.Broker, err = e.CreateBroker(tx.Broker)
	case KindDepositCover:
		r.Broker, err = e.DepositCover(tx.BrokerID, tx.Account, tx.Amount)
	case KindWithdrawCover:
		r.Broker, err = e.WithdrawCover(tx.BrokerID, tx.Account, tx.Amount)
	case KindOriginate:
		r.Origination, err = e.Originate(tx.BrokerID, tx.Loan)
		if err == nil {
			r.Loan = &r.Origination.Position.Loan
			r.Broker = &r.Origination.Position.Broker
			r.Vault = &r.Origination.Position.Vault
		}
	case KindPay:
		if r.FeeIncrements, err = e.FeeIncrements(tx.LoanID, tx.Amount, tx.Payment); err != nil {
			return err
		}
		r.Settlement, err = e.Pay(tx.LoanID, tx.Account, tx.Amount, tx.Payment)
		if err == nil {
			r.Loan = &r.Settlement.Position.Loan
		}
	case KindManage:
		r.Transition, err = e.Manage(tx.LoanID, tx.Action)
		if err == nil {
			r.Loan = &r.Transition.Position.Loan
		}
	case KindDeleteLoan:
		err = e.DeleteLoan(tx.LoanID)
	case KindDeleteBroker:
		r.Broker, err = e.DeleteBroker(tx.BrokerID, tx.Account)
	default:
		err = fmt.Errorf("txn: unknown kind %q", tx.Kind)
	}
	return err
}
