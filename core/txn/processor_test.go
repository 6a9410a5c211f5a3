package txn

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"lendledger/core/amount"
	"lendledger/core/events"
	"lendledger/core/journal"
	"lendledger/core/state"
	"lendledger/crypto"
	"lendledger/native/lending"
	"lendledger/storage"
)

const start uint32 = 1_000

var usd = amount.Asset{Code: "USD"}

func account(b byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = b
	return crypto.MustNewAddress(crypto.AccountPrefix, raw)
}

type countingMetrics struct {
	outcomes map[string]int
}

func (m *countingMetrics) ObserveTx(kind, outcome string, _ time.Duration) {
	m.outcomes[kind+"/"+outcome]++
}

type ledgerFixture struct {
	processor *Processor
	journal   *journal.Journal
	metrics   *countingMetrics
	emitted   *events.Recorder

	lender, owner, borrower crypto.Address
	vault                   lending.ID
	broker                  lending.ID
	loan                    lending.ID
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	j, err := journal.Open(journal.MemoryDSN())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	f := &ledgerFixture{
		processor: NewProcessor(storage.NewMemDB(), lending.NewEngine(lending.DefaultConfig())),
		journal:   j,
		metrics:   &countingMetrics{outcomes: make(map[string]int)},
		emitted:   &events.Recorder{},
		lender:    account(1),
		owner:     account(2),
		borrower:  account(3),
	}
	f.processor.SetHistory(j)
	f.processor.SetMetrics(f.metrics)
	f.processor.SetEmitter(f.emitted)

	require.NoError(t, f.processor.Seed(func(m *state.Manager) error {
		if err := m.Credit(usd, f.lender, decimal.NewFromInt(10_000)); err != nil {
			return err
		}
		if err := m.Credit(usd, f.owner, decimal.NewFromInt(500)); err != nil {
			return err
		}
		return m.Credit(usd, f.borrower, decimal.NewFromInt(2_000))
	}))

	ctx := context.Background()
	r := f.apply(t, ctx, &Tx{Kind: KindCreateVault, Time: start, Account: f.lender, Asset: usd, Sequence: 1})
	f.vault = r.Vault.ID
	f.apply(t, ctx, &Tx{Kind: KindDepositVault, Time: start, Account: f.lender, VaultID: f.vault, Amount: decimal.NewFromInt(10_000)})
	r = f.apply(t, ctx, &Tx{Kind: KindCreateBroker, Time: start, Broker: &lending.BrokerRequest{
		Owner:                f.owner,
		VaultID:              f.vault,
		Sequence:             1,
		CoverRateMinimum:     10_000,
		CoverRateLiquidation: 10_000,
	}})
	f.broker = r.Broker.ID
	f.apply(t, ctx, &Tx{Kind: KindDepositCover, Time: start, Account: f.owner, BrokerID: f.broker, Amount: decimal.NewFromInt(200)})
	r = f.apply(t, ctx, &Tx{Kind: KindOriginate, Time: start, BrokerID: f.broker, Loan: &lending.OriginationRequest{
		Borrower:         f.borrower,
		Principal:        decimal.NewFromInt(1_000),
		InterestRate:     12_000,
		PaymentInterval:  600,
		PaymentTotal:     12,
		GracePeriod:      60,
		AllowOverpayment: true,
	}})
	f.loan = r.Loan.ID
	return f
}

func (f *ledgerFixture) apply(t *testing.T, ctx context.Context, tx *Tx) *Receipt {
	t.Helper()
	r, err := f.processor.Apply(ctx, tx)
	require.NoError(t, err, "apply %s", tx.Kind)
	return r
}

func (f *ledgerFixture) balance(t *testing.T, addr crypto.Address) decimal.Decimal {
	t.Helper()
	bal, err := f.processor.State().Balance(usd, addr)
	require.NoError(t, err)
	return bal
}

func TestProcessorCommitsAcceptedTransactions(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	require.True(t, f.balance(t, f.borrower).Equal(decimal.NewFromInt(3_000)))

	r := f.apply(t, ctx, &Tx{Kind: KindPay, Time: start + 100, Account: f.borrower, LoanID: f.loan, Amount: decimal.NewFromInt(100)})
	require.Equal(t, uint32(1), r.FeeIncrements)
	require.Equal(t, uint32(1), r.Settlement.Parts.Periods)
	require.Equal(t, uint32(11), r.Loan.PaymentRemaining)
	require.Len(t, r.ID, 64)

	loan, err := f.processor.State().GetLoan(f.loan)
	require.NoError(t, err)
	require.Equal(t, uint32(11), loan.PaymentRemaining)
	require.Equal(t, start+1_200, loan.NextPaymentDueDate)

	ids, err := f.processor.State().BrokerLoans(f.broker)
	require.NoError(t, err)
	require.Equal(t, []lending.ID{f.loan}, ids)

	history, err := f.journal.ByLoan(ctx, f.loan.String())
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, lending.EventTypeLoanCreated, history[0].Type)
	require.Equal(t, lending.EventTypeLoanPaid, history[1].Type)
	require.Equal(t, start+100, history[1].LedgerTime)

	txEntries, err := f.journal.ByTx(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, txEntries, len(r.Events))

	require.Equal(t, 1, f.metrics.outcomes["pay/committed"])
	require.NotEmpty(t, f.emitted.Events())
}

func TestProcessorDiscardsRejectedTransactions(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	before := f.balance(t, f.borrower)
	emittedBefore := len(f.emitted.Events())

	_, err := f.processor.Apply(ctx, &Tx{Kind: KindPay, Time: start + 100, Account: f.borrower, LoanID: f.loan, Amount: decimal.NewFromInt(50)})
	require.ErrorIs(t, err, lending.ErrInsufficientPayment)

	_, err = f.processor.Apply(ctx, &Tx{Kind: KindManage, Time: start + 100, LoanID: f.loan, Action: lending.ActionDefault})
	require.ErrorIs(t, err, lending.ErrTooSoon)

	require.True(t, f.balance(t, f.borrower).Equal(before))
	loan, err := f.processor.State().GetLoan(f.loan)
	require.NoError(t, err)
	require.Equal(t, uint32(12), loan.PaymentRemaining)
	require.False(t, loan.Defaulted())
	require.Len(t, f.emitted.Events(), emittedBefore)
	require.Equal(t, 1, f.metrics.outcomes["pay/rejected"])
	require.Equal(t, 1, f.metrics.outcomes["manage/rejected"])

	history, err := f.journal.ByLoan(ctx, f.loan.String())
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestProcessorDefaultAndDelete(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	r := f.apply(t, ctx, &Tx{Kind: KindManage, Time: start + 661, LoanID: f.loan, Action: lending.ActionDefault})
	require.True(t, r.Loan.Defaulted())
	require.True(t, r.Transition.Covered.IsPositive())

	f.apply(t, ctx, &Tx{Kind: KindDeleteLoan, Time: start + 700, LoanID: f.loan})
	loan, err := f.processor.State().GetLoan(f.loan)
	require.NoError(t, err)
	require.Nil(t, loan)

	broker, err := f.processor.State().GetBroker(f.broker)
	require.NoError(t, err)
	require.Zero(t, broker.OwnerCount)
	require.True(t, f.balance(t, broker.Account).Equal(broker.CoverAvailable))

	vault, err := f.processor.State().GetVault(f.vault)
	require.NoError(t, err)
	require.True(t, f.balance(t, vault.Account).Equal(vault.AssetsAvailable))

	_, err = f.processor.Apply(ctx, &Tx{Kind: KindDeleteBroker, Time: start + 700, Account: f.borrower, BrokerID: f.broker})
	require.ErrorIs(t, err, lending.ErrNoPermission)

	ownerBefore := f.balance(t, f.owner)
	r = f.apply(t, ctx, &Tx{Kind: KindDeleteBroker, Time: start + 700, Account: f.owner, BrokerID: f.broker})
	require.True(t, r.Broker.CoverAvailable.Equal(broker.CoverAvailable))
	require.True(t, f.balance(t, f.owner).Equal(ownerBefore.Add(broker.CoverAvailable)))
	require.True(t, f.balance(t, broker.Account).IsZero())

	gone, err := f.processor.State().GetBroker(f.broker)
	require.NoError(t, err)
	require.Nil(t, gone)
	ids, err := f.processor.State().BrokerLoans(f.broker)
	require.NoError(t, err)
	require.Empty(t, ids)
	require.Equal(t, 1, f.metrics.outcomes["delete_broker/committed"])
}

func TestProcessorKeepsBrokerWithLoans(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.processor.Apply(ctx, &Tx{Kind: KindDeleteBroker, Time: start, Account: f.owner, BrokerID: f.broker})
	require.ErrorIs(t, err, lending.ErrNoPermission)

	broker, err := f.processor.State().GetBroker(f.broker)
	require.NoError(t, err)
	require.NotNil(t, broker)
	require.Equal(t, uint32(1), broker.OwnerCount)
	require.True(t, f.balance(t, broker.Account).Equal(decimal.NewFromInt(200)))
}

func TestTxValidate(t *testing.T) {
	cases := []struct {
		name string
		tx   *Tx
	}{
		{"nil", nil},
		{"unknown kind", &Tx{Kind: "mint"}},
		{"vault without owner", &Tx{Kind: KindCreateVault}},
		{"pay without payer", &Tx{Kind: KindPay}},
		{"broker without request", &Tx{Kind: KindCreateBroker}},
		{"originate without request", &Tx{Kind: KindOriginate}},
		{"broker deletion without owner", &Tx{Kind: KindDeleteBroker}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, tc.tx.Validate())
		})
	}
	require.NoError(t, (&Tx{Kind: KindManage}).Validate())
}

func TestProcessorRequiresWiring(t *testing.T) {
	_, err := NewProcessor(nil, lending.NewEngine(lending.DefaultConfig())).Apply(context.Background(), &Tx{Kind: KindManage})
	require.ErrorIs(t, err, errNilDatabase)
	_, err = NewProcessor(storage.NewMemDB(), nil).Apply(context.Background(), &Tx{Kind: KindManage})
	require.ErrorIs(t, err, errNilEngine)
}
