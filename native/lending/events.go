package lending

import (
	"strconv"

	"github.com/shopspring/decimal"

	"lendledger/core/events"
)

const (
	// EventTypeLoanCreated is emitted when a broker funds a new loan.
	EventTypeLoanCreated = "lending.loan.created"
	// EventTypeLoanPaid is emitted after a payment settles one or more periods.
	EventTypeLoanPaid = "lending.loan.paid"
	// EventTypeLoanImpaired is emitted when a loan is marked impaired.
	EventTypeLoanImpaired = "lending.loan.impaired"
	// EventTypeLoanUnimpaired is emitted when an impairment is cleared.
	EventTypeLoanUnimpaired = "lending.loan.unimpaired"
	// EventTypeLoanDefaulted is emitted when a loan is written off.
	EventTypeLoanDefaulted = "lending.loan.defaulted"
	// EventTypeLoanDeleted is emitted when a closed loan is removed.
	EventTypeLoanDeleted = "lending.loan.deleted"
	// EventTypeOverpaymentDeclined is emitted when leftover funds could not
	// be applied as an overpayment.
	EventTypeOverpaymentDeclined = "lending.overpayment.declined"
	// EventTypeCoverDeposited is emitted when first-loss capital is added.
	EventTypeCoverDeposited = "lending.broker.cover_deposited"
	// EventTypeCoverWithdrawn is emitted when first-loss capital is removed.
	EventTypeCoverWithdrawn = "lending.broker.cover_withdrawn"
	// EventTypeBrokerDeleted is emitted when a broker is closed.
	EventTypeBrokerDeleted = "lending.broker.deleted"
)

func newLoanEvent(eventType string, loan Loan) *events.Record {
	return &events.Record{
		Type: eventType,
		Attributes: map[string]string{
			"loanId":             loan.ID.String(),
			"brokerId":           loan.BrokerID.String(),
			"borrower":           loan.Borrower.String(),
			"paymentsRemaining":  strconv.FormatUint(uint64(loan.PaymentRemaining), 10),
			"nextPaymentDueDate": strconv.FormatUint(uint64(loan.NextPaymentDueDate), 10),
		},
	}
}

// NewLoanCreatedEvent describes a freshly originated loan.
func NewLoanCreatedEvent(loan Loan) *events.Record {
	evt := newLoanEvent(EventTypeLoanCreated, loan)
	evt.Attributes["principal"] = loan.PrincipalOutstanding.String()
	evt.Attributes["totalValue"] = loan.TotalValueOutstanding.String()
	evt.Attributes["periodicPayment"] = loan.PeriodicPayment.String()
	evt.Attributes["loanScale"] = strconv.FormatInt(int64(loan.LoanScale), 10)
	return evt
}

// NewLoanPaidEvent describes the split of a settled payment.
func NewLoanPaidEvent(loan Loan, kind PaymentKind, parts PaymentParts) *events.Record {
	evt := newLoanEvent(EventTypeLoanPaid, loan)
	evt.Attributes["kind"] = kind.String()
	evt.Attributes["principalPaid"] = parts.PrincipalPaid.String()
	evt.Attributes["interestPaid"] = parts.InterestPaid.String()
	evt.Attributes["valueChange"] = parts.ValueChange.String()
	evt.Attributes["feePaid"] = parts.FeePaid.String()
	evt.Attributes["periods"] = strconv.FormatUint(uint64(parts.Periods), 10)
	return evt
}

// NewLoanTransitionEvent describes a lifecycle transition. Covered is only
// reported for defaults.
func NewLoanTransitionEvent(loan Loan, action ManageAction, covered decimal.Decimal) *events.Record {
	eventType := EventTypeLoanDefaulted
	switch action {
	case ActionImpair:
		eventType = EventTypeLoanImpaired
	case ActionUnimpair:
		eventType = EventTypeLoanUnimpaired
	}
	evt := newLoanEvent(eventType, loan)
	if action == ActionDefault {
		evt.Attributes["covered"] = covered.String()
	}
	return evt
}

// NewLoanDeletedEvent records the removal of a closed loan.
func NewLoanDeletedEvent(loan Loan) *events.Record {
	return newLoanEvent(EventTypeLoanDeleted, loan)
}

// NewOverpaymentDeclinedEvent records why leftover funds were not applied.
func NewOverpaymentDeclinedEvent(loan Loan, reason string) *events.Record {
	evt := newLoanEvent(EventTypeOverpaymentDeclined, loan)
	evt.Attributes["reason"] = reason
	return evt
}

// NewCoverEvent records a change to a broker's first-loss capital.
func NewCoverEvent(eventType string, broker Broker, account string, amt decimal.Decimal) *events.Record {
	return &events.Record{
		Type: eventType,
		Attributes: map[string]string{
			"brokerId":       broker.ID.String(),
			"account":        account,
			"amount":         amt.String(),
			"coverAvailable": broker.CoverAvailable.String(),
		},
	}
}

// NewBrokerDeletedEvent records the closing of a broker and the cover
// returned to its owner.
func NewBrokerDeletedEvent(broker Broker) *events.Record {
	return &events.Record{
		Type: EventTypeBrokerDeleted,
		Attributes: map[string]string{
			"brokerId":      broker.ID.String(),
			"owner":         broker.Owner.String(),
			"coverReturned": broker.CoverAvailable.String(),
		},
	}
}
