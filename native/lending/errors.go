package lending

import (
	"errors"
	"fmt"
)

// Code classifies why a lending operation was rejected.
type Code uint8

const (
	// CodeInternal marks an invariant violation. It should be unreachable.
	CodeInternal Code = iota
	// CodeTooSoon rejects late payments and defaults before the grace period elapses.
	CodeTooSoon
	// CodeExpired rejects a regular payment once the loan is overdue.
	CodeExpired
	// CodeInsufficientPayment rejects an amount below the computed total due.
	CodeInsufficientPayment
	// CodeInsufficientFunds rejects when a pool, reserve or payer cannot fund the request.
	CodeInsufficientFunds
	// CodeLimitExceeded rejects when a vault or broker bound would be crossed.
	CodeLimitExceeded
	// CodePrecisionLoss rejects schedules that cannot be represented at the loan scale.
	CodePrecisionLoss
	// CodeAlreadySettled rejects operations on paid off or defaulted loans.
	CodeAlreadySettled
	// CodeNoPermission rejects lifecycle transitions that are illegal from the current state.
	CodeNoPermission
	// CodeMalformed rejects out of range request parameters.
	CodeMalformed
	// CodeNotFound reports a missing loan, broker or vault record.
	CodeNotFound
)

var codeNames = map[Code]string{
	CodeInternal:            "internal",
	CodeTooSoon:             "too soon",
	CodeExpired:             "expired",
	CodeInsufficientPayment: "insufficient payment",
	CodeInsufficientFunds:   "insufficient funds",
	CodeLimitExceeded:       "limit exceeded",
	CodePrecisionLoss:       "precision loss",
	CodeAlreadySettled:      "already settled",
	CodeNoPermission:        "no permission",
	CodeMalformed:           "malformed",
	CodeNotFound:            "not found",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", uint8(c))
}

// Error is the failure returned by every lending operation. Two errors match
// under errors.Is when their codes match and the target carries no detail, so
// callers compare against the Err* sentinels.
type Error struct {
	Code Code
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Msg != "":
		return fmt.Sprintf("lending: %s: %s: %s", e.Op, e.Code, e.Msg)
	case e.Op != "":
		return fmt.Sprintf("lending: %s: %s", e.Op, e.Code)
	case e.Msg != "":
		return fmt.Sprintf("lending: %s: %s", e.Code, e.Msg)
	default:
		return "lending: " + e.Code.String()
	}
}

// Is implements errors.Is matching against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.Msg == ""
}

var (
	ErrInternal            = &Error{Code: CodeInternal}
	ErrTooSoon             = &Error{Code: CodeTooSoon}
	ErrExpired             = &Error{Code: CodeExpired}
	ErrInsufficientPayment = &Error{Code: CodeInsufficientPayment}
	ErrInsufficientFunds   = &Error{Code: CodeInsufficientFunds}
	ErrLimitExceeded       = &Error{Code: CodeLimitExceeded}
	ErrPrecisionLoss       = &Error{Code: CodePrecisionLoss}
	ErrAlreadySettled      = &Error{Code: CodeAlreadySettled}
	ErrNoPermission        = &Error{Code: CodeNoPermission}
	ErrMalformed           = &Error{Code: CodeMalformed}
	ErrNotFound            = &Error{Code: CodeNotFound}
)

func fail(code Code, op, format string, args ...any) error {
	return &Error{Code: code, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the classification from err. The second return is false
// when err does not originate from this package.
func CodeOf(err error) (Code, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le.Code, true
	}
	return 0, false
}
