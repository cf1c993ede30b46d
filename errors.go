package pullpay

import (
	"errors"
	"fmt"

	"github.com/xraph/pullpay/conversion"
	"github.com/xraph/pullpay/ledger"
	"github.com/xraph/pullpay/signature"
)

// Sentinel errors, one per failure kind. Compare with errors.Is.
var (
	// Authorization errors
	ErrSignatureInvalid       = signature.ErrInvalidSignature
	ErrNotAuthorizedExecutor  = errors.New("pullpay: caller is not an authorized executor")
	ErrNotPullPaymentExecutor = errors.New("pullpay: caller is not the plan's pull payment executor")
	ErrNotCustomer            = errors.New("pullpay: caller is not the plan's payer")

	// Plan lifecycle errors
	ErrPaymentExists    = errors.New("pullpay: payment already exists")
	ErrPaymentNotFound  = errors.New("pullpay: payment not found")
	ErrPaymentCancelled = errors.New("pullpay: payment is cancelled")
	ErrAlreadyCancelled = errors.New("pullpay: payment already cancelled")
	ErrScheduleNotDue   = errors.New("pullpay: payment is not due yet")
	ErrStaleCounter     = errors.New("pullpay: remaining payments counter is stale")
	ErrPaymentExhausted = errors.New("pullpay: no payments remaining")
	ErrPaymentExpired   = errors.New("pullpay: payment is expired")

	// Field validation errors
	ErrZeroValue       = errors.New("pullpay: value must be higher than zero")
	ErrOverflowLimit   = errors.New("pullpay: value must be lower than the overflow limit")
	ErrEmptyString     = errors.New("pullpay: string is empty")
	ErrInvalidIdentity = errors.New("pullpay: invalid identity")
	ErrInvalidPlanType = errors.New("pullpay: invalid plan type")

	ErrExpirationNotInFuture = errors.New("pullpay: expiration timestamp must be in the future")

	// Conversion errors
	ErrInvalidRate        = conversion.ErrInvalidRate
	ErrConversionOverflow = conversion.ErrOverflow

	// Limit errors
	ErrTotalLimitReached     = errors.New("pullpay: total limit reached")
	ErrTimeBasedLimitReached = errors.New("pullpay: time based limit reached")
	ErrInvalidTotalLimit     = errors.New("pullpay: new total limit is less than the amount spent")
	ErrInvalidTimeBasedLimit = errors.New("pullpay: new time based limit is less than the amount spent")
	ErrNoTimeBasedLimit      = errors.New("pullpay: payment has no time based limit")

	// Ledger errors
	ErrInsufficientFunds     = ledger.ErrInsufficientFunds
	ErrTransferNotAuthorized = ledger.ErrNotAuthorized

	// Store errors
	ErrExecutionNotFound = errors.New("pullpay: execution not found")
)

// ValidationError reports which field failed and why. Unwrap yields the kind
// sentinel, so errors.Is(err, ErrZeroValue) holds for a zero field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pullpay: validation failed for %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// MultiError collects independent failures, e.g. one per plan in a keeper sweep.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "pullpay: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("pullpay: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error { return e.Errors }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPaymentNotFound) || errors.Is(err, ErrExecutionNotFound)
}

// IsRetryable returns true when the same call may succeed later without any
// change by the payer: the schedule has not come due, the counter moved, or
// the payer is temporarily short of funds.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrScheduleNotDue) ||
		errors.Is(err, ErrStaleCounter) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrTimeBasedLimitReached)
}

// IsTerminal returns true when the plan will never execute again.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrPaymentCancelled) ||
		errors.Is(err, ErrAlreadyCancelled) ||
		errors.Is(err, ErrPaymentExhausted) ||
		errors.Is(err, ErrPaymentExpired)
}

// codes maps each sentinel to its stable kind code.
var codes = []struct {
	err  error
	code string
}{
	{ErrSignatureInvalid, "SignatureInvalid"},
	{ErrNotAuthorizedExecutor, "NotAuthorizedExecutor"},
	{ErrNotPullPaymentExecutor, "NotPullPaymentExecutor"},
	{ErrNotCustomer, "NotCustomer"},
	{ErrPaymentExists, "PaymentExists"},
	{ErrPaymentNotFound, "PaymentNotFound"},
	{ErrPaymentCancelled, "PaymentCancelled"},
	{ErrAlreadyCancelled, "AlreadyCancelled"},
	{ErrScheduleNotDue, "ScheduleNotDue"},
	{ErrStaleCounter, "StaleCounter"},
	{ErrPaymentExhausted, "PaymentExhausted"},
	{ErrPaymentExpired, "PaymentExpired"},
	{ErrZeroValue, "ZeroValue"},
	{ErrOverflowLimit, "OverflowLimit"},
	{ErrEmptyString, "EmptyString"},
	{ErrInvalidIdentity, "InvalidIdentity"},
	{ErrInvalidPlanType, "InvalidPlanType"},
	{ErrExpirationNotInFuture, "ExpirationNotInFuture"},
	{ErrInvalidRate, "InvalidRate"},
	{ErrConversionOverflow, "ConversionOverflow"},
	{ErrTotalLimitReached, "TotalLimitReached"},
	{ErrTimeBasedLimitReached, "TimeBasedLimitReached"},
	{ErrInvalidTotalLimit, "InvalidTotalLimit"},
	{ErrInvalidTimeBasedLimit, "InvalidTimeBasedLimit"},
	{ErrNoTimeBasedLimit, "NoTimeBasedLimit"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrTransferNotAuthorized, "TransferNotAuthorized"},
	{ErrExecutionNotFound, "ExecutionNotFound"},
}

// Code returns the stable kind code of err, "" for nil, or "Internal" for
// errors outside the taxonomy.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "Internal"
}
