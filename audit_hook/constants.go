package audithook

// Action constants for audit events.
const (
	ActionPaymentRegistered = "payment.registered"
	ActionPaymentExecuted   = "payment.executed"
	ActionPaymentCancelled  = "payment.cancelled"
	ActionExecutionRejected = "payment.execution_rejected"
	ActionLimitUpdated      = "limit.updated"
)

// Resource constants for audit events.
const (
	ResourceRecurringPlan = "recurring_plan"
	ResourceTopUpPlan     = "topup_plan"
)

// Category constants for audit events.
const (
	CategoryAuthorization = "authorization"
	CategoryPayment       = "payment"
	CategoryLimits        = "limits"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
