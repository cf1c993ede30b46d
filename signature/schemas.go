package signature

// Registration and cancellation schemas. Field order is part of the protocol:
// signers and verifiers must agree on it byte for byte.
var (
	// RecurringRegistration covers single, recurring and
	// recurring-with-initial plans.
	RecurringRegistration = NewSchema("recurring/v1",
		Field{"executor", KindAddress},
		Field{"paymentID", KindBytes32},
		Field{"businessID", KindBytes32},
		Field{"planType", KindUint256},
		Field{"treasury", KindAddress},
		Field{"currency", KindString},
		Field{"conversionRate", KindUint256},
		Field{"initialAmount", KindUint256},
		Field{"recurringAmount", KindUint256},
		Field{"frequency", KindUint256},
		Field{"numberOfPayments", KindUint256},
		Field{"start", KindUint256},
	)

	// RecurringTrialRegistration covers free and paid trial plans.
	RecurringTrialRegistration = NewSchema("recurring-trial/v1",
		Field{"executor", KindAddress},
		Field{"paymentID", KindBytes32},
		Field{"businessID", KindBytes32},
		Field{"planType", KindUint256},
		Field{"treasury", KindAddress},
		Field{"currency", KindString},
		Field{"conversionRate", KindUint256},
		Field{"initialAmount", KindUint256},
		Field{"recurringAmount", KindUint256},
		Field{"frequency", KindUint256},
		Field{"numberOfPayments", KindUint256},
		Field{"start", KindUint256},
		Field{"trialPeriod", KindUint256},
	)

	// TopUpRegistration covers top-up plans bounded by a total limit only.
	TopUpRegistration = NewSchema("topup/v1",
		Field{"pullPaymentExecutor", KindAddress},
		Field{"paymentID", KindBytes32},
		Field{"businessID", KindBytes32},
		Field{"treasury", KindAddress},
		Field{"currency", KindString},
		Field{"conversionRate", KindUint256},
		Field{"initialAmount", KindUint256},
		Field{"topUpAmount", KindUint256},
		Field{"start", KindUint256},
		Field{"totalLimit", KindUint256},
	)

	// TopUpTimeBasedRegistration adds a rolling window limit.
	TopUpTimeBasedRegistration = NewSchema("topup-time-based/v1",
		Field{"pullPaymentExecutor", KindAddress},
		Field{"paymentID", KindBytes32},
		Field{"businessID", KindBytes32},
		Field{"treasury", KindAddress},
		Field{"currency", KindString},
		Field{"conversionRate", KindUint256},
		Field{"initialAmount", KindUint256},
		Field{"topUpAmount", KindUint256},
		Field{"start", KindUint256},
		Field{"totalLimit", KindUint256},
		Field{"timeBasedLimit", KindUint256},
		Field{"timeBasedPeriod", KindUint256},
	)

	// TopUpExpiringRegistration is TopUpRegistration with a hard expiry.
	TopUpExpiringRegistration = NewSchema("topup-expiring/v1",
		Field{"pullPaymentExecutor", KindAddress},
		Field{"paymentID", KindBytes32},
		Field{"businessID", KindBytes32},
		Field{"treasury", KindAddress},
		Field{"currency", KindString},
		Field{"conversionRate", KindUint256},
		Field{"initialAmount", KindUint256},
		Field{"topUpAmount", KindUint256},
		Field{"start", KindUint256},
		Field{"totalLimit", KindUint256},
		Field{"expiration", KindUint256},
	)

	// TopUpTimeBasedExpiringRegistration is TopUpTimeBasedRegistration with a
	// hard expiry. The expiry precedes the window fields.
	TopUpTimeBasedExpiringRegistration = NewSchema("topup-time-based-expiring/v1",
		Field{"pullPaymentExecutor", KindAddress},
		Field{"paymentID", KindBytes32},
		Field{"businessID", KindBytes32},
		Field{"treasury", KindAddress},
		Field{"currency", KindString},
		Field{"conversionRate", KindUint256},
		Field{"initialAmount", KindUint256},
		Field{"topUpAmount", KindUint256},
		Field{"start", KindUint256},
		Field{"totalLimit", KindUint256},
		Field{"expiration", KindUint256},
		Field{"timeBasedLimit", KindUint256},
		Field{"timeBasedPeriod", KindUint256},
	)

	// RecurringCancellation binds a payment to the executor it was registered with.
	RecurringCancellation = NewSchema("recurring-cancel/v1",
		Field{"paymentID", KindBytes32},
		Field{"executor", KindAddress},
	)

	// TopUpCancellation binds a payment to its business.
	TopUpCancellation = NewSchema("topup-cancel/v1",
		Field{"paymentID", KindBytes32},
		Field{"businessID", KindBytes32},
		Field{"pullPaymentExecutor", KindAddress},
	)
)
