package api

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/xraph/pullpay"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// badRequest marks malformed input rejected before reaching the engine.
type badRequest struct{ err error }

func (e *badRequest) Error() string { return e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

func invalid(err error) error { return &badRequest{err: err} }

// Status returns the HTTP status for an engine error kind.
func Status(code string) int {
	switch code {
	case "PaymentNotFound", "ExecutionNotFound":
		return fiber.StatusNotFound
	case "SignatureInvalid":
		return fiber.StatusUnauthorized
	case "NotAuthorizedExecutor", "NotPullPaymentExecutor", "NotCustomer":
		return fiber.StatusForbidden
	case "PaymentExists", "AlreadyCancelled", "PaymentCancelled", "PaymentExhausted", "PaymentExpired",
		"ScheduleNotDue", "StaleCounter",
		"TotalLimitReached", "TimeBasedLimitReached",
		"InvalidTotalLimit", "InvalidTimeBasedLimit", "NoTimeBasedLimit":
		return fiber.StatusConflict
	case "ZeroValue", "OverflowLimit", "EmptyString", "InvalidIdentity", "InvalidPlanType",
		"ExpirationNotInFuture", "InvalidRate", "ConversionOverflow":
		return fiber.StatusUnprocessableEntity
	case "InsufficientFunds", "TransferNotAuthorized":
		return fiber.StatusPaymentRequired
	}
	return fiber.StatusInternalServerError
}

func (a *API) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{Error: "HTTPError", Message: fe.Message})
	}

	if errors.Is(err, ErrMissingCaller) {
		return c.Status(fiber.StatusUnauthorized).JSON(errorBody{Error: "MissingCaller", Message: err.Error()})
	}

	var br *badRequest
	if errors.As(err, &br) {
		body := errorBody{Error: "BadRequest", Message: err.Error()}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			body.Field = verrs[0].Field()
		}
		return c.Status(fiber.StatusBadRequest).JSON(body)
	}

	code := pullpay.Code(err)
	status := Status(code)
	body := errorBody{Error: code, Message: err.Error()}
	var ve *pullpay.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}

	if status >= fiber.StatusInternalServerError {
		a.logger.Error("pullpay api request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
		body.Message = "internal error"
	}
	return c.Status(status).JSON(body)
}
