// Package api exposes the pull payment engine over HTTP with Fiber.
//
// The API does not authenticate callers itself. A CallerResolver maps each
// request to the identity the engine authorizes; the default trusts the
// X-Caller-Address header set by an authenticating gateway.
package api

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/xraph/pullpay"
)

// DefaultCallerHeader carries the caller identity for HeaderCaller.
const DefaultCallerHeader = "X-Caller-Address"

// ErrMissingCaller is returned by a CallerResolver that finds no identity.
var ErrMissingCaller = errors.New("api: missing caller identity")

// CallerResolver returns the identity making the request.
type CallerResolver func(c *fiber.Ctx) (common.Address, error)

// HeaderCaller resolves the caller from a hex address header. The header is
// whatever the client sent; it is only an identity when a gateway in front
// of the API authenticates the request and overwrites it.
func HeaderCaller(header string) CallerResolver {
	return func(c *fiber.Ctx) (common.Address, error) {
		v := strings.TrimSpace(c.Get(header))
		if !common.IsHexAddress(v) {
			return common.Address{}, ErrMissingCaller
		}
		return common.HexToAddress(v), nil
	}
}

// API serves the engine's entry points.
type API struct {
	engine   *pullpay.Engine
	caller   CallerResolver
	validate *validator.Validate
	logger   *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithCallerResolver replaces the caller resolver.
func WithCallerResolver(r CallerResolver) Option {
	return func(a *API) { a.caller = r }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// New creates an API over engine.
//
// Without WithCallerResolver the caller is read from the X-Caller-Address
// header, so executor registration, cancellation and payer limit updates are
// only as strong as the gateway that sets it. Deployments reachable without
// such a gateway must install a resolver that authenticates the request.
func New(engine *pullpay.Engine, opts ...Option) *API {
	a := &API{
		engine:   engine,
		caller:   HeaderCaller(DefaultCallerHeader),
		validate: validator.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// App returns a Fiber application serving the API at its root.
func (a *API) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "pullpay",
		ErrorHandler: a.errorHandler,
	})
	app.Use(fiberrecover.New())
	a.Register(app)
	return app
}

// Register mounts the routes on r.
func (a *API) Register(r fiber.Router) {
	rec := r.Group("/recurring")
	rec.Get("/", a.listRecurring)
	rec.Post("/", a.registerRecurring)
	rec.Get("/:id", a.getRecurring)
	rec.Post("/:id/execute", a.executeRecurring)
	rec.Post("/:id/cancel", a.cancelRecurring)

	top := r.Group("/topups")
	top.Get("/", a.listTopUps)
	top.Post("/", a.registerTopUp)
	top.Get("/:id", a.getTopUp)
	top.Get("/:id/limits", a.retrieveLimits)
	top.Post("/:id/execute", a.executeTopUp)
	top.Post("/:id/cancel", a.cancelTopUp)
	top.Put("/:id/limits/total", a.updateTotalLimit)
	top.Put("/:id/limits/time-based", a.updateTimeBasedLimit)
	top.Put("/:id/limits/period", a.updateTimeBasedPeriod)
	top.Put("/:id/limits/time-based-and-period", a.updateTimeBasedLimitAndPeriod)
	top.Put("/:id/limits", a.updateAllLimits)

	r.Get("/payments/:id/executions", a.listExecutions)
}
