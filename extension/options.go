package extension

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/pullpay"
	"github.com/xraph/pullpay/api"
	"github.com/xraph/pullpay/executor"
	"github.com/xraph/pullpay/keeper"
	"github.com/xraph/pullpay/ledger"
	"github.com/xraph/pullpay/plugin"
	"github.com/xraph/pullpay/store"
	"github.com/xraph/pullpay/store/mongo"
	"github.com/xraph/pullpay/store/postgres"
	"github.com/xraph/pullpay/store/sqlite"
)

// Option configures the pull payment Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine. Defaults to the memory store.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithPostgres backs the engine with the PostgreSQL store on db.
func WithPostgres(db *grove.DB) Option {
	return WithStore(postgres.New(db))
}

// WithSQLite backs the engine with the SQLite store on db.
func WithSQLite(db *grove.DB) Option {
	return WithStore(sqlite.New(db))
}

// WithMongo backs the engine with the MongoDB store on db.
func WithMongo(db *grove.DB) Option {
	return WithStore(mongo.New(db))
}

// WithLedger sets the token ledger funds are drawn through. Required.
func WithLedger(l ledger.Ledger) Option {
	return func(e *Extension) { e.ledger = l }
}

// WithExecutors sets the executor registry.
func WithExecutors(r executor.Registry) Option {
	return func(e *Extension) { e.executors = r }
}

// WithRates sets the rate source the keeper executes recurring plans at.
// Without one the keeper does not run.
func WithRates(r keeper.RateSource) Option {
	return func(e *Extension) { e.rates = r }
}

// WithEngineOption passes a pullpay.Option through to the underlying engine.
func WithEngineOption(opt pullpay.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithKeeperOption passes a keeper.Option through to the keeper.
func WithKeeperOption(opt keeper.Option) Option {
	return func(e *Extension) {
		e.keeperOpts = append(e.keeperOpts, opt)
	}
}

// WithAPIOption passes an api.Option through to the HTTP API.
func WithAPIOption(opt api.Option) Option {
	return func(e *Extension) {
		e.apiOpts = append(e.apiOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, pullpay.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithConfigFile reads configuration from a YAML file when Forge has none.
func WithConfigFile(path string) Option {
	return func(e *Extension) { e.configFile = path }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDisableKeeper prevents the keeper from running.
func WithDisableKeeper() Option {
	return func(e *Extension) { e.config.DisableKeeper = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithTokenDecimals sets the number of decimals of the ledger unit.
func WithTokenDecimals(decimals uint8) Option {
	return func(e *Extension) { e.config.TokenDecimals = decimals }
}

// WithSigningDomain sets the domain payer signatures are bound to.
func WithSigningDomain(domain string) Option {
	return func(e *Extension) { e.config.SigningDomain = domain }
}

// WithKeeperInterval sets the time between keeper sweeps.
func WithKeeperInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.KeeperInterval = d }
}

// WithKeeperBatchSize sets the page size the keeper lists due plans with.
func WithKeeperBatchSize(n int) Option {
	return func(e *Extension) { e.config.KeeperBatchSize = n }
}

// WithKeeperRateLimit caps keeper executions.
func WithKeeperRateLimit(perSecond float64, burst int) Option {
	return func(e *Extension) {
		e.config.KeeperRatePerSecond = perSecond
		e.config.KeeperBurst = burst
	}
}
