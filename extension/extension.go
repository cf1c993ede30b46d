// Package extension provides the Forge extension adapter for the pull payment
// engine.
//
// It implements the forge.Extension interface to integrate the engine into a
// Forge application with DI registration and lifecycle management. When a
// rate source is configured, the extension also runs the recurring keeper.
//
// Configuration can be provided programmatically via Option functions,
// via YAML configuration files under "extensions.pullpay" or "pullpay" keys,
// or via a standalone file passed to WithConfigFile.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/pullpay"
	"github.com/xraph/pullpay/api"
	"github.com/xraph/pullpay/conversion"
	"github.com/xraph/pullpay/executor"
	"github.com/xraph/pullpay/keeper"
	"github.com/xraph/pullpay/ledger"
	"github.com/xraph/pullpay/store"
	"github.com/xraph/pullpay/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "pullpay"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Signed pull payment authorization and billing engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// ErrNoLedger is returned by Register when no ledger was configured.
var ErrNoLedger = errors.New("pullpay: extension requires a ledger (use WithLedger)")

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the pull payment engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	configFile string

	engine     *pullpay.Engine
	api        *api.API
	keeper     *keeper.Keeper
	store      store.Store
	ledger     ledger.Ledger
	executors  executor.Registry
	rates      keeper.RateSource
	engineOpts []pullpay.Option
	keeperOpts []keeper.Option
	apiOpts    []api.Option
}

// New creates a new pull payment Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine. This is nil until Register is called.
func (e *Extension) Engine() *pullpay.Engine { return e.engine }

// API returns the HTTP API bound to the engine. This is nil until Register
// is called.
func (e *Extension) API() *api.API { return e.api }

// Keeper returns the recurring keeper, or nil when it is disabled or no rate
// source was configured.
func (e *Extension) Keeper() *keeper.Keeper { return e.keeper }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration, builds the
// engine, API and keeper, and registers them in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.ledger == nil {
		return ErrNoLedger
	}
	if e.store == nil {
		e.store = memory.New()
	}
	if e.executors == nil {
		e.Logger().Warn("pullpay: no executor registry configured; no executor is authorized")
		e.executors = executor.NewSet()
	}

	e.engine = pullpay.New(e.store, e.ledger, e.executors, e.buildEngineOpts()...)
	e.api = api.New(e.engine, e.apiOpts...)

	if !e.config.DisableKeeper && e.rates != nil {
		e.keeper = keeper.New(e.engine, e.rates, e.buildKeeperOpts()...)
	}

	if err := vessel.Provide(fapp.Container(), func() (*pullpay.Engine, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}
	return vessel.Provide(fapp.Container(), func() (*api.API, error) {
		return e.api, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("pullpay: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	if e.keeper != nil {
		if err := e.keeper.Start(ctx); err != nil {
			return err
		}
		e.Logger().Info("pullpay: keeper started",
			forge.F("interval", e.config.KeeperInterval.String()),
			forge.F("batch_size", e.config.KeeperBatchSize),
		)
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.keeper != nil {
		e.keeper.Stop()
	}
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("pullpay: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs engine options from the resolved config.
// Pass-through options come last so they win.
func (e *Extension) buildEngineOpts() []pullpay.Option {
	opts := make([]pullpay.Option, 0, len(e.engineOpts)+2)
	opts = append(opts, pullpay.WithConverter(conversion.New(e.config.TokenDecimals)))
	if e.config.SigningDomain != "" {
		opts = append(opts, pullpay.WithSigningDomain(e.config.SigningDomain))
	}
	return append(opts, e.engineOpts...)
}

func (e *Extension) buildKeeperOpts() []keeper.Option {
	opts := []keeper.Option{
		keeper.WithInterval(e.config.KeeperInterval),
		keeper.WithBatchSize(e.config.KeeperBatchSize),
		keeper.WithRateLimit(e.config.KeeperRatePerSecond, e.config.KeeperBurst),
	}
	return append(opts, e.keeperOpts...)
}

// --- Config Loading ---

// loadConfiguration loads config from Forge, a standalone file, or
// programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded, err := e.tryLoadConfig()
	if err != nil {
		return err
	}

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("pullpay: configuration is required but not found in config files; " +
				"ensure 'extensions.pullpay' or 'pullpay' key exists in your config")
		}
		e.config = withDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("pullpay: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("disable_keeper", e.config.DisableKeeper),
		forge.F("token_decimals", e.config.TokenDecimals),
		forge.F("keeper_interval", e.config.KeeperInterval.String()),
		forge.F("keeper_batch_size", e.config.KeeperBatchSize),
		forge.F("keeper_rate_per_second", e.config.KeeperRatePerSecond),
	)

	return nil
}

// tryLoadConfig looks in the Forge config manager first, then in the file
// given to WithConfigFile.
func (e *Extension) tryLoadConfig() (Config, bool, error) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.pullpay", "pullpay"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("pullpay: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("pullpay: loaded config from file", forge.F("key", key))
		return cfg, true, nil
	}

	if e.configFile != "" {
		cfg, err := LoadConfigFile(e.configFile)
		if err != nil {
			return Config{}, false, err
		}
		return cfg, true, nil
	}

	return Config{}, false, nil
}
