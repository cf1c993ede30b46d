package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/pullpay/execution"
)

// Registry manages all registered plugins and provides efficient dispatch.
// Hook interfaces are discovered once at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onPaymentRegistered []OnPaymentRegistered
	onPaymentExecuted   []OnPaymentExecuted
	onPaymentCancelled  []OnPaymentCancelled
	onLimitUpdated      []OnLimitUpdated
	onExecutionRejected []OnExecutionRejected
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: 5 * time.Second,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout bounds how long a single hook may run.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnPaymentRegistered); ok {
		r.onPaymentRegistered = append(r.onPaymentRegistered, v)
		hooks = append(hooks, "OnPaymentRegistered")
	}
	if v, ok := p.(OnPaymentExecuted); ok {
		r.onPaymentExecuted = append(r.onPaymentExecuted, v)
		hooks = append(hooks, "OnPaymentExecuted")
	}
	if v, ok := p.(OnPaymentCancelled); ok {
		r.onPaymentCancelled = append(r.onPaymentCancelled, v)
		hooks = append(hooks, "OnPaymentCancelled")
	}
	if v, ok := p.(OnLimitUpdated); ok {
		r.onLimitUpdated = append(r.onLimitUpdated, v)
		hooks = append(hooks, "OnLimitUpdated")
	}
	if v, ok := p.(OnExecutionRejected); ok {
		r.onExecutionRejected = append(r.onExecutionRejected, v)
		hooks = append(hooks, "OnExecutionRejected")
	}

	r.logger.Debug("plugin registered",
		"plugin", p.Name(),
		"hooks", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnInit", func() error {
			return p.OnInit(ctx, engine)
		})
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnShutdown", func() error {
			return p.OnShutdown(ctx)
		})
	}
}

// EmitPaymentRegistered emits a payment registered event.
func (r *Registry) EmitPaymentRegistered(ctx context.Context, evt *PaymentRegistered) {
	r.mu.RLock()
	plugins := r.onPaymentRegistered
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnPaymentRegistered", func() error {
			return p.OnPaymentRegistered(ctx, evt)
		})
	}
}

// EmitPaymentExecuted emits a payment executed event.
func (r *Registry) EmitPaymentExecuted(ctx context.Context, exec *execution.Execution) {
	r.mu.RLock()
	plugins := r.onPaymentExecuted
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnPaymentExecuted", func() error {
			return p.OnPaymentExecuted(ctx, exec)
		})
	}
}

// EmitPaymentCancelled emits a payment cancelled event.
func (r *Registry) EmitPaymentCancelled(ctx context.Context, evt *PaymentCancelled) {
	r.mu.RLock()
	plugins := r.onPaymentCancelled
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnPaymentCancelled", func() error {
			return p.OnPaymentCancelled(ctx, evt)
		})
	}
}

// EmitLimitUpdated emits a limit updated event.
func (r *Registry) EmitLimitUpdated(ctx context.Context, evt *LimitUpdated) {
	r.mu.RLock()
	plugins := r.onLimitUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnLimitUpdated", func() error {
			return p.OnLimitUpdated(ctx, evt)
		})
	}
}

// EmitExecutionRejected emits an execution rejected event.
func (r *Registry) EmitExecutionRejected(ctx context.Context, evt *ExecutionRejected) {
	r.mu.RLock()
	plugins := r.onExecutionRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		r.dispatch(ctx, p.Name(), "OnExecutionRejected", func() error {
			return p.OnExecutionRejected(ctx, evt)
		})
	}
}

func (r *Registry) dispatch(ctx context.Context, pluginName, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, pluginName, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", pluginName,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the payment pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
