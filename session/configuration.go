// Package session is the entry point of the runtime. A Factory built over an immutable
// Configuration opens short-lived Sessions; each Session binds one executor and one
// transaction to a single connection until it is closed.
package session

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gaborage/go-sqlsession/executor"
	"github.com/gaborage/go-sqlsession/logger"
	"github.com/gaborage/go-sqlsession/mapping"
	"github.com/gaborage/go-sqlsession/transaction"
)

// ExecutorBuilder creates the executor of a session. It is replaceable for tests.
type ExecutorBuilder func(tx transaction.Transaction, kind executor.Kind, opts ...executor.Option) (executor.Executor, error)

// Configuration is the shared, read-only state behind a Factory: the environment, the
// default executor kind and the statement registry. Statements and mappers are registered
// through Registry before Freeze; after Freeze the configuration never changes.
type Configuration struct {
	environment     *mapping.Environment
	defaultKind     executor.Kind
	defaultTimeout  time.Duration
	registry        *mapping.Registry
	logger          logger.Logger
	executorBuilder ExecutorBuilder
	frozen          atomic.Bool
}

// ConfigurationOption configures a Configuration.
type ConfigurationOption func(*Configuration)

// WithDefaultExecutorKind sets the executor kind used when a session does not ask for one.
func WithDefaultExecutorKind(kind executor.Kind) ConfigurationOption {
	return func(c *Configuration) {
		c.defaultKind = kind
	}
}

// WithDefaultStatementTimeout sets the timeout of statements that declare none.
func WithDefaultStatementTimeout(d time.Duration) ConfigurationOption {
	return func(c *Configuration) {
		c.defaultTimeout = d
	}
}

// WithLogger sets the logger handed to transactions, executors and sessions.
func WithLogger(log logger.Logger) ConfigurationOption {
	return func(c *Configuration) {
		if log != nil {
			c.logger = log
		}
	}
}

// WithExecutorBuilder replaces executor construction.
func WithExecutorBuilder(b ExecutorBuilder) ConfigurationOption {
	return func(c *Configuration) {
		if b != nil {
			c.executorBuilder = b
		}
	}
}

// NewConfiguration creates a configuration over env, which may be nil.
func NewConfiguration(env *mapping.Environment, opts ...ConfigurationOption) *Configuration {
	c := &Configuration{
		environment:     env,
		defaultKind:     executor.KindSimple,
		registry:        mapping.NewRegistry(),
		logger:          logger.Nop(),
		executorBuilder: executor.New,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Environment returns the environment, or nil when none was configured.
func (c *Configuration) Environment() *mapping.Environment {
	return c.environment
}

// DefaultExecutorKind returns the executor kind used when a session does not ask for one.
func (c *Configuration) DefaultExecutorKind() executor.Kind {
	return c.defaultKind.Resolve(executor.KindSimple)
}

// Registry returns the statement registry for registration before Freeze.
func (c *Configuration) Registry() *mapping.Registry {
	return c.registry
}

// Freeze makes the configuration read-only. It is called by NewFactory.
func (c *Configuration) Freeze() {
	if c.frozen.CompareAndSwap(false, true) {
		c.registry.Freeze()
	}
}

// MappedStatement looks up a statement by its "namespace.name" id.
func (c *Configuration) MappedStatement(id string) (*mapping.MappedStatement, error) {
	return c.registry.Statement(id)
}

// Mapper looks up a registered mapper.
func (c *Configuration) Mapper(name string) (*mapping.Mapper, bool) {
	return c.registry.Mapper(name)
}

// NewExecutor builds an executor of kind over tx, resolving KindDefault to the configured
// default.
func (c *Configuration) NewExecutor(tx transaction.Transaction, kind executor.Kind) (executor.Executor, error) {
	exec, err := c.executorBuilder(tx, kind.Resolve(c.defaultKind),
		executor.WithLogger(c.logger),
		executor.WithDefaultTimeout(c.defaultTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}
	return exec, nil
}
