package session

import (
	"context"
	"fmt"

	"github.com/gaborage/go-sqlsession/config"
	"github.com/gaborage/go-sqlsession/database"
	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/executor"
	"github.com/gaborage/go-sqlsession/logger"
	"github.com/gaborage/go-sqlsession/mapping"
	"github.com/gaborage/go-sqlsession/transaction"
)

// Build assembles a Factory from loaded configuration: the session environment's data
// source comes from manager, the transaction strategy and session defaults from the
// session section, and statements from the mapper files.
func Build(ctx context.Context, cfg *config.Config, manager *database.Manager, log logger.Logger) (*Factory, error) {
	envID := cfg.Session.Environment
	if envID == "" {
		envID = config.DefaultEnvironment
	}

	ds, err := manager.Get(ctx, envID)
	if err != nil {
		return nil, err
	}

	dbCfg, err := cfg.EnvironmentDatabase(envID)
	if err != nil {
		return nil, err
	}

	env, err := mapping.NewEnvironment(envID, ds, TransactionFactory(cfg.Session.Transaction, log))
	if err != nil {
		return nil, err
	}

	kind, err := executor.ParseKind(cfg.Session.Executor)
	if err != nil {
		return nil, config.NewInvalidFieldError("session.executor", err.Error(), []string{"simple", "reuse", "batch"})
	}
	isolation, err := types.ParseIsolationLevel(cfg.Session.Isolation)
	if err != nil {
		return nil, config.NewInvalidFieldError("session.isolation", err.Error(), nil)
	}

	configuration := NewConfiguration(env,
		WithDefaultExecutorKind(kind),
		WithDefaultStatementTimeout(dbCfg.Query.DefaultTimeout),
		WithLogger(log),
	)
	if err := mapping.LoadFiles(configuration.Registry(), cfg.Mappers.Files...); err != nil {
		return nil, fmt.Errorf("failed to load mappers: %w", err)
	}

	log.Info().
		Str("environment", envID).
		Str("executor", kind.Resolve(executor.KindSimple).String()).
		Str("transaction_manager", cfg.Session.Transaction.Manager).
		Int("statements", len(configuration.Registry().StatementIDs())).
		Msg("Session factory ready")

	return NewFactory(configuration,
		WithDefaultAutoCommit(cfg.Session.AutoCommit),
		WithDefaultIsolationLevel(isolation),
	), nil
}

// TransactionFactory returns the transaction factory selected by cfg.
func TransactionFactory(cfg config.TransactionConfig, log logger.Logger) transaction.Factory {
	if cfg.Manager == config.TransactionSelf {
		return transaction.NewSelfManagedFactory(
			transaction.WithLogger(log),
			transaction.WithSkipAutoCommitReset(cfg.SkipAutoCommitReset),
		)
	}
	return transaction.NewManagedFactory(
		transaction.WithLogger(log),
		transaction.WithCloseConnection(cfg.CloseConnection),
	)
}
