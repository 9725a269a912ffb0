package database

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gaborage/go-sqlsession/config"
	"github.com/gaborage/go-sqlsession/logger"
)

// ConfigSource resolves the data source configuration of an environment id.
// *config.Config satisfies it.
type ConfigSource interface {
	EnvironmentDatabase(id string) (*config.DatabaseConfig, error)
}

// Connector opens a data source for an environment. Injected for testability.
type Connector func(ctx context.Context, environment string, cfg *config.DatabaseConfig, log logger.Logger) (*DataSource, error)

// Manager lazily opens one data source per environment id and keeps it for reuse.
// Concurrent first requests for the same environment share a single open.
type Manager struct {
	logger    logger.Logger
	source    ConfigSource
	connector Connector

	mu      sync.RWMutex
	entries map[string]*dsEntry
	closed  bool

	sfg singleflight.Group
}

type dsEntry struct {
	ds       *DataSource
	opened   time.Time
	lastUsed time.Time
}

var errManagerClosed = errors.New("data source manager is closed")

// NewManager creates a data source manager. A nil connector selects NewDataSource.
func NewManager(source ConfigSource, log logger.Logger, connector Connector) *Manager {
	if connector == nil {
		connector = NewDataSource
	}
	return &Manager{
		logger:    log,
		source:    source,
		connector: connector,
		entries:   make(map[string]*dsEntry),
	}
}

// Get returns the data source of an environment, opening it on first use.
func (m *Manager) Get(ctx context.Context, environment string) (*DataSource, error) {
	if environment == "" {
		environment = config.DefaultEnvironment
	}

	if ds := m.getExisting(environment); ds != nil {
		return ds, nil
	}

	result, err, _ := m.sfg.Do(environment, func() (any, error) {
		if ds := m.getExisting(environment); ds != nil {
			return ds, nil
		}
		return m.open(ctx, environment)
	})
	if err != nil {
		return nil, err
	}

	return result.(*DataSource), nil
}

func (m *Manager) getExisting(environment string) *DataSource {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[environment]
	if !ok {
		return nil
	}
	entry.lastUsed = time.Now()
	return entry.ds
}

func (m *Manager) open(ctx context.Context, environment string) (*DataSource, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, errManagerClosed
	}

	cfg, err := m.source.EnvironmentDatabase(environment)
	if err != nil {
		return nil, fmt.Errorf("failed to get database config for environment %s: %w", environment, err)
	}

	ds, err := m.connector(ctx, environment, cfg, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open data source for environment %s: %w", environment, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		if closeErr := ds.Close(); closeErr != nil {
			m.logger.Warn().Err(closeErr).Str("environment", environment).Msg("Error closing data source opened during shutdown")
		}
		return nil, errManagerClosed
	}

	now := time.Now()
	m.entries[environment] = &dsEntry{ds: ds, opened: now, lastUsed: now}

	m.logger.Info().
		Str("environment", environment).
		Str("db_type", cfg.Type).
		Msg("Opened data source")

	return ds, nil
}

// Close closes every data source. Further Get calls fail.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	var errs []error
	for environment, entry := range m.entries {
		if err := entry.ds.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing data source for environment %s: %w", environment, err))
		}
	}
	m.entries = make(map[string]*dsEntry)

	return errors.Join(errs...)
}

// Size returns the number of open data sources
func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Stats returns pool statistics per environment.
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	now := time.Now()
	environments := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		entry := m.entries[id]
		environments = append(environments, map[string]any{
			"environment":   id,
			"vendor":        entry.ds.Vendor(),
			"opened_at":     entry.opened.Format(time.RFC3339),
			"idle_duration": int(now.Sub(entry.lastUsed).Seconds()),
			"pool":          entry.ds.Stats(),
		})
	}

	return map[string]any{
		"data_sources": len(ids),
		"environments": environments,
	}
}
