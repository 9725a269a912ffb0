// Package tracking instruments physical database operations. Each prepared statement
// execution, begin, commit and rollback becomes an OpenTelemetry span, a metric sample and
// a structured log event.
package tracking

import (
	"time"

	"github.com/gaborage/go-sqlsession/config"
	"github.com/gaborage/go-sqlsession/logger"
)

const (
	DefaultSlowQueryThreshold = 200 * time.Millisecond
	DefaultMaxQueryLength     = 1000
)

// Context is what a tracked connection hands to TrackDBOperation.
type Context struct {
	Logger   logger.Logger
	Vendor   string
	Settings Settings
}

// Settings are the query logging knobs of one data source.
type Settings struct {
	slowThreshold time.Duration
	maxLength     int
	logParams     bool
}

// NewSettings reads the query section of cfg. Non-positive limits and a nil cfg fall back
// to DefaultSlowQueryThreshold and DefaultMaxQueryLength.
func NewSettings(cfg *config.DatabaseConfig) Settings {
	var q config.QueryConfig
	if cfg != nil {
		q = cfg.Query
	}
	return Settings{
		slowThreshold: positiveOr(q.SlowThreshold, DefaultSlowQueryThreshold),
		maxLength:     positiveOr(q.MaxLength, DefaultMaxQueryLength),
		logParams:     q.LogParameters,
	}
}

func positiveOr[T int | time.Duration](v, fallback T) T {
	if v > 0 {
		return v
	}
	return fallback
}

// SlowQueryThreshold is the duration above which an operation logs at warn.
func (s Settings) SlowQueryThreshold() time.Duration { return s.slowThreshold }

// MaxQueryLength caps the logged SQL text and parameter values, in runes.
func (s Settings) MaxQueryLength() int { return s.maxLength }

// LogQueryParameters reports whether bound parameters are logged.
func (s Settings) LogQueryParameters() bool { return s.logParams }
