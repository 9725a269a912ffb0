//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"database/sql"
	"fmt"
	"strings"
)

// IsolationLevel is the transaction isolation requested when a session opens.
// The zero value means "not requested": the connection keeps the driver default.
type IsolationLevel int

const (
	IsolationUnset IsolationLevel = iota
	IsolationNone
	IsolationReadUncommitted
	IsolationReadCommitted
	IsolationRepeatableRead
	IsolationSerializable
)

// IsSet reports whether a concrete isolation level was requested.
func (l IsolationLevel) IsSet() bool {
	return l != IsolationUnset
}

// SQL converts the level to the database/sql representation used by BeginTx.
func (l IsolationLevel) SQL() sql.IsolationLevel {
	switch l {
	case IsolationReadUncommitted:
		return sql.LevelReadUncommitted
	case IsolationReadCommitted:
		return sql.LevelReadCommitted
	case IsolationRepeatableRead:
		return sql.LevelRepeatableRead
	case IsolationSerializable:
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

func (l IsolationLevel) String() string {
	switch l {
	case IsolationNone:
		return "none"
	case IsolationReadUncommitted:
		return "read_uncommitted"
	case IsolationReadCommitted:
		return "read_committed"
	case IsolationRepeatableRead:
		return "repeatable_read"
	case IsolationSerializable:
		return "serializable"
	default:
		return ""
	}
}

// ParseIsolationLevel parses the configuration spelling of an isolation level.
// An empty string yields IsolationUnset.
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch normalized {
	case "":
		return IsolationUnset, nil
	case "none":
		return IsolationNone, nil
	case "read_uncommitted":
		return IsolationReadUncommitted, nil
	case "read_committed":
		return IsolationReadCommitted, nil
	case "repeatable_read":
		return IsolationRepeatableRead, nil
	case "serializable":
		return IsolationSerializable, nil
	default:
		return IsolationUnset, fmt.Errorf("unknown isolation level: %s", s)
	}
}
