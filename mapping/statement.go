// Package mapping holds the static description of what a session can execute: mapped
// statements keyed by "namespace.name", mapper definitions, the environment a session runs
// against, parameter binding and result mapping.
package mapping

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies a mapped statement.
type Kind string

const (
	KindSelect Kind = "select"
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// ParseKind parses the mapping-file spelling of a statement kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSelect, KindInsert, KindUpdate, KindDelete:
		return k, nil
	default:
		return "", fmt.Errorf("unknown statement kind: %q", s)
	}
}

// IsWrite reports whether statements of this kind modify data.
func (k Kind) IsWrite() bool {
	return k == KindInsert || k == KindUpdate || k == KindDelete
}

// MappedStatement is one named SQL statement. It is immutable once registered.
type MappedStatement struct {
	// ID is the fully qualified "namespace.name" identifier.
	ID        string
	Namespace string
	Kind      Kind
	// SQL may contain #{name} parameter tokens.
	SQL string
	// Timeout bounds each execution. Zero means no statement-level limit.
	Timeout time.Duration
	// ResultMapper converts result rows. Nil selects MapRows.
	ResultMapper ResultMapper
}

// NewMappedStatement creates a statement with ID namespace.name.
func NewMappedStatement(namespace, name string, kind Kind, sql string) *MappedStatement {
	return &MappedStatement{
		ID:        QualifiedID(namespace, name),
		Namespace: namespace,
		Kind:      kind,
		SQL:       sql,
	}
}

// WithTimeout returns ms with a statement timeout.
func (ms *MappedStatement) WithTimeout(d time.Duration) *MappedStatement {
	ms.Timeout = d
	return ms
}

// WithResultMapper returns ms with a custom result mapper.
func (ms *MappedStatement) WithResultMapper(m ResultMapper) *MappedStatement {
	ms.ResultMapper = m
	return ms
}

// Mapper returns the effective result mapper.
func (ms *MappedStatement) Mapper() ResultMapper {
	if ms.ResultMapper != nil {
		return ms.ResultMapper
	}
	return MapRows
}

// Bind resolves the parameter tokens of the statement for vendor.
func (ms *MappedStatement) Bind(vendor string, params any) (BoundSQL, error) {
	return Bind(ms.SQL, vendor, params)
}

// QualifiedID joins a namespace and a name. An empty namespace yields name unchanged.
func QualifiedID(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

func (ms *MappedStatement) validate() error {
	if ms.ID == "" {
		return fmt.Errorf("mapped statement id is required")
	}
	if strings.TrimSpace(ms.SQL) == "" {
		return fmt.Errorf("mapped statement %s: sql is required", ms.ID)
	}
	if _, err := ParseKind(string(ms.Kind)); err != nil {
		return fmt.Errorf("mapped statement %s: %w", ms.ID, err)
	}
	if ms.Timeout < 0 {
		return fmt.Errorf("mapped statement %s: timeout must not be negative", ms.ID)
	}
	return nil
}
