package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKindAndCause(t *testing.T) {
	cause := errors.New("driver: bad connection")
	err := NewError(ErrExecution, "update", cause).WithStatement("users.insert")

	assert.ErrorIs(t, err, ErrExecution)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTransaction)
	assert.Equal(t, "update [users.insert]: statement execution failed: driver: bad connection", err.Error())
}

func TestErrorWithoutCause(t *testing.T) {
	err := NewError(ErrUsage, "select", nil)
	assert.Equal(t, "select: invalid usage", err.Error())
	assert.ErrorIs(t, err, ErrUsage)
}

func TestWrapKeepsExistingClassification(t *testing.T) {
	inner := NewError(ErrAcquisition, "open connection", errors.New("refused"))
	wrapped := fmt.Errorf("context: %w", inner)

	out := Wrap(ErrExecution, "query", wrapped)
	assert.Same(t, wrapped, out)
	assert.ErrorIs(t, out, ErrAcquisition)
	assert.NotErrorIs(t, out, ErrExecution)

	assert.NoError(t, Wrap(ErrExecution, "query", nil))
	assert.ErrorIs(t, Wrap(ErrExecution, "query", errors.New("x")), ErrExecution)
}

func TestParseIsolationLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    IsolationLevel
		wantErr bool
	}{
		{"", IsolationUnset, false},
		{"read_committed", IsolationReadCommitted, false},
		{"READ-UNCOMMITTED", IsolationReadUncommitted, false},
		{" repeatable_read ", IsolationRepeatableRead, false},
		{"serializable", IsolationSerializable, false},
		{"none", IsolationNone, false},
		{"snapshot", IsolationUnset, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIsolationLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.want.IsSet() {
				assert.Equal(t, tt.want, mustParse(t, got.String()))
			}
		})
	}
}

func mustParse(t *testing.T, s string) IsolationLevel {
	t.Helper()
	l, err := ParseIsolationLevel(s)
	assert.NoError(t, err)
	return l
}
