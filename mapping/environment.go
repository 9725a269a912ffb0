package mapping

import (
	"errors"

	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/transaction"
)

// Environment binds an id to the data source sessions run against and the transaction
// strategy they use. It is immutable.
type Environment struct {
	id        string
	ds        types.DataSource
	txFactory transaction.Factory
}

// NewEnvironment creates an environment. A nil factory leaves the choice to the session
// factory, which then falls back to managed transactions.
func NewEnvironment(id string, ds types.DataSource, txFactory transaction.Factory) (*Environment, error) {
	if id == "" {
		return nil, errors.New("environment id is required")
	}
	if ds == nil {
		return nil, errors.New("environment data source is required")
	}
	return &Environment{id: id, ds: ds, txFactory: txFactory}, nil
}

// ID returns the environment id.
func (e *Environment) ID() string {
	return e.id
}

// DataSource returns the data source.
func (e *Environment) DataSource() types.DataSource {
	return e.ds
}

// TransactionFactory returns the configured factory, which may be nil.
func (e *Environment) TransactionFactory() transaction.Factory {
	if e == nil {
		return nil
	}
	return e.txFactory
}
