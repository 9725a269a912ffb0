// Package testing groups test helpers for code built on go-sqlsession.
//
// The mocks subpackage holds testify mocks of the transaction and connection
// interfaces, for unit tests that need to script failures precisely. The containers
// subpackage starts real databases through testcontainers and is compiled only with
// the integration build tag.
//
// Most tests are easier to write against the in-memory fakes in database/testing:
//
//	import (
//		dbtest "github.com/gaborage/go-sqlsession/database/testing"
//		"github.com/gaborage/go-sqlsession/testing/mocks"
//	)
package testing
