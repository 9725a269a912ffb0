package session

import (
	"context"
	"fmt"

	"github.com/gaborage/go-sqlsession/database/types"
	"github.com/gaborage/go-sqlsession/mapping"
)

// MapperProxy dispatches mapper method calls to the session. The method table is built
// once when the mapper is registered; Call only looks it up.
type MapperProxy struct {
	session *Session
	mapper  *mapping.Mapper
}

// Name returns the mapper name.
func (p *MapperProxy) Name() string {
	return p.mapper.Name
}

// Call runs method with params. Select-one methods return the row or nil, select-list
// methods return []any and update methods return the affected row count as int64.
func (p *MapperProxy) Call(ctx context.Context, method string, params any) (any, error) {
	m, ok := p.mapper.Method(method)
	if !ok {
		id := mapping.QualifiedID(p.mapper.Name, method)
		return nil, types.NewError(types.ErrUnknownStatement, "call mapper method",
			fmt.Errorf("mapper %s has no method %s", p.mapper.Name, method)).WithStatement(id)
	}

	switch m.Kind {
	case mapping.MethodSelectOne:
		return p.session.SelectOne(ctx, m.StatementID, params)
	case mapping.MethodSelectList:
		return p.session.SelectList(ctx, m.StatementID, params)
	default:
		return p.session.Update(ctx, m.StatementID, params)
	}
}
