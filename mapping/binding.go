package mapping

import (
	"fmt"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/gaborage/go-sqlsession/database/types"
)

// tokenRegex matches #{name} and #{name,option=...} parameter tokens.
var tokenRegex = regexp.MustCompile(`#\{\s*([^},]+?)\s*(?:,[^}]*)?\}`)

// BoundSQL is a statement ready for a driver: vendor placeholders plus positional args.
type BoundSQL struct {
	SQL  string
	Args []any
}

// ParamSource resolves named parameters. Implement it on a type to pass it as params
// without going through a map.
type ParamSource interface {
	Param(name string) (any, bool)
}

// Params is a map-backed ParamSource.
type Params map[string]any

// Param implements ParamSource. Dotted names walk nested maps.
func (p Params) Param(name string) (any, bool) {
	return lookup(map[string]any(p), name)
}

func lookup(m map[string]any, name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	head, rest, found := strings.Cut(name, ".")
	if !found {
		return nil, false
	}
	switch nested := m[head].(type) {
	case map[string]any:
		return lookup(nested, rest)
	case Params:
		return lookup(nested, rest)
	case ParamSource:
		return nested.Param(rest)
	default:
		return nil, false
	}
}

// PlaceholderFormat returns the squirrel placeholder format used by vendor.
func PlaceholderFormat(vendor string) sq.PlaceholderFormat {
	switch vendor {
	case types.PostgreSQL:
		return sq.Dollar
	case types.Oracle:
		return sq.Colon
	default:
		return sq.Question
	}
}

// Bind replaces every #{name} token in query with a positional placeholder for vendor and
// collects the matching arguments in order.
//
// params may be nil (no tokens allowed), a map[string]any, Params, a ParamSource, or a
// single scalar when every token in the statement has the same name.
func Bind(query, vendor string, params any) (BoundSQL, error) {
	matches := tokenRegex.FindAllStringSubmatchIndex(query, -1)
	if len(matches) == 0 {
		return BoundSQL{SQL: query}, nil
	}

	format := PlaceholderFormat(vendor)
	escape := format != sq.Question

	var b strings.Builder
	args := make([]any, 0, len(matches))
	last := 0
	for _, m := range matches {
		literal := query[last:m[0]]
		if escape {
			// A literal '?' would be taken for a placeholder by the format rewrite.
			literal = strings.ReplaceAll(literal, "?", "??")
		}
		b.WriteString(literal)
		b.WriteString("?")

		name := query[m[2]:m[3]]
		value, err := resolve(params, name, matches, query)
		if err != nil {
			return BoundSQL{}, err
		}
		args = append(args, value)
		last = m[1]
	}
	tail := query[last:]
	if escape {
		tail = strings.ReplaceAll(tail, "?", "??")
	}
	b.WriteString(tail)

	out, err := format.ReplacePlaceholders(b.String())
	if err != nil {
		return BoundSQL{}, fmt.Errorf("failed to rewrite placeholders: %w", err)
	}
	return BoundSQL{SQL: out, Args: args}, nil
}

func resolve(params any, name string, matches [][]int, query string) (any, error) {
	switch p := params.(type) {
	case nil:
		return nil, fmt.Errorf("missing parameter %q: no parameters supplied", name)
	case map[string]any:
		return resolveSource(Params(p), name)
	case ParamSource:
		return resolveSource(p, name)
	default:
		if !singleName(matches, query) {
			return nil, fmt.Errorf("scalar parameter cannot bind statement with several distinct parameters")
		}
		return p, nil
	}
}

func resolveSource(src ParamSource, name string) (any, error) {
	v, ok := src.Param(name)
	if !ok {
		return nil, fmt.Errorf("missing parameter %q", name)
	}
	return v, nil
}

func singleName(matches [][]int, query string) bool {
	first := query[matches[0][2]:matches[0][3]]
	for _, m := range matches[1:] {
		if query[m[2]:m[3]] != first {
			return false
		}
	}
	return true
}
