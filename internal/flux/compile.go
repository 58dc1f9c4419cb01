// Package flux turns parsed query trees into Flux pipeline text: Compile
// emits filter clauses, Assemble composes them with range, sort, pagination
// and projection stages into one query string.
package flux

import (
	"fmt"
	"strings"

	"github.com/telemetrydb/fluxrecord/internal/filter"
)

// Compile translates a query tree into an ordered sequence of filter
// clauses. A nil tree compiles to no clauses. Independent predicates each
// get their own clause; pipeline stages compose as logical AND, so no
// explicit AND clause is needed. $or compiles its children in expression
// mode and emits exactly one clause.
func Compile(n filter.Node) ([]string, error) {
	if n == nil {
		return nil, nil
	}

	switch t := n.(type) {
	case *filter.Equality, *filter.Operator:
		expr, err := compileExpr(n)
		if err != nil {
			return nil, err
		}
		return []string{filterClause(expr)}, nil

	case *filter.Combinator:
		if t.Kind == filter.And {
			var clauses []string
			for _, child := range t.Children {
				cs, err := Compile(child)
				if err != nil {
					return nil, err
				}
				clauses = append(clauses, cs...)
			}
			return clauses, nil
		}
		expr, err := compileExpr(t)
		if err != nil {
			return nil, err
		}
		return []string{filterClause(expr)}, nil

	default:
		return nil, fmt.Errorf("unknown query node %T", n)
	}
}

// compileExpr renders a query tree as a single boolean expression. This is
// the expression mode used inside $or, where clause framing is not
// available.
func compileExpr(n filter.Node) (string, error) {
	switch t := n.(type) {
	case *filter.Equality:
		return fieldRef(t.Field) + " == " + FormatValue(t.Value), nil

	case *filter.Operator:
		switch t.Op {
		case filter.OpEq:
			return fieldRef(t.Field) + " == " + FormatValue(t.Value), nil
		case filter.OpNe:
			return fieldRef(t.Field) + " != " + FormatValue(t.Value), nil
		case filter.OpLt:
			return fieldRef(t.Field) + " < " + FormatValue(t.Value), nil
		case filter.OpLte:
			return fieldRef(t.Field) + " <= " + FormatValue(t.Value), nil
		case filter.OpGt:
			return fieldRef(t.Field) + " > " + FormatValue(t.Value), nil
		case filter.OpGte:
			return fieldRef(t.Field) + " >= " + FormatValue(t.Value), nil
		case filter.OpIn:
			return fmt.Sprintf("contains(value: %s, set: %s)", fieldRef(t.Field), formatList(t.Value)), nil
		case filter.OpNin:
			return fmt.Sprintf("not contains(value: %s, set: %s)", fieldRef(t.Field), formatList(t.Value)), nil
		default:
			return "", fmt.Errorf("unknown operator %s", t.Op)
		}

	case *filter.Combinator:
		joiner := " or "
		if t.Kind == filter.And {
			joiner = " and "
		}
		parts := make([]string, len(t.Children))
		for i, child := range t.Children {
			expr, err := compileExpr(child)
			if err != nil {
				return "", err
			}
			parts[i] = "(" + expr + ")"
		}
		return strings.Join(parts, joiner), nil

	default:
		return "", fmt.Errorf("unknown query node %T", n)
	}
}

func filterClause(expr string) string {
	return "|> filter(fn: (r) => " + expr + ")"
}
