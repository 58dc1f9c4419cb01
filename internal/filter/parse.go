package filter

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Directive keys handled by the caller (sort, pagination, projection). They
// must be stripped before Parse runs; seeing one here is a caller bug and is
// rejected rather than misinterpreted.
var directiveKeys = map[string]bool{
	"$sort":   true,
	"$limit":  true,
	"$skip":   true,
	"$select": true,
}

var knownOps = map[Op]bool{
	OpEq: true, OpNe: true, OpLt: true, OpLte: true,
	OpGt: true, OpGte: true, OpIn: true, OpNin: true,
}

// Parse builds the query tree from a raw query object in a single pass.
// Returns nil for an empty object (no predicate). Field entries are visited
// in lexicographic key order so compiled output is deterministic; $and/$or
// children keep their list order.
func Parse(raw map[string]any) (Node, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var children []Node
	for _, key := range keys {
		val := raw[key]
		switch {
		case key == "$or" || key == "$and":
			node, err := parseCombinator(key, val)
			if err != nil {
				return nil, err
			}
			children = append(children, node)

		case strings.HasPrefix(key, "$"):
			if directiveKeys[key] {
				return nil, fmt.Errorf("directive %s must be stripped before filter parsing", key)
			}
			return nil, fmt.Errorf("unrecognized query key %q", key)

		default:
			nodes, err := parseField(key, val)
			if err != nil {
				return nil, err
			}
			children = append(children, nodes...)
		}
	}

	switch len(children) {
	case 0:
		return nil, nil
	case 1:
		return children[0], nil
	}
	return &Combinator{Kind: And, Children: children}, nil
}

// parseField turns one field entry into nodes: a scalar value becomes an
// Equality, an operator object becomes one Operator per recognized key.
func parseField(field string, val any) ([]Node, error) {
	opObj, ok := val.(map[string]any)
	if !ok {
		return []Node{&Equality{Field: field, Value: val}}, nil
	}

	// Empty operator object contributes no predicate.
	if len(opObj) == 0 {
		return nil, nil
	}

	opKeys := make([]string, 0, len(opObj))
	for k := range opObj {
		opKeys = append(opKeys, k)
	}
	sort.Strings(opKeys)

	nodes := make([]Node, 0, len(opKeys))
	for _, k := range opKeys {
		op := normalizeOp(k)
		if !knownOps[op] {
			return nil, fmt.Errorf("unrecognized operator %q for field %q", k, field)
		}
		v := opObj[k]
		if op == OpIn || op == OpNin {
			if !isList(v) {
				return nil, fmt.Errorf("operator %s for field %q requires a list, got %T", op, field, v)
			}
		}
		nodes = append(nodes, &Operator{Field: field, Op: op, Value: v})
	}
	return nodes, nil
}

func parseCombinator(key string, val any) (Node, error) {
	items, ok := val.([]any)
	if !ok {
		if maps, isMaps := val.([]map[string]any); isMaps {
			items = make([]any, len(maps))
			for i, m := range maps {
				items[i] = m
			}
		} else {
			return nil, fmt.Errorf("%s requires a list of query objects, got %T", key, val)
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s requires at least one query object", key)
	}

	kind := Or
	if key == "$and" {
		kind = And
	}

	children := make([]Node, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: expected a query object, got %T", key, i, item)
		}
		child, err := Parse(m)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		if child != nil {
			children = append(children, child)
		}
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("%s contains only empty query objects", key)
	}
	return &Combinator{Kind: kind, Children: children}, nil
}

// normalizeOp accepts both "$gt" and bare "gt" spellings.
func normalizeOp(k string) Op {
	if strings.HasPrefix(k, "$") {
		return Op(k)
	}
	return Op("$" + k)
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// StripDirectives splits a raw query object into the filter portion and the
// directive portion ($sort, $limit, $skip, $select). The input map is not
// modified.
func StripDirectives(raw map[string]any) (filter map[string]any, directives map[string]any) {
	filter = make(map[string]any, len(raw))
	directives = make(map[string]any, 4)
	for k, v := range raw {
		if directiveKeys[k] {
			directives[k] = v
			continue
		}
		filter[k] = v
	}
	return filter, directives
}
