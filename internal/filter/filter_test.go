package filter

import (
	"testing"
)

func TestParseBasic(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		wantErr bool
	}{
		{"empty", map[string]any{}, false},
		{"scalar equality", map[string]any{"device": "s1"}, false},
		{"operator object", map[string]any{"temperature": map[string]any{"$gt": 20}}, false},
		{"bare operator spelling", map[string]any{"status": map[string]any{"ne": "offline"}}, false},
		{"membership", map[string]any{"device": map[string]any{"$in": []any{"a", "b"}}}, false},
		{"or", map[string]any{"$or": []any{map[string]any{"device": "a"}, map[string]any{"device": "b"}}}, false},
		{"and", map[string]any{"$and": []any{map[string]any{"device": "a"}, map[string]any{"online": true}}}, false},
		{"unknown operator", map[string]any{"device": map[string]any{"$regex": ".*"}}, true},
		{"unknown dollar key", map[string]any{"$near": 1}, true},
		{"directive not stripped", map[string]any{"$limit": 10}, true},
		{"in without list", map[string]any{"device": map[string]any{"$in": "a"}}, true},
		{"or without list", map[string]any{"$or": map[string]any{"device": "a"}}, true},
		{"or with empty list", map[string]any{"$or": []any{}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Parse(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%v): err=%v, wantErr=%v", tt.raw, err, tt.wantErr)
			}
			if len(tt.raw) == 0 && node != nil {
				t.Error("Parse of empty object should return nil")
			}
		})
	}
}

func TestParseShapes(t *testing.T) {
	// Scalar pair parses to an Equality.
	node, err := Parse(map[string]any{"device": "s1"})
	if err != nil {
		t.Fatal(err)
	}
	eq, ok := node.(*Equality)
	if !ok {
		t.Fatalf("got %T, want *Equality", node)
	}
	if eq.Field != "device" || eq.Value != "s1" {
		t.Errorf("got %+v", eq)
	}

	// Operator object with two keys parses to one Operator per key under an
	// implicit And, in lexicographic key order.
	node, err = Parse(map[string]any{"temperature": map[string]any{"$gt": 20, "$lt": 30}})
	if err != nil {
		t.Fatal(err)
	}
	comb, ok := node.(*Combinator)
	if !ok || comb.Kind != And {
		t.Fatalf("got %T (%+v), want And Combinator", node, node)
	}
	if len(comb.Children) != 2 {
		t.Fatalf("got %d children, want 2", len(comb.Children))
	}
	first := comb.Children[0].(*Operator)
	second := comb.Children[1].(*Operator)
	if first.Op != OpGt || second.Op != OpLt {
		t.Errorf("child order: got %s, %s, want $gt, $lt", first.Op, second.Op)
	}

	// Empty operator object contributes nothing.
	node, err = Parse(map[string]any{"temperature": map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if node != nil {
		t.Errorf("empty operator object: got %+v, want nil", node)
	}

	node, err = Parse(map[string]any{
		"temperature": map[string]any{},
		"humidity":    map[string]any{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if node != nil {
		t.Errorf("all-empty operator objects: got %+v, want nil", node)
	}
}

func TestParseOrChildren(t *testing.T) {
	node, err := Parse(map[string]any{
		"$or": []any{
			map[string]any{"device": "a"},
			map[string]any{"device": "b"},
			map[string]any{"temperature": map[string]any{"$gte": 10}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	comb, ok := node.(*Combinator)
	if !ok || comb.Kind != Or {
		t.Fatalf("got %T, want Or Combinator", node)
	}
	if len(comb.Children) != 3 {
		t.Fatalf("got %d children, want 3", len(comb.Children))
	}
	// Children keep list order.
	if c := comb.Children[0].(*Equality); c.Value != "a" {
		t.Errorf("first child: got %v", c.Value)
	}
	if c := comb.Children[1].(*Equality); c.Value != "b" {
		t.Errorf("second child: got %v", c.Value)
	}
}

func TestStripDirectives(t *testing.T) {
	raw := map[string]any{
		"device":  "s1",
		"$limit":  float64(10),
		"$skip":   float64(5),
		"$sort":   []any{},
		"$select": []any{"device"},
	}
	f, d := StripDirectives(raw)
	if len(f) != 1 || f["device"] != "s1" {
		t.Errorf("filter portion: got %v", f)
	}
	if len(d) != 4 {
		t.Errorf("directive portion: got %v", d)
	}
	if len(raw) != 5 {
		t.Error("input map was modified")
	}
}
