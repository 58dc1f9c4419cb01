package flux

import (
	"reflect"
	"testing"
	"time"

	"github.com/telemetrydb/fluxrecord/internal/filter"
)

func mustParse(t *testing.T, raw map[string]any) filter.Node {
	t.Helper()
	n, err := filter.Parse(raw)
	if err != nil {
		t.Fatalf("Parse(%v): %v", raw, err)
	}
	return n
}

func TestCompileEquality(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want []string
	}{
		{
			"single pair",
			map[string]any{"device": "s1"},
			[]string{`|> filter(fn: (r) => r.device == "s1")`},
		},
		{
			"one clause per key",
			map[string]any{"device": "s1", "online": true},
			[]string{
				`|> filter(fn: (r) => r.device == "s1")`,
				`|> filter(fn: (r) => r.online == true)`,
			},
		},
		{
			"numeric value",
			map[string]any{"temperature": 25.5},
			[]string{`|> filter(fn: (r) => r.temperature == 25.5)`},
		},
		{
			"empty filter",
			map[string]any{},
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compile(mustParse(t, tt.raw))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompileOperators(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want []string
	}{
		{
			"ne",
			map[string]any{"status": map[string]any{"$ne": "offline"}},
			[]string{`|> filter(fn: (r) => r.status != "offline")`},
		},
		{
			"range pair",
			map[string]any{"temperature": map[string]any{"$gt": 20, "$lt": 30}},
			[]string{
				`|> filter(fn: (r) => r.temperature > 20)`,
				`|> filter(fn: (r) => r.temperature < 30)`,
			},
		},
		{
			"lte gte",
			map[string]any{"humidity": map[string]any{"$gte": 10, "$lte": 90}},
			[]string{
				`|> filter(fn: (r) => r.humidity >= 10)`,
				`|> filter(fn: (r) => r.humidity <= 90)`,
			},
		},
		{
			"in",
			map[string]any{"device": map[string]any{"$in": []any{"a", "b"}}},
			[]string{`|> filter(fn: (r) => contains(value: r.device, set: ["a", "b"]))`},
		},
		{
			"nin",
			map[string]any{"device": map[string]any{"$nin": []any{"a", "b"}}},
			[]string{`|> filter(fn: (r) => not contains(value: r.device, set: ["a", "b"]))`},
		},
		{
			"empty operator object",
			map[string]any{"device": map[string]any{}},
			nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compile(mustParse(t, tt.raw))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// Mixed predicate: independent clauses AND-compose as pipeline stages.
func TestCompileScenarioMixed(t *testing.T) {
	raw := map[string]any{
		"status":      map[string]any{"$ne": "offline"},
		"temperature": map[string]any{"$gt": 20, "$lt": 30},
	}
	got, err := Compile(mustParse(t, raw))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		`|> filter(fn: (r) => r.status != "offline")`,
		`|> filter(fn: (r) => r.temperature > 20)`,
		`|> filter(fn: (r) => r.temperature < 30)`,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCompileOr(t *testing.T) {
	raw := map[string]any{
		"$or": []any{
			map[string]any{"device": "a"},
			map[string]any{"device": "b"},
		},
	}
	got, err := Compile(mustParse(t, raw))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{`|> filter(fn: (r) => (r.device == "a") or (r.device == "b"))`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCompileOrNested(t *testing.T) {
	// A child with several predicates compiles to one AND expression inside
	// the OR clause.
	raw := map[string]any{
		"$or": []any{
			map[string]any{"device": "a", "online": true},
			map[string]any{"temperature": map[string]any{"$gte": 30}},
		},
	}
	got, err := Compile(mustParse(t, raw))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{`|> filter(fn: (r) => ((r.device == "a") and (r.online == true)) or (r.temperature >= 30))`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCompileAndCombinator(t *testing.T) {
	// $and concatenates each child's clauses, order preserved.
	raw := map[string]any{
		"$and": []any{
			map[string]any{"online": true},
			map[string]any{"device": "a"},
		},
	}
	got, err := Compile(mustParse(t, raw))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		`|> filter(fn: (r) => r.online == true)`,
		`|> filter(fn: (r) => r.device == "a")`,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		in   any
		want string
	}{
		{"hello", `"hello"`},
		{`with "quotes"`, `"with \"quotes\""`},
		{true, "true"},
		{false, "false"},
		{42, "42"},
		{int64(42), "42"},
		{25.5, "25.5"},
		{float64(1000000), "1000000"},
		{ts, "2024-06-01T12:30:00Z"},
		{nil, `""`},
		{struct{ X int }{1}, `"{1}"`},
	}

	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v): got %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFieldRef(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"device", "r.device"},
		{"_time", "r._time"},
		{"sensor_1", "r.sensor_1"},
		{"my field", `r["my field"]`},
		{"1bad", `r["1bad"]`},
	}
	for _, tt := range tests {
		if got := fieldRef(tt.in); got != tt.want {
			t.Errorf("fieldRef(%q): got %s, want %s", tt.in, got, tt.want)
		}
	}
}
