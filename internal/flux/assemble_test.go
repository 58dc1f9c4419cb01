package flux

import (
	"strings"
	"testing"
	"time"

	"github.com/telemetrydb/fluxrecord/internal/filter"
)

func baseParams(t *testing.T, raw map[string]any) AssembleParams {
	t.Helper()
	node, err := filter.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return AssembleParams{
		Bucket:      "iot",
		Measurement: "sensors",
		Filter:      node,
	}
}

func TestAssembleDefaults(t *testing.T) {
	q, err := Assemble(baseParams(t, nil))
	if err != nil {
		t.Fatal(err)
	}
	want := "from(bucket: \"iot\")\n" +
		"  |> range(start: -1h, stop: now())\n" +
		"  |> filter(fn: (r) => r._measurement == \"sensors\")"
	if q != want {
		t.Errorf("got:\n%s\nwant:\n%s", q, want)
	}
}

func TestAssembleClauseOrder(t *testing.T) {
	p := baseParams(t, map[string]any{"device": "s1"})
	p.Range = Between(
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
	)
	p.Sort = []SortKey{{Field: "_time", Desc: true}}
	p.Skip = 50
	p.Limit = 100
	p.Projection = []string{"device", "temperature"}

	q, err := Assemble(p)
	if err != nil {
		t.Fatal(err)
	}

	ordered := []string{
		`from(bucket: "iot")`,
		`|> range(start: 2024-06-01T00:00:00Z, stop: 2024-06-02T00:00:00Z)`,
		`|> filter(fn: (r) => r._measurement == "sensors")`,
		`|> filter(fn: (r) => r.device == "s1")`,
		`|> sort(columns: ["_time"], desc: true)`,
		`|> limit(n: 100, offset: 50)`,
		`|> keep(columns: ["device", "temperature"])`,
	}
	pos := -1
	for _, clause := range ordered {
		idx := strings.Index(q, clause)
		if idx < 0 {
			t.Fatalf("missing clause %q in query:\n%s", clause, q)
		}
		if idx < pos {
			t.Errorf("clause %q out of order in query:\n%s", clause, q)
		}
		pos = idx
	}
}

// Stage order holds regardless of which stages are absent.
func TestAssembleOrderUnderOmission(t *testing.T) {
	p := baseParams(t, nil)
	p.Limit = 10
	p.Projection = []string{"device"}

	q, err := Assemble(p)
	if err != nil {
		t.Fatal(err)
	}
	limitIdx := strings.Index(q, "|> limit(")
	keepIdx := strings.Index(q, "|> keep(")
	if limitIdx < 0 || keepIdx < 0 || keepIdx < limitIdx {
		t.Errorf("limit/keep misordered:\n%s", q)
	}
	if strings.Contains(q, "sort") || strings.Contains(q, "offset") {
		t.Errorf("unexpected clause in:\n%s", q)
	}
}

func TestAssembleSkipLimit(t *testing.T) {
	tests := []struct {
		name        string
		skip, limit int
		want        string
		absent      string
	}{
		{"neither", 0, 0, "", "|> limit("},
		{"limit only", 0, 25, "|> limit(n: 25)", "offset"},
		{"skip only", 10, 0, "|> limit(n: 2147483647, offset: 10)", ""},
		{"both", 10, 25, "|> limit(n: 25, offset: 10)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseParams(t, nil)
			p.Skip = tt.skip
			p.Limit = tt.limit
			q, err := Assemble(p)
			if err != nil {
				t.Fatal(err)
			}
			if tt.want != "" && !strings.Contains(q, tt.want) {
				t.Errorf("missing %q in:\n%s", tt.want, q)
			}
			if tt.absent != "" && strings.Contains(q, tt.absent) {
				t.Errorf("unexpected %q in:\n%s", tt.absent, q)
			}
		})
	}
}

func TestAssembleSortGrouping(t *testing.T) {
	tests := []struct {
		name string
		keys []SortKey
		want []string
	}{
		{
			"uniform ascending collapses to one clause",
			[]SortKey{{Field: "device"}, {Field: "_time"}},
			[]string{`|> sort(columns: ["device", "_time"], desc: false)`},
		},
		{
			"mixed directions split in order",
			[]SortKey{{Field: "_time", Desc: true}, {Field: "device"}},
			[]string{
				`|> sort(columns: ["_time"], desc: true)`,
				`|> sort(columns: ["device"], desc: false)`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseParams(t, nil)
			p.Sort = tt.keys
			q, err := Assemble(p)
			if err != nil {
				t.Fatal(err)
			}
			pos := -1
			for _, clause := range tt.want {
				idx := strings.Index(q, clause)
				if idx < 0 {
					t.Fatalf("missing %q in:\n%s", clause, q)
				}
				if idx < pos {
					t.Errorf("%q out of order in:\n%s", clause, q)
				}
				pos = idx
			}
			if got := strings.Count(q, "|> sort("); got != len(tt.want) {
				t.Errorf("got %d sort clauses, want %d:\n%s", got, len(tt.want), q)
			}
		})
	}
}

func TestAssembleCount(t *testing.T) {
	p := baseParams(t, map[string]any{"device": "s1"})
	p.Sort = []SortKey{{Field: "_time", Desc: true}}
	p.Skip = 50
	p.Limit = 100
	p.Projection = []string{"device"}

	q, err := AssembleCount(p)
	if err != nil {
		t.Fatal(err)
	}

	for _, clause := range []string{
		`from(bucket: "iot")`,
		`|> range(start: -1h, stop: now())`,
		`|> filter(fn: (r) => r._measurement == "sensors")`,
		`|> filter(fn: (r) => r.device == "s1")`,
		`|> group()`,
		`|> count()`,
	} {
		if !strings.Contains(q, clause) {
			t.Errorf("missing %q in:\n%s", clause, q)
		}
	}

	// Predicate-independent stages are omitted from the counting query.
	for _, absent := range []string{"sort", "limit", "keep", "offset"} {
		if strings.Contains(q, absent) {
			t.Errorf("counting query should not contain %q:\n%s", absent, q)
		}
	}
}

func TestIsTimeLiteral(t *testing.T) {
	valid := []string{
		"-1h", "-30d", "1h30m", "-2mo", "15ms", "-1y2mo3w",
		"2024-06-01T12:00:00Z", "2024-06-01T12:00:00.123456789+02:00",
	}
	for _, s := range valid {
		if !IsTimeLiteral(s) {
			t.Errorf("IsTimeLiteral(%q) = false, want true", s)
		}
	}

	invalid := []string{
		"", "-", "h", "30", "1x", "30d extra",
		"now()", `") |> drop()`, "2024-06-01", "--1h", "1h-30m",
	}
	for _, s := range invalid {
		if IsTimeLiteral(s) {
			t.Errorf("IsTimeLiteral(%q) = true, want false", s)
		}
	}
}

func TestAssembleBadFilter(t *testing.T) {
	p := baseParams(t, nil)
	p.Filter = &filter.Operator{Field: "x", Op: "$regex", Value: ".*"}
	if _, err := Assemble(p); err == nil {
		t.Error("expected error for unknown operator")
	}
}
