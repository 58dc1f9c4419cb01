package flux

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/telemetrydb/fluxrecord/internal/filter"
)

// maxQueryRows stands in for "unbounded" when a skip is requested without a
// limit, since the drop-first-N primitive is the offset argument of limit.
const maxQueryRows = 2147483647

// TimeRange bounds a query. Start and Stop hold Flux time or duration
// literals (e.g. "-30d", "2024-01-02T15:04:05Z"); empty markers fall back
// to the last hour through now.
type TimeRange struct {
	Start string
	Stop  string
}

// Between builds an absolute TimeRange from two instants.
func Between(start, stop time.Time) TimeRange {
	return TimeRange{
		Start: start.UTC().Format(time.RFC3339Nano),
		Stop:  stop.UTC().Format(time.RFC3339Nano),
	}
}

func (tr TimeRange) startLiteral() string {
	if tr.Start == "" {
		return "-1h"
	}
	return tr.Start
}

func (tr TimeRange) stopLiteral() string {
	if tr.Stop == "" {
		return "now()"
	}
	return tr.Stop
}

// IsTimeLiteral reports whether s is a Flux duration literal (e.g. "-30d",
// "1h30m") or an RFC3339 timestamp. Range markers from untrusted input must
// pass this check before they are spliced into a query.
func IsTimeLiteral(s string) bool {
	if s == "" {
		return false
	}
	if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return true
	}
	return isDurationLiteral(s)
}

var durationUnits = map[string]bool{
	"y": true, "mo": true, "w": true, "d": true,
	"h": true, "m": true, "s": true,
	"ms": true, "us": true, "ns": true,
}

func isDurationLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for len(s) > 0 {
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 {
			return false
		}
		s = s[i:]
		j := 0
		for j < len(s) && (s[j] < '0' || s[j] > '9') {
			j++
		}
		if !durationUnits[s[:j]] {
			return false
		}
		s = s[j:]
	}
	return true
}

// SortKey is one entry of an ordered sort spec.
type SortKey struct {
	Field string
	Desc  bool
}

// AssembleParams carries everything one query needs. Skip and Limit of zero
// emit no clause; limit-zero row suppression is the caller's concern.
type AssembleParams struct {
	Bucket      string
	Measurement string
	Range       TimeRange
	Filter      filter.Node
	Sort        []SortKey
	Skip        int
	Limit       int
	Projection  []string
}

// Assemble builds a complete pipeline query. The stage order is a
// correctness contract: source, range, measurement filter, predicates,
// sort, skip, limit, projection. Stages with nothing to say emit no clause.
func Assemble(p AssembleParams) (string, error) {
	clauses, err := baseClauses(p)
	if err != nil {
		return "", err
	}

	clauses = append(clauses, sortClauses(p.Sort)...)

	// Flux expresses "drop first N rows" as the offset argument of limit,
	// so a skip folds into the limit clause when both are present.
	switch {
	case p.Skip > 0 && p.Limit > 0:
		clauses = append(clauses, fmt.Sprintf("|> limit(n: %d, offset: %d)", p.Limit, p.Skip))
	case p.Skip > 0:
		clauses = append(clauses, fmt.Sprintf("|> limit(n: %d, offset: %d)", maxQueryRows, p.Skip))
	case p.Limit > 0:
		clauses = append(clauses, fmt.Sprintf("|> limit(n: %d)", p.Limit))
	}

	if len(p.Projection) > 0 {
		clauses = append(clauses, "|> keep(columns: "+columnList(p.Projection)+")")
	}

	return strings.Join(clauses, "\n  "), nil
}

// AssembleCount builds the parallel counting query: the same source, range,
// measurement and predicate stages, then a count aggregation. Sort,
// pagination and projection are irrelevant to the total and omitted.
func AssembleCount(p AssembleParams) (string, error) {
	clauses, err := baseClauses(p)
	if err != nil {
		return "", err
	}
	clauses = append(clauses, "|> group()", "|> count()")
	return strings.Join(clauses, "\n  "), nil
}

func baseClauses(p AssembleParams) ([]string, error) {
	pred, err := Compile(p.Filter)
	if err != nil {
		return nil, err
	}

	clauses := make([]string, 0, 4+len(pred))
	clauses = append(clauses,
		fmt.Sprintf("from(bucket: %q)", p.Bucket),
		fmt.Sprintf("|> range(start: %s, stop: %s)", p.Range.startLiteral(), p.Range.stopLiteral()),
		fmt.Sprintf("|> filter(fn: (r) => r._measurement == %q)", p.Measurement),
	)
	return append(clauses, pred...), nil
}

// sortClauses groups consecutive keys sharing a direction into one sort
// clause, so a uniform-direction spec yields a single clause with all
// columns in the order given.
func sortClauses(keys []SortKey) []string {
	var clauses []string
	for i := 0; i < len(keys); {
		j := i
		for j < len(keys) && keys[j].Desc == keys[i].Desc {
			j++
		}
		cols := make([]string, 0, j-i)
		for _, k := range keys[i:j] {
			cols = append(cols, k.Field)
		}
		clauses = append(clauses, fmt.Sprintf("|> sort(columns: %s, desc: %t)", columnList(cols), keys[i].Desc))
		i = j
	}
	return clauses
}

func columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = strconv.Quote(c)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
