// Package point maps input records into time-series points: each record key
// becomes a tag, a typed field or is excluded, and the timestamp is resolved
// from the record or the write time.
package point

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// measurementColumn is the reserved column carrying the measurement name in
// query results; it never maps to a tag or field on write.
const measurementColumn = "_measurement"

// Mapping is the immutable field-classification config for one service
// instance.
type Mapping struct {
	Measurement string
	TagKeys     []string
	FieldKeys   []string
	TimeField   string
}

type class int

const (
	classTag class = iota
	classField
	classExcluded
)

// classify decides what one record key becomes. Keys outside both allowlists
// fall through to typed fields rather than being dropped.
func (m Mapping) classify(key string) class {
	if key == m.TimeField || key == measurementColumn {
		return classExcluded
	}
	for _, k := range m.TagKeys {
		if k == key {
			return classTag
		}
	}
	return classField
}

// ToPoint maps one record to a point. The point's timestamp is set only when
// the record carries one; otherwise the store assigns ingestion time. The
// returned result record is the input plus a resolved timestamp, since the
// store does not echo inserted rows.
func (m Mapping) ToPoint(rec map[string]any, now time.Time) (*write.Point, map[string]any, error) {
	p := write.NewPointWithMeasurement(m.Measurement)

	resolved := now
	if v, ok := rec[m.TimeField]; ok {
		ts, err := parseTimestamp(v)
		if err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", m.TimeField, err)
		}
		p.SetTime(ts)
		resolved = ts
	}

	// Tags first, in allowlist order; tag values are always strings.
	for _, k := range m.TagKeys {
		if v, ok := rec[k]; ok {
			p.AddTag(k, coerceString(v))
		}
	}

	// Declared fields in allowlist order, then the fallback-included rest in
	// a stable order.
	seen := make(map[string]bool, len(rec))
	for _, k := range m.FieldKeys {
		if v, ok := rec[k]; ok && m.classify(k) == classField {
			p.AddField(k, coerceFieldValue(v))
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(rec))
	for k := range rec {
		if !seen[k] && m.classify(k) == classField {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		p.AddField(k, coerceFieldValue(rec[k]))
	}

	result := make(map[string]any, len(rec)+1)
	for k, v := range rec {
		result[k] = v
	}
	result[m.TimeField] = resolved

	return p, result, nil
}

// ToPoints maps records independently and in order.
func (m Mapping) ToPoints(recs []map[string]any, now time.Time) ([]*write.Point, []map[string]any, error) {
	points := make([]*write.Point, 0, len(recs))
	results := make([]map[string]any, 0, len(recs))
	for i, rec := range recs {
		p, res, err := m.ToPoint(rec, now)
		if err != nil {
			return nil, nil, fmt.Errorf("record[%d]: %w", i, err)
		}
		points = append(points, p)
		results = append(results, res)
	}
	return points, results, nil
}

// coerceFieldValue applies the typed-field coercion rule: numeric values
// become floats, booleans stay booleans, everything else becomes a string.
func coerceFieldValue(v any) any {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case bool:
		return t
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// parseTimestamp accepts a time.Time, an RFC3339(Nano) string, or an epoch
// value in milliseconds (the usual wire format for JSON payloads).
func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		ts, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", t)
		}
		return ts, nil
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case int:
		return time.UnixMilli(int64(t)).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("invalid timestamp type %T", v)
	}
}
