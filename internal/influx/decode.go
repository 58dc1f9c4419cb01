package influx

import "fmt"

// Flux result bookkeeping columns that carry no record data.
var metaColumns = map[string]bool{
	"result": true,
	"table":  true,
	"_start": true,
	"_stop":  true,
}

// DecodeRecord turns one raw result row into a record, dropping the result
// metadata columns and keeping _time, _measurement and the data columns.
func DecodeRecord(values map[string]any) map[string]any {
	rec := make(map[string]any, len(values))
	for k, v := range values {
		if metaColumns[k] {
			continue
		}
		rec[k] = v
	}
	return rec
}

// ReadAll consumes rows to completion.
func ReadAll(rows Rows) ([]map[string]any, error) {
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		out = append(out, rows.Record())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SumCount totals the _value column of a counting query's rows. Grouped
// results may span several tables, so every row contributes.
func SumCount(rows Rows) (int, error) {
	defer rows.Close()

	total := 0
	for rows.Next() {
		v := rows.Record()["_value"]
		switch n := v.(type) {
		case int64:
			total += int(n)
		case uint64:
			total += int(n)
		case float64:
			total += int(n)
		case int:
			total += n
		case nil:
			// A count over zero rows can yield a null value.
		default:
			return 0, fmt.Errorf("unexpected count value %v (%T)", v, v)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return total, nil
}
