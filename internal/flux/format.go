package flux

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// FormatValue renders a Go value as a Flux literal. All value escaping for
// generated queries goes through here.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return `""`
	case string:
		return strconv.Quote(t)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(v).Int(), 10)
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(v).Uint(), 10)
	default:
		return strconv.Quote(fmt.Sprintf("%v", v))
	}
}

// formatList renders a slice value as a Flux array literal.
func formatList(v any) string {
	rv := reflect.ValueOf(v)
	parts := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		parts[i] = FormatValue(rv.Index(i).Interface())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// fieldRef renders a row-field reference: dot form for identifier-safe
// names, bracket form otherwise.
func fieldRef(name string) string {
	if isIdent(name) {
		return "r." + name
	}
	return "r[" + strconv.Quote(name) + "]"
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
