// Package validation checks incoming records before they are mapped into
// points.
package validation

import (
	"fmt"
	"strings"
)

const MaxRecordsPerRequest = 200

// Result bookkeeping columns the query side owns; records must not carry
// them.
var reservedKeys = map[string]bool{
	"result": true,
	"table":  true,
	"_start": true,
	"_stop":  true,
}

// ValidateRecord validates a single record for creation.
func ValidateRecord(rec map[string]any) error {
	if len(rec) == 0 {
		return fmt.Errorf("record must have at least one key")
	}
	for key := range rec {
		if key == "" {
			return fmt.Errorf("record keys must be non-empty")
		}
		if reservedKeys[key] {
			return fmt.Errorf("key %q is reserved", key)
		}
		if strings.HasPrefix(key, "$") {
			return fmt.Errorf("key %q: operator keys are not allowed in records", key)
		}
	}
	return nil
}

// ValidateBatch validates a batch create request.
func ValidateBatch(recs []map[string]any) error {
	if len(recs) == 0 {
		return fmt.Errorf("at least one record is required")
	}
	if len(recs) > MaxRecordsPerRequest {
		return fmt.Errorf("request contains %d records, maximum is %d", len(recs), MaxRecordsPerRequest)
	}
	for i, rec := range recs {
		if err := ValidateRecord(rec); err != nil {
			return fmt.Errorf("records[%d]: %v", i, err)
		}
	}
	return nil
}
