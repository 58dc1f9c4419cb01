// Package service implements the record service over InfluxDB: reads
// compile structured query objects into Flux, writes map records into
// points. Update, patch and remove are structurally excluded because the
// backing store is append-only.
package service

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/telemetrydb/fluxrecord/internal/errs"
	"github.com/telemetrydb/fluxrecord/internal/filter"
	"github.com/telemetrydb/fluxrecord/internal/flux"
	"github.com/telemetrydb/fluxrecord/internal/influx"
	"github.com/telemetrydb/fluxrecord/internal/metrics"
	"github.com/telemetrydb/fluxrecord/internal/point"
)

// Record is one decoded row or one input record.
type Record = map[string]any

const (
	defaultTimeField   = "_time"
	defaultPageDefault = 10
	measurementColumn  = "_measurement"
)

// Paginate enables paginated finds: Default rows per page, capped at Max.
type Paginate struct {
	Default int
	Max     int
}

// Config is set once at construction and never mutated.
type Config struct {
	Provider    influx.Provider
	Org         string
	Bucket      string
	Measurement string

	// TagKeys and FieldKeys classify record keys on write; keys in neither
	// list still become typed fields. TimeField defaults to _time.
	TagKeys   []string
	FieldKeys []string
	TimeField string

	// IDField is the identity column Get filters on. Defaults to TimeField.
	IDField string

	// Multi permits batch creates.
	Multi bool

	// Range is the query window applied when a call gives none. The zero
	// value means the last hour.
	Range flux.TimeRange

	// Paginate, when set, makes Find return the {total, limit, skip, data}
	// envelope by default.
	Paginate *Paginate

	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	// Now overrides the write-time clock in tests.
	Now func() time.Time
}

// Service exposes the five logical operations. Calls are independent; the
// only shared state is the read-only config.
type Service struct {
	cfg     Config
	mapping point.Mapping
	log     zerolog.Logger
	now     func() time.Time
}

// New validates the configuration and fails fast, so call-time errors are
// only ever query or store errors.
func New(cfg Config) (*Service, error) {
	if cfg.Provider == nil {
		return nil, errs.Config("client provider is required")
	}
	if cfg.Org == "" {
		return nil, errs.Config("organization is required")
	}
	if cfg.Bucket == "" {
		return nil, errs.Config("bucket is required")
	}
	if cfg.Measurement == "" {
		return nil, errs.Config("measurement is required")
	}
	if cfg.TimeField == "" {
		cfg.TimeField = defaultTimeField
	}
	if cfg.IDField == "" {
		cfg.IDField = cfg.TimeField
	}
	for _, tag := range cfg.TagKeys {
		for _, field := range cfg.FieldKeys {
			if tag == field {
				return nil, errs.Config("key %q is in both the tag and field allowlists", tag)
			}
		}
	}
	// The time field maps to the point timestamp and _measurement to the
	// measurement name; listing either as a tag or field would emit the
	// value twice.
	for _, key := range cfg.TagKeys {
		if key == cfg.TimeField || key == measurementColumn {
			return nil, errs.Config("reserved key %q cannot be a tag", key)
		}
	}
	for _, key := range cfg.FieldKeys {
		if key == cfg.TimeField || key == measurementColumn {
			return nil, errs.Config("reserved key %q cannot be a field", key)
		}
	}
	if cfg.Paginate != nil {
		p := *cfg.Paginate
		if p.Default <= 0 {
			p.Default = defaultPageDefault
		}
		if p.Max <= 0 {
			p.Max = p.Default
		}
		cfg.Paginate = &p
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		cfg: cfg,
		mapping: point.Mapping{
			Measurement: cfg.Measurement,
			TagKeys:     cfg.TagKeys,
			FieldKeys:   cfg.FieldKeys,
			TimeField:   cfg.TimeField,
		},
		log: cfg.Logger.With().Str("component", "service").Str("measurement", cfg.Measurement).Logger(),
		now: now,
	}, nil
}

// Params carries the per-call query inputs. Nil pointers mean "not given".
type Params struct {
	// Filter is the structured query object. Directive keys ($limit, $skip,
	// $select) found inside it are honored when the explicit fields below
	// are unset; $sort is position-dependent and only accepted via Sort.
	Filter map[string]any

	Sort   []flux.SortKey
	Skip   *int
	Limit  *int
	Select []string

	// Range overrides the default last-hour window.
	Range *flux.TimeRange

	// Raw bypasses the query assembler entirely.
	Raw string

	// Paginate turns the configured pagination off (or on) for this call.
	Paginate *bool
}

// buildQuery splits the raw query object into filter tree and directives
// and folds the directives into the params, explicit fields winning.
func (s *Service) buildQuery(p Params) (filter.Node, Params, error) {
	raw, directives := filter.StripDirectives(p.Filter)

	node, err := filter.Parse(raw)
	if err != nil {
		return nil, p, errs.BadRequest(err)
	}

	if p.Limit == nil {
		if n, ok := directiveInt(directives, "$limit"); ok {
			p.Limit = &n
		}
	}
	if p.Skip == nil {
		if n, ok := directiveInt(directives, "$skip"); ok {
			p.Skip = &n
		}
	}
	if len(p.Select) == 0 {
		if cols, ok := directives["$select"].([]any); ok {
			for _, c := range cols {
				if name, ok := c.(string); ok {
					p.Select = append(p.Select, name)
				}
			}
		}
	}

	if p.Limit != nil && *p.Limit < 0 {
		return nil, p, errs.BadRequest(errInvalidDirective("$limit"))
	}
	if p.Skip != nil && *p.Skip < 0 {
		return nil, p, errs.BadRequest(errInvalidDirective("$skip"))
	}
	return node, p, nil
}

func directiveInt(directives map[string]any, key string) (int, bool) {
	switch v := directives[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

type directiveErr string

func errInvalidDirective(key string) error { return directiveErr(key) }

func (e directiveErr) Error() string { return string(e) + " must be a non-negative integer" }
