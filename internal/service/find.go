package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/telemetrydb/fluxrecord/internal/errs"
	"github.com/telemetrydb/fluxrecord/internal/flux"
	"github.com/telemetrydb/fluxrecord/internal/influx"
)

// FindResult is either a plain record sequence or, when pagination is in
// effect, the {total, limit, skip, data} envelope.
type FindResult struct {
	Paginated bool
	Total     int
	Limit     int
	Skip      int
	Data      []Record
}

// page fixes the envelope's JSON field order.
type page struct {
	Total int      `json:"total"`
	Limit int      `json:"limit"`
	Skip  int      `json:"skip"`
	Data  []Record `json:"data"`
}

func (r FindResult) MarshalJSON() ([]byte, error) {
	if r.Paginated {
		return json.Marshal(page{Total: r.Total, Limit: r.Limit, Skip: r.Skip, Data: r.Data})
	}
	return json.Marshal(r.Data)
}

// Find runs one read-many operation. A raw query override bypasses the
// assembler; otherwise the query object is compiled and assembled. In
// paginated mode the data and count queries run concurrently and both must
// complete before the envelope is returned.
func (s *Service) Find(ctx context.Context, p Params) (result FindResult, err error) {
	defer func() { s.cfg.Metrics.RecordOperation("find", err) }()

	if p.Raw != "" {
		data, rawErr := s.runRaw(ctx, p.Raw)
		if rawErr != nil {
			return FindResult{}, rawErr
		}
		return FindResult{Data: data}, nil
	}

	node, p, err := s.buildQuery(p)
	if err != nil {
		return FindResult{}, err
	}

	ap := flux.AssembleParams{
		Bucket:      s.cfg.Bucket,
		Measurement: s.cfg.Measurement,
		Filter:      node,
		Sort:        p.Sort,
		Projection:  p.Select,
		Range:       s.cfg.Range,
	}
	if p.Range != nil {
		ap.Range = *p.Range
	}

	if s.paginated(p) {
		return s.findPaginated(ctx, ap, p)
	}
	return s.findPlain(ctx, ap, p)
}

func (s *Service) paginated(p Params) bool {
	if s.cfg.Paginate == nil {
		return false
	}
	return p.Paginate == nil || *p.Paginate
}

func (s *Service) findPlain(ctx context.Context, ap flux.AssembleParams, p Params) (FindResult, error) {
	if p.Limit != nil {
		// limit=0 means no rows; the query is not even issued.
		if *p.Limit == 0 {
			return FindResult{Data: []Record{}}, nil
		}
		ap.Limit = *p.Limit
	}
	if p.Skip != nil {
		ap.Skip = *p.Skip
	}

	data, err := s.runData(ctx, ap)
	if err != nil {
		return FindResult{}, err
	}
	return FindResult{Data: data}, nil
}

func (s *Service) findPaginated(ctx context.Context, ap flux.AssembleParams, p Params) (FindResult, error) {
	limit := s.cfg.Paginate.Default
	if p.Limit != nil {
		limit = *p.Limit
	}
	if limit > s.cfg.Paginate.Max {
		limit = s.cfg.Paginate.Max
	}
	skip := 0
	if p.Skip != nil {
		skip = *p.Skip
	}
	ap.Limit = limit
	ap.Skip = skip

	// The total is always computed, even for a zero-row page. Both queries
	// are read-only and order-independent, so the count runs alongside the
	// data query; the join below is unconditional so a slow count is never
	// abandoned.
	type countOut struct {
		total int
		err   error
	}
	countCh := make(chan countOut, 1)
	go func() {
		total, err := s.runCount(ctx, ap)
		countCh <- countOut{total: total, err: err}
	}()

	data := []Record{}
	var dataErr error
	if limit > 0 {
		data, dataErr = s.runData(ctx, ap)
	}

	count := <-countCh
	if dataErr != nil {
		return FindResult{}, dataErr
	}
	if count.err != nil {
		return FindResult{}, count.err
	}

	return FindResult{
		Paginated: true,
		Total:     count.total,
		Limit:     limit,
		Skip:      skip,
		Data:      data,
	}, nil
}

// Get is read-one: a find with an equality filter on the identity field and
// limit 1. Zero rows is a not-found error. Only the Filter, Range and
// Select of p apply; Raw, Sort and the pagination knobs are ignored.
func (s *Service) Get(ctx context.Context, id any, p Params) (rec Record, err error) {
	defer func() { s.cfg.Metrics.RecordOperation("get", err) }()

	if id == nil {
		return nil, errs.BadRequest(errMissingID)
	}
	id = s.coerceID(id)

	merged := make(map[string]any, len(p.Filter)+1)
	for k, v := range p.Filter {
		merged[k] = v
	}
	merged[s.cfg.IDField] = id

	one := 1
	off := false
	res, err := s.Find(ctx, Params{
		Filter:   merged,
		Range:    p.Range,
		Select:   p.Select,
		Limit:    &one,
		Paginate: &off,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 {
		return nil, errs.NotFound(id)
	}
	return res.Data[0], nil
}

// coerceID turns a textual id into a time instant when the identity field
// is the time column, so the compiled clause uses a timestamp literal.
func (s *Service) coerceID(id any) any {
	if s.cfg.IDField != s.cfg.TimeField {
		return id
	}
	if raw, ok := id.(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return ts
		}
	}
	return id
}

func (s *Service) runData(ctx context.Context, ap flux.AssembleParams) ([]Record, error) {
	q, err := flux.Assemble(ap)
	if err != nil {
		return nil, errs.BadRequest(err)
	}
	return s.execute(ctx, "data", q)
}

func (s *Service) runRaw(ctx context.Context, q string) ([]Record, error) {
	return s.execute(ctx, "raw", q)
}

func (s *Service) execute(ctx context.Context, kind, q string) ([]Record, error) {
	s.log.Debug().Str("kind", kind).Str("flux", q).Msg("running query")

	start := s.now()
	rows, err := s.cfg.Provider.Runner().Run(ctx, q)
	if err != nil {
		return nil, errs.WrapStore(err)
	}
	data, err := influx.ReadAll(rows)
	s.cfg.Metrics.ObserveQuery(kind, time.Since(start))
	if err != nil {
		return nil, errs.WrapStore(err)
	}
	if data == nil {
		data = []Record{}
	}
	return data, nil
}

func (s *Service) runCount(ctx context.Context, ap flux.AssembleParams) (int, error) {
	q, err := flux.AssembleCount(ap)
	if err != nil {
		return 0, errs.BadRequest(err)
	}
	s.log.Debug().Str("kind", "count").Str("flux", q).Msg("running query")

	start := s.now()
	rows, err := s.cfg.Provider.Runner().Run(ctx, q)
	if err != nil {
		return 0, errs.WrapStore(err)
	}
	total, err := influx.SumCount(rows)
	s.cfg.Metrics.ObserveQuery("count", time.Since(start))
	if err != nil {
		return 0, errs.WrapStore(err)
	}
	return total, nil
}

type findErr string

func (e findErr) Error() string { return string(e) }

const errMissingID findErr = "an id is required"
