package service

import (
	"context"

	"github.com/telemetrydb/fluxrecord/internal/errs"
	"github.com/telemetrydb/fluxrecord/internal/validation"
)

// Create writes one record and returns it with a resolved timestamp.
func (s *Service) Create(ctx context.Context, rec Record) (out Record, err error) {
	defer func() { s.cfg.Metrics.RecordOperation("create", err) }()

	results, err := s.writeBatch(ctx, []Record{rec})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// CreateMany writes a batch of records as one logical unit: either every
// point is submitted or the call fails. Rejected when multi-write is
// disabled.
func (s *Service) CreateMany(ctx context.Context, recs []Record) (out []Record, err error) {
	defer func() { s.cfg.Metrics.RecordOperation("create", err) }()

	if !s.cfg.Multi {
		return nil, errs.Unsupported("batch create")
	}
	return s.writeBatch(ctx, recs)
}

func (s *Service) writeBatch(ctx context.Context, recs []Record) ([]Record, error) {
	if err := validation.ValidateBatch(recs); err != nil {
		return nil, errs.BadRequest(err)
	}

	points, results, err := s.mapping.ToPoints(recs, s.now().UTC())
	if err != nil {
		return nil, errs.BadRequest(err)
	}

	// The writer is acquired per call; flush is awaited on success and
	// failure paths alike so the write channel is always released.
	w := s.cfg.Provider.Writer()
	writeErr := w.WritePoints(ctx, points...)
	flushErr := w.Flush(ctx)
	if writeErr != nil {
		return nil, errs.WrapStore(writeErr)
	}
	if flushErr != nil {
		return nil, errs.WrapStore(flushErr)
	}

	s.cfg.Metrics.AddPointsWritten(len(points))
	s.log.Debug().Int("points", len(points)).Msg("batch written")
	return results, nil
}

// Update always fails: the backing store is append-only.
func (s *Service) Update(ctx context.Context, id any, rec Record, p Params) (Record, error) {
	err := errs.Unsupported("update")
	s.cfg.Metrics.RecordOperation("update", err)
	return nil, err
}

// Patch always fails: the backing store is append-only.
func (s *Service) Patch(ctx context.Context, id any, rec Record, p Params) (Record, error) {
	err := errs.Unsupported("patch")
	s.cfg.Metrics.RecordOperation("patch", err)
	return nil, err
}

// Remove always fails: the backing store is append-only.
func (s *Service) Remove(ctx context.Context, id any, p Params) (Record, error) {
	err := errs.Unsupported("remove")
	s.cfg.Metrics.RecordOperation("remove", err)
	return nil, err
}
