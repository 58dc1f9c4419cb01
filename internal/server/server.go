// Package server exposes the record service over HTTP. Reads take a JSON
// query object in the q parameter; writes take a JSON record or record
// array body. Update, patch and delete routes exist but always report the
// operation as unsupported.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/telemetrydb/fluxrecord/internal/errs"
	"github.com/telemetrydb/fluxrecord/internal/flux"
	"github.com/telemetrydb/fluxrecord/internal/influx"
	"github.com/telemetrydb/fluxrecord/internal/service"
)

const maxBodyBytes = 8 << 20

// NewHandler returns the HTTP handler for the record API.
func NewHandler(svc *service.Service, provider influx.Provider, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /records", handleFind(svc))
	mux.HandleFunc("GET /records/{id}", handleGet(svc))
	mux.HandleFunc("POST /records", handleCreate(svc))
	mux.HandleFunc("PUT /records/{id}", handleUpdate(svc))
	mux.HandleFunc("PATCH /records/{id}", handlePatch(svc))
	mux.HandleFunc("DELETE /records/{id}", handleRemove(svc))
	mux.HandleFunc("GET /healthz", handleHealth(provider))
	return withAccessLog(log, mux)
}

func handleFind(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := parseParams(r)
		if err != nil {
			writeError(w, err)
			return
		}
		res, err := svc.Find(r.Context(), p)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleGet(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := parseParams(r)
		if err != nil {
			writeError(w, err)
			return
		}
		rec, err := svc.Get(r.Context(), r.PathValue("id"), p)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleCreate(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, errs.BadRequest(err))
			return
		}

		// A JSON array is a batch create, an object a single create.
		if isJSONArray(body) {
			var recs []service.Record
			if err := json.Unmarshal(body, &recs); err != nil {
				writeError(w, errs.BadRequest(err))
				return
			}
			out, err := svc.CreateMany(r.Context(), recs)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, out)
			return
		}

		var rec service.Record
		if err := json.Unmarshal(body, &rec); err != nil {
			writeError(w, errs.BadRequest(err))
			return
		}
		out, err := svc.Create(r.Context(), rec)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

func handleUpdate(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := svc.Update(r.Context(), r.PathValue("id"), nil, service.Params{})
		writeError(w, err)
	}
}

func handlePatch(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := svc.Patch(r.Context(), r.PathValue("id"), nil, service.Params{})
		writeError(w, err)
	}
}

func handleRemove(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := svc.Remove(r.Context(), r.PathValue("id"), service.Params{})
		writeError(w, err)
	}
}

func handleHealth(provider influx.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := provider.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// parseParams assembles the call parameters from the request: the q value
// carries the JSON query object, the remaining knobs are form values.
func parseParams(r *http.Request) (service.Params, error) {
	var p service.Params

	if q := r.FormValue("q"); q != "" {
		if err := json.Unmarshal([]byte(q), &p.Filter); err != nil {
			return p, errs.BadRequest(fmt.Errorf("invalid query object: %w", err))
		}
		sort, err := parseSort(p.Filter["$sort"])
		if err != nil {
			return p, errs.BadRequest(err)
		}
		p.Sort = sort
	}

	for _, knob := range []struct {
		name string
		dst  **int
	}{{"limit", &p.Limit}, {"skip", &p.Skip}} {
		raw := r.FormValue(knob.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, errs.BadRequest(fmt.Errorf("%s must be a non-negative integer", knob.name))
		}
		*knob.dst = &n
	}

	if sel := r.FormValue("select"); sel != "" {
		for _, col := range strings.Split(sel, ",") {
			if col = strings.TrimSpace(col); col != "" {
				p.Select = append(p.Select, col)
			}
		}
	}

	start, stop := r.FormValue("start"), r.FormValue("stop")
	if start != "" || stop != "" {
		if start != "" && !flux.IsTimeLiteral(start) {
			return p, errs.BadRequest(fmt.Errorf("start must be a duration or RFC3339 timestamp, got %q", start))
		}
		if stop != "" && !flux.IsTimeLiteral(stop) {
			return p, errs.BadRequest(fmt.Errorf("stop must be a duration or RFC3339 timestamp, got %q", stop))
		}
		p.Range = &flux.TimeRange{Start: start, Stop: stop}
	}

	if raw := r.FormValue("paginate"); raw != "" {
		on, err := strconv.ParseBool(raw)
		if err != nil {
			return p, errs.BadRequest(errors.New("paginate must be a boolean"))
		}
		p.Paginate = &on
	}

	return p, nil
}

// parseSort reads the $sort directive in its order-preserving array form:
// [["temperature", -1], ["device", 1]]. JSON objects lose key order, so the
// object form is not accepted.
func parseSort(raw any) ([]flux.SortKey, error) {
	if raw == nil {
		return nil, nil
	}
	pairs, ok := raw.([]any)
	if !ok {
		return nil, errors.New("$sort must be an array of [field, direction] pairs")
	}

	keys := make([]flux.SortKey, 0, len(pairs))
	for _, item := range pairs {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return nil, errors.New("$sort entries must be [field, direction] pairs")
		}
		field, ok := pair[0].(string)
		if !ok || field == "" {
			return nil, errors.New("$sort field must be a string")
		}
		dir, ok := pair[1].(float64)
		if !ok || (dir != 1 && dir != -1) {
			return nil, fmt.Errorf("$sort direction for %q must be 1 or -1", field)
		}
		keys = append(keys, flux.SortKey{Field: field, Desc: dir == -1})
	}
	return keys, nil
}

func isJSONArray(body []byte) bool {
	trimmed := strings.TrimLeft(string(body), " \t\r\n")
	return strings.HasPrefix(trimmed, "[")
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *errs.Error
	if !errors.As(err, &appErr) {
		appErr = &errs.Error{Kind: errs.KindStore, Code: http.StatusInternalServerError, Message: err.Error()}
	}
	writeJSON(w, appErr.Code, appErr)
}
