package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/xtxerr/metricsd/config"
	"github.com/xtxerr/metricsd/internal/aggregate"
	apperrors "github.com/xtxerr/metricsd/internal/errors"
	"github.com/xtxerr/metricsd/internal/model"
	"github.com/xtxerr/metricsd/internal/query"
	"github.com/xtxerr/metricsd/internal/validation"
)

// handleIngest accepts one snapshot from a collector.
//
// Validation failures are client errors: the response names every violated
// field and nothing is persisted. Storage failures surface as 500.
func (r *Router) handleIngest(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, config.DefaultMaxBodySize)

	var payload model.Payload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "malformed payload: "+err.Error())
		return
	}

	if err := validation.Validate(&payload); err != nil {
		var v *validation.Violations
		if apperrors.As(err, &v) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"status":  "error",
				"message": "validation failed",
				"errors":  v.Errors,
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := r.backend.Store(req.Context(), &payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store metrics")
		return
	}

	r.aggregates.Observe(&payload)

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"message":   "metrics stored",
		"id":        id,
		"hostname":  payload.Hostname,
		"timestamp": payload.Metrics.Timestamp,
	})
}

// handleMetrics returns recent records for the query window.
func (r *Router) handleMetrics(w http.ResponseWriter, req *http.Request) {
	params, ok := parseQueryParams(w, req)
	if !ok {
		return
	}

	result, err := r.engine.Recent(req.Context(), params)
	if err != nil {
		respondQueryError(w, err, "failed to retrieve metrics")
		return
	}

	metrics := result.Records
	if metrics == nil {
		metrics = []model.StoredRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"count":   result.Count,
		"metrics": metrics,
		"query_params": map[string]any{
			"hostname": result.Hostname,
			"hours":    result.Hours,
		},
	})
}

// handleSummary returns aggregate statistics for the query window.
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) {
	params, ok := parseQueryParams(w, req)
	if !ok {
		return
	}

	result, err := r.engine.Summary(req.Context(), params)
	if err != nil {
		respondQueryError(w, err, "failed to get summary")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"summary":      result.Summary,
		"period_hours": result.Hours,
		"hostname":     result.Hostname,
	})
}

// handleLive returns the in-memory streaming aggregates.
func (r *Router) handleLive(w http.ResponseWriter, req *http.Request) {
	hostname := req.URL.Query().Get("hostname")

	hosts := r.aggregates.Snapshot(hostname)
	if hosts == nil {
		hosts = []aggregate.HostStats{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"count":  len(hosts),
		"hosts":  hosts,
	})
}

// handleHealth is liveness only: it touches no backend.
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "metricsd",
	})
}

// handleCleanup triggers an out-of-band expiry with an explicit retention,
// distinct from the scheduled automatic sweep.
func (r *Router) handleCleanup(w http.ResponseWriter, req *http.Request) {
	days := config.DefaultCleanupDays
	if v := req.URL.Query().Get("days_to_keep"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid days_to_keep parameter")
			return
		}
		days = n
	}

	deleted, err := r.backend.Expire(req.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "success",
		"deleted_records": deleted,
		"days_kept":       days,
	})
}

// parseQueryParams extracts hostname and hours from the request. A bad
// hours value writes the 400 response and returns ok=false.
func parseQueryParams(w http.ResponseWriter, req *http.Request) (query.Params, bool) {
	params := query.Params{
		Hostname: req.URL.Query().Get("hostname"),
	}

	if v := req.URL.Query().Get("hours"); v != "" {
		hours, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid hours parameter")
			return params, false
		}
		params.Hours = hours
	}

	return params, true
}

// respondQueryError maps an engine error to the right status code. Server
// faults get the generic fallback message; client errors keep their detail.
func respondQueryError(w http.ResponseWriter, err error, fallback string) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		writeError(w, status, fallback)
		return
	}
	writeError(w, status, err.Error())
}
