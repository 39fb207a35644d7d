package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xtxerr/metricsd/internal/aggregate"
	"github.com/xtxerr/metricsd/internal/model"
	"github.com/xtxerr/metricsd/internal/query"
	"github.com/xtxerr/metricsd/internal/storage"
)

// fakeBackend serves canned results and records what it was asked.
type fakeBackend struct {
	storeN     int
	lastStored *model.Payload
	storeErr   error

	records  []model.StoredRecord
	queryErr error

	summary *model.Summary

	expired       int64
	lastRetention time.Duration
	expireErr     error
}

func (f *fakeBackend) Store(ctx context.Context, p *model.Payload) (int64, error) {
	if f.storeErr != nil {
		return 0, f.storeErr
	}
	f.storeN++
	f.lastStored = p
	return int64(f.storeN), nil
}

func (f *fakeBackend) QueryRecent(ctx context.Context, flt storage.Filter) ([]model.StoredRecord, error) {
	return f.records, f.queryErr
}

func (f *fakeBackend) Summarize(ctx context.Context, flt storage.Filter) (*model.Summary, error) {
	if f.summary == nil {
		return &model.Summary{}, nil
	}
	return f.summary, nil
}

func (f *fakeBackend) Expire(ctx context.Context, retention time.Duration) (int64, error) {
	f.lastRetention = retention
	return f.expired, f.expireErr
}

func (f *fakeBackend) Close() error { return nil }

func newTestRouter(fb *fakeBackend) *Router {
	return NewRouter(fb, query.New(fb), aggregate.NewManager())
}

func validBody() string {
	return `{
		"hostname": "web-01",
		"metrics": {
			"timestamp": "2026-08-31T10:00:00Z",
			"hostname": "web-01",
			"cpu": {"percent": 42.5, "count": 4, "count_logical": 8},
			"memory": {"total": 17179869184, "available": 8589934592, "percent": 50.0, "used": 8589934592, "free": 0, "buffers": 0, "cached": 0},
			"swap": {"total": 4294967296, "used": 0, "free": 4294967296, "percent": 0},
			"disk": [{"device": "/dev/sda1", "mountpoint": "/", "fstype": "ext4", "total": 536870912000, "used": 107374182400, "free": 429496729600, "percent": 20.0}],
			"network": {"bytes_sent": 100, "bytes_recv": 200, "packets_sent": 1, "packets_recv": 2, "errin": 0, "errout": 0, "dropin": 0, "dropout": 0}
		}
	}`
}

func doRequest(t *testing.T, r *Router, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("response not JSON: %v\nbody: %s", err, rec.Body.String())
		}
	}
	return rec, decoded
}

func TestIngest_OK(t *testing.T) {
	fb := &fakeBackend{}
	r := newTestRouter(fb)

	rec, body := doRequest(t, r, http.MethodPost, "/ingest", validBody())

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	if body["status"] != "success" {
		t.Errorf("status field: %v", body["status"])
	}
	if body["hostname"] != "web-01" {
		t.Errorf("hostname: %v", body["hostname"])
	}
	if fb.storeN != 1 {
		t.Errorf("backend stores: %d", fb.storeN)
	}
	if fb.lastStored.Metrics.CPU.Percent != 42.5 {
		t.Errorf("stored payload mangled: %+v", fb.lastStored.Metrics.CPU)
	}
}

func TestIngest_ValidationFailure(t *testing.T) {
	fb := &fakeBackend{}
	r := newTestRouter(fb)

	body := strings.Replace(validBody(), `"percent": 50.0`, `"percent": 150.0`, 1)
	rec, decoded := doRequest(t, r, http.MethodPost, "/ingest", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	if decoded["status"] != "error" {
		t.Errorf("status field: %v", decoded["status"])
	}

	fieldErrors, ok := decoded["errors"].([]any)
	if !ok || len(fieldErrors) == 0 {
		t.Fatalf("expected structured field errors, got %v", decoded["errors"])
	}
	first := fieldErrors[0].(map[string]any)
	if first["field"] != "memory.percent" {
		t.Errorf("expected memory.percent violation, got %v", first)
	}

	if fb.storeN != 0 {
		t.Error("rejected payload must not reach storage")
	}
}

func TestIngest_MalformedJSON(t *testing.T) {
	fb := &fakeBackend{}
	r := newTestRouter(fb)

	rec, _ := doRequest(t, r, http.MethodPost, "/ingest", `{"hostname": `)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d", rec.Code)
	}
	if fb.storeN != 0 {
		t.Error("malformed payload must not reach storage")
	}
}

func TestIngest_NegativeNetworkCounterRejected(t *testing.T) {
	fb := &fakeBackend{}
	r := newTestRouter(fb)

	body := strings.Replace(validBody(), `"bytes_sent": 100`, `"bytes_sent": -1`, 1)
	rec, _ := doRequest(t, r, http.MethodPost, "/ingest", body)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative counter accepted: status %d", rec.Code)
	}
	if fb.storeN != 0 {
		t.Error("payload with negative counter must not reach storage")
	}
}

func TestIngest_BackendFailure(t *testing.T) {
	fb := &fakeBackend{storeErr: errors.New("disk full")}
	r := newTestRouter(fb)

	rec, body := doRequest(t, r, http.MethodPost, "/ingest", validBody())

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status %d", rec.Code)
	}
	if body["status"] != "error" {
		t.Errorf("status field: %v", body["status"])
	}
}

func TestIngest_MethodNotAllowed(t *testing.T) {
	r := newTestRouter(&fakeBackend{})

	req := httptest.NewRequest(http.MethodGet, "/ingest", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status %d", rec.Code)
	}
}

func TestMetrics_OK(t *testing.T) {
	fb := &fakeBackend{records: []model.StoredRecord{
		{ID: 2, Hostname: "web-01"},
		{ID: 1, Hostname: "web-01"},
	}}
	r := newTestRouter(fb)

	rec, body := doRequest(t, r, http.MethodGet, "/metrics?hostname=web-01&hours=6", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if body["count"].(float64) != 2 {
		t.Errorf("count: %v", body["count"])
	}
	qp := body["query_params"].(map[string]any)
	if qp["hostname"] != "web-01" || qp["hours"].(float64) != 6 {
		t.Errorf("query params not echoed: %v", qp)
	}
}

func TestMetrics_EmptyResultIsArray(t *testing.T) {
	r := newTestRouter(&fakeBackend{})

	rec, _ := doRequest(t, r, http.MethodGet, "/metrics", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"metrics":[]`) {
		t.Errorf("empty result should serialize as [], body: %s", rec.Body.String())
	}
}

func TestMetrics_BadHours(t *testing.T) {
	r := newTestRouter(&fakeBackend{})

	tests := []string{
		"/metrics?hours=abc",
		"/metrics?hours=-5",
		"/metrics?hours=999999",
	}
	for _, target := range tests {
		rec, _ := doRequest(t, r, http.MethodGet, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", target, rec.Code)
		}
	}
}

func TestMetrics_BackendFailure(t *testing.T) {
	fb := &fakeBackend{queryErr: errors.New("connection lost")}
	r := newTestRouter(fb)

	rec, _ := doRequest(t, r, http.MethodGet, "/metrics", "")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status %d", rec.Code)
	}
}

func TestSummary_OK(t *testing.T) {
	avg := 30.5
	fb := &fakeBackend{summary: &model.Summary{TotalRecords: 10, AvgCPU: &avg}}
	r := newTestRouter(fb)

	rec, body := doRequest(t, r, http.MethodGet, "/metrics/summary?hostname=web-01", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if body["period_hours"].(float64) != 24 {
		t.Errorf("period_hours: %v", body["period_hours"])
	}
	summary := body["summary"].(map[string]any)
	if summary["total_records"].(float64) != 10 {
		t.Errorf("total_records: %v", summary["total_records"])
	}
	if summary["avg_cpu"].(float64) != 30.5 {
		t.Errorf("avg_cpu: %v", summary["avg_cpu"])
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&fakeBackend{})

	rec, body := doRequest(t, r, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if body["status"] != "healthy" {
		t.Errorf("status: %v", body["status"])
	}
	if body["service"] != "metricsd" {
		t.Errorf("service: %v", body["service"])
	}
	if _, err := time.Parse(time.RFC3339, body["timestamp"].(string)); err != nil {
		t.Errorf("timestamp not RFC3339: %v", body["timestamp"])
	}
}

func TestCleanup_DefaultDays(t *testing.T) {
	fb := &fakeBackend{expired: 12}
	r := newTestRouter(fb)

	rec, body := doRequest(t, r, http.MethodPost, "/cleanup", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if body["deleted_records"].(float64) != 12 {
		t.Errorf("deleted_records: %v", body["deleted_records"])
	}
	if body["days_kept"].(float64) != 30 {
		t.Errorf("days_kept: %v", body["days_kept"])
	}
	if fb.lastRetention != 30*24*time.Hour {
		t.Errorf("retention passed to backend: %v", fb.lastRetention)
	}
}

func TestCleanup_ExplicitDays(t *testing.T) {
	fb := &fakeBackend{expired: 3}
	r := newTestRouter(fb)

	rec, body := doRequest(t, r, http.MethodPost, "/cleanup?days_to_keep=7", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if body["days_kept"].(float64) != 7 {
		t.Errorf("days_kept: %v", body["days_kept"])
	}
	if fb.lastRetention != 7*24*time.Hour {
		t.Errorf("retention passed to backend: %v", fb.lastRetention)
	}
}

func TestCleanup_BadDays(t *testing.T) {
	r := newTestRouter(&fakeBackend{})

	for _, target := range []string{"/cleanup?days_to_keep=abc", "/cleanup?days_to_keep=-1"} {
		rec, _ := doRequest(t, r, http.MethodPost, target, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", target, rec.Code)
		}
	}
}

func TestLive_ReflectsIngestedPayloads(t *testing.T) {
	fb := &fakeBackend{}
	r := newTestRouter(fb)

	for i := 0; i < 3; i++ {
		rec, _ := doRequest(t, r, http.MethodPost, "/ingest", validBody())
		if rec.Code != http.StatusOK {
			t.Fatalf("ingest %d: status %d", i, rec.Code)
		}
	}

	rec, body := doRequest(t, r, http.MethodGet, "/metrics/live", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if body["count"].(float64) != 1 {
		t.Fatalf("expected 1 live host, got %v", body["count"])
	}
	host := body["hosts"].([]any)[0].(map[string]any)
	if host["hostname"] != "web-01" {
		t.Errorf("hostname: %v", host["hostname"])
	}
	if host["samples"].(float64) != 3 {
		t.Errorf("samples: %v", host["samples"])
	}
}

func TestLive_EmptyIsArray(t *testing.T) {
	r := newTestRouter(&fakeBackend{})

	rec, _ := doRequest(t, r, http.MethodGet, "/metrics/live", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"hosts":[]`) {
		t.Errorf("empty live set should serialize as [], body: %s", rec.Body.String())
	}
}
