// Package query translates inbound query requests into storage backend
// calls and shapes the results for the HTTP layer.
//
// Windowing semantics are defined here once: "recent" and "summary" always
// mean created_at (server ingestion time), never the collector-supplied
// timestamp, so skewed client clocks cannot distort window queries.
package query

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/metricsd/config"
	apperrors "github.com/xtxerr/metricsd/internal/errors"
	"github.com/xtxerr/metricsd/internal/model"
	"github.com/xtxerr/metricsd/internal/storage"
)

// Params is an inbound query request. Hours == 0 means the default window.
type Params struct {
	Hostname string
	Hours    int
}

// RecentResult holds a recent-metrics response: the matching records,
// their count, and the echoed query parameters.
type RecentResult struct {
	Count    int
	Records  []model.StoredRecord
	Hostname string
	Hours    int
}

// SummaryResult holds an aggregate response with echoed parameters.
type SummaryResult struct {
	Summary  *model.Summary
	Hostname string
	Hours    int
}

// Engine executes queries against a storage backend.
//
// Identical concurrent summary queries are collapsed through singleflight
// so a dashboard hammering one endpoint produces a single aggregate pass.
type Engine struct {
	backend storage.Backend
	group   singleflight.Group
}

// New creates an Engine over the given backend.
func New(backend storage.Backend) *Engine {
	return &Engine{backend: backend}
}

// normalize applies the default window and bounds-checks the hours value.
func normalize(p Params) (Params, error) {
	if p.Hours == 0 {
		p.Hours = config.DefaultWindowHours
	}
	if p.Hours < 0 || p.Hours > config.MaxWindowHours {
		return p, fmt.Errorf("%w: hours must be between 1 and %d, got %d",
			apperrors.ErrInvalidWindow, config.MaxWindowHours, p.Hours)
	}
	return p, nil
}

// filter converts normalized params to a storage filter.
func filter(p Params) storage.Filter {
	return storage.Filter{
		Hostname: p.Hostname,
		Window:   time.Duration(p.Hours) * time.Hour,
	}
}

// Recent returns records inside the window, newest first, capped at the
// backend's row limit.
func (e *Engine) Recent(ctx context.Context, p Params) (*RecentResult, error) {
	p, err := normalize(p)
	if err != nil {
		return nil, err
	}

	records, err := e.backend.QueryRecent(ctx, filter(p))
	if err != nil {
		return nil, err
	}

	return &RecentResult{
		Count:    len(records),
		Records:  records,
		Hostname: p.Hostname,
		Hours:    p.Hours,
	}, nil
}

// Summary returns aggregate statistics over the full matching set.
func (e *Engine) Summary(ctx context.Context, p Params) (*SummaryResult, error) {
	p, err := normalize(p)
	if err != nil {
		return nil, err
	}

	key := p.Hostname + "|" + strconv.Itoa(p.Hours)

	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		return e.backend.Summarize(ctx, filter(p))
	})
	if err != nil {
		return nil, err
	}

	return &SummaryResult{
		Summary:  v.(*model.Summary),
		Hostname: p.Hostname,
		Hours:    p.Hours,
	}, nil
}
