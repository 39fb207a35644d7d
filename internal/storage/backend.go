// Package storage provides the persistence layer for metricsd.
//
// All backends implement the Backend capability set: store one validated
// snapshot, read records over a rolling window, aggregate over the same
// filter, and expire records past a retention cutoff. Callers never branch
// on backend identity; the factory picks an implementation at startup.
package storage

import (
	"context"
	"time"

	"github.com/xtxerr/metricsd/config"
	"github.com/xtxerr/metricsd/internal/model"
)

// Filter bounds a read or aggregate query. Window is measured against the
// server ingestion clock (created_at), never the collector timestamp.
// An empty Hostname matches all hosts.
type Filter struct {
	Hostname string
	Window   time.Duration
}

// Backend is the capability set any storage implementation must satisfy.
//
// Backends catch their own connectivity, disk, and corruption failures and
// surface them as error returns; they never panic past this boundary.
type Backend interface {
	// Store persists one validated snapshot and returns the assigned id.
	// A failure leaves prior state unchanged.
	Store(ctx context.Context, p *model.Payload) (int64, error)

	// QueryRecent returns records whose created_at falls within the
	// filter window, newest first, capped at config.DefaultQueryLimit.
	QueryRecent(ctx context.Context, f Filter) ([]model.StoredRecord, error)

	// Summarize aggregates count/avg/max per scalar metric over the full
	// matching set (not capped).
	Summarize(ctx context.Context, f Filter) (*model.Summary, error)

	// Expire deletes records with created_at older than now-retention
	// and returns the number removed. Zero deletions is a normal outcome.
	Expire(ctx context.Context, retention time.Duration) (int64, error)

	// Close releases backend resources.
	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	// Type is "embedded" (default) or "remote".
	Type string

	// Path is the embedded database file.
	Path string

	// Remote parameterizes the remote adapter.
	Remote RemoteConfig

	// QueryTimeout bounds every statement. Zero means the default.
	QueryTimeout time.Duration

	// ArchiveDir, when set, makes Expire write doomed rows to a Parquet
	// file in this directory before deleting them.
	ArchiveDir string
}

// RemoteConfig holds remote adapter connection parameters.
type RemoteConfig struct {
	URL     string
	Token   string
	Bucket  string
	Timeout time.Duration
}

// queryTimeout returns the configured statement timeout or the default.
func (c Config) queryTimeout() time.Duration {
	if c.QueryTimeout > 0 {
		return c.QueryTimeout
	}
	return config.DefaultQueryTimeout
}
