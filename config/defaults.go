// Package config provides configuration defaults and utilities
// for the metricsd application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via environment variables or the optional
// override file.
package config

import "time"

// =============================================================================
// Network Defaults
// =============================================================================

const (
	// DefaultListenAddress is the default HTTP listen address.
	// Override via METRICSD_LISTEN or config: listen
	DefaultListenAddress = "0.0.0.0:8000"

	// DefaultMaxBodySize limits ingest request bodies to prevent OOM.
	// 4 MiB is generous for a single snapshot including process lists.
	DefaultMaxBodySize = 4 * 1024 * 1024

	// DefaultShutdownTimeout is how long to wait for in-flight HTTP
	// requests during shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// =============================================================================
// Storage Defaults
// =============================================================================

const (
	// DefaultDBPath is the default embedded database file.
	// Override via METRICSD_DB_PATH or config: storage.path
	DefaultDBPath = "metrics.db"

	// DefaultQueryTimeout bounds every statement against the backend.
	// Operations fail rather than hang past this deadline.
	// Override via config: storage.query_timeout
	DefaultQueryTimeout = 30 * time.Second

	// DefaultQueryLimit caps the number of records a recent-metrics
	// query may return. Summaries are computed over the uncapped set.
	DefaultQueryLimit = 1000

	// DefaultRemoteTimeoutMs is the connect/query timeout for the
	// remote backend. Override via METRICSD_REMOTE_TIMEOUT_MS.
	DefaultRemoteTimeoutMs = 10000

	// DefaultRemoteBucket is the table namespace used by the remote
	// backend. Override via METRICSD_REMOTE_BUCKET.
	DefaultRemoteBucket = "metrics"
)

// =============================================================================
// Retention Defaults
// =============================================================================

const (
	// DefaultRetentionPeriod is how long stored records are kept before
	// the scheduled sweep deletes them.
	// Override via config: retention.days
	DefaultRetentionPeriod = 30 * 24 * time.Hour

	// DefaultCleanupInterval is how often the retention sweep runs.
	// Override via config: retention.interval
	DefaultCleanupInterval = 24 * time.Hour

	// DefaultCleanupDays is the retention used by the manual /cleanup
	// endpoint when days_to_keep is not given.
	DefaultCleanupDays = 30
)

// =============================================================================
// Query Defaults
// =============================================================================

const (
	// DefaultWindowHours is the query window when hours is not given.
	DefaultWindowHours = 24

	// MaxWindowHours bounds the query window to one year.
	MaxWindowHours = 24 * 366
)

// =============================================================================
// Validation Defaults
// =============================================================================

const (
	// MaxHostnameBytes is the upper bound on hostname length.
	MaxHostnameBytes = 255
)
