package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/xtxerr/metricsd/config"
	"github.com/xtxerr/metricsd/internal/archive"
	apperrors "github.com/xtxerr/metricsd/internal/errors"
	"github.com/xtxerr/metricsd/internal/logging"
	"github.com/xtxerr/metricsd/internal/model"
)

var embeddedLog = logging.Component("storage.embedded")

// schemaStatements creates the two indexed relations idempotently. Safe to
// run against an already-initialized database.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS metrics_id_seq`,
	`CREATE TABLE IF NOT EXISTS metrics (
		id BIGINT PRIMARY KEY DEFAULT nextval('metrics_id_seq'),
		timestamp VARCHAR NOT NULL,
		hostname VARCHAR NOT NULL,
		cpu_percent DOUBLE,
		memory_percent DOUBLE,
		memory_total BIGINT,
		memory_used BIGINT,
		swap_percent DOUBLE,
		disk_data VARCHAR,
		network_data VARCHAR,
		raw_data VARCHAR,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_metrics_timestamp ON metrics(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_metrics_hostname ON metrics(hostname)`,
	`CREATE INDEX IF NOT EXISTS idx_metrics_created_at ON metrics(created_at)`,
	`CREATE SEQUENCE IF NOT EXISTS alerts_id_seq`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id BIGINT PRIMARY KEY DEFAULT nextval('alerts_id_seq'),
		timestamp VARCHAR NOT NULL,
		hostname VARCHAR NOT NULL,
		alert_type VARCHAR NOT NULL,
		message VARCHAR NOT NULL,
		value DOUBLE,
		threshold DOUBLE,
		created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_hostname ON alerts(hostname)`,
}

// EmbeddedStore is the reference backend: a single-file DuckDB database.
//
// Writes (Store, Expire) serialize behind one mutex because the embedded
// engine does not guarantee safe concurrent writers; reads take no lock
// and rely on the engine's native concurrent-read support.
type EmbeddedStore struct {
	db           *sql.DB
	writeMu      sync.Mutex
	queryTimeout time.Duration
	archiveDir   string

	// now is the server clock, swappable in tests.
	now func() time.Time
}

var _ Backend = (*EmbeddedStore)(nil)

// OpenEmbedded opens (creating if needed) the embedded store at path.
func OpenEmbedded(cfg Config) (*EmbeddedStore, error) {
	path := cfg.Path
	if path == "" {
		path = config.DefaultDBPath
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// DuckDB is in-process; a small pool is enough for concurrent reads.
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &EmbeddedStore{
		db:           db,
		queryTimeout: cfg.queryTimeout(),
		archiveDir:   cfg.ArchiveDir,
		now:          time.Now,
	}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

// initSchema creates the metrics and alerts relations idempotently.
func (s *EmbeddedStore) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the store.
func (s *EmbeddedStore) Close() error {
	return s.db.Close()
}

// Store persists one validated payload. The insert captures both the
// denormalized scalars and the complete serialized payload, so replay is
// possible without the scalar columns.
func (s *EmbeddedStore) Store(ctx context.Context, p *model.Payload) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	m := &p.Metrics

	diskData, networkData, rawData, err := marshalPayload(p)
	if err != nil {
		return 0, err
	}

	var network sql.NullString
	if networkData != nil {
		network = sql.NullString{String: *networkData, Valid: true}
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO metrics (
			timestamp, hostname, cpu_percent, memory_percent,
			memory_total, memory_used, swap_percent,
			disk_data, network_data, raw_data, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		m.Timestamp,
		p.Hostname,
		m.CPU.Percent,
		m.Memory.Percent,
		int64(m.Memory.Total),
		int64(m.Memory.Used),
		m.Swap.Percent,
		diskData,
		network,
		rawData,
		s.now().UTC(),
	).Scan(&id)
	if err != nil {
		embeddedLog.Error("store metrics failed", "hostname", p.Hostname, "error", err)
		return 0, apperrors.Unavailable(err)
	}

	return id, nil
}

// QueryRecent returns records inside the filter window, newest first,
// capped at config.DefaultQueryLimit rows. No write lock is taken.
func (s *EmbeddedStore) QueryRecent(ctx context.Context, f Filter) ([]model.StoredRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	cutoff := s.now().UTC().Add(-f.Window)

	query := `
		SELECT id, timestamp, hostname, cpu_percent, memory_percent,
		       memory_total, memory_used, swap_percent,
		       disk_data, network_data, raw_data, created_at
		FROM metrics
		WHERE created_at > ?
	`
	args := []interface{}{cutoff}

	if f.Hostname != "" {
		query += ` AND hostname = ?`
		args = append(args, f.Hostname)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, config.DefaultQueryLimit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		embeddedLog.Error("query recent failed", "hostname", f.Hostname, "error", err)
		return nil, apperrors.Unavailable(err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Summarize computes COUNT/AVG/MAX per scalar column in one aggregate pass
// over the full matching set. Doing this in the engine avoids deserializing
// every record in application space.
func (s *EmbeddedStore) Summarize(ctx context.Context, f Filter) (*model.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	cutoff := s.now().UTC().Add(-f.Window)

	query := `
		SELECT
			COUNT(*),
			AVG(cpu_percent), MAX(cpu_percent),
			AVG(memory_percent), MAX(memory_percent),
			AVG(swap_percent), MAX(swap_percent)
		FROM metrics
		WHERE created_at > ?
	`
	args := []interface{}{cutoff}

	if f.Hostname != "" {
		query += ` AND hostname = ?`
		args = append(args, f.Hostname)
	}

	row := s.db.QueryRowContext(ctx, query, args...)

	var summary model.Summary
	var avgCPU, maxCPU, avgMem, maxMem, avgSwap, maxSwap sql.NullFloat64

	err := row.Scan(&summary.TotalRecords,
		&avgCPU, &maxCPU, &avgMem, &maxMem, &avgSwap, &maxSwap)
	if err != nil {
		embeddedLog.Error("summarize failed", "hostname", f.Hostname, "error", err)
		return nil, apperrors.Unavailable(err)
	}

	summary.AvgCPU = nullableFloat(avgCPU)
	summary.MaxCPU = nullableFloat(maxCPU)
	summary.AvgMemory = nullableFloat(avgMem)
	summary.MaxMemory = nullableFloat(maxMem)
	summary.AvgSwap = nullableFloat(avgSwap)
	summary.MaxSwap = nullableFloat(maxSwap)

	return &summary, nil
}

// Expire deletes records with created_at older than now-retention and
// returns the number removed. A delete is a write, so it shares the write
// lock with Store. When an archive directory is configured the doomed rows
// are written to Parquet first; an archive failure aborts the delete so
// the next sweep can retry without data loss.
func (s *EmbeddedStore) Expire(ctx context.Context, retention time.Duration) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	cutoff := s.now().UTC().Add(-retention)

	if s.archiveDir != "" {
		if err := s.archiveExpired(ctx, cutoff); err != nil {
			embeddedLog.Error("archive expired records failed", "error", err)
			return 0, fmt.Errorf("archive expired records: %w", err)
		}
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM metrics WHERE created_at < ?`, cutoff)
	if err != nil {
		embeddedLog.Error("expire failed", "error", err)
		return 0, apperrors.Unavailable(err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if deleted > 0 {
		embeddedLog.Info("expired old metric records", "deleted", deleted, "cutoff", cutoff)
	}

	return deleted, nil
}

// archiveExpired writes the rows below cutoff to a Parquet file.
func (s *EmbeddedStore) archiveExpired(ctx context.Context, cutoff time.Time) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, hostname, cpu_percent, memory_percent,
		       memory_total, memory_used, swap_percent,
		       disk_data, network_data, raw_data, created_at
		FROM metrics
		WHERE created_at < ?
		ORDER BY id
	`, cutoff)
	if err != nil {
		return apperrors.Unavailable(err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	path, err := archive.WriteRecords(s.archiveDir, s.now().UTC(), records)
	if err != nil {
		return err
	}

	embeddedLog.Info("archived expired records", "count", len(records), "path", path)
	return nil
}

// scanRecords scans metric rows into StoredRecords.
func scanRecords(rows *sql.Rows) ([]model.StoredRecord, error) {
	var records []model.StoredRecord

	for rows.Next() {
		var r model.StoredRecord
		var memTotal, memUsed sql.NullInt64
		var cpuPct, memPct, swapPct sql.NullFloat64
		var diskData, networkData, rawData sql.NullString

		err := rows.Scan(&r.ID, &r.Timestamp, &r.Hostname,
			&cpuPct, &memPct, &memTotal, &memUsed, &swapPct,
			&diskData, &networkData, &rawData, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		r.CPUPercent = cpuPct.Float64
		r.MemoryPercent = memPct.Float64
		r.SwapPercent = swapPct.Float64
		if memTotal.Valid {
			r.MemoryTotal = uint64(memTotal.Int64)
		}
		if memUsed.Valid {
			r.MemoryUsed = uint64(memUsed.Int64)
		}
		r.DiskData = diskData.String
		r.NetworkData = networkData.String
		r.RawData = rawData.String

		records = append(records, r)
	}

	return records, rows.Err()
}

// nullableFloat converts a NullFloat64 to a *float64.
func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
