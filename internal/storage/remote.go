package storage

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xtxerr/metricsd/config"
	apperrors "github.com/xtxerr/metricsd/internal/errors"
	"github.com/xtxerr/metricsd/internal/logging"
	"github.com/xtxerr/metricsd/internal/model"
)

var remoteLog = logging.Component("storage.remote")

// bucketPattern restricts the bucket name to a safe SQL identifier. The
// bucket becomes part of table names and cannot be parameterized.
var bucketPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RemoteStore is the network-backed Backend: a PostgreSQL time-series
// store reached through a connection pool. The server side handles
// concurrent writers, so unlike the embedded store no write lock is
// needed here.
type RemoteStore struct {
	pool         *pgxpool.Pool
	table        string
	queryTimeout time.Duration

	now func() time.Time
}

var _ Backend = (*RemoteStore)(nil)

// OpenRemote connects to the remote store and ensures its schema exists.
func OpenRemote(cfg Config) (*RemoteStore, error) {
	rc := cfg.Remote
	if rc.URL == "" {
		return nil, fmt.Errorf("%w: remote URL not configured", apperrors.ErrInvalidConfig)
	}

	bucket := rc.Bucket
	if bucket == "" {
		bucket = config.DefaultRemoteBucket
	}
	if !bucketPattern.MatchString(bucket) {
		return nil, fmt.Errorf("%w: invalid bucket name %q", apperrors.ErrInvalidConfig, bucket)
	}

	timeout := rc.Timeout
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultRemoteTimeoutMs) * time.Millisecond
	}

	poolCfg, err := pgxpool.ParseConfig(rc.URL)
	if err != nil {
		return nil, fmt.Errorf("parse remote URL: %w", err)
	}
	if rc.Token != "" {
		poolCfg.ConnConfig.Password = rc.Token
	}
	poolCfg.ConnConfig.ConnectTimeout = timeout

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect remote store: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.Unavailable(err)
	}

	s := &RemoteStore{
		pool:         pool,
		table:        bucket,
		queryTimeout: cfg.queryTimeout(),
		now:          time.Now,
	}

	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init remote schema: %w", err)
	}

	return s, nil
}

// initSchema creates the metrics and alerts relations idempotently.
func (s *RemoteStore) initSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			timestamp TEXT NOT NULL,
			hostname TEXT NOT NULL,
			cpu_percent DOUBLE PRECISION,
			memory_percent DOUBLE PRECISION,
			memory_total BIGINT,
			memory_used BIGINT,
			swap_percent DOUBLE PRECISION,
			disk_data TEXT,
			network_data TEXT,
			raw_data TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s(created_at)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_hostname ON %s(hostname)`, s.table, s.table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_alerts (
			id BIGSERIAL PRIMARY KEY,
			timestamp TEXT NOT NULL,
			hostname TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			message TEXT NOT NULL,
			value DOUBLE PRECISION,
			threshold DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_alerts_hostname ON %s_alerts(hostname)`, s.table, s.table),
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *RemoteStore) Close() error {
	s.pool.Close()
	return nil
}

// Store persists one validated payload and returns the assigned id.
func (s *RemoteStore) Store(ctx context.Context, p *model.Payload) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	diskData, networkData, rawData, err := marshalPayload(p)
	if err != nil {
		return 0, err
	}

	var id int64
	query := fmt.Sprintf(`
		INSERT INTO %s (
			timestamp, hostname, cpu_percent, memory_percent,
			memory_total, memory_used, swap_percent,
			disk_data, network_data, raw_data, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, s.table)

	err = s.pool.QueryRow(ctx, query,
		p.Metrics.Timestamp,
		p.Hostname,
		p.Metrics.CPU.Percent,
		p.Metrics.Memory.Percent,
		int64(p.Metrics.Memory.Total),
		int64(p.Metrics.Memory.Used),
		p.Metrics.Swap.Percent,
		diskData,
		networkData,
		rawData,
		s.now().UTC(),
	).Scan(&id)
	if err != nil {
		remoteLog.Error("store metrics failed", "hostname", p.Hostname, "error", err)
		return 0, apperrors.Unavailable(err)
	}

	return id, nil
}

// QueryRecent returns records inside the filter window, newest first,
// capped at config.DefaultQueryLimit rows.
func (s *RemoteStore) QueryRecent(ctx context.Context, f Filter) ([]model.StoredRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	cutoff := s.now().UTC().Add(-f.Window)

	query := fmt.Sprintf(`
		SELECT id, timestamp, hostname, cpu_percent, memory_percent,
		       memory_total, memory_used, swap_percent,
		       disk_data, network_data, raw_data, created_at
		FROM %s
		WHERE created_at > $1
	`, s.table)
	args := []interface{}{cutoff}

	if f.Hostname != "" {
		query += ` AND hostname = $2`
		args = append(args, f.Hostname)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, config.DefaultQueryLimit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		remoteLog.Error("query recent failed", "hostname", f.Hostname, "error", err)
		return nil, apperrors.Unavailable(err)
	}
	defer rows.Close()

	var records []model.StoredRecord
	for rows.Next() {
		var r model.StoredRecord
		var memTotal, memUsed *int64
		var cpuPct, memPct, swapPct *float64
		var diskData, networkData, rawData *string

		err := rows.Scan(&r.ID, &r.Timestamp, &r.Hostname,
			&cpuPct, &memPct, &memTotal, &memUsed, &swapPct,
			&diskData, &networkData, &rawData, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		if cpuPct != nil {
			r.CPUPercent = *cpuPct
		}
		if memPct != nil {
			r.MemoryPercent = *memPct
		}
		if swapPct != nil {
			r.SwapPercent = *swapPct
		}
		if memTotal != nil {
			r.MemoryTotal = uint64(*memTotal)
		}
		if memUsed != nil {
			r.MemoryUsed = uint64(*memUsed)
		}
		if diskData != nil {
			r.DiskData = *diskData
		}
		if networkData != nil {
			r.NetworkData = *networkData
		}
		if rawData != nil {
			r.RawData = *rawData
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Unavailable(err)
	}
	return records, nil
}

// Summarize computes COUNT/AVG/MAX per scalar column in one pass.
func (s *RemoteStore) Summarize(ctx context.Context, f Filter) (*model.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	cutoff := s.now().UTC().Add(-f.Window)

	query := fmt.Sprintf(`
		SELECT
			COUNT(*),
			AVG(cpu_percent), MAX(cpu_percent),
			AVG(memory_percent), MAX(memory_percent),
			AVG(swap_percent), MAX(swap_percent)
		FROM %s
		WHERE created_at > $1
	`, s.table)
	args := []interface{}{cutoff}

	if f.Hostname != "" {
		query += ` AND hostname = $2`
		args = append(args, f.Hostname)
	}

	var summary model.Summary
	var avgCPU, maxCPU, avgMem, maxMem, avgSwap, maxSwap *float64

	err := s.pool.QueryRow(ctx, query, args...).Scan(&summary.TotalRecords,
		&avgCPU, &maxCPU, &avgMem, &maxMem, &avgSwap, &maxSwap)
	if err != nil {
		if err == pgx.ErrNoRows {
			return &summary, nil
		}
		remoteLog.Error("summarize failed", "hostname", f.Hostname, "error", err)
		return nil, apperrors.Unavailable(err)
	}

	summary.AvgCPU = avgCPU
	summary.MaxCPU = maxCPU
	summary.AvgMemory = avgMem
	summary.MaxMemory = maxMem
	summary.AvgSwap = avgSwap
	summary.MaxSwap = maxSwap

	return &summary, nil
}

// Expire deletes records older than now-retention and returns the count.
func (s *RemoteStore) Expire(ctx context.Context, retention time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	cutoff := s.now().UTC().Add(-retention)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE created_at < $1`, s.table), cutoff)
	if err != nil {
		remoteLog.Error("expire failed", "error", err)
		return 0, apperrors.Unavailable(err)
	}

	deleted := tag.RowsAffected()
	if deleted > 0 {
		remoteLog.Info("expired old metric records", "deleted", deleted, "cutoff", cutoff)
	}

	return deleted, nil
}
