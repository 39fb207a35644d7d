// Package archive writes expired metric records to Parquet files so that
// retention sweeps never silently discard data when archiving is enabled.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/xtxerr/metricsd/internal/model"
)

// RecordRow is a stored record in Parquet format.
type RecordRow struct {
	ID            int64   `parquet:"id"`
	Timestamp     string  `parquet:"timestamp,zstd"`
	Hostname      string  `parquet:"hostname,zstd"`
	CPUPercent    float64 `parquet:"cpu_percent"`
	MemoryPercent float64 `parquet:"memory_percent"`
	MemoryTotal   int64   `parquet:"memory_total"`
	MemoryUsed    int64   `parquet:"memory_used"`
	SwapPercent   float64 `parquet:"swap_percent"`
	DiskData      string  `parquet:"disk_data,optional,zstd"`
	NetworkData   string  `parquet:"network_data,optional,zstd"`
	RawData       string  `parquet:"raw_data,optional,zstd"`
	CreatedAtMs   int64   `parquet:"created_at_ms"`
}

// recordToRow converts a StoredRecord to its Parquet representation.
func recordToRow(r *model.StoredRecord) RecordRow {
	return RecordRow{
		ID:            r.ID,
		Timestamp:     r.Timestamp,
		Hostname:      r.Hostname,
		CPUPercent:    r.CPUPercent,
		MemoryPercent: r.MemoryPercent,
		MemoryTotal:   int64(r.MemoryTotal),
		MemoryUsed:    int64(r.MemoryUsed),
		SwapPercent:   r.SwapPercent,
		DiskData:      r.DiskData,
		NetworkData:   r.NetworkData,
		RawData:       r.RawData,
		CreatedAtMs:   r.CreatedAt.UnixMilli(),
	}
}

// rowToRecord converts a Parquet row back to a StoredRecord.
func rowToRecord(row *RecordRow) model.StoredRecord {
	return model.StoredRecord{
		ID:            row.ID,
		Timestamp:     row.Timestamp,
		Hostname:      row.Hostname,
		CPUPercent:    row.CPUPercent,
		MemoryPercent: row.MemoryPercent,
		MemoryTotal:   uint64(row.MemoryTotal),
		MemoryUsed:    uint64(row.MemoryUsed),
		SwapPercent:   row.SwapPercent,
		DiskData:      row.DiskData,
		NetworkData:   row.NetworkData,
		RawData:       row.RawData,
		CreatedAt:     time.UnixMilli(row.CreatedAtMs).UTC(),
	}
}

// WriteRecords writes records to a timestamped Parquet file under dir and
// returns the file path. The filename carries the sweep time so repeated
// sweeps never clobber an earlier archive.
func WriteRecords(dir string, sweepTime time.Time, records []model.StoredRecord) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}

	name := fmt.Sprintf("metrics_%s.parquet", sweepTime.Format("2006-01-02_15-04-05"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}

	writer := parquet.NewGenericWriter[RecordRow](f, parquet.Compression(&parquet.Zstd))

	rows := make([]RecordRow, len(records))
	for i := range records {
		rows[i] = recordToRow(&records[i])
	}

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write archive rows: %w", err)
	}

	if err := writer.Close(); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("close archive writer: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close archive file: %w", err)
	}

	return path, nil
}

// ReadRecords reads all records back from an archive file.
func ReadRecords(path string) ([]model.StoredRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive file: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[RecordRow](f)
	defer reader.Close()

	rows := make([]RecordRow, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read archive rows: %w", err)
	}

	records := make([]model.StoredRecord, n)
	for i := 0; i < n; i++ {
		records[i] = rowToRecord(&rows[i])
	}

	return records, nil
}
