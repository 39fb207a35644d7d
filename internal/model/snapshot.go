// Package model defines the wire and storage types for host telemetry.
//
// A Snapshot is one point-in-time sample pushed by a collector. A Payload
// wraps a Snapshot with the reporting hostname. A StoredRecord is the
// persisted form: a Snapshot plus the server-assigned id and ingestion
// timestamp.
package model

import "time"

// CPUMetrics holds processor utilization for one sample.
type CPUMetrics struct {
	Percent      float64   `json:"percent"`
	Count        int       `json:"count"`
	CountLogical int       `json:"count_logical"`
	LoadAvg      []float64 `json:"load_avg,omitempty"`
}

// MemoryMetrics holds physical memory usage in bytes.
type MemoryMetrics struct {
	Total     uint64  `json:"total"`
	Available uint64  `json:"available"`
	Percent   float64 `json:"percent"`
	Used      uint64  `json:"used"`
	Free      uint64  `json:"free"`
	Buffers   uint64  `json:"buffers"`
	Cached    uint64  `json:"cached"`
}

// SwapMetrics holds swap usage in bytes.
type SwapMetrics struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
}

// DiskMetrics holds usage for one mounted filesystem.
type DiskMetrics struct {
	Device     string  `json:"device"`
	Mountpoint string  `json:"mountpoint"`
	Fstype     string  `json:"fstype"`
	Total      uint64  `json:"total"`
	Used       uint64  `json:"used"`
	Free       uint64  `json:"free"`
	Percent    float64 `json:"percent"`
}

// NetworkMetrics holds host-wide interface counters.
type NetworkMetrics struct {
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
	ErrIn       uint64 `json:"errin"`
	ErrOut      uint64 `json:"errout"`
	DropIn      uint64 `json:"dropin"`
	DropOut     uint64 `json:"dropout"`
}

// ProcessMetrics holds usage for one process in the top-N list.
type ProcessMetrics struct {
	PID           int     `json:"pid"`
	Name          string  `json:"name"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

// Snapshot is one telemetry sample for one host at one instant.
//
// Timestamp is the collector's clock, ISO-8601 with explicit zone. It is
// stored as given; the server derives its own created_at independently,
// and all window and retention queries use created_at, never Timestamp.
type Snapshot struct {
	Timestamp    string           `json:"timestamp"`
	Hostname     string           `json:"hostname"`
	CPU          CPUMetrics       `json:"cpu"`
	Memory       MemoryMetrics    `json:"memory"`
	Swap         SwapMetrics      `json:"swap"`
	Disk         []DiskMetrics    `json:"disk"`
	Network      *NetworkMetrics  `json:"network,omitempty"`
	TopProcesses []ProcessMetrics `json:"top_processes,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// ParsedTimestamp returns the collector timestamp as a time.Time.
// The "Z" suffix is handled by RFC 3339 parsing directly.
func (s *Snapshot) ParsedTimestamp() (time.Time, error) {
	return time.Parse(time.RFC3339, s.Timestamp)
}

// Payload is the ingest request body: one Snapshot wrapped with the
// reporting hostname.
type Payload struct {
	Hostname string   `json:"hostname"`
	Metrics  Snapshot `json:"metrics"`
}
