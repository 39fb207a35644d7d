package model

import "time"

// StoredRecord is the persisted form of a Snapshot: the denormalized
// scalar projections plus the complete serialized payload.
//
// ID is assigned by the store on write and is unique and strictly
// increasing in insertion order. CreatedAt is the server ingestion clock
// and is the authoritative time for window queries and retention.
type StoredRecord struct {
	ID            int64     `json:"id"`
	Timestamp     string    `json:"timestamp"`
	Hostname      string    `json:"hostname"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryTotal   uint64    `json:"memory_total"`
	MemoryUsed    uint64    `json:"memory_used"`
	SwapPercent   float64   `json:"swap_percent"`
	DiskData      string    `json:"disk_data,omitempty"`
	NetworkData   string    `json:"network_data,omitempty"`
	RawData       string    `json:"raw_data,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Summary holds aggregate statistics over a filtered set of records.
// Averages and maxima are nil when the set is empty.
type Summary struct {
	TotalRecords int64    `json:"total_records"`
	AvgCPU       *float64 `json:"avg_cpu"`
	MaxCPU       *float64 `json:"max_cpu"`
	AvgMemory    *float64 `json:"avg_memory"`
	MaxMemory    *float64 `json:"max_memory"`
	AvgSwap      *float64 `json:"avg_swap"`
	MaxSwap      *float64 `json:"max_swap"`
}

// Alert is a threshold-crossing event. The schema is persisted for
// forward compatibility; no ingestion path writes it yet.
type Alert struct {
	ID        int64     `json:"id"`
	Timestamp string    `json:"timestamp"`
	Hostname  string    `json:"hostname"`
	AlertType string    `json:"alert_type"`
	Message   string    `json:"message"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	CreatedAt time.Time `json:"created_at"`
}
