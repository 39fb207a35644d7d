// Package aggregate maintains in-memory streaming statistics per host.
//
// Every accepted snapshot updates a running aggregate for its hostname:
// count, avg, min, max, and DDSketch percentiles over the cpu, memory,
// and swap utilization scalars. These live aggregates complement the
// persisted summaries: they answer "what does this host look like since
// the process started" without touching the storage backend. A restart
// resets them.
package aggregate

import (
	"math"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/metricsd/internal/model"
)

// sketchAccuracy is the DDSketch relative accuracy (1%).
const sketchAccuracy = 0.01

// MetricStats is the aggregate for one scalar metric on one host.
type MetricStats struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// HostStats is the live aggregate for one host.
type HostStats struct {
	Hostname  string      `json:"hostname"`
	Samples   int64       `json:"samples"`
	FirstSeen time.Time   `json:"first_seen"`
	LastSeen  time.Time   `json:"last_seen"`
	CPU       MetricStats `json:"cpu"`
	Memory    MetricStats `json:"memory"`
	Swap      MetricStats `json:"swap"`
}

// metricStream holds running statistics plus a sketch for one metric.
type metricStream struct {
	sum    float64
	min    float64
	max    float64
	sketch *ddsketch.DDSketch
}

func newMetricStream() *metricStream {
	s := &metricStream{
		min: math.MaxFloat64,
		max: -math.MaxFloat64,
	}
	// ddsketch only errors on an out-of-range accuracy; 1% is valid.
	s.sketch, _ = ddsketch.NewDefaultDDSketch(sketchAccuracy)
	return s
}

func (s *metricStream) add(value float64) {
	s.sum += value
	if value < s.min {
		s.min = value
	}
	if value > s.max {
		s.max = value
	}
	if s.sketch != nil {
		s.sketch.Add(value)
	}
}

func (s *metricStream) stats(count int64) MetricStats {
	if count == 0 {
		return MetricStats{}
	}

	stats := MetricStats{
		Avg: s.sum / float64(count),
		Min: s.min,
		Max: s.max,
	}

	if s.sketch != nil {
		stats.P50, _ = s.sketch.GetValueAtQuantile(0.50)
		stats.P90, _ = s.sketch.GetValueAtQuantile(0.90)
		stats.P95, _ = s.sketch.GetValueAtQuantile(0.95)
		stats.P99, _ = s.sketch.GetValueAtQuantile(0.99)
	}

	return stats
}

// hostAggregate holds the streams for one host.
type hostAggregate struct {
	count     int64
	firstSeen time.Time
	lastSeen  time.Time
	cpu       *metricStream
	memory    *metricStream
	swap      *metricStream
}

// Manager tracks live aggregates for all hosts.
//
// Manager is safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	hosts map[string]*hostAggregate

	now func() time.Time
}

// NewManager creates an empty aggregate manager.
func NewManager() *Manager {
	return &Manager{
		hosts: make(map[string]*hostAggregate),
		now:   time.Now,
	}
}

// Observe folds one accepted payload into its host's aggregate.
func (m *Manager) Observe(p *model.Payload) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.hosts[p.Hostname]
	if h == nil {
		h = &hostAggregate{
			firstSeen: m.now().UTC(),
			cpu:       newMetricStream(),
			memory:    newMetricStream(),
			swap:      newMetricStream(),
		}
		m.hosts[p.Hostname] = h
	}

	h.count++
	h.lastSeen = m.now().UTC()
	h.cpu.add(p.Metrics.CPU.Percent)
	h.memory.add(p.Metrics.Memory.Percent)
	h.swap.add(p.Metrics.Swap.Percent)
}

// Snapshot returns the current aggregates for every host, or for a single
// host when hostname is non-empty.
func (m *Manager) Snapshot(hostname string) []HostStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []HostStats
	for name, h := range m.hosts {
		if hostname != "" && name != hostname {
			continue
		}
		out = append(out, HostStats{
			Hostname:  name,
			Samples:   h.count,
			FirstSeen: h.firstSeen,
			LastSeen:  h.lastSeen,
			CPU:       h.cpu.stats(h.count),
			Memory:    h.memory.stats(h.count),
			Swap:      h.swap.stats(h.count),
		})
	}
	return out
}

// Hosts returns the number of hosts currently tracked.
func (m *Manager) Hosts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hosts)
}
