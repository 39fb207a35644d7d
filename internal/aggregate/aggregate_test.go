package aggregate

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xtxerr/metricsd/internal/model"
)

func payloadWithCPU(hostname string, cpuPct float64) *model.Payload {
	return &model.Payload{
		Hostname: hostname,
		Metrics: model.Snapshot{
			CPU:    model.CPUMetrics{Percent: cpuPct, Count: 4, CountLogical: 8},
			Memory: model.MemoryMetrics{Total: 1 << 30, Percent: 50},
			Swap:   model.SwapMetrics{Percent: 10},
		},
	}
}

func TestManager_ObserveAndSnapshot(t *testing.T) {
	m := NewManager()

	for _, pct := range []float64{10, 20, 60} {
		m.Observe(payloadWithCPU("web-01", pct))
	}

	hosts := m.Snapshot("")
	if len(hosts) != 1 {
		t.Fatalf("expected 1 host, got %d", len(hosts))
	}

	h := hosts[0]
	if h.Hostname != "web-01" {
		t.Errorf("hostname: got %q", h.Hostname)
	}
	if h.Samples != 3 {
		t.Errorf("samples: got %d", h.Samples)
	}
	if h.CPU.Avg != 30 {
		t.Errorf("cpu avg: want 30, got %v", h.CPU.Avg)
	}
	if h.CPU.Min != 10 || h.CPU.Max != 60 {
		t.Errorf("cpu min/max: got %v/%v", h.CPU.Min, h.CPU.Max)
	}
	// 1% relative accuracy sketch: p99 lands near the max.
	if h.CPU.P99 < 55 || h.CPU.P99 > 65 {
		t.Errorf("cpu p99 outside expected band: %v", h.CPU.P99)
	}
	if h.FirstSeen.IsZero() || h.LastSeen.IsZero() {
		t.Error("seen timestamps not set")
	}
	if h.LastSeen.Before(h.FirstSeen) {
		t.Error("last_seen before first_seen")
	}
}

func TestManager_SnapshotFiltersByHostname(t *testing.T) {
	m := NewManager()
	m.Observe(payloadWithCPU("web-01", 10))
	m.Observe(payloadWithCPU("web-02", 20))

	hosts := m.Snapshot("web-02")
	if len(hosts) != 1 || hosts[0].Hostname != "web-02" {
		t.Fatalf("filter failed: %+v", hosts)
	}

	if m.Hosts() != 2 {
		t.Errorf("expected 2 tracked hosts, got %d", m.Hosts())
	}
}

func TestManager_SnapshotUnknownHost(t *testing.T) {
	m := NewManager()
	m.Observe(payloadWithCPU("web-01", 10))

	if hosts := m.Snapshot("nope"); len(hosts) != 0 {
		t.Errorf("expected empty snapshot for unknown host, got %+v", hosts)
	}
}

func TestManager_SeenTimestampsAdvance(t *testing.T) {
	m := NewManager()

	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	m.Observe(payloadWithCPU("web-01", 10))

	m.now = func() time.Time { return base.Add(time.Minute) }
	m.Observe(payloadWithCPU("web-01", 20))

	h := m.Snapshot("web-01")[0]
	if !h.FirstSeen.Equal(base) {
		t.Errorf("first_seen: got %v", h.FirstSeen)
	}
	if !h.LastSeen.Equal(base.Add(time.Minute)) {
		t.Errorf("last_seen: got %v", h.LastSeen)
	}
}

func TestManager_ConcurrentObserve(t *testing.T) {
	m := NewManager()

	const goroutines = 8
	const perGoroutine = 100

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			host := fmt.Sprintf("host-%02d", g%2)
			for i := 0; i < perGoroutine; i++ {
				m.Observe(payloadWithCPU(host, float64(i%100)))
				m.Snapshot("")
			}
		}(g)
	}
	wg.Wait()

	var total int64
	for _, h := range m.Snapshot("") {
		total += h.Samples
	}
	if total != goroutines*perGoroutine {
		t.Errorf("expected %d samples, got %d", goroutines*perGoroutine, total)
	}
}
