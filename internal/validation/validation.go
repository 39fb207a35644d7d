// Package validation provides centralized input validation for metricsd.
//
// Validate checks a candidate Payload against the snapshot schema and
// collects every violated field constraint, not just the first. A payload
// that fails validation is never handed to storage.
package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/xtxerr/metricsd/config"
	apperrors "github.com/xtxerr/metricsd/internal/errors"
	"github.com/xtxerr/metricsd/internal/model"
)

// FieldError names one violated constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Violations is the aggregate validation failure. It lists every violated
// field so a collector can fix its payload in one round trip.
type Violations struct {
	Errors []FieldError
}

// Error implements the error interface.
func (v *Violations) Error() string {
	if len(v.Errors) == 0 {
		return "invalid snapshot"
	}
	parts := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		parts[i] = e.Field + ": " + e.Message
	}
	return "invalid snapshot: " + strings.Join(parts, "; ")
}

// Is lets errors.Is classify Violations as a validation failure.
func (v *Violations) Is(target error) bool {
	return target == apperrors.ErrInvalidSnapshot
}

func (v *Violations) add(field, format string, args ...interface{}) {
	v.Errors = append(v.Errors, FieldError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// Validate checks a payload against the snapshot schema. It returns nil
// when the payload is acceptable, or a *Violations listing every violated
// field. Validate has no side effects.
func Validate(p *model.Payload) error {
	v := &Violations{}

	validateHostname(v, "hostname", p.Hostname)

	m := &p.Metrics
	validateTimestamp(v, m.Timestamp)
	validateCPU(v, &m.CPU)
	validateMemory(v, &m.Memory)
	validateSwap(v, &m.Swap)
	validateDisks(v, m.Disk)
	validateProcesses(v, m.TopProcesses)

	if len(v.Errors) > 0 {
		return v
	}
	return nil
}

func validateHostname(v *Violations, field, hostname string) {
	if hostname == "" {
		v.add(field, "must not be empty")
		return
	}
	if len(hostname) > config.MaxHostnameBytes {
		v.add(field, "too long: maximum %d bytes allowed", config.MaxHostnameBytes)
	}
}

func validateTimestamp(v *Violations, ts string) {
	if ts == "" {
		v.add("timestamp", "must not be empty")
		return
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		v.add("timestamp", "invalid timestamp format: want ISO-8601 with zone")
	}
}

func validateCPU(v *Violations, c *model.CPUMetrics) {
	if c.Percent < 0 || c.Percent > 100 {
		v.add("cpu.percent", "must be between 0 and 100, got %v", c.Percent)
	}
	if c.Count <= 0 {
		v.add("cpu.count", "must be greater than 0, got %d", c.Count)
	}
	if c.CountLogical <= 0 {
		v.add("cpu.count_logical", "must be greater than 0, got %d", c.CountLogical)
	}
}

func validateMemory(v *Violations, m *model.MemoryMetrics) {
	if m.Total == 0 {
		v.add("memory.total", "must be greater than 0")
	}
	if m.Percent < 0 || m.Percent > 100 {
		v.add("memory.percent", "must be between 0 and 100, got %v", m.Percent)
	}
}

func validateSwap(v *Violations, s *model.SwapMetrics) {
	if s.Percent < 0 || s.Percent > 100 {
		v.add("swap.percent", "must be between 0 and 100, got %v", s.Percent)
	}
}

func validateDisks(v *Violations, disks []model.DiskMetrics) {
	for i := range disks {
		d := &disks[i]
		prefix := fmt.Sprintf("disk[%d]", i)
		if d.Total == 0 {
			v.add(prefix+".total", "must be greater than 0")
		}
		if d.Percent < 0 || d.Percent > 100 {
			v.add(prefix+".percent", "must be between 0 and 100, got %v", d.Percent)
		}
	}
}

// Network counters are unsigned, so negative values are rejected when the
// payload is decoded; no range checks are needed here.

func validateProcesses(v *Violations, procs []model.ProcessMetrics) {
	for i := range procs {
		p := &procs[i]
		prefix := fmt.Sprintf("top_processes[%d]", i)
		if p.CPUPercent < 0 {
			v.add(prefix+".cpu_percent", "must not be negative, got %v", p.CPUPercent)
		}
		if p.MemoryPercent < 0 || p.MemoryPercent > 100 {
			v.add(prefix+".memory_percent", "must be between 0 and 100, got %v", p.MemoryPercent)
		}
	}
}
