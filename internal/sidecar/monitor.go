package sidecar

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"media-organizer/pkg/logging"
)

// ResourceSample is one CPU/memory observation of the backend process.
type ResourceSample struct {
	Timestamp  time.Time `json:"timestamp"`
	CPUPercent float64   `json:"cpu_percent"`
	RSSBytes   uint64    `json:"rss_bytes"`
}

// Monitor samples the backend's resource usage via the process table.
type Monitor struct {
	proc *process.Process
	log  *logging.Logger
}

// NewMonitor attaches to a running PID.
func NewMonitor(pid int, log *logging.Logger) (*Monitor, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, err
	}
	return &Monitor{proc: proc, log: log}, nil
}

// Sample takes one resource reading.
func (m *Monitor) Sample() (ResourceSample, error) {
	sample := ResourceSample{Timestamp: time.Now().UTC()}

	cpu, err := m.proc.CPUPercent()
	if err != nil {
		return sample, err
	}
	sample.CPUPercent = cpu

	mem, err := m.proc.MemoryInfo()
	if err != nil {
		return sample, err
	}
	sample.RSSBytes = mem.RSS
	return sample, nil
}

// Watch samples at the given interval until the context ends or the
// process disappears. Samples go to the log at debug level.
func (m *Monitor) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample, err := m.Sample()
			if err != nil {
				return // process is gone
			}
			m.log.Debug("Backend resources", map[string]interface{}{
				"cpu_percent": sample.CPUPercent,
				"rss_bytes":   sample.RSSBytes,
			})
		}
	}
}
