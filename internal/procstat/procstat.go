// Package procstat samples resource usage of the running relay process for
// the status endpoint.
package procstat

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

type Stats struct {
	PID           int32   `json:"pid"`
	RSSBytes      uint64  `json:"rssBytes"`
	CPUPercent    float64 `json:"cpuPercent"`
	Threads       int32   `json:"threads"`
	Goroutines    int     `json:"goroutines"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

type Sampler struct {
	proc    *process.Process
	started time.Time
}

// NewSampler attaches to the current process.
func NewSampler() (*Sampler, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("attaching to pid %d: %w", os.Getpid(), err)
	}
	return &Sampler{proc: p, started: time.Now()}, nil
}

// Sample reads current process statistics. Fields the platform cannot
// report are left at zero; only a failed memory read is an error.
func (s *Sampler) Sample(ctx context.Context) (Stats, error) {
	st := Stats{
		PID:           s.proc.Pid,
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: time.Since(s.started).Seconds(),
	}

	mem, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return st, fmt.Errorf("reading memory info: %w", err)
	}
	st.RSSBytes = mem.RSS

	if cpu, err := s.proc.CPUPercentWithContext(ctx); err == nil {
		st.CPUPercent = cpu
	}
	if threads, err := s.proc.NumThreadsWithContext(ctx); err == nil {
		st.Threads = threads
	}

	return st, nil
}
