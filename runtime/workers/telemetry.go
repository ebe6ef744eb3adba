package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/process"

	"chat-house/runtime"
)

// Roster is the registry view the telemetry worker needs.
type Roster interface {
	Snapshot() []runtime.GroupInfo
	Sweep() int
}

// RosterTelemetry periodically logs the live roster (groups, members,
// waiting, muted) together with the server process's CPU and RSS, and
// sweeps dead groups out of the registry.
type RosterTelemetry struct {
	log      *slog.Logger
	roster   Roster
	interval time.Duration
}

func NewRosterTelemetry(log *slog.Logger, roster Roster, interval time.Duration) *RosterTelemetry {
	return &RosterTelemetry{log: log, roster: roster, interval: interval}
}

func (w *RosterTelemetry) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("stopping roster telemetry")
			return nil
		case <-ticker.C:
			w.report(proc)
		}
	}
}

func (w *RosterTelemetry) report(proc *process.Process) {
	swept := w.roster.Sweep()
	infos := w.roster.Snapshot()

	attrs := []any{
		"groups", len(infos),
		"members", lo.SumBy(infos, func(i runtime.GroupInfo) int { return i.Members }),
		"waiting", lo.SumBy(infos, func(i runtime.GroupInfo) int { return i.Waiting }),
		"muted", lo.SumBy(infos, func(i runtime.GroupInfo) int { return i.Muted }),
		"swept", swept,
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		attrs = append(attrs, "cpu_percent", cpu)
	}
	if mem, err := proc.MemoryInfo(); err == nil {
		attrs = append(attrs, "rss_bytes", mem.RSS)
	}
	w.log.Info("roster", attrs...)
}
