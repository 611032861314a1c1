package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"interview-lab/observability"

	"github.com/shirou/gopsutil/process"
)

// HealthMonitoringWorker periodically samples the engine's own process
// stats together with the in-process counters and logs them as one line
// per interval.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	monitor        *observability.Monitoring
	metricInterval time.Duration
}

func NewHealthMonitoringWorker(
	log *slog.Logger,
	monitor *observability.Monitoring,
	metricInterval time.Duration,
) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		monitor:        monitor,
		metricInterval: metricInterval,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		w.log.Error("Error while retrieving own process", "err", err)
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health sampling")
			return nil
		case <-ticker.C:
			cpu, err := self.CPUPercent()
			if err != nil {
				w.log.Error("Error while finding process cpu usage", "err", err)
				continue
			}
			ram, err := self.MemoryPercent()
			if err != nil {
				w.log.Error("Error while finding process ram usage", "err", err)
				continue
			}

			attrs := []any{"cpu", cpu, "ram", ram}
			for name, value := range w.monitor.Snapshot() {
				attrs = append(attrs, name, value)
			}
			w.log.Info("Engine health", attrs...)
		}
	}
}
