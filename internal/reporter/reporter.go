// Package reporter ships periodic statistics snapshots to an external
// sink: stdout for local runs, or a Kafka topic for fleets that
// centralize telemetry (SPEC_FULL.md §11, an extension of the control
// daemon's own Statistics response).
package reporter

import (
	"time"

	"github.com/QianrenLi/stream-replay/internal/control"
	"github.com/QianrenLi/stream-replay/internal/log"
	"github.com/QianrenLi/stream-replay/internal/metrics"
)

// Reporter ships one statistics snapshot. Implementations must be safe
// to call from a single periodic-report goroutine; they are never
// called concurrently by this package.
type Reporter interface {
	Report(stat control.Statistics) error
	Close() error
}

// Config selects and configures a reporter by name.
type Config struct {
	Type    string        `mapstructure:"type"`
	Console ConsoleConfig `mapstructure:"console"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
}

// Run polls snapshot every interval and forwards it to r until stop is
// closed, mirroring the stream manager's own stop-channel lifecycle. A
// shipping error is logged and counted, never fatal: statistics
// reporting is advisory and must not interrupt the data plane.
func Run(name string, r Reporter, interval time.Duration, snapshot func() control.Statistics, stop <-chan struct{}) {
	logger := log.GetLogger().WithField("reporter", name)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := r.Report(snapshot()); err != nil {
				logger.Warnf("report: %v", err)
				metrics.ReporterErrorsTotal.WithLabelValues(name, "report").Inc()
			}
		}
	}
}
