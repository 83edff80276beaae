package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/QianrenLi/stream-replay/internal/control"
)

// ConsoleConfig selects the console reporter's output mode.
type ConsoleConfig struct {
	// JSON, when true, writes one compact JSON object per snapshot
	// instead of the human-readable text table.
	JSON bool `mapstructure:"json"`
}

// ConsoleReporter writes statistics snapshots to an io.Writer, in
// either a one-line-per-stream text table or newline-delimited JSON.
type ConsoleReporter struct {
	out  io.Writer
	json bool
}

// NewConsoleReporter creates a console reporter writing to w (os.Stdout
// in production; an in-memory buffer in tests).
func NewConsoleReporter(cfg ConsoleConfig, w io.Writer) *ConsoleReporter {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleReporter{out: w, json: cfg.JSON}
}

// Report implements Reporter.
func (c *ConsoleReporter) Report(stat control.Statistics) error {
	if c.json {
		data, err := json.Marshal(stat)
		if err != nil {
			return fmt.Errorf("console reporter: marshal: %w", err)
		}
		_, err = fmt.Fprintln(c.out, string(data))
		return err
	}

	for name, fs := range stat.FlowStat {
		_, err := fmt.Fprintf(c.out, "%-16s rtt=%.4fs outage=%.4f thrpt=%.2fMbps throttle=%.2fMbps bitrate=%dbps buf=%d frames=%d\n",
			name, fs.RTT, fs.OutageRate, fs.Throughput, fs.Throttle, fs.Bitrate, fs.AppBuff, fs.FrameCount)
		if err != nil {
			return err
		}
	}
	return nil
}

// Close implements Reporter; the console reporter owns no resources.
func (c *ConsoleReporter) Close() error { return nil }
