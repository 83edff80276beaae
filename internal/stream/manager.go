package stream

import (
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"

	"github.com/QianrenLi/stream-replay/internal/config"
	"github.com/QianrenLi/stream-replay/internal/control"
	"github.com/QianrenLi/stream-replay/internal/dispatcher"
	"github.com/QianrenLi/stream-replay/internal/log"
	"github.com/QianrenLi/stream-replay/internal/macmon"
	"github.com/QianrenLi/stream-replay/internal/metrics"
	"github.com/QianrenLi/stream-replay/internal/rtt"
	"github.com/QianrenLi/stream-replay/internal/version"
)

// Manager owns one Worker per configured stream and runs them as a
// structured group of goroutines: they start together and the manager
// only returns once every one of them has stopped.
type Manager struct {
	workers map[string]*Worker
	tables  map[string]dispatcher.Table
	logger  log.Logger
}

// NewManager builds one Worker, socket table, and (if calc_rtt is set)
// RTT recorder per stream in the manifest. A per-stream failure to
// build a source or socket table is collected rather than aborting the
// remaining streams (spec.md §7: "other streams continue").
func NewManager(manifest *config.Manifest, monitor *macmon.Monitor, devices []string) (*Manager, error) {
	m := &Manager{
		workers: make(map[string]*Worker),
		tables:  make(map[string]dispatcher.Table),
		logger:  log.GetLogger(),
	}

	var errs error
	for _, sc := range manifest.Streams {
		src, verMgr, err := buildSource(sc)
		if err != nil {
			metrics.StreamStatus.WithLabelValues(sc.Name).Set(metrics.StreamStatusError)
			errs = multierr.Append(errs, fmt.Errorf("stream %s: %w", sc.Name, err))
			continue
		}

		table, err := dispatcher.Build(sc.Links, sc.Tos)
		if err != nil {
			metrics.StreamStatus.WithLabelValues(sc.Name).Set(metrics.StreamStatusError)
			errs = multierr.Append(errs, fmt.Errorf("stream %s: %w", sc.Name, err))
			continue
		}

		var recorder *rtt.Recorder
		if sc.CalcRTT && len(sc.Links) > 0 {
			recorder, err = rtt.New(sc.Links[0].TxIPAddr, int(sc.Port)+rtt.PortOffset, len(sc.Links), sc.TargetRTT)
			if err != nil {
				metrics.StreamStatus.WithLabelValues(sc.Name).Set(metrics.StreamStatusError)
				errs = multierr.Append(errs, fmt.Errorf("stream %s: rtt recorder: %w", sc.Name, err))
				table.Close()
				continue
			}
		}

		m.tables[sc.Name] = table
		w := NewWorker(sc.Name, sc, manifest.WindowSize, src, table, monitor, recorder, devices)
		if verMgr != nil {
			w.SetVersionManager(verMgr)
		}
		m.workers[sc.Name] = w
	}
	return m, errs
}

// videoLadderSuffix names the JSON layout extension a video-ladder
// source path is distinguished by (spec.md §5: "or a config.json
// video-ladder path").
const videoLadderSuffix = ".json"

// buildSource resolves a stream's source field to one of the three
// Source variants: a live channel-fed stream, a bitrate-laddered
// video source driven by a version.Manager, or a recorded .npy trace.
// It returns the attached version.Manager only for the video-ladder
// case, so the caller can wire SetVersion/ActualBitrate control.
func buildSource(sc config.StreamConfig) (Source, *version.Manager, error) {
	switch {
	case IsStreamURI(sc.Source):
		ch := make(chan []byte, 16)
		return NewChannelSource(ch), nil, nil
	case strings.HasSuffix(sc.Source, videoLadderSuffix):
		verMgr, err := version.Load(sc.Source)
		if err != nil {
			return nil, nil, err
		}
		return NewVideoSource(verMgr.Next), verMgr, nil
	default:
		src, err := NewTraceSource(sc.Source, sc.StartOffset, sc.Loops)
		return src, nil, err
	}
}

// StreamHandles returns the manager's workers as the interface the
// control daemon mutates.
func (m *Manager) StreamHandles() map[string]control.StreamHandle {
	handles := make(map[string]control.StreamHandle, len(m.workers))
	for name, w := range m.workers {
		handles[name] = w
	}
	return handles
}

// Run starts every worker concurrently, plus one recorder goroutine
// per RTT-enabled stream, and blocks until all of them finish. Each
// worker's own duration window governs when it stops; the recorder
// goroutines are stopped once every worker has returned.
func (m *Manager) Run(streams []config.StreamConfig) {
	var workers conc.WaitGroup
	var recorders conc.WaitGroup
	stop := make(chan struct{})
	base := time.Now()

	for _, sc := range streams {
		w, ok := m.workers[sc.Name]
		if !ok {
			continue
		}
		startAt := base.Add(time.Duration(sc.Duration[0] * float64(time.Second)))
		stopAt := base.Add(time.Duration(sc.Duration[1] * float64(time.Second)))
		if w.rtt != nil {
			rec := w.rtt
			recorders.Go(func() { rec.Run(stop) })
		}
		workers.Go(func() { w.Run(startAt, stopAt) })
	}

	workers.Wait()
	close(stop)
	recorders.Wait()
}

// Close releases every stream's socket table and RTT recorder.
func (m *Manager) Close() {
	for _, table := range m.tables {
		table.Close()
	}
	for _, w := range m.workers {
		if w.rtt != nil {
			w.rtt.Close()
		}
	}
}
