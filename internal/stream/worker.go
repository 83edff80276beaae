// Package stream implements the source worker: the per-stream
// producer/consumer loop that pulls datagrams from a Source,
// fragments them, stages them in the throttle, and drains the stage
// through the scheduler into non-blocking link sockets (spec.md §4.6).
package stream

import (
	"strconv"
	"time"

	"go.uber.org/atomic"

	"github.com/QianrenLi/stream-replay/internal/config"
	"github.com/QianrenLi/stream-replay/internal/control"
	"github.com/QianrenLi/stream-replay/internal/dispatcher"
	"github.com/QianrenLi/stream-replay/internal/log"
	"github.com/QianrenLi/stream-replay/internal/macmon"
	"github.com/QianrenLi/stream-replay/internal/metrics"
	"github.com/QianrenLi/stream-replay/internal/packet"
	"github.com/QianrenLi/stream-replay/internal/policy"
	"github.com/QianrenLi/stream-replay/internal/rtt"
	"github.com/QianrenLi/stream-replay/internal/throttle"
	"github.com/QianrenLi/stream-replay/internal/txpart"
	"github.com/QianrenLi/stream-replay/internal/version"
)

// Worker drives one stream's source through the throttle, the part
// controller, and the link socket table.
type Worker struct {
	name   string
	port   uint16
	source Source

	throttle *throttle.Throttle
	parts    *txpart.Controller
	sockets  dispatcher.Table
	rtt      *rtt.Recorder
	monitor  *macmon.Monitor
	version  *version.Manager

	startTimestamp time.Time
	stopTimestamp  time.Time
	frameCount     atomic.Int64

	seq    uint32
	logger log.Logger
}

// SetVersionManager attaches a version manager for video-ladder
// streams; Statistics()'s bitrate field reads its ActualBitrate().
func (w *Worker) SetVersionManager(m *version.Manager) { w.version = m }

// NewWorker assembles a worker for one stream entry from its manifest
// configuration, the shared MAC monitor, and a pre-built socket table.
func NewWorker(name string, sc config.StreamConfig, windowSize int, src Source, sockets dispatcher.Table, monitor *macmon.Monitor, recorder *rtt.Recorder, devices []string) *Worker {
	kind := policy.ParseKind(sc.Policy)
	return &Worker{
		name:      name,
		port:      sc.Port,
		source:    src,
		throttle:  throttle.New(windowSize, sc.Throttle),
		parts:     txpart.New(kind, sc.PolicyParameters, devices),
		sockets:   sockets,
		rtt:       recorder,
		monitor:   monitor,
		logger:    log.GetLogger().WithField("stream", name),
	}
}

// Run drains the source from startAt to stopAt (or until the source is
// exhausted), whichever comes first.
func (w *Worker) Run(startAt, stopAt time.Time) {
	w.startTimestamp = startAt
	w.stopTimestamp = stopAt
	spinSleep(time.Until(startAt))

	metrics.StreamStatus.WithLabelValues(w.name).Set(metrics.StreamStatusRunning)
	defer metrics.StreamStatus.WithLabelValues(w.name).Set(metrics.StreamStatusStopped)

	for time.Now().Before(stopAt) {
		dg, waitNS, ok := w.source.Next()
		if !ok {
			break
		}
		deadline := time.Now().Add(time.Duration(waitNS))
		w.emit(dg, deadline)
		w.frameCount.Inc()
		spinSleep(time.Until(deadline))
	}
	w.throttle.Reset()
}

// SetThrottle implements control.StreamHandle.
func (w *Worker) SetThrottle(mbps float64) { w.throttle.SetThreshold(mbps) }

// SetPolicyParameters implements control.StreamHandle.
func (w *Worker) SetPolicyParameters(params config.PolicyParameter) { w.parts.SetParameters(params) }

// SetVersion implements control.StreamHandle.
func (w *Worker) SetVersion(v uint32) {
	if w.version != nil {
		w.version.SetVersion(int(v))
	}
}

// Statistics implements control.StreamHandle: it reports nothing
// outside the stream's active window.
func (w *Worker) Statistics() (control.FlowStatistics, bool) {
	now := time.Now()
	if now.Before(w.startTimestamp) || now.After(w.stopTimestamp) {
		return control.FlowStatistics{}, false
	}

	var rttAvg, outageRate float64
	if w.rtt != nil {
		snap := w.rtt.Statistic()
		rttAvg, outageRate = snap.RTTAvg, snap.OutageRate
		metrics.RTTSeconds.WithLabelValues(w.name).Observe(rttAvg)
		metrics.OutageRate.WithLabelValues(w.name).Set(outageRate)
	}
	var bitrate uint64
	if w.version != nil {
		bitrate = w.version.ActualBitrate()
	}

	return control.FlowStatistics{
		RTT:        rttAvg,
		OutageRate: outageRate,
		Throughput: w.throttle.LastRate(),
		Throttle:   w.throttle.Threshold(),
		Bitrate:    bitrate,
		AppBuff:    w.throttle.StageLen(),
		FrameCount: int(w.frameCount.Load()),
	}, true
}

// emit fragments one datagram, stages it, and drains the stage until
// either the throttle has nothing left to offer, every fragment has
// been consumed, or deadline (the next datagram's scheduled departure)
// elapses.
func (w *Worker) emit(dg Datagram, deadline time.Time) {
	num, lastLen := packet.NumFragments(dg.Size)
	if num == 0 {
		return
	}
	w.seq++
	seq := w.seq
	sentAt := time.Now()

	fragments := make([]*packet.Fragment, num)
	for offset := 0; offset < num; offset++ {
		f := packet.NewFragment()
		f.Seq = seq
		f.SetOffset(uint16(offset))
		length := packet.MaxPayloadLen
		if offset == num-1 {
			length = lastLen
		}
		f.SetLength(uint16(length))
		if dg.Payload != nil {
			copy(f.Payload[:length], dg.Payload[offset*packet.MaxPayloadLen:offset*packet.MaxPayloadLen+length])
		}
		fragments[offset] = f
	}

	dropped := w.throttle.Prepare(fragments)
	if dropped > 0 {
		metrics.FragmentsDroppedTotal.WithLabelValues(w.name).Add(float64(dropped))
	}
	metrics.ThrottleRateMbps.WithLabelValues(w.name).Set(w.throttle.LastRate())
	if w.rtt != nil {
		w.rtt.RecordSent(seq, sentAt)
	}
	w.drain(num, deadline)
}

// drain repeatedly asks the throttle for the next fragment and, for
// each one, consults the part controller and issues a non-blocking
// send on the chosen link. It stops once the staging buffer runs dry
// or deadline elapses (spec.md §4.6): a link or policy that stays
// blocked must not spin here past the next datagram's departure time.
func (w *Worker) drain(num int, deadline time.Time) {
	for time.Now().Before(deadline) {
		result := w.throttle.TryConsume(func(f *packet.Fragment) bool {
			return w.sendOne(f, num)
		})
		switch result {
		case throttle.Empty:
			return
		case throttle.NotYet, throttle.RetryLater, throttle.Consumed:
			continue
		}
	}
}

func (w *Worker) sendOne(f *packet.Fragment, num int) bool {
	var snap *macmon.Snapshot
	if w.monitor != nil {
		snap = w.monitor.Load()
	}
	pt, ok := w.parts.Decide(int(f.Offset), num, snap)
	if !ok {
		return false
	}
	f.SetIndicator(uint8(pt))
	link := pt.LinkID()
	if link >= len(w.sockets) {
		return false
	}

	buf := make([]byte, packet.HeaderLen+int(f.Length))
	n, err := f.Encode(buf)
	if err != nil {
		w.logger.Warnf("encode fragment: %v", err)
		return false
	}

	ls := w.sockets[link]
	addr := *ls.RxAddr
	addr.Port = int(w.port)
	wouldBlock, err := ls.SendTo(buf[:n], &addr)
	if wouldBlock || err != nil {
		if err != nil {
			w.logger.Warnf("send fragment on link %d: %v", link, err)
		}
		w.parts.MarkBlocked(link)
		metrics.LinkBlocked.WithLabelValues(w.name, strconv.Itoa(link)).Set(1)
		return false
	}
	w.parts.MarkSent(link)
	metrics.LinkBlocked.WithLabelValues(w.name, strconv.Itoa(link)).Set(0)
	metrics.FragmentsSentTotal.WithLabelValues(w.name, strconv.Itoa(link)).Inc()
	return true
}
