// Package control implements the UDP control daemon: a JSON
// request/response loop over a connectionless socket that lets an
// external operator mutate throttle thresholds, policy parameters, and
// video version per stream, and read aggregated statistics (spec.md
// §4.9).
package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/QianrenLi/stream-replay/internal/config"
	"github.com/QianrenLi/stream-replay/internal/log"
	"github.com/QianrenLi/stream-replay/internal/macmon"
)

// pollInterval is how often the loop checks the socket when nothing is
// pending, mirroring the reference daemon's short sleep between
// non-blocking recv attempts.
const pollInterval = 10 * time.Millisecond

// FlowStatistics is the per-stream statistics payload returned by a
// Statistics command.
type FlowStatistics struct {
	RTT        float64 `json:"rtt"`
	OutageRate float64 `json:"outage_rate"`
	Throughput float64 `json:"throughput"`
	Throttle   float64 `json:"throttle"`
	Bitrate    uint64  `json:"bitrate"`
	AppBuff    int     `json:"app_buff"`
	FrameCount int     `json:"frame_count"`
}

// Statistics is the full Statistics response body.
type Statistics struct {
	FlowStat  map[string]FlowStatistics `json:"flow_stat"`
	DeviceStat *macmon.Snapshot         `json:"device_stat"`
}

// ControlInfo is the payload of a combined Control command: a version
// switch plus a policy-parameter update.
type ControlInfo struct {
	Version          uint32                 `json:"version"`
	PolicyParameters config.PolicyParameter `json:"policy_parameters"`
}

// StreamHandle is the set of mutations and reads the daemon performs
// against one managed stream. internal/stream's per-stream worker
// implements this.
type StreamHandle interface {
	SetThrottle(mbps float64)
	SetPolicyParameters(params config.PolicyParameter)
	SetVersion(v uint32)
	Statistics() (FlowStatistics, bool)
}

// command is the tagged-union request body: exactly one of its fields
// is set, keyed by the JSON object's single field name (mirroring the
// Rust enum's externally-tagged serde representation).
type command struct {
	Throttle         map[string]float64                `json:"Throttle,omitempty"`
	PolicyParameters map[string]config.PolicyParameter `json:"PolicyParameters,omitempty"`
	Version          map[string]uint32                 `json:"Version,omitempty"`
	Control          map[string]ControlInfo             `json:"Control,omitempty"`
	Statistics       json.RawMessage                    `json:"Statistics,omitempty"`
}

type request struct {
	Cmd command `json:"cmd"`
}

type statisticsResponse struct {
	Cmd struct {
		Statistics Statistics `json:"Statistics"`
	} `json:"cmd"`
}

// Daemon owns the control socket and the set of streams it can mutate.
type Daemon struct {
	conn    *net.UDPConn
	streams map[string]StreamHandle
	monitor *macmon.Monitor
	logger  log.Logger
}

// New binds the control socket on txIPAddr:ipcPort.
func New(txIPAddr string, ipcPort int, streams map[string]StreamHandle, monitor *macmon.Monitor) (*Daemon, error) {
	laddr := &net.UDPAddr{IP: net.ParseIP(txIPAddr), Port: ipcPort}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("control: bind %s:%d: %w", txIPAddr, ipcPort, err)
	}
	return &Daemon{conn: conn, streams: streams, monitor: monitor, logger: log.GetLogger()}, nil
}

// Close releases the control socket.
func (d *Daemon) Close() error { return d.conn.Close() }

// RunFor loops handling requests until duration has elapsed.
func (d *Daemon) RunFor(duration time.Duration) {
	deadline := time.Now().Add(duration)
	buf := make([]byte, 2048)
	for time.Now().Before(deadline) {
		d.conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, addr, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			continue
		}
		d.handle(buf[:n], addr)
	}
}

func (d *Daemon) handle(data []byte, from *net.UDPAddr) {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		d.logger.Warnf("control: malformed request from %s: %v", from, err)
		return
	}

	switch {
	case req.Cmd.Throttle != nil:
		for name, mbps := range req.Cmd.Throttle {
			if s, ok := d.streams[name]; ok {
				s.SetThrottle(mbps)
			}
		}
	case req.Cmd.PolicyParameters != nil:
		for name, params := range req.Cmd.PolicyParameters {
			if s, ok := d.streams[name]; ok {
				s.SetPolicyParameters(params)
			}
		}
	case req.Cmd.Version != nil:
		for name, v := range req.Cmd.Version {
			if s, ok := d.streams[name]; ok {
				s.SetVersion(v)
			}
		}
	case req.Cmd.Control != nil:
		for name, info := range req.Cmd.Control {
			if s, ok := d.streams[name]; ok {
				s.SetVersion(info.Version)
				s.SetPolicyParameters(info.PolicyParameters)
			}
		}
	case req.Cmd.Statistics != nil:
		d.replyStatistics(from)
	}
}

func (d *Daemon) replyStatistics(to *net.UDPAddr) {
	flowStat := make(map[string]FlowStatistics, len(d.streams))
	for name, s := range d.streams {
		if stat, ok := s.Statistics(); ok {
			flowStat[name] = stat
		}
	}

	var deviceStat *macmon.Snapshot
	if d.monitor != nil {
		deviceStat = d.monitor.Load()
	}

	resp := statisticsResponse{}
	resp.Cmd.Statistics = Statistics{FlowStat: flowStat, DeviceStat: deviceStat}

	data, err := json.Marshal(resp)
	if err != nil {
		d.logger.Errorf("control: marshal statistics response: %v", err)
		return
	}
	if _, err := d.conn.WriteToUDP(data, to); err != nil {
		d.logger.Warnf("control: send statistics response: %v", err)
	}
}
