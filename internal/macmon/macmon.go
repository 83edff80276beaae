// Package macmon implements the MAC-queue/link-info monitor: a
// periodic reader of per-interface driver state that publishes an
// immutable snapshot through a lock-free single-writer/many-reader slot
// (spec.md §4.3).
package macmon

import (
	"bufio"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/atomic"

	"github.com/QianrenLi/stream-replay/internal/log"
	"github.com/QianrenLi/stream-replay/internal/metrics"
)

// TickInterval is the monitor's refresh cadence.
const TickInterval = 300 * time.Millisecond

// LinkInfo describes one managed interface's negotiated radio state.
type LinkInfo struct {
	BSSID     string
	SSID      string
	FreqMHz   int
	SignalDBm int
	TxRate    float64 // Mbit/s
}

// Snapshot is an immutable MAC-queue snapshot, published as a whole and
// never mutated in place once handed to readers.
type Snapshot struct {
	TakenAt time.Time
	Queues  map[string]map[int]int // interface -> AC -> queue depth
	Link    map[string]LinkInfo    // interface -> negotiated radio state
}

// ProcFilePattern returns the driver-exported queue-info file path for
// a given device name.
func ProcFilePattern(device string) string {
	return "/proc/net/rtl88XXau/" + device + "/mac_qinfo"
}

// Monitor runs the periodic MAC-queue reader and publishes snapshots
// through an atomic.Value slot that many readers sample without
// locking and without copy.
type Monitor struct {
	devices []string
	slot    atomic.Value // holds *Snapshot
	logger  log.Logger
}

// New creates a monitor for the given managed device names, in
// interface order (the order scheduling messages reference them by).
func New(devices []string) *Monitor {
	m := &Monitor{devices: devices, logger: log.GetLogger()}
	m.slot.Store(&Snapshot{TakenAt: time.Time{}, Queues: map[string]map[int]int{}, Link: map[string]LinkInfo{}})
	return m
}

// Load returns the most recently published snapshot. Safe for
// concurrent use by many readers without locking.
func (m *Monitor) Load() *Snapshot {
	return m.slot.Load().(*Snapshot)
}

// Run ticks every TickInterval until stop is closed, refreshing and
// publishing a new snapshot each time.
func (m *Monitor) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *Monitor) tick() {
	queues := make(map[string]map[int]int, len(m.devices))
	link := make(map[string]LinkInfo, len(m.devices))

	for _, dev := range m.devices {
		if q, err := readQueueDepths(dev); err == nil {
			queues[dev] = q
			for ac, depth := range q {
				metrics.MACQueueDepth.WithLabelValues(dev, strconv.Itoa(ac)).Set(float64(depth))
			}
		}
		// Driver proc-file missing (interface down): silently skipped
		// for this tick; snapshot omits the entry.

		if li, err := readLinkInfo(dev); err == nil {
			link[dev] = li
		}
	}

	snap := &Snapshot{TakenAt: time.Now(), Queues: queues, Link: link}
	m.slot.Store(snap)
}

// readQueueDepths parses a driver mac_qinfo file: skip lines
// containing "BCN"; on lines containing "pkt_num:<digits>" and, after
// that marker, "ac:<digits>", accumulate pkt_num into the entry keyed
// by ac. AC values outside 0..255 coerce to 0.
func readQueueDepths(device string) (map[int]int, error) {
	f, err := os.Open(ProcFilePattern(device))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	depths := make(map[int]int)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "BCN") {
			continue
		}
		pktIdx := strings.Index(line, "pkt_num:")
		if pktIdx < 0 {
			continue
		}
		pktNum, ok := scanDigits(line, pktIdx+len("pkt_num:"))
		if !ok {
			continue
		}
		rest := line[pktIdx:]
		acIdx := strings.Index(rest, "ac:")
		if acIdx < 0 {
			continue
		}
		ac, ok := scanDigits(rest, acIdx+len("ac:"))
		if !ok {
			continue
		}
		if ac < 0 || ac > 255 {
			ac = 0
		}
		depths[ac] += pktNum
	}
	return depths, scanner.Err()
}

func scanDigits(s string, from int) (int, bool) {
	end := from
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == from {
		return 0, false
	}
	v, err := strconv.Atoi(s[from:end])
	if err != nil {
		return 0, false
	}
	return v, true
}

// readLinkInfo shells out to the system's wireless info tool to read
// bssid/ssid/freq/signal/tx-rate for a device.
func readLinkInfo(device string) (LinkInfo, error) {
	out, err := exec.Command("iw", "dev", device, "link").Output()
	if err != nil {
		return LinkInfo{}, err
	}
	return parseIwLinkOutput(string(out)), nil
}

func parseIwLinkOutput(out string) LinkInfo {
	var li LinkInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Connected to"):
			fields := strings.Fields(line)
			if len(fields) >= 3 {
				li.BSSID = fields[2]
			}
		case strings.HasPrefix(line, "SSID:"):
			li.SSID = strings.TrimSpace(strings.TrimPrefix(line, "SSID:"))
		case strings.HasPrefix(line, "freq:"):
			if v, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "freq:"))); err == nil {
				li.FreqMHz = v
			}
		case strings.HasPrefix(line, "signal:"):
			fields := strings.Fields(strings.TrimPrefix(line, "signal:"))
			if len(fields) > 0 {
				if v, err := strconv.Atoi(fields[0]); err == nil {
					li.SignalDBm = v
				}
			}
		case strings.HasPrefix(line, "tx bitrate:"):
			fields := strings.Fields(strings.TrimPrefix(line, "tx bitrate:"))
			if len(fields) > 0 {
				if v, err := strconv.ParseFloat(fields[0], 64); err == nil {
					li.TxRate = v
				}
			}
		}
	}
	return li
}

// DeviceForIP resolves the network device name owning an IP address by
// parsing `ip addr show` output and matching the address.
func DeviceForIP(ip string) (string, error) {
	out, err := exec.Command("ip", "addr", "show").Output()
	if err != nil {
		return "", err
	}
	return parseIPAddrShow(string(out), ip), nil
}

func parseIPAddrShow(out, ip string) string {
	currentDevice := ""
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(line) > 0 && line[0] != ' ' && line[0] != '\t' {
			fields := strings.SplitN(trimmed, ":", 3)
			if len(fields) >= 2 {
				currentDevice = strings.TrimSpace(fields[1])
			}
			continue
		}
		if strings.HasPrefix(trimmed, "inet ") || strings.HasPrefix(trimmed, "inet6 ") {
			fields := strings.Fields(trimmed)
			if len(fields) >= 2 {
				addr := strings.SplitN(fields[1], "/", 2)[0]
				if addr == ip {
					return currentDevice
				}
			}
		}
	}
	return ""
}
