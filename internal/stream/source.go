package stream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

// StreamProto is the URI prefix identifying a channel-fed source.
const StreamProto = "stream://"

// Datagram is one application datagram to fragment and send: its byte
// payload (nil for trace sources that only report a size) and size.
type Datagram struct {
	Payload []byte
	Size    int
}

// Source yields the next datagram to send along with how long to wait
// before sending it, or ok=false when exhausted.
type Source interface {
	Next() (dg Datagram, wait uint64, ok bool)
}

// ChannelSource blocks on a bounded byte-buffer channel; each received
// buffer is one datagram with no pacing beyond the throttle.
type ChannelSource struct {
	ch <-chan []byte
}

// NewChannelSource wraps a receive channel as a Source.
func NewChannelSource(ch <-chan []byte) *ChannelSource { return &ChannelSource{ch: ch} }

func (s *ChannelSource) Next() (Datagram, uint64, bool) {
	buf, ok := <-s.ch
	if !ok {
		return Datagram{}, 0, false
	}
	return Datagram{Payload: buf, Size: len(buf)}, 0, true
}

// TraceSource replays a 2-D (interval_ns, size_bytes) array, generating
// a dummy payload of the recorded size, looping over the whole trace up
// to `loops` times (0 means no limit) and starting at `startOffset`.
type TraceSource struct {
	records     []TraceRecord
	idx         int
	loops       int
	iterDone    int
}

// NewTraceSource loads a .npy trace file.
func NewTraceSource(path string, startOffset, loops int) (*TraceSource, error) {
	records, err := readNpyUint64Pairs(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("stream: trace %s has no records", path)
	}
	idx := startOffset % len(records)
	return &TraceSource{records: records, idx: idx, loops: loops}, nil
}

func (s *TraceSource) Next() (Datagram, uint64, bool) {
	if s.loops > 0 && s.iterDone >= s.loops*len(s.records) {
		return Datagram{}, 0, false
	}
	rec := s.records[s.idx]
	s.idx = (s.idx + 1) % len(s.records)
	s.iterDone++
	return Datagram{Size: int(rec.SizeBytes)}, rec.IntervalNS, true
}

// VideoSource reads per-slot pre-encoded segment files produced by a
// version manager. Each slot file is a binary stream of records
// (interval_ns u64 BE, length u64 BE, length bytes).
type VideoSource struct {
	nextSlotPath func() string
	cur          *bufio.Reader
	curFile      *os.File
}

// NewVideoSource wraps a callback that returns the next slot's file
// path (typically version.Manager.Next).
func NewVideoSource(nextSlotPath func() string) *VideoSource {
	return &VideoSource{nextSlotPath: nextSlotPath}
}

func (s *VideoSource) Next() (Datagram, uint64, bool) {
	for {
		if s.cur == nil {
			if !s.openNextSlot() {
				return Datagram{}, 0, false
			}
		}
		dg, wait, ok, err := s.readRecord()
		if err != nil {
			s.closeSlot()
			continue
		}
		if !ok {
			s.closeSlot()
			continue
		}
		return dg, wait, true
	}
}

func (s *VideoSource) openNextSlot() bool {
	path := s.nextSlotPath()
	if path == "" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	s.curFile = f
	s.cur = bufio.NewReader(f)
	return true
}

func (s *VideoSource) closeSlot() {
	if s.curFile != nil {
		s.curFile.Close()
	}
	s.cur = nil
	s.curFile = nil
}

func (s *VideoSource) readRecord() (Datagram, uint64, bool, error) {
	header := make([]byte, 16)
	if _, err := io.ReadFull(s.cur, header); err != nil {
		if err == io.EOF {
			return Datagram{}, 0, false, nil
		}
		return Datagram{}, 0, false, err
	}
	intervalNS := binary.BigEndian.Uint64(header[0:8])
	length := binary.BigEndian.Uint64(header[8:16])
	data := make([]byte, length)
	if _, err := io.ReadFull(s.cur, data); err != nil {
		return Datagram{}, 0, false, err
	}
	return Datagram{Payload: data, Size: len(data)}, intervalNS, true, nil
}

// IsStreamURI reports whether a manifest `source` field names a
// channel-fed stream rather than a file path.
func IsStreamURI(source string) bool { return strings.HasPrefix(source, StreamProto) }
