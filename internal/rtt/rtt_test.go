package rtt

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func pongDatagram(seq uint32, delta float64) []byte {
	buf := make([]byte, 27)
	binary.LittleEndian.PutUint32(buf[0:4], seq)
	binary.LittleEndian.PutUint64(buf[19:27], math.Float64bits(delta))
	return buf
}

func newTestRecorder(t *testing.T, ringLen int, targetRTT float64) *Recorder {
	t.Helper()
	r, err := New("127.0.0.1", 0, ringLen, targetRTT)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestOnPongComputesRTTWithinTarget(t *testing.T) {
	r := newTestRecorder(t, 16, 0.050)
	sentAt := time.Now()
	r.RecordSent(7, sentAt)
	r.onPong(pongDatagram(7, 0.002), sentAt.Add(20*time.Millisecond))

	snap := r.Statistic()
	require.InDelta(t, 0.020, snap.RTTAvg, 0.002)
	require.Equal(t, 0.0, snap.OutageRate)
}

func TestOnPongBeyondTargetContributesOutage(t *testing.T) {
	r := newTestRecorder(t, 16, 0.050)
	sentAt := time.Now()
	r.RecordSent(7, sentAt)
	r.onPong(pongDatagram(7, 0.002), sentAt.Add(80*time.Millisecond))

	snap := r.Statistic()
	require.InDelta(t, 0.6, snap.OutageRate, 0.05)
}

func TestStatisticClearsCompletedSlots(t *testing.T) {
	r := newTestRecorder(t, 16, 0.050)
	sentAt := time.Now()
	r.RecordSent(1, sentAt)
	r.onPong(pongDatagram(1, 0), sentAt.Add(10*time.Millisecond))

	first := r.Statistic()
	require.Greater(t, first.RTTAvg, 0.0)

	second := r.Statistic()
	require.Equal(t, 0.0, second.RTTAvg)
}

func TestMissingPongAccumulatesOutageAndAdvances(t *testing.T) {
	r := newTestRecorder(t, 16, 0.010)
	r.RecordSent(3, time.Now().Add(-100*time.Millisecond))

	snap := r.Statistic()
	require.Greater(t, snap.OutageRate, 0.0)

	// lastOutageTime has advanced to "now" during the prior call, so a
	// second immediate snapshot should show little additional outage.
	second := r.Statistic()
	require.Less(t, second.OutageRate, snap.OutageRate)
}

func TestPongForUnknownSeqCreatesFreshEntry(t *testing.T) {
	r := newTestRecorder(t, 16, 0.050)
	r.onPong(pongDatagram(42, 0.001), time.Now())

	snap := r.Statistic()
	require.InDelta(t, 0.0, snap.RTTAvg, 0.01)
}

func TestRingIndexWrapsBySeqModLength(t *testing.T) {
	r := newTestRecorder(t, 4, 0.050)
	sentAt := time.Now()
	r.RecordSent(2, sentAt)
	r.RecordSent(6, sentAt.Add(time.Millisecond)) // same slot (6 % 4 == 2), replaces seq 2

	r.mu.Lock()
	slotSeq := r.ring[2].seq
	r.mu.Unlock()
	require.Equal(t, uint32(6), slotSeq)
}
