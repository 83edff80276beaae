package reassembly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/QianrenLi/stream-replay/internal/packet"
)

func encodeFragment(t *testing.T, offset uint16, length uint16, indicator uint8) []byte {
	t.Helper()
	f := packet.NewFragment()
	f.SetOffset(offset)
	f.SetLength(length)
	f.SetIndicator(indicator)
	buf := make([]byte, packet.HeaderLen+int(length))
	n, err := f.Encode(buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestRecordBecomesCompleteWhenAllOffsetsPresent(t *testing.T) {
	r := New()
	base := time.Now()

	require.NoError(t, r.Record(encodeFragment(t, 0, 10, uint8(packet.FirstLink)), base))
	require.False(t, r.IsComplete)

	require.NoError(t, r.Record(encodeFragment(t, 1, 10, uint8(packet.LastPacketInFirstLink)), base.Add(time.Millisecond)))
	require.True(t, r.IsComplete)
}

func TestRecordStaysIncompleteWithGap(t *testing.T) {
	r := New()
	base := time.Now()
	require.NoError(t, r.Record(encodeFragment(t, 0, 10, uint8(packet.FirstLink)), base))
	require.NoError(t, r.Record(encodeFragment(t, 2, 10, uint8(packet.LastPacketInFirstLink)), base))
	require.False(t, r.IsComplete) // offset 1 missing
}

func TestDeltaSubstitutesZeroOnlyForAbsentSide(t *testing.T) {
	r := New()
	at := time.Now()
	require.NoError(t, r.Record(encodeFragment(t, 0, 10, uint8(packet.FirstLink)), at))

	// Only the first link has reported; the second side substitutes 0
	// (the Unix epoch) rather than the whole delta collapsing to 0, so
	// the result is a large negative duration reflecting "no
	// second-link arrival yet" instead of "arrived simultaneously".
	require.Equal(t, time.Duration(-at.UnixNano()), r.Delta())
}

func TestDeltaZeroWhenNoFragmentsRecorded(t *testing.T) {
	r := New()
	require.Equal(t, time.Duration(0), r.Delta())
}

func TestDeltaComputesSecondMinusFirst(t *testing.T) {
	r := New()
	base := time.Now()
	require.NoError(t, r.Record(encodeFragment(t, 0, 10, uint8(packet.FirstLink)), base))
	require.NoError(t, r.Record(encodeFragment(t, 1, 10, uint8(packet.LastPacketInSecondLink)), base.Add(5*time.Millisecond)))
	require.Equal(t, 5*time.Millisecond, r.Delta())
}

func TestGatherConcatenatesPayloadsInOrder(t *testing.T) {
	r := New()
	base := time.Now()
	require.NoError(t, r.Record(encodeFragment(t, 0, 3, uint8(packet.FirstLink)), base))
	require.NoError(t, r.Record(encodeFragment(t, 1, 2, uint8(packet.LastPacketInFirstLink)), base))

	gathered := r.Gather(2)
	require.Len(t, gathered, 5)
	require.Equal(t, []byte{0, 1, 2, 0, 1}, gathered)
}

func TestGatherSkipsMissingFragments(t *testing.T) {
	r := New()
	require.NoError(t, r.Record(encodeFragment(t, 1, 2, uint8(packet.LastPacketInFirstLink)), time.Now()))
	gathered := r.Gather(2)
	require.Equal(t, []byte{0, 1}, gathered)
}
