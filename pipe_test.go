package chunkedpipe

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeString(p *Pipe, s string) {
	buf := p.GetBuffer(len(s))
	n := copy(buf, s)
	p.BufferWritten(n)
}

func readAll(t *testing.T, res ReadResult) []byte {
	t.Helper()
	require.Equal(t, StatusData, res.Status, "status")
	require.NoError(t, res.Err)
	return res.Data
}

// Scenario 1: simple round trip.
func TestScenarioSimpleRoundTrip(t *testing.T) {
	p := NewPipe(NewPool())
	writeString(p, "testing")

	res := p.ReadExact(4)
	assert.Equal(t, "test", string(readAll(t, res)))

	res = p.ReadExact(3)
	assert.Equal(t, "ing", string(readAll(t, res)))

	assert.Equal(t, 0, p.Len())
}

// Scenario 2: exact read on insufficient data, not yet EOF.
func TestScenarioExactOnInsufficient(t *testing.T) {
	p := NewPipe(NewPool())
	writeString(p, "te")

	res := p.ReadExact(4)
	assert.Equal(t, StatusNeedMore, res.Status)

	writeString(p, "st")
	res = p.ReadExact(4)
	assert.Equal(t, "test", string(readAll(t, res)))
}

// Scenario 3: CRLF spanning a chunk boundary is found.
func TestScenarioCRLFAcrossChunkBoundary(t *testing.T) {
	p := NewPipe(NewPool(), WithMinimumChunkSize(2048))

	buf := p.GetBuffer(2048)
	require.GreaterOrEqual(t, len(buf), 2048)
	for i := 0; i < 2047; i++ {
		buf[i] = 'a'
	}
	buf[2047] = '\r'
	p.BufferWritten(2048)

	buf = p.GetBuffer(2048)
	buf[0] = '\n'
	for i := 1; i < 2048; i++ {
		buf[i] = 'a'
	}
	p.BufferWritten(2048)

	assert.Equal(t, 2047, p.Find([]byte("\r\n"), 0, -1))
}

// Scenario 4: EOF partial read drains the leftover and is then empty.
func TestScenarioEOFPartial(t *testing.T) {
	p := NewPipe(NewPool())
	writeString(p, "testing")
	p.EOF(nil)

	res := p.ReadExact(4)
	assert.Equal(t, "test", string(readAll(t, res)))

	res = p.ReadExact(1)
	assert.Equal(t, "i", string(readAll(t, res)))

	res = p.ReadExact(4)
	require.Equal(t, StatusEOF, res.Status)
	var partial *PartialReadError
	require.ErrorAs(t, res.Err, &partial)
	assert.Equal(t, "ng", string(partial.Leftover))

	res = p.ReadExact(4)
	assert.Equal(t, StatusEOF, res.Status)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Data)
}

// Scenario 5: error EOF is re-raised after the partial read drains.
func TestScenarioErrorEOF(t *testing.T) {
	sentinel := errors.New("boom")
	p := NewPipe(NewPool())
	writeString(p, "testing")
	p.EOF(sentinel)

	res := p.ReadExact(4)
	assert.Equal(t, "test", string(readAll(t, res)))
	res = p.ReadExact(1)
	assert.Equal(t, "i", string(readAll(t, res)))

	res = p.ReadExact(4)
	var partial *PartialReadError
	require.ErrorAs(t, res.Err, &partial)
	assert.Equal(t, "ng", string(partial.Leftover))
	assert.ErrorIs(t, res.Err, sentinel)

	res = p.ReadExact(4)
	assert.Equal(t, StatusEOF, res.Status)
	assert.ErrorIs(t, res.Err, sentinel)
}

// Scenario 6: readuntil with and without separator skipping.
func TestScenarioReadUntilWithSkip(t *testing.T) {
	p := NewPipe(NewPool())
	writeString(p, "test\r\ning\r\n")

	res := p.ReadUntil([]byte("\r\n"), true)
	assert.Equal(t, "test", string(readAll(t, res)))

	res = p.ReadUntil([]byte("\r\n"), false)
	assert.Equal(t, "ing\r\n", string(readAll(t, res)))

	res = p.ReadUntil([]byte("\r\n"), false)
	assert.Equal(t, StatusNeedMore, res.Status)
}

// Scenario 7: adaptive sizing grows under full fills, shrinks under tiny fills.
func TestScenarioAdaptiveSizing(t *testing.T) {
	p := NewPipe(NewPool(), WithMinimumChunkSize(2048), WithSizingCeiling(1<<30))
	require.Equal(t, 2048, p.sz.currentSize)

	for i := 0; i < 6; i++ {
		buf := p.GetBuffer(-1)
		p.BufferWritten(len(buf)) // full fill every time
	}
	assert.Greater(t, p.sz.currentSize, 2048)

	grown := p.sz.currentSize
	for i := 0; i < 12; i++ {
		p.GetBuffer(-1)
		p.BufferWritten(1) // far under half capacity
	}
	assert.Less(t, p.sz.currentSize, grown)
}

func TestReadZero(t *testing.T) {
	p := NewPipe(NewPool())
	writeString(p, "abc")
	res := p.Read(0)
	assert.Equal(t, StatusData, res.Status)
	assert.Empty(t, res.Data)
	assert.Equal(t, 3, p.Len())
}

func TestReadOnEmptyOpenPipeNeedsMore(t *testing.T) {
	p := NewPipe(NewPool())
	res := p.Read(1)
	assert.Equal(t, StatusNeedMore, res.Status)
}

func TestReadOnEmptyClosedNormalPipeIsEmpty(t *testing.T) {
	p := NewPipe(NewPool())
	p.EOF(nil)
	res := p.Read(1)
	assert.Equal(t, StatusEOF, res.Status)
	assert.NoError(t, res.Err)
	assert.Empty(t, res.Data)
}

func TestReadOnEmptyErrorEOFPipeRaisesError(t *testing.T) {
	sentinel := errors.New("boom")
	p := NewPipe(NewPool())
	p.EOF(sentinel)
	res := p.Read(1)
	assert.Equal(t, StatusEOF, res.Status)
	assert.ErrorIs(t, res.Err, sentinel)
}

func TestPeekDoesNotConsume(t *testing.T) {
	p := NewPipe(NewPool())
	writeString(p, "hello")

	peeked := p.Peek(3)
	assert.Equal(t, "hel", string(readAll(t, peeked)))
	assert.Equal(t, 5, p.Len())

	read := p.Read(3)
	assert.Equal(t, string(readAll(t, peeked)), string(readAll(t, read)))
}

func TestZeroCopyReadMatchesMaterialized(t *testing.T) {
	p := NewPipe(NewPool(), WithMinimumChunkSize(4))
	writeString(p, "abcd")
	writeString(p, "efgh") // second write lands in a new chunk

	zc := p.PeekZeroCopy(-1)
	require.Equal(t, StatusData, zc.Status)
	var joined []byte
	for _, v := range zc.Views {
		joined = append(joined, v...)
	}

	mat := p.Peek(-1)
	assert.Equal(t, string(readAll(t, mat)), string(joined))
}

func TestSkipReturnsCountOnly(t *testing.T) {
	p := NewPipe(NewPool())
	writeString(p, "hello world")

	n := p.Skip(6)
	assert.Equal(t, 6, n)
	res := p.Read(-1)
	assert.Equal(t, "world", string(readAll(t, res)))
}

func TestSkipOnEmptyAlwaysZero(t *testing.T) {
	p := NewPipe(NewPool())
	assert.Equal(t, 0, p.Skip(5))
	p.EOF(errors.New("boom"))
	assert.Equal(t, 0, p.Skip(5))
}

func TestSkipExactPartialAtEOF(t *testing.T) {
	p := NewPipe(NewPool())
	writeString(p, "ab")
	p.EOF(nil)

	n, err := p.SkipExact(5)
	assert.Equal(t, 2, n)
	var partial *PartialReadError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 0, p.Len())
}

func TestSkipExactNeedsMore(t *testing.T) {
	p := NewPipe(NewPool())
	writeString(p, "a")
	n, err := p.SkipExact(5)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrNeedMore)
}

func TestFindByteAcrossChunks(t *testing.T) {
	p := NewPipe(NewPool(), WithMinimumChunkSize(4))
	writeString(p, "aaaa")
	writeString(p, "Xbbbb") // fills the first chunk, so the target byte starts a new one

	idx := p.FindByte('X', 0, -1)
	assert.Equal(t, 4, idx)
	assert.Equal(t, -1, p.FindByte('z', 0, -1))
}

func TestFindByteRespectsStartAndEnd(t *testing.T) {
	p := NewPipe(NewPool())
	writeString(p, "aXaXa")

	assert.Equal(t, 1, p.FindByte('X', 0, -1))
	assert.Equal(t, 3, p.FindByte('X', 2, -1))
	assert.Equal(t, -1, p.FindByte('X', 0, 1))
	assert.Equal(t, 1, p.FindByte('X', 0, 2))
}

func TestFindMultiByteNeedle(t *testing.T) {
	p := NewPipe(NewPool(), WithMinimumChunkSize(4))
	writeString(p, "needle split across boundary here")

	idx := p.Find([]byte("boundary"), 0, -1)
	assert.Equal(t, 20, idx)
	assert.Equal(t, -1, p.Find([]byte("missing"), 0, -1))
}

func TestFindEmptyNeedle(t *testing.T) {
	p := NewPipe(NewPool())
	writeString(p, "abc")
	assert.Equal(t, 0, p.Find(nil, 0, -1))
	assert.Equal(t, 3, p.Find(nil, 3, -1))
	assert.Equal(t, -1, p.Find(nil, 4, -1))
}

func TestFindMatchMustLieEntirelyWithinEnd(t *testing.T) {
	p := NewPipe(NewPool())
	writeString(p, "xxABCxx")

	assert.Equal(t, 2, p.Find([]byte("ABC"), 0, -1))
	assert.Equal(t, -1, p.Find([]byte("ABC"), 0, 4), "match extends past end, must be rejected")
	assert.Equal(t, 2, p.Find([]byte("ABC"), 0, 5))
}

func TestWritesAreReadInFIFOOrder(t *testing.T) {
	p := NewPipe(NewPool(), WithMinimumChunkSize(4))
	writeString(p, "one-")
	writeString(p, "two-")
	writeString(p, "three")

	res := p.Read(-1)
	assert.Equal(t, "one-two-three", string(readAll(t, res)))
}

func TestEOFErrorCannotBeDowngraded(t *testing.T) {
	sentinel := errors.New("boom")
	p := NewPipe(NewPool())
	p.EOF(sentinel)
	p.EOF(nil)
	assert.Equal(t, ClosedError, p.Closed())
	assert.ErrorIs(t, p.Err(), sentinel)
}

func TestEOFNormalCanBeUpgradedToError(t *testing.T) {
	sentinel := errors.New("boom")
	p := NewPipe(NewPool())
	p.EOF(nil)
	p.EOF(sentinel)
	assert.Equal(t, ClosedError, p.Closed())
	assert.ErrorIs(t, p.Err(), sentinel)
}

func TestFirstErrorWins(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")
	p := NewPipe(NewPool())
	p.EOF(first)
	p.EOF(second)
	assert.ErrorIs(t, p.Err(), first)
}

func TestCloseReturnsChunksAndIsIdempotent(t *testing.T) {
	pool := NewPool()
	p := NewPipe(pool)
	writeString(p, "hello")

	p.Close()
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, ClosedNormal, p.Closed())

	stats := pool.Stats()
	assert.Equal(t, int64(1), stats.Recycled+stats.Discarded+stats.Allocated-0) // the write allocated exactly one chunk
	assert.Equal(t, 1, stats.Idle[2048], "Close must return the chunk to the pool")
	assert.NotPanics(t, func() { p.Close() })
}

func TestPeekExactPartialAtEOFReportsButDoesNotDrain(t *testing.T) {
	p := NewPipe(NewPool())
	writeString(p, "ab")
	p.EOF(nil)

	res := p.PeekExact(5)
	require.Equal(t, StatusEOF, res.Status)
	var partial *PartialReadError
	require.ErrorAs(t, res.Err, &partial)
	assert.Equal(t, "ab", string(partial.Leftover))
	assert.Equal(t, 2, p.Len(), "peek must not drain the pipe")
}

func TestGetBufferReusesTailWhenRoom(t *testing.T) {
	p := NewPipe(NewPool(), WithMinimumChunkSize(64))
	b1 := p.GetBuffer(-1)
	p.BufferWritten(4)
	b2 := p.GetBuffer(-1)
	assert.Equal(t, len(b1)-4, len(b2), "second call must reuse the same tail chunk's remaining space")
}

func TestWriteToDrainsPipe(t *testing.T) {
	p := NewPipe(NewPool(), WithMinimumChunkSize(4))
	writeString(p, "hello world, ")
	writeString(p, "this spans several chunks")

	var sink writerOnly
	n, err := p.WriteTo(&sink)
	require.NoError(t, err)
	assert.Equal(t, int64(len("hello world, this spans several chunks")), n)
	assert.Equal(t, "hello world, this spans several chunks", sink.String())
	assert.Equal(t, 0, p.Len())
}

// writerOnly deliberately does not implement syscall.Conn, forcing
// WriteTo's fallback per-chunk path (the writev fast path requires a
// real file descriptor, which isn't available in a unit test).
type writerOnly struct {
	data []byte
}

func (w *writerOnly) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func (w *writerOnly) String() string {
	return string(w.data)
}

var _ io.Writer = (*writerOnly)(nil)
