package chunkedpipe

import "github.com/rs/zerolog"

// EOFState is the Pipe's terminal-state marker: Open is the only
// non-terminal state; once it transitions to ClosedNormal or
// ClosedError it never changes again, with one documented exception: an
// error arriving after a clean close upgrades ClosedNormal to
// ClosedError (see Pipe.EOF).
type EOFState int

const (
	// Open means writes are still permitted and reads may report
	// StatusNeedMore; no call ever blocks.
	Open EOFState = iota
	// ClosedNormal means the producer signaled a clean end of stream.
	ClosedNormal
	// ClosedError means the producer signaled an end of stream with an error.
	ClosedError
)

func (s EOFState) String() string {
	switch s {
	case Open:
		return "open"
	case ClosedNormal:
		return "closed-normally"
	case ClosedError:
		return "closed-with-error"
	default:
		return "unknown"
	}
}

// Pipe is an ordered, single-producer/single-consumer byte queue backed
// by a Pool of Chunks. It is not safe for concurrent use.
type Pipe struct {
	pool   *Pool
	chunks []*Chunk

	bytesUnconsumed int
	eofState        EOFState
	eofErr          error

	sz *sizer

	onCommit func()
	logger   zerolog.Logger
}

// NewPipe creates a Pipe drawing chunks from pool. pool must not be nil.
func NewPipe(pool *Pool, opts ...PipeOption) *Pipe {
	cfg, err := newPipeConfig(opts)
	if err != nil {
		panic(err)
	}
	if pool == nil {
		panic(invalidArgumentf("NewPipe: pool must not be nil"))
	}
	return &Pipe{
		pool:     pool,
		sz:       newSizer(cfg.minimumSize, cfg.ceiling, cfg.lowFillThreshold),
		onCommit: cfg.onCommit,
		logger:   cfg.logger,
	}
}

func (p *Pipe) tail() *Chunk {
	if len(p.chunks) == 0 {
		return nil
	}
	return p.chunks[len(p.chunks)-1]
}

// SetOnCommit installs (or clears, with nil) the synchronous callback
// invoked after every successful BufferWritten call. The callback must
// not mutate the Pipe.
func (p *Pipe) SetOnCommit(fn func()) {
	p.onCommit = fn
}

// Close eagerly returns all held chunks to the pool and marks the pipe
// closed-normally if it wasn't already in a terminal state. Unlike EOF,
// Close is idempotent and safe to call multiple times.
func (p *Pipe) Close() {
	for _, c := range p.chunks {
		p.pool.Put(c)
	}
	p.chunks = nil
	p.bytesUnconsumed = 0
	if p.eofState == Open {
		p.eofState = ClosedNormal
	}
}

// ---- Write API ----

// GetBuffer returns a writable window into the tail chunk, allocating a
// new chunk from the pool if necessary. With sizehint == -1 the current
// adaptive size hint is used when a new chunk is needed. With a positive
// sizehint, a new chunk is only allocated if the existing tail doesn't
// have at least sizehint bytes free. The returned slice is only valid
// until the next call to GetBuffer (if it allocates) or BufferWritten.
func (p *Pipe) GetBuffer(sizehint int) []byte {
	if p.eofState != Open {
		panic(invalidArgumentf("GetBuffer called after EOF"))
	}
	if sizehint < -1 || sizehint == 0 {
		panic(invalidArgumentf("GetBuffer(%d): sizehint must be -1 or > 0", sizehint))
	}
	t := p.tail()
	switch {
	case sizehint == -1:
		if t == nil || t.Free() == 0 {
			t = p.allocTail(p.sz.currentSize)
		}
	default:
		if t == nil || t.Free() < sizehint {
			size := p.sz.currentSize
			if sizehint > size {
				size = sizehint
			}
			t = p.allocTail(size)
		}
	}
	return t.Writable()
}

func (p *Pipe) allocTail(size int) *Chunk {
	c := p.pool.Get(size)
	p.chunks = append(p.chunks, c)
	return c
}

// BufferWritten commits n bytes previously written into the window
// returned by the most recent GetBuffer call, and runs the adaptive
// chunk-sizing policy.
func (p *Pipe) BufferWritten(n int) {
	t := p.tail()
	if t == nil {
		panic(invalidArgumentf("BufferWritten called with no tail chunk (call GetBuffer first)"))
	}
	if n < 0 || n > t.Free() {
		panic(invalidArgumentf("BufferWritten(%d): tail free space is %d", n, t.Free()))
	}
	before, after := p.sz.onCommit(n, t.Cap())
	t.Written(n)
	p.bytesUnconsumed += n
	if before != after {
		p.logger.Debug().Int("old_size", before).Int("new_size", after).Msg("adaptive chunk size changed")
	}
	if p.onCommit != nil {
		p.onCommit()
	}
}

// EOF transitions the EOF marker. A nil err closes the pipe normally; a
// non-nil err closes it with that error, re-raised verbatim by reads
// that later encounter emptiness. An error can upgrade a normal close,
// but never downgrades or replaces an existing error: the first error
// always wins.
func (p *Pipe) EOF(err error) {
	switch p.eofState {
	case Open:
		if err == nil {
			p.eofState = ClosedNormal
		} else {
			p.eofState = ClosedError
			p.eofErr = err
		}
	case ClosedNormal:
		if err != nil {
			p.eofState = ClosedError
			p.eofErr = err
		}
	case ClosedError:
		// first error wins
	}
	p.logger.Debug().Stringer("state", p.eofState).Msg("pipe eof")
}

// ---- Read-side introspection ----

// Len returns the number of readable, unconsumed bytes.
func (p *Pipe) Len() int {
	return p.bytesUnconsumed
}

// Closed returns the current EOF marker state.
func (p *Pipe) Closed() EOFState {
	return p.eofState
}

// Err returns the error the pipe was closed with, or nil if it is open
// or was closed normally.
func (p *Pipe) Err() error {
	return p.eofErr
}

func (p *Pipe) checkEOF() ReadResult {
	switch p.eofState {
	case Open:
		return ReadResult{Status: StatusNeedMore}
	case ClosedNormal:
		return ReadResult{Status: StatusEOF, Data: []byte{}}
	default: // ClosedError
		return ReadResult{Status: StatusEOF, Err: p.eofErr}
	}
}

func (p *Pipe) checkEOFZeroCopy() ZeroCopyResult {
	r := p.checkEOF()
	zr := ZeroCopyResult{Status: r.Status, Err: r.Err}
	if r.Data != nil {
		zr.Views = [][]byte{}
	}
	return zr
}

// fulfillOrError is used by the exact family once fewer than n bytes are
// buffered: it reports NeedMore if still open, or drains the remainder
// as a PartialReadError if EOF has been reached (or the plain EOF
// outcome if there was nothing left to drain).
func (p *Pipe) fulfillOrError(requested int) ReadResult {
	if p.bytesUnconsumed == 0 {
		return p.checkEOF()
	}
	if p.eofState != Open {
		leftover := p.takeBytes(-1, false).Data
		if p.eofState == ClosedError {
			return ReadResult{Status: StatusEOF, Err: newPartialReadError(requested, leftover, p.eofErr)}
		}
		return ReadResult{Status: StatusEOF, Err: newPartialReadError(requested, leftover, nil)}
	}
	return ReadResult{Status: StatusNeedMore}
}

func (p *Pipe) fulfillOrErrorZeroCopy(requested int) ZeroCopyResult {
	if p.bytesUnconsumed == 0 {
		return p.checkEOFZeroCopy()
	}
	if p.eofState != Open {
		leftover := p.takeBytes(-1, false).Data
		if p.eofState == ClosedError {
			return ZeroCopyResult{Status: StatusEOF, Err: newPartialReadError(requested, leftover, p.eofErr)}
		}
		return ZeroCopyResult{Status: StatusEOF, Err: newPartialReadError(requested, leftover, nil)}
	}
	return ZeroCopyResult{Status: StatusNeedMore}
}

// dropFrontChunks removes and returns to the pool any chunks fully
// consumed at the front of the queue.
func (p *Pipe) dropFrontChunks(count int) {
	for i := 0; i < count; i++ {
		p.pool.Put(p.chunks[i])
		p.chunks[i] = nil
	}
	p.chunks = p.chunks[count:]
}

// takeBytes implements the materialized read/peek family: nbytes == -1
// means "everything buffered".
func (p *Pipe) takeBytes(nbytes int, peek bool) ReadResult {
	if nbytes == 0 {
		return ReadResult{Status: StatusData, Data: []byte{}}
	}
	if p.bytesUnconsumed == 0 {
		return p.checkEOF()
	}
	if nbytes < 0 || nbytes > p.bytesUnconsumed {
		nbytes = p.bytesUnconsumed
	}
	if !peek {
		p.bytesUnconsumed -= nbytes
	}

	out := make([]byte, 0, nbytes)
	remaining := nbytes
	toRemove := 0
	for _, c := range p.chunks {
		if remaining <= 0 {
			break
		}
		length := c.Len()
		if remaining >= length {
			out = append(out, c.Readable()...)
			remaining -= length
			toRemove++
		} else {
			out = append(out, c.Readable(remaining)...)
			if !peek {
				c.Consume(remaining)
			}
			remaining = 0
		}
	}
	if !peek && toRemove > 0 {
		p.dropFrontChunks(toRemove)
	}
	return ReadResult{Status: StatusData, Data: out}
}

// takeZeroCopy implements the zero-copy read/peek family: rather than
// copying into a freshly allocated slice, it hands out read-only Part
// views directly onto each chunk's backing array.
func (p *Pipe) takeZeroCopy(nbytes int, peek bool) ZeroCopyResult {
	if nbytes == 0 {
		return ZeroCopyResult{Status: StatusData, Views: [][]byte{}}
	}
	if p.bytesUnconsumed == 0 {
		return p.checkEOFZeroCopy()
	}
	if nbytes < 0 || nbytes > p.bytesUnconsumed {
		nbytes = p.bytesUnconsumed
	}
	if !peek {
		p.bytesUnconsumed -= nbytes
	}

	var views [][]byte
	remaining := nbytes
	toRemove := 0
	for _, c := range p.chunks {
		if remaining <= 0 {
			break
		}
		length := c.Len()
		if remaining >= length {
			views = append(views, c.Part(0, length).Readable())
			remaining -= length
			toRemove++
		} else {
			views = append(views, c.Part(0, remaining).Readable())
			if !peek {
				c.Consume(remaining)
			}
			remaining = 0
		}
	}
	if !peek && toRemove > 0 {
		p.dropFrontChunks(toRemove)
	}
	return ZeroCopyResult{Status: StatusData, Views: views}
}

// skipBytes implements the count-only consuming skip. Unlike takeBytes,
// an empty pipe always yields 0 regardless of EOF state; skip never
// reports NeedMore or an error, it is purely a count.
func (p *Pipe) skipBytes(nbytes int) int {
	if nbytes == 0 || p.bytesUnconsumed == 0 {
		return 0
	}
	if nbytes < 0 || nbytes > p.bytesUnconsumed {
		nbytes = p.bytesUnconsumed
	}
	p.bytesUnconsumed -= nbytes

	remaining := nbytes
	toRemove := 0
	for _, c := range p.chunks {
		if remaining <= 0 {
			break
		}
		length := c.Len()
		if remaining >= length {
			remaining -= length
			toRemove++
		} else {
			c.Consume(remaining)
			remaining = 0
		}
	}
	if toRemove > 0 {
		p.dropFrontChunks(toRemove)
	}
	return nbytes
}

// ---- Public read API ----

// Read returns up to n bytes (or all buffered bytes if n == -1),
// materialized as a single contiguous slice.
func (p *Pipe) Read(n int) ReadResult {
	if n < -1 {
		panic(invalidArgumentf("Read(%d): negative length", n))
	}
	return p.takeBytes(n, false)
}

// ReadZeroCopy is the zero-copy counterpart of Read.
func (p *Pipe) ReadZeroCopy(n int) ZeroCopyResult {
	if n < -1 {
		panic(invalidArgumentf("ReadZeroCopy(%d): negative length", n))
	}
	return p.takeZeroCopy(n, false)
}

// Peek is Read without consuming; Len() is unchanged afterward.
func (p *Pipe) Peek(n int) ReadResult {
	if n < -1 {
		panic(invalidArgumentf("Peek(%d): negative length", n))
	}
	return p.takeBytes(n, true)
}

// PeekZeroCopy is the zero-copy counterpart of Peek.
func (p *Pipe) PeekZeroCopy(n int) ZeroCopyResult {
	if n < -1 {
		panic(invalidArgumentf("PeekZeroCopy(%d): negative length", n))
	}
	return p.takeZeroCopy(n, true)
}

// ReadExact returns exactly n bytes, or StatusNeedMore if the pipe is
// still open with fewer than n bytes buffered, or StatusEOF with a
// *PartialReadError if EOF is reached first. On a partial-at-EOF
// outcome, the leftover bytes are fully drained from the pipe as a side
// effect.
func (p *Pipe) ReadExact(n int) ReadResult {
	if n < 0 {
		panic(invalidArgumentf("ReadExact(%d): negative length", n))
	}
	if p.bytesUnconsumed < n {
		return p.fulfillOrError(n)
	}
	return p.takeBytes(n, false)
}

// ReadExactZeroCopy is the zero-copy counterpart of ReadExact.
func (p *Pipe) ReadExactZeroCopy(n int) ZeroCopyResult {
	if n < 0 {
		panic(invalidArgumentf("ReadExactZeroCopy(%d): negative length", n))
	}
	if p.bytesUnconsumed < n {
		return p.fulfillOrErrorZeroCopy(n)
	}
	return p.takeZeroCopy(n, false)
}

// PeekExact mirrors ReadExact without consuming. A partial-at-EOF
// outcome still reports PartialReadError (for symmetry with ReadExact)
// but does not drain the pipe, since peek must never mutate.
func (p *Pipe) PeekExact(n int) ReadResult {
	if n < 0 {
		panic(invalidArgumentf("PeekExact(%d): negative length", n))
	}
	if p.bytesUnconsumed < n {
		if p.bytesUnconsumed == 0 {
			return p.checkEOF()
		}
		if p.eofState != Open {
			leftover := p.takeBytes(-1, true).Data
			var cause error
			if p.eofState == ClosedError {
				cause = p.eofErr
			}
			return ReadResult{Status: StatusEOF, Err: newPartialReadError(n, leftover, cause)}
		}
		return ReadResult{Status: StatusNeedMore}
	}
	return p.takeBytes(n, true)
}

// PeekExactZeroCopy is the zero-copy counterpart of PeekExact.
func (p *Pipe) PeekExactZeroCopy(n int) ZeroCopyResult {
	if n < 0 {
		panic(invalidArgumentf("PeekExactZeroCopy(%d): negative length", n))
	}
	if p.bytesUnconsumed < n {
		if p.bytesUnconsumed == 0 {
			return p.checkEOFZeroCopy()
		}
		if p.eofState != Open {
			leftover := p.takeBytes(-1, true).Data
			var cause error
			if p.eofState == ClosedError {
				cause = p.eofErr
			}
			return ZeroCopyResult{Status: StatusEOF, Err: newPartialReadError(n, leftover, cause)}
		}
		return ZeroCopyResult{Status: StatusNeedMore}
	}
	return p.takeZeroCopy(n, true)
}

// Skip discards up to n bytes (or all buffered bytes if n == -1) and
// returns the number actually skipped. Unlike the read family, Skip
// never reports EOF or NeedMore; an empty pipe simply yields 0.
func (p *Pipe) Skip(n int) int {
	if n < -1 {
		panic(invalidArgumentf("Skip(%d): negative length", n))
	}
	return p.skipBytes(n)
}

// SkipExact discards exactly n bytes. It returns (n, nil) on success,
// (0, ErrNeedMore) if the pipe is open with fewer than n bytes buffered,
// (0, nil) if the pipe is empty and closed normally, (0, userErr) if it
// is empty and closed with an error, or (skipped, *PartialReadError) if
// EOF is reached with some but fewer than n bytes buffered, where
// skipped is the number of bytes actually discarded.
func (p *Pipe) SkipExact(n int) (int, error) {
	if n < 0 {
		panic(invalidArgumentf("SkipExact(%d): negative length", n))
	}
	if p.bytesUnconsumed >= n {
		return p.skipBytes(n), nil
	}
	if p.bytesUnconsumed == 0 {
		switch p.eofState {
		case Open:
			return 0, ErrNeedMore
		case ClosedNormal:
			return 0, nil
		default:
			return 0, p.eofErr
		}
	}
	if p.eofState == Open {
		return 0, ErrNeedMore
	}
	skipped := p.bytesUnconsumed
	var cause error
	if p.eofState == ClosedError {
		cause = p.eofErr
	}
	p.skipBytes(-1)
	return skipped, newPartialSkipError(n, skipped, cause)
}

// ---- Search ----

// FindByte returns the absolute offset (in the pipe's logical byte
// stream, i.e. relative to the next unconsumed byte) of the first
// occurrence of b within [start, end), or -1 if not found. end == -1
// means "to the end of the buffered bytes".
func (p *Pipe) FindByte(b byte, start, end int) int {
	if start < 0 {
		panic(invalidArgumentf("FindByte: negative start %d", start))
	}
	if end < -1 {
		panic(invalidArgumentf("FindByte: negative end %d", end))
	}
	if end == -1 {
		end = p.bytesUnconsumed
	}

	resultOffset := 0
	for _, c := range p.chunks {
		length := c.Len()
		if start >= length {
			resultOffset += length
			start -= length
			end -= length
			continue
		}
		if end <= 0 {
			break
		}
		idx := c.Find(b, start, -1)
		if idx == -1 || idx >= end {
			resultOffset += length
			start = 0
			end -= length
			continue
		}
		return resultOffset + idx
	}
	return -1
}

// Find returns the absolute offset of the first occurrence of needle
// within [start, end), scanning across chunk boundaries, or -1 if not
// found. For a single-byte needle it delegates to FindByte. For longer
// needles it locates the first byte and verifies the rest one byte at a
// time via FindByte, so a match is never missed for straddling a chunk
// boundary; this accepts O(n*m) worst case in exchange for never
// materializing a contiguous copy to search. The entire match must lie
// within [start, end); a match that starts inside the window but runs
// past end does not count.
func (p *Pipe) Find(needle []byte, start, end int) int {
	if start < 0 {
		panic(invalidArgumentf("Find: negative start %d", start))
	}
	if end < -1 {
		panic(invalidArgumentf("Find: negative end %d", end))
	}
	if len(needle) == 0 {
		if start <= p.bytesUnconsumed {
			return start
		}
		return -1
	}
	if len(needle) == 1 {
		return p.FindByte(needle[0], start, end)
	}

	limit := end
	if limit == -1 {
		limit = p.bytesUnconsumed
	}

	candidate := start
	for {
		startIdx := p.FindByte(needle[0], candidate, end)
		if startIdx == -1 {
			return -1
		}
		if startIdx+len(needle) > limit {
			return -1
		}
		matched := 0
		for _, b := range needle[1:] {
			if p.FindByte(b, startIdx+matched+1, startIdx+matched+2) == -1 {
				break
			}
			matched++
		}
		if matched == len(needle)-1 {
			return startIdx
		}
		candidate = startIdx + 1
	}
}

// ---- ReadUntil ----

// ReadUntil searches for separator and, if found at relative offset i,
// consumes either the first i+len(separator) bytes (default) or the
// first i bytes followed by a separate skip of len(separator) bytes
// (skipSeparator == true). If separator isn't found and EOF has been
// reached, it behaves like ReadExact's partial-at-EOF case.
func (p *Pipe) ReadUntil(separator []byte, skipSeparator bool) ReadResult {
	idx := p.findSeparator(separator)
	if idx == -1 {
		return p.fulfillOrError(len(separator))
	}
	if skipSeparator {
		ret := p.takeBytes(idx, false)
		p.skipBytes(len(separator))
		return ret
	}
	return p.takeBytes(idx+len(separator), false)
}

// ReadUntilZeroCopy is the zero-copy counterpart of ReadUntil.
func (p *Pipe) ReadUntilZeroCopy(separator []byte, skipSeparator bool) ZeroCopyResult {
	idx := p.findSeparator(separator)
	if idx == -1 {
		return p.fulfillOrErrorZeroCopy(len(separator))
	}
	if skipSeparator {
		ret := p.takeZeroCopy(idx, false)
		p.skipBytes(len(separator))
		return ret
	}
	return p.takeZeroCopy(idx+len(separator), false)
}

func (p *Pipe) findSeparator(separator []byte) int {
	if len(separator) == 1 {
		return p.FindByte(separator[0], 0, -1)
	}
	return p.Find(separator, 0, -1)
}

// frontChunkReadable returns the current front chunk's readable bytes,
// or nil if the pipe has no chunks. Used by WriteTo to drain the pipe
// chunk-by-chunk without materializing the whole buffered content.
func (p *Pipe) frontChunkReadable() []byte {
	if len(p.chunks) == 0 {
		return nil
	}
	return p.chunks[0].Readable()
}
