package chunkedpipe

import "bytes"

// Chunk is a fixed-capacity byte buffer with independent read and write
// cursors. Bytes in [0, start) are consumed and unreachable, bytes in
// [start, end) are committed and readable, bytes in [end, cap) are
// writable free space.
//
// A Chunk is owned by exactly one holder at a time: a Pool's free list,
// a Pipe's queue, or (for a read-only view returned by Part) a transient
// zero-copy result. It is not safe for concurrent use.
type Chunk struct {
	buf      []byte
	start    int
	end      int
	readOnly bool
}

func newChunk(size int) *Chunk {
	return &Chunk{buf: make([]byte, size)}
}

// Cap returns the chunk's total capacity. It never changes for the
// lifetime of the chunk, including across pool recycling.
func (c *Chunk) Cap() int {
	return len(c.buf)
}

// Len returns the number of committed, unconsumed bytes.
func (c *Chunk) Len() int {
	return c.end - c.start
}

// Free returns the number of bytes still writable.
func (c *Chunk) Free() int {
	return len(c.buf) - c.end
}

// Writable returns the writable suffix [end, cap). The returned slice
// aliases the chunk's backing array and is only valid until the next
// call to Written or Reset.
func (c *Chunk) Writable() []byte {
	if c.readOnly {
		panic(invalidArgumentf("Writable called on a read-only chunk view"))
	}
	return c.buf[c.end:]
}

// Written advances the write cursor by n, committing n bytes that were
// previously written into the Writable window. n must be in [0, Free()].
func (c *Chunk) Written(n int) {
	if c.readOnly {
		panic(invalidArgumentf("Written called on a read-only chunk view"))
	}
	if n < 0 || n > c.Free() {
		panic(invalidArgumentf("Written(%d): free space is %d", n, c.Free()))
	}
	c.end += n
}

// Readable returns the readable window starting at start. With no
// argument it returns the full [start, end) range; with one argument n
// it returns at most n bytes, i.e. [start, min(start+n, end)). The
// returned slice aliases the chunk's backing array and is only valid
// until the next call that mutates this chunk (Consume, Reset, or, for
// the owning chunk, Written).
func (c *Chunk) Readable(n ...int) []byte {
	end := c.end
	switch len(n) {
	case 0:
	case 1:
		if n[0] < 0 {
			panic(invalidArgumentf("Readable(%d): negative length", n[0]))
		}
		if want := c.start + n[0]; want < end {
			end = want
		}
	default:
		panic(invalidArgumentf("Readable takes at most one argument, got %d", len(n)))
	}
	return c.buf[c.start:end]
}

// Consume advances the read cursor by n, discarding n bytes from the
// front of the readable range. n must be in [0, Len()].
func (c *Chunk) Consume(n int) {
	if n < 0 || n > c.Len() {
		panic(invalidArgumentf("Consume(%d): length is %d", n, c.Len()))
	}
	c.start += n
}

// Find searches the readable range for b, with startOff and endOff
// relative to start (endOff == -1 means "to the end of the readable
// range"). It returns an index relative to start, or -1 if not found.
func (c *Chunk) Find(b byte, startOff, endOff int) int {
	if startOff < 0 {
		panic(invalidArgumentf("Find: negative startOff %d", startOff))
	}
	end := c.end
	if endOff >= 0 {
		if want := c.start + endOff; want < end {
			end = want
		}
	}
	start := c.start + startOff
	if start >= end {
		return -1
	}
	idx := bytes.IndexByte(c.buf[start:end], b)
	if idx == -1 {
		return -1
	}
	return idx + startOff
}

// Reset restores the chunk to empty, ready for reuse from a pool.
func (c *Chunk) Reset() {
	c.start = 0
	c.end = 0
}

// Part returns a read-only Chunk view over [start, end) of this chunk's
// backing memory, without copying. It shares the backing array, so its
// bytes change if the source chunk is recycled and written again;
// Writable and Written panic on it. Part views are never returned to a Pool; they are
// meant to be short-lived zero-copy handouts.
func (c *Chunk) Part(start, end int) *Chunk {
	if start < 0 || end < start || c.start+end > c.end {
		panic(invalidArgumentf("Part(%d, %d): out of range for chunk of length %d", start, end, c.Len()))
	}
	return &Chunk{
		buf:      c.buf,
		start:    c.start + start,
		end:      c.start + end,
		readOnly: true,
	}
}
