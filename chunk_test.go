package chunkedpipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkWriteReadRoundTrip(t *testing.T) {
	c := newChunk(8)
	assert.Equal(t, 8, c.Cap())
	assert.Equal(t, 8, c.Free())
	assert.Equal(t, 0, c.Len())

	w := c.Writable()
	require.Len(t, w, 8)
	copy(w, "abcd")
	c.Written(4)

	assert.Equal(t, 4, c.Len())
	assert.Equal(t, 4, c.Free())
	assert.Equal(t, []byte("abcd"), c.Readable())
	assert.Equal(t, []byte("ab"), c.Readable(2))

	c.Consume(2)
	assert.Equal(t, []byte("cd"), c.Readable())
	assert.Equal(t, 2, c.Len())
}

func TestChunkWrittenRejectsOverFree(t *testing.T) {
	c := newChunk(4)
	assert.Panics(t, func() { c.Written(5) })
	assert.Panics(t, func() { c.Written(-1) })
}

func TestChunkConsumeRejectsOverLength(t *testing.T) {
	c := newChunk(4)
	c.Written(2)
	assert.Panics(t, func() { c.Consume(3) })
	assert.Panics(t, func() { c.Consume(-1) })
}

func TestChunkFind(t *testing.T) {
	c := newChunk(16)
	copy(c.Writable(), "hello world")
	c.Written(len("hello world"))

	assert.Equal(t, 4, c.Find('o', 0, -1))
	assert.Equal(t, 7, c.Find('o', 5, -1))
	assert.Equal(t, -1, c.Find('z', 0, -1))
	assert.Equal(t, -1, c.Find('o', 0, 4))
	assert.Equal(t, 4, c.Find('o', 0, 5))
}

func TestChunkResetForRecycling(t *testing.T) {
	c := newChunk(4)
	c.Written(4)
	c.Consume(2)
	c.Reset()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 4, c.Free())
}

func TestChunkPartIsReadOnly(t *testing.T) {
	c := newChunk(8)
	copy(c.Writable(), "abcdefgh")
	c.Written(8)

	view := c.Part(2, 5)
	assert.Equal(t, []byte("cde"), view.Readable())
	assert.Panics(t, func() { view.Writable() })
	assert.Panics(t, func() { view.Written(1) })
}
