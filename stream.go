package chunkedpipe

// WriteSide is the write-side contract an external async I/O runtime
// (e.g. a socket's read-loop) drives to fill a Pipe. *Pipe implements it
// directly; it exists so an adapter package can depend on the interface
// rather than the concrete Pipe type.
type WriteSide interface {
	// GetBuffer returns a writable window the runtime can scatter-receive
	// into directly, avoiding an intermediate copy.
	GetBuffer(sizehint int) []byte
	// BufferWritten commits the bytes the runtime placed into the last
	// window returned by GetBuffer.
	BufferWritten(n int)
	// EOF signals the end of the underlying source, optionally with the
	// error that caused it.
	EOF(err error)
}

// ReadSide is the read-side contract an external async I/O runtime polls
// (it is not callback-driven) to drain a Pipe.
type ReadSide interface {
	// Len reports the number of currently buffered, unconsumed bytes.
	Len() int
	// Closed reports the EOF marker's current state.
	Closed() EOFState
	// Err reports the error the pipe was closed with, if any.
	Err() error

	Read(n int) ReadResult
	ReadZeroCopy(n int) ZeroCopyResult
	ReadExact(n int) ReadResult
	ReadExactZeroCopy(n int) ZeroCopyResult
	Peek(n int) ReadResult
	PeekZeroCopy(n int) ZeroCopyResult
	PeekExact(n int) ReadResult
	PeekExactZeroCopy(n int) ZeroCopyResult
	Skip(n int) int
	SkipExact(n int) (int, error)
	ReadUntil(separator []byte, skipSeparator bool) ReadResult
	ReadUntilZeroCopy(separator []byte, skipSeparator bool) ZeroCopyResult
	FindByte(b byte, start, end int) int
	Find(needle []byte, start, end int) int
}

var (
	_ WriteSide = (*Pipe)(nil)
	_ ReadSide  = (*Pipe)(nil)
)
