// Package chunkedpipe provides a high throughput, single-producer/single-consumer
// byte pipe backed by a size-classed pool of fixed-capacity chunks.
//
// Producers acquire a writable window directly into chunk memory with
// GetBuffer, enabling scatter-style receive from a socket without an
// intermediate copy, and commit it with BufferWritten. Consumers drain
// bytes either by materializing a contiguous result (Read, ReadExact,
// Peek, ...) or by walking the underlying chunks without copying
// (ReadZeroCopy and friends). Search (FindByte, Find) and ReadUntil work
// across chunk boundaries.
//
// A Pipe is not safe for concurrent use; it is designed for exactly one
// producer and one consumer coordinating through an external scheduler
// (e.g. an async I/O runtime), never called concurrently with itself.
package chunkedpipe
