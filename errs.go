package chunkedpipe

import (
	"errors"
	"fmt"
)

// ErrNeedMore signals that a request could not be fulfilled because the
// pipe does not yet have enough buffered data and has not reached EOF.
// Callers that receive it should wait for more data (e.g. via an
// on-commit callback or an external scheduler) and retry.
var ErrNeedMore = errors.New("chunkedpipe: not enough data buffered, not yet at EOF")

// InvalidArgumentError reports caller misuse: a negative offset, a write
// past a chunk's free space, or a commit larger than the previously
// returned window. It is a caller bug, not an expected runtime condition.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return "chunkedpipe: invalid argument: " + e.Message
}

func invalidArgumentf(format string, args ...any) *InvalidArgumentError {
	return &InvalidArgumentError{Message: fmt.Sprintf(format, args...)}
}

// PartialReadError is returned by an exact read, skip, or readuntil
// operation when EOF is reached with fewer bytes available than
// requested. Leftover holds the bytes that were drained from the pipe as
// a side effect of raising this error (it is nil for SkipExact, which
// discards without copying); the pipe is empty afterward for the read
// and skip variants (peek variants leave the pipe untouched).
type PartialReadError struct {
	Leftover []byte
	Cause    error
	Message  string
}

func (e *PartialReadError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("chunkedpipe: partial read: encountered EOF with %d byte(s) left over", len(e.Leftover))
}

// Unwrap allows errors.Is/errors.As to see through to the error that
// caused EOF, if any (e.g. the error passed to Pipe.EOF).
func (e *PartialReadError) Unwrap() error {
	return e.Cause
}

func newPartialReadError(requested int, leftover []byte, cause error) *PartialReadError {
	return &PartialReadError{
		Leftover: leftover,
		Cause:    cause,
		Message:  fmt.Sprintf("chunkedpipe: requested %d byte(s) but encountered EOF with %d byte(s) left over", requested, len(leftover)),
	}
}

// newPartialSkipError is like newPartialReadError but for SkipExact,
// which never materializes the bytes it discards; skipped records the
// count for the message since Leftover (always nil here) can't.
func newPartialSkipError(requested, skipped int, cause error) *PartialReadError {
	return &PartialReadError{
		Cause:   cause,
		Message: fmt.Sprintf("chunkedpipe: requested to skip %d byte(s) but encountered EOF after skipping %d", requested, skipped),
	}
}
