//go:build !linux && !illumos

package chunkedpipe

import "io"

// tryWritev has no vectored fast path outside linux/illumos; WriteTo
// falls back entirely to its regular per-chunk write loop.
func (p *Pipe) tryWritev(io.Writer) (int64, error) {
	return 0, nil
}
