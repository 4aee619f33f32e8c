//go:build linux || illumos

package chunkedpipe

import (
	"io"
	"syscall"

	"golang.org/x/sys/unix"
)

// tryWritev opportunistically flushes buffered chunks with vectored
// writes when w exposes its underlying file descriptor via syscall.Conn.
// Each writev covers every buffered chunk, the last one included; it
// stops issuing writev once at most one chunk remains, and whatever is
// left is drained by WriteTo's regular per-chunk loop. With one chunk or
// none buffered it does nothing.
func (p *Pipe) tryWritev(w io.Writer) (int64, error) {
	if len(p.chunks) <= 1 {
		return 0, nil
	}
	sc, ok := w.(syscall.Conn)
	if !ok {
		return 0, nil
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return 0, nil
	}

	var total int64
	bufs := make([][]byte, 0, len(p.chunks))
	for len(p.chunks) > 1 {
		var writevErr error
		err := rc.Write(func(fd uintptr) bool {
			bufs = bufs[:0]
			for _, c := range p.chunks {
				bufs = append(bufs, c.Readable())
			}
			n, werr := unix.Writev(int(fd), bufs)
			writevErr = werr
			if n > 0 {
				p.skipBytes(n)
				total += int64(n)
			}
			if writevErr == syscall.EINTR || writevErr == syscall.EAGAIN {
				writevErr = nil
			}
			return len(p.chunks) <= 1 || writevErr != nil
		})
		if writevErr != nil {
			return total, writevErr
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
