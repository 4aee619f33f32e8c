package chunkedpipe

import "io"

// WriteTo drains the pipe's entire buffered content to w. On platforms
// where w is a *net.TCPConn-like syscall.Conn (linux, illumos), it first
// opportunistically uses vectored writev to flush multiple chunks in one
// syscall; any remainder is written chunk-by-chunk. If w.Write returns an
// error, WriteTo returns the bytes successfully written so far and that
// error; the pipe has consumed exactly those bytes and remains otherwise
// usable.
func (p *Pipe) WriteTo(w io.Writer) (int64, error) {
	total, err := p.tryWritev(w)
	if err != nil {
		return total, err
	}
	for {
		data := p.frontChunkReadable()
		if data == nil {
			break
		}
		n, err := w.Write(data)
		if n > 0 {
			p.skipBytes(n)
			total += int64(n)
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}
