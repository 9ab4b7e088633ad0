package transport

import (
	"bufio"
	"io"
)

// Link is the byte-level transport a Conn frames messages over: a real
// serial device, or a test double. Real implementations are typically a
// wrapped *os.File or net.Conn opened against a UART device node.
type Link interface {
	io.Reader
	io.Writer
}

// OpenLink wraps any io.ReadWriter (an opened serial device, a pipe, a test
// fixture) as a Link with buffered reads, matching how the decoder firmware
// treats its UART peripheral as a plain byte stream.
func OpenLink(rw io.ReadWriter) Link {
	return &bufferedLink{r: bufio.NewReader(rw), w: rw}
}

type bufferedLink struct {
	r *bufio.Reader
	w io.Writer
}

func (l *bufferedLink) Read(p []byte) (int, error)  { return l.r.Read(p) }
func (l *bufferedLink) Write(p []byte) (int, error) { return l.w.Write(p) }
