package transport

import (
	"bytes"
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// bytesPerSecond115200 is the throughput of an 8N1 UART running at 115200
// baud: 10 wire bits per byte (1 start + 8 data + 1 stop).
const bytesPerSecond115200 = 115200 / 10

// MockLink is an in-memory Link that paces reads and writes to roughly the
// byte rate of a real 115200-baud serial line, so tests and simulators
// exercise the same ACK-pacing behavior the decoder sees against real
// hardware without actually owning a serial device.
type MockLink struct {
	mu    sync.Mutex
	in    *bytes.Buffer
	out   *bytes.Buffer
	rdLim *rate.Limiter
	wrLim *rate.Limiter
}

// NewMockLink constructs a pair of connected MockLinks: writes to one are
// readable from the other, both paced at 115200 baud.
func NewMockLink() (host, decoder *MockLink) {
	hostToDecoder := new(bytes.Buffer)
	decoderToHost := new(bytes.Buffer)

	hostLim := rate.NewLimiter(rate.Limit(bytesPerSecond115200), bytesPerSecond115200)
	decoderLim := rate.NewLimiter(rate.Limit(bytesPerSecond115200), bytesPerSecond115200)

	host = &MockLink{in: decoderToHost, out: hostToDecoder, rdLim: hostLim, wrLim: decoderLim}
	decoder = &MockLink{in: hostToDecoder, out: decoderToHost, rdLim: decoderLim, wrLim: hostLim}
	return host, decoder
}

// Read implements Link. It blocks (rate-limits) as if bytes were arriving
// over a real 115200-baud line.
func (m *MockLink) Read(p []byte) (int, error) {
	m.mu.Lock()
	n, err := m.in.Read(p)
	m.mu.Unlock()
	if n > 0 {
		if err2 := m.rdLim.WaitN(context.Background(), n); err2 != nil {
			return n, err2
		}
	}
	return n, err
}

// Write implements Link, likewise paced at 115200 baud.
func (m *MockLink) Write(p []byte) (int, error) {
	if err := m.wrLim.WaitN(context.Background(), len(p)); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out.Write(p)
}
