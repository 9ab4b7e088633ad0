package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pipeConn builds a pair of connected Conns over an unpaced net.Pipe, for
// tests that care about framing correctness rather than 115200-baud timing.
func pipeConn(t *testing.T) (a, b *Conn) {
	t.Helper()
	c1, c2 := net.Pipe()
	t.Cleanup(func() { c1.Close(); c2.Close() })
	return NewConn(OpenLink(c1)), NewConn(OpenLink(c2))
}

func TestHeaderRoundTrip(t *testing.T) {
	a, b := pipeConn(t)

	done := make(chan error, 1)
	go func() { done <- a.WriteHeader(Header{Opcode: OpDecode, Length: 512}) }()

	h, err := b.ReadHeader()
	require.NoError(t, err)
	require.NoError(t, <-done)
	require.Equal(t, OpDecode, h.Opcode)
	require.Equal(t, uint16(512), h.Length)
}

func TestReadHeaderSkipsJunkBeforeMagic(t *testing.T) {
	a, b := pipeConn(t)

	go func() {
		a.link.Write([]byte{0xFF, 0xFF, 0xFF})
		a.WriteHeader(Header{Opcode: OpList})
	}()

	h, err := b.ReadHeader()
	require.NoError(t, err)
	require.Equal(t, OpList, h.Opcode)
}

func TestReadHeaderRejectsUnknownOpcode(t *testing.T) {
	a, b := pipeConn(t)

	go func() {
		a.link.Write([]byte{Magic, 'Z', 0, 0})
	}()

	_, err := b.ReadHeader()
	require.Error(t, err)
	var opErr InvalidOpcodeError
	require.ErrorAs(t, err, &opErr)
}

func TestAckRoundTrip(t *testing.T) {
	a, b := pipeConn(t)

	done := make(chan error, 1)
	go func() { done <- a.WriteAck() }()
	require.NoError(t, b.WaitForAck())
	require.NoError(t, <-done)
}

func TestWaitForAckRejectsNonAck(t *testing.T) {
	a, b := pipeConn(t)

	go func() { a.WriteHeader(Header{Opcode: OpError, Length: 0}) }()

	err := b.WaitForAck()
	require.Error(t, err)
	var uoErr UnexpectedOpcodeError
	require.ErrorAs(t, err, &uoErr)
}

func TestBodyRoundTripUnderChunkSize(t *testing.T) {
	a, b := pipeConn(t)
	payload := []byte("a short decode response, well under 256 bytes")

	errc := make(chan error, 1)
	go func() { errc <- a.WriteBody(payload, true) }()

	got, err := b.ReadBody(len(payload), true)
	require.NoError(t, err)
	require.NoError(t, <-errc)
	require.Equal(t, payload, got)
}

func TestBodyRoundTripMultipleChunks(t *testing.T) {
	a, b := pipeConn(t)
	payload := make([]byte, ChunkSize*3+17)
	for i := range payload {
		payload[i] = byte(i)
	}

	errc := make(chan error, 1)
	go func() { errc <- a.WriteBody(payload, true) }()

	got, err := b.ReadBody(len(payload), true)
	require.NoError(t, err)
	require.NoError(t, <-errc)
	require.Equal(t, payload, got)
}

func TestBodyRoundTripExactChunkMultiple(t *testing.T) {
	a, b := pipeConn(t)
	payload := make([]byte, ChunkSize*2)

	errc := make(chan error, 1)
	go func() { errc <- a.WriteBody(payload, true) }()

	got, err := b.ReadBody(len(payload), true)
	require.NoError(t, err)
	require.NoError(t, <-errc)
	require.Equal(t, payload, got)
}

func TestMockLinkPacesAt115200Baud(t *testing.T) {
	host, decoder := NewMockLink()
	hc, dc := NewConn(host), NewConn(decoder)

	payload := make([]byte, bytesPerSecond115200/4)

	start := time.Now()
	errc := make(chan error, 1)
	go func() { errc <- hc.WriteBody(payload, false) }()
	_, err := dc.ReadBody(len(payload), false)
	require.NoError(t, err)
	require.NoError(t, <-errc)

	elapsed := time.Since(start)
	require.Greater(t, elapsed, 150*time.Millisecond)
}
