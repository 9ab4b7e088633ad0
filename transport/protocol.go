// Package transport implements the UART host/decoder link protocol: a
// magic-byte-delimited header, chunked body transfer with an ACK every 256
// bytes, and a Link abstraction so the same protocol logic runs over a real
// serial device or an in-memory mock.
//
// The header/body split and the typed per-failure-mode errors follow the
// same shape as a framing layer wrapping a continuous encrypted stream
// (InvalidFrameLengthError, InvalidPayloadLengthError), adapted here to
// frame discrete request/response messages instead, with no nonce or AEAD
// machinery of its own.
package transport

import (
	"encoding/binary"
	"fmt"
)

// Magic is the header byte that begins every message.
const Magic byte = '%'

// HeaderSize is the wire size of a message header: magic(1) || opcode(1) ||
// length(2), little-endian.
const HeaderSize = 4

// ChunkSize is the number of body bytes between ACKs, matching the
// 115200-baud link's flow-control granularity.
const ChunkSize = 256

// Opcode identifies a message's kind.
type Opcode byte

const (
	OpDecode    Opcode = 'D'
	OpSubscribe Opcode = 'S'
	OpList      Opcode = 'L'
	OpAck       Opcode = 'A'
	OpError     Opcode = 'E'
	OpDebug     Opcode = 'G'
)

// ShouldAck reports whether a message of this opcode needs per-chunk and
// final ACKs. ACK and DEBUG messages are not themselves acknowledged.
func (op Opcode) ShouldAck() bool {
	return op != OpAck && op != OpDebug
}

func (op Opcode) String() string {
	return string(rune(op))
}

// Header is a parsed message header.
type Header struct {
	Opcode Opcode
	Length uint16
}

// InvalidOpcodeError is returned when a header carries an opcode this
// protocol version does not recognize.
type InvalidOpcodeError byte

func (e InvalidOpcodeError) Error() string {
	return fmt.Sprintf("transport: invalid opcode: %q", byte(e))
}

func validOpcode(op Opcode) bool {
	switch op {
	case OpDecode, OpSubscribe, OpList, OpAck, OpError, OpDebug:
		return true
	default:
		return false
	}
}

// marshalHeader serializes a header to its 4-byte wire form.
func marshalHeader(h Header) [HeaderSize]byte {
	var buf [HeaderSize]byte
	buf[0] = Magic
	buf[1] = byte(h.Opcode)
	binary.LittleEndian.PutUint16(buf[2:4], h.Length)
	return buf
}
