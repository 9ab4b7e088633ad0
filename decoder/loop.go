package decoder

import (
	"github.com/castv/castv/transport"
	"github.com/castv/castv/wire"
)

// unrecognizedZeroLength is the ProtocolFraming condition for a zero-length
// body whose opcode is neither LIST nor ACK/DEBUG.
var unrecognizedZeroLength = &Error{Class: ClassProtocolFraming, Message: "unrecognized zero-length command"}

// unrecognizedOpcode is the ProtocolFraming condition for a non-zero-length
// body carrying an opcode this loop does not dispatch.
var unrecognizedOpcode = &Error{Class: ClassProtocolFraming, Message: "unrecognized opcode"}

// Serve runs the command loop over conn until the link is lost or a
// ProtocolFraming error occurs. ProtocolFraming is log-and-hang: the caller
// is expected to log the returned error and tear the session down rather
// than resume it, since a peer that triggers it is no longer trusted to be
// in sync.
func (d *Decoder) Serve(conn *transport.Conn) error {
	sigLen := d.VerifyingKey.Size()

	for {
		h, err := conn.ReadHeader()
		if err != nil {
			return err
		}

		if h.Opcode.ShouldAck() {
			if err := conn.WriteAck(); err != nil {
				return err
			}
		}

		if h.Length == 0 {
			switch h.Opcode {
			case transport.OpList:
				if err := d.serveList(conn); err != nil {
					return err
				}
			case transport.OpAck, transport.OpDebug:
				// No response required.
			default:
				return unrecognizedZeroLength
			}
			continue
		}

		body, err := conn.ReadBody(int(h.Length), h.Opcode.ShouldAck())
		if err != nil {
			return err
		}

		switch h.Opcode {
		case transport.OpSubscribe:
			if err := d.serveSubscribe(conn, body); err != nil {
				return err
			}
		case transport.OpDecode:
			if err := d.serveDecode(conn, body, sigLen); err != nil {
				return err
			}
		default:
			if err := d.respondError(conn, unrecognizedOpcode); err != nil {
				return err
			}
		}
	}
}

func (d *Decoder) serveList(conn *transport.Conn) error {
	body, err := d.List()
	if err != nil {
		return d.respondError(conn, err)
	}
	if err := conn.WriteHeader(transport.Header{Opcode: transport.OpList, Length: uint16(len(body))}); err != nil {
		return err
	}
	return conn.WriteBody(body, true)
}

func (d *Decoder) serveSubscribe(conn *transport.Conn, body []byte) error {
	if err := d.Subscribe(body); err != nil {
		return d.respondError(conn, err)
	}
	return conn.WriteHeader(transport.Header{Opcode: transport.OpSubscribe, Length: 0})
}

func (d *Decoder) serveDecode(conn *transport.Conn, body []byte, sigLen int) error {
	frame, err := d.Decode(body, sigLen)
	if err != nil {
		return d.respondError(conn, err)
	}
	if err := conn.WriteHeader(transport.Header{Opcode: transport.OpDecode, Length: wire.FrameSize}); err != nil {
		return err
	}
	return conn.WriteBody(frame[:], true)
}

// respondError surfaces a recoverable decoder error as an E frame. A
// ProtocolFraming error is returned to the caller unchanged instead, since
// it is non-recoverable.
func (d *Decoder) respondError(conn *transport.Conn, err error) error {
	dErr, ok := err.(*Error)
	if !ok || dErr.Class == ClassProtocolFraming {
		return err
	}
	return conn.WriteError(dErr.Message)
}
