// Package wire implements the zero-copy-friendly, packed little-endian wire
// format for encoded frame packets and subscription packets, headend-side
// signing/encoding, and decoder-side verification.
//
// The explicit per-field binary.LittleEndian parsing and the one-error-type-
// per-failure-mode style follow the shape of a framing layer's typed parse
// errors (InvalidPayloadLengthError, InvalidFrameLengthError), adapted here
// to a fixed packed struct instead of an AEAD frame, so there is no NaCl
// SecretBox machinery of any kind.
package wire

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/castv/castv/keys"
	"github.com/castv/castv/mask"
)

// FrameSize is the fixed size in bytes of a plaintext/ciphertext frame
// payload.
const FrameSize = 64

// Frame is the decoder's 64-byte opaque payload. Immutable once produced;
// ciphertext and plaintext share the same shape.
type Frame [FrameSize]byte

// InvalidPacketLengthError is returned when a received buffer's length does
// not match the expected, deployment-specific frame packet size.
type InvalidPacketLengthError struct {
	Got, Want int
}

func (e InvalidPacketLengthError) Error() string {
	return fmt.Sprintf("wire: invalid frame packet length: got %d, want %d", e.Got, e.Want)
}

// EncodedFramePacket is the headend-produced, wire-format frame packet:
//
//	channel:   u32
//	timestamp: u64
//	signature: u8[sigLen]       RSA-PKCS1v1.5-SHA256 over the plaintext frame
//	frame_ct:  u8[64]           AES-ECB(K_f, frame)
//	wrapped:   { key_ct: u8[16] }[M]
type EncodedFramePacket struct {
	Channel   uint32
	Timestamp uint64
	Signature []byte
	FrameCT   Frame
	Wrapped   [][keys.Size]byte
}

// PacketSize returns the total wire size of an EncodedFramePacket for a
// signature of sigLen bytes, under the current mask.Table.
func PacketSize(sigLen int) int {
	return 4 + 8 + sigLen + FrameSize + keys.Size*len(mask.Table)
}

// EncodeFrame is the headend encode operation: encrypt frame under K_f,
// wrap K_f once per mask level under the corresponding K_br, sign the
// plaintext frame with the RSA private key, and assemble the packet.
func EncodeFrame(secret keys.Secret, priv *rsa.PrivateKey, frame Frame, t uint64, channel uint32) (*EncodedFramePacket, error) {
	kf := secret.FrameKey(t, channel)

	ct := frame
	keys.CipherFrom(kf).EncryptBlocks(ct[:])

	wrapped := make([][keys.Size]byte, len(mask.Table))
	for i := range mask.Table {
		tStart := mask.AlignDown(t, uint8(i))
		kbr := secret.BitRangeKey(tStart, uint8(i), channel)
		var w [keys.Size]byte
		copy(w[:], kf[:])
		keys.CipherFrom(kbr).EncryptBlocks(w[:])
		wrapped[i] = w
	}

	hashed := sha256.Sum256(frame[:])
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, hashed[:])
	if err != nil {
		return nil, fmt.Errorf("wire: sign frame: %w", err)
	}

	return &EncodedFramePacket{
		Channel:   channel,
		Timestamp: t,
		Signature: sig,
		FrameCT:   ct,
		Wrapped:   wrapped,
	}, nil
}

// Marshal serializes the packet to its packed little-endian wire
// representation.
func (p *EncodedFramePacket) Marshal() []byte {
	buf := make([]byte, PacketSize(len(p.Signature)))
	binary.LittleEndian.PutUint32(buf[0:4], p.Channel)
	binary.LittleEndian.PutUint64(buf[4:12], p.Timestamp)
	off := 12
	copy(buf[off:off+len(p.Signature)], p.Signature)
	off += len(p.Signature)
	copy(buf[off:off+FrameSize], p.FrameCT[:])
	off += FrameSize
	for _, w := range p.Wrapped {
		copy(buf[off:off+keys.Size], w[:])
		off += keys.Size
	}
	return buf
}

// ParseFramePacket parses a received buffer into an EncodedFramePacket. The
// buffer's length MUST exactly equal PacketSize(sigLen); anything else is
// rejected before a single field is read.
//
// The frame payload is touched at most twice downstream (once for the K_f
// decrypt, once for the signature hash). This parser performs one copy out
// of the wire buffer rather than aliasing it directly, trading the last bit
// of zero-copy purity for a struct that owns its own fields.
func ParseFramePacket(data []byte, sigLen int) (*EncodedFramePacket, error) {
	want := PacketSize(sigLen)
	if len(data) != want {
		return nil, InvalidPacketLengthError{Got: len(data), Want: want}
	}

	p := &EncodedFramePacket{
		Channel:   binary.LittleEndian.Uint32(data[0:4]),
		Timestamp: binary.LittleEndian.Uint64(data[4:12]),
		Signature: append([]byte(nil), data[12:12+sigLen]...),
	}
	off := 12 + sigLen
	copy(p.FrameCT[:], data[off:off+FrameSize])
	off += FrameSize

	p.Wrapped = make([][keys.Size]byte, len(mask.Table))
	for i := range p.Wrapped {
		copy(p.Wrapped[i][:], data[off:off+keys.Size])
		off += keys.Size
	}
	return p, nil
}

// UnwrapFrameKey decrypts Wrapped[maskIdx] under the bit-range key the
// caller supplies (taken from a matching subscription) and returns K_f.
func (p *EncodedFramePacket) UnwrapFrameKey(maskIdx uint8, bitRangeKey keys.Key) keys.Key {
	var scratch keys.Key
	copy(scratch[:], p.Wrapped[maskIdx][:])
	keys.CipherFrom(bitRangeKey).DecryptBlocks(scratch[:])
	return scratch
}

// DecryptFrame decrypts FrameCT in place under kf and returns the plaintext
// frame. The packet's FrameCT field is mutated; callers that still need the
// ciphertext should copy first.
func (p *EncodedFramePacket) DecryptFrame(kf keys.Key) Frame {
	keys.CipherFrom(kf).DecryptBlocks(p.FrameCT[:])
	return p.FrameCT
}

// VerifySignature checks the RSA-PKCS1v1.5-SHA256 signature over a
// (recovered) plaintext frame.
func (p *EncodedFramePacket) VerifySignature(pub *rsa.PublicKey, frame Frame) error {
	hashed := sha256.Sum256(frame[:])
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, hashed[:], p.Signature)
}
