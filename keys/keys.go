// Package keys implements deterministic derivation of device, bit-range, and
// per-frame symmetric keys from a deployment's global secret, and builds the
// AES-128 primitive those derived keys are used with.
//
// The derivation shape — HMAC-SHA256 over a struct-packed little-endian
// context, truncated to the key size — mirrors the "mark"/MAC construction
// used in ntor-style handshakes: hmac.New(sha256.New, identity) followed by
// Write() of each field in order.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
)

// Size is the length in bytes of every derived symmetric key (128 bits).
const Size = 16

// Key is a 128-bit symmetric key used directly as an AES-128 key, with no
// padding. ECB is used throughout: every distinct plaintext is keyed with a
// distinct derived key, so block repetition across frames carries no
// information, and integrity is supplied separately (RSA signature over the
// frame, SHA-256 MAC over the subscription).
type Key [Size]byte

// Secret is the HMAC half of the deployment-wide global secret S, used for
// all symmetric derivations; the headend's RSA signing key is not part of it
// and is carried alongside it (headend.Material). HMAC derivations key on
// Bytes directly
// rather than on a hash of it, so the raw secret must already carry enough
// entropy for HMAC's key-size guidance.
type Secret struct {
	Bytes []byte
}

func (s Secret) mac() hash.Hash {
	if len(s.Bytes) < 32 {
		panic(fmt.Sprintf("keys: secret must be at least 32 bytes, got %d", len(s.Bytes)))
	}
	return hmac.New(sha256.New, s.Bytes)
}

func keyFromMac(m hash.Hash) Key {
	sum := m.Sum(nil)
	var k Key
	copy(k[:], sum[:Size])
	return k
}

// DeviceKey derives K_dev = HMAC-SHA256(S, device_id_le32)[..16], unique per
// decoder and used to encrypt subscription key material in transit.
func (s Secret) DeviceKey(deviceID uint32) Key {
	m := s.mac()
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], deviceID)
	m.Write(buf[:])
	return keyFromMac(m)
}

// BitRangeKey derives
// K_br(tStart, maskIdx, channel) = HMAC-SHA256(S, tStart_le64 || maskIdx_le8 || channel_le32)[..16].
// tStart MUST be a multiple of 2^Table[maskIdx].
func (s Secret) BitRangeKey(tStart uint64, maskIdx uint8, channel uint32) Key {
	m := s.mac()
	var buf [8 + 1 + 4]byte
	binary.LittleEndian.PutUint64(buf[0:8], tStart)
	buf[8] = maskIdx
	binary.LittleEndian.PutUint32(buf[9:13], channel)
	m.Write(buf[:])
	return keyFromMac(m)
}

// FrameKey derives K_f(t, channel) = HMAC-SHA256(S, t_le64 || channel_le32)[..16].
func (s Secret) FrameKey(t uint64, channel uint32) Key {
	m := s.mac()
	var buf [8 + 4]byte
	binary.LittleEndian.PutUint64(buf[0:8], t)
	binary.LittleEndian.PutUint32(buf[8:12], channel)
	m.Write(buf[:])
	return keyFromMac(m)
}

// CipherContext wraps an AES-128 block cipher keyed on a derived Key, and
// supports in-place ECB encryption/decryption of data whose length is a
// multiple of 16. Derivation cannot fail; cipher operations fail only on
// misaligned input, which is a programmer error and triggers a panic rather
// than an error return.
type CipherContext struct {
	block cipher.Block
}

// CipherFrom constructs a CipherContext from a derived Key. The
// CipherContext should be reused across calls keyed on the same Key.
func CipherFrom(k Key) CipherContext {
	block, err := aes.NewCipher(k[:])
	if err != nil {
		// k is always exactly 16 bytes; aes.NewCipher cannot fail here.
		panic(fmt.Sprintf("keys: aes.NewCipher: %v", err))
	}
	return CipherContext{block: block}
}

func (c CipherContext) requireAligned(data []byte) {
	if len(data)%aes.BlockSize != 0 {
		panic(fmt.Sprintf("keys: data length %d is not a multiple of the AES block size", len(data)))
	}
}

// EncryptBlocks encrypts data in place, ECB mode, one AES block at a time.
func (c CipherContext) EncryptBlocks(data []byte) {
	c.requireAligned(data)
	for len(data) > 0 {
		c.block.Encrypt(data[:aes.BlockSize], data[:aes.BlockSize])
		data = data[aes.BlockSize:]
	}
}

// DecryptBlocks decrypts data in place, ECB mode, one AES block at a time.
func (c CipherContext) DecryptBlocks(data []byte) {
	c.requireAligned(data)
	for len(data) > 0 {
		c.block.Decrypt(data[:aes.BlockSize], data[:aes.BlockSize])
		data = data[aes.BlockSize:]
	}
}
