// Package headend implements the deployment-secret generation, frame
// encoding, and subscription issuance operations that run on the trusted
// headend side of the link — the mirror image of the decoder package.
package headend

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"io"

	"github.com/castv/castv/csrand"
	"github.com/castv/castv/keys"
	"github.com/castv/castv/wire"
)

// secretSize is the width in bytes of the random HMAC key blob generated by
// GenerateMaterial, independent of the RSA keypair carried alongside it.
const secretSize = 32

// rsaKeyBits is the RSA modulus size used for frame signing.
const rsaKeyBits = 2048

// Material bundles everything a headend build needs to issue subscriptions
// and encode frames for one deployment: the HMAC secret shared with every
// decoder, and the RSA keypair decoders verify frame signatures against.
type Material struct {
	Secret keys.Secret
	Priv   *rsa.PrivateKey
}

// csrandReader adapts csrand.Bytes to the io.Reader shape rsa.GenerateKey
// and io.ReadFull expect.
type csrandReader struct{}

func (csrandReader) Read(p []byte) (int, error) {
	if err := csrand.Bytes(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// GenerateMaterial produces fresh deployment material: a random 32-byte
// HMAC secret and a new RSA-2048 signing keypair, both sourced from
// csrand.Bytes by default. The channels argument exists for parity with the
// reference tool's gen_secrets(channels) call but plays no role in key
// derivation — every channel keys off the same secret and RSA pair. rng
// overrides the randomness source (e.g. for deterministic tests); pass nil
// to use csrand.
func GenerateMaterial(channels []uint32, rng io.Reader) (*Material, error) {
	if rng == nil {
		rng = csrandReader{}
	}

	secretBytes := make([]byte, secretSize)
	if _, err := io.ReadFull(rng, secretBytes); err != nil {
		return nil, fmt.Errorf("headend: generate secret: %w", err)
	}

	priv, err := rsa.GenerateKey(rng, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("headend: generate RSA key: %w", err)
	}

	return &Material{
		Secret: keys.Secret{Bytes: secretBytes},
		Priv:   priv,
	}, nil
}

// Marshal serializes Material to the on-disk secrets blob format: the HMAC
// secret's length as a little-endian u32, the random HMAC secret, then the
// RSA private key in PKCS#1 DER.
func (m *Material) Marshal() []byte {
	der := x509.MarshalPKCS1PrivateKey(m.Priv)
	out := make([]byte, 4+len(m.Secret.Bytes)+len(der))
	out[0] = byte(len(m.Secret.Bytes))
	out[1] = byte(len(m.Secret.Bytes) >> 8)
	out[2] = byte(len(m.Secret.Bytes) >> 16)
	out[3] = byte(len(m.Secret.Bytes) >> 24)
	copy(out[4:4+len(m.Secret.Bytes)], m.Secret.Bytes)
	copy(out[4+len(m.Secret.Bytes):], der)
	return out
}

// LoadMaterial parses the blob produced by Marshal.
func LoadMaterial(data []byte) (*Material, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("headend: secrets blob too short")
	}
	secretLen := int(data[0]) | int(data[1])<<8 | int(data[2])<<16 | int(data[3])<<24
	if len(data) < 4+secretLen {
		return nil, fmt.Errorf("headend: secrets blob truncated")
	}
	secretBytes := append([]byte(nil), data[4:4+secretLen]...)

	priv, err := x509.ParsePKCS1PrivateKey(data[4+secretLen:])
	if err != nil {
		return nil, fmt.Errorf("headend: parse RSA key: %w", err)
	}

	return &Material{
		Secret: keys.Secret{Bytes: secretBytes},
		Priv:   priv,
	}, nil
}

// VerifyingKeyDER returns the PKIX DER encoding of the RSA public key, the
// form the decoder build step embeds as its verifying key.
func (m *Material) VerifyingKeyDER() ([]byte, error) {
	return x509.MarshalPKIXPublicKey(&m.Priv.PublicKey)
}

// Channel0Subscription builds the firmware-embedded, always-valid channel-0
// subscription spanning the full uint64 timestamp range with unwrapped
// (plaintext) keys — the decoder seeds this directly into its subscription
// store rather than receiving it over the wire.
func (m *Material) Channel0Subscription(deviceID uint32) *wire.SubscriptionPacket {
	pkt := wire.GenerateSubscription(m.Secret, 0, ^uint64(0), 0, deviceID)
	if !pkt.Authenticate(m.Secret.DeviceKey(deviceID)) {
		panic("headend: generated channel-0 subscription failed self-authentication")
	}
	return pkt
}

// GenerateSubscription issues a wire-ready subscription for deviceID over
// [start, end] on channel, with keys wrapped under that device's key — the
// headend counterpart to wire.GenerateSubscription, exposed here so callers
// never need to reach into the wire package directly.
func (m *Material) GenerateSubscription(deviceID uint32, start, end uint64, channel uint32) *wire.SubscriptionPacket {
	return wire.GenerateSubscription(m.Secret, start, end, channel, deviceID)
}

// EncodeFrame signs and encrypts frame for channel at timestamp t.
func (m *Material) EncodeFrame(frame wire.Frame, t uint64, channel uint32) (*wire.EncodedFramePacket, error) {
	return wire.EncodeFrame(m.Secret, m.Priv, frame, t, channel)
}
