package decoder

import (
	"crypto/rsa"
	"encoding/binary"

	"github.com/castv/castv/keys"
	"github.com/castv/castv/store"
	"github.com/castv/castv/wire"
)

// Decoder is the process-wide state of the command loop: the monotonic
// high-water mark T*, the subscription store, and the firmware-embedded
// identity material. It is not safe for concurrent use — the command loop
// is the only owner, matching a single-threaded cooperative execution
// model.
type Decoder struct {
	DeviceID      uint32
	DeviceKey     keys.Key
	VerifyingKey  *rsa.PublicKey
	Store         *store.Store
	highWaterMark uint64
	hwmSet        bool
}

// New constructs a Decoder. channel0 is the firmware-embedded, always-valid
// subscription for channel 0 — every decoder is universally subscribed to
// it via firmware-embedded keys; its Keys MUST already be plaintext. It is
// seeded directly into st (if st does not already contain it — see
// Store.Seed), so DECODE reaches channel 0 through the same store.Lookup
// path as every other channel instead of a parallel branch.
func New(deviceID uint32, deviceKey keys.Key, verifyingKey *rsa.PublicKey, st *store.Store, channel0 *wire.SubscriptionPacket) (*Decoder, error) {
	if err := st.Seed(channel0); err != nil {
		return nil, err
	}
	return &Decoder{
		DeviceID:     deviceID,
		DeviceKey:    deviceKey,
		VerifyingKey: verifyingKey,
		Store:        st,
	}, nil
}

// Subscribe authenticates and persists a subscription packet. Channel 0
// subscriptions are refused regardless of authenticity, since channel 0 is
// always covered by the firmware-embedded bypass entry instead.
func (d *Decoder) Subscribe(body []byte) error {
	pkt, err := wire.ParseSubscriptionPacket(body)
	if err != nil {
		return sizeMismatch()
	}

	if pkt.Channel == 0 {
		return policy("Cannot subscribe to channel 0")
	}

	if !pkt.Authenticate(d.DeviceKey) {
		return authFailure("Authentication Failed")
	}

	if err := d.Store.Insert(pkt); err != nil {
		return resource(err.Error())
	}
	return nil
}

// Decode runs the full decode pipeline: locate a covering subscription (or
// the channel-0 bypass), unwrap the frame key, decrypt, enforce T*
// monotonicity, and verify the RSA signature. Only on complete success does
// it advance T*.
func (d *Decoder) Decode(body []byte, sigLen int) (wire.Frame, error) {
	pkt, err := wire.ParseFramePacket(body, sigLen)
	if err != nil {
		return wire.Frame{}, sizeMismatch()
	}

	key, maskIdx, err := d.keyForFrame(pkt.Channel, pkt.Timestamp)
	if err != nil {
		return wire.Frame{}, err
	}

	kf := pkt.UnwrapFrameKey(maskIdx, key)
	frame := pkt.DecryptFrame(kf)

	// Timestamp monotonicity is enforced against the (still unauthenticated)
	// plaintext header, matching the source decoder's ordering: a forged
	// timestamp can only ever cause a spurious rejection, never a replay,
	// because the signature check that follows still guards the frame.
	if d.hwmSet && pkt.Timestamp <= d.highWaterMark {
		return wire.Frame{}, policy("Frame is from the past")
	}

	if err := pkt.VerifySignature(d.VerifyingKey, frame); err != nil {
		return wire.Frame{}, authFailure("Frame validation failed")
	}

	d.highWaterMark = pkt.Timestamp
	d.hwmSet = true

	return frame, nil
}

// keyForFrame finds the first stored subscription (the seeded channel-0
// bypass entry included) covering (channel, t) and returns its bit-range
// key and mask index.
func (d *Decoder) keyForFrame(channel uint32, t uint64) (keys.Key, uint8, error) {
	subs, err := d.Store.Lookup(channel)
	if err != nil {
		return keys.Key{}, 0, resource(err.Error())
	}
	for _, sub := range subs {
		if sk, ok := sub.KeyForFrame(channel, t); ok {
			return sk.Key, sk.MaskIdx, nil
		}
	}
	return keys.Key{}, 0, policy("No subscription for frame")
}

// listEntry mirrors one (channel, start, end) tuple of a LIST response.
type listEntry struct {
	channel uint32
	start   uint64
	end     uint64
}

// List builds the body of a LIST response: a u32 count followed by, for
// each stored subscription, (channel: u32, start: u64, end: u64).
func (d *Decoder) List() ([]byte, error) {
	subs, err := d.Store.All()
	if err != nil {
		return nil, resource(err.Error())
	}

	entries := make([]listEntry, len(subs))
	for i, s := range subs {
		entries[i] = listEntry{channel: s.Channel, start: s.Start, end: s.End}
	}

	buf := make([]byte, 4+20*len(entries))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(entries)))
	off := 4
	for _, e := range entries {
		binary.LittleEndian.PutUint32(buf[off:off+4], e.channel)
		binary.LittleEndian.PutUint64(buf[off+4:off+12], e.start)
		binary.LittleEndian.PutUint64(buf[off+12:off+20], e.end)
		off += 20
	}
	return buf, nil
}
