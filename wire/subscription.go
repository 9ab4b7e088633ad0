package wire

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/castv/castv/keys"
	"github.com/castv/castv/mask"
)

// subKeyWireSize is the wire size of one {mask_idx: u8, key: u8[16]} entry.
const subKeyWireSize = 1 + keys.Size

// subHeaderWireSize is the wire size of the fixed subscription header:
// start_ts(8) || end_ts(8) || channel(4) || mac(32).
const subHeaderWireSize = 8 + 8 + 4 + 32

// SubKey is one mask-indexed key entry of a subscription. Key holds whatever
// is currently in that slot: plaintext while the headend is still computing
// the MAC, ciphertext (under K_dev) on the wire and in storage.
type SubKey struct {
	MaskIdx uint8
	Key     keys.Key
}

// SubscriptionPacket is the wire and stored layout of a subscription:
//
//	start_ts:  u64
//	end_ts:    u64
//	channel:   u32
//	mac:       u8[32]
//	keys:      { mask_idx: u8, key: u8[16] }[N]
type SubscriptionPacket struct {
	Start   uint64
	End     uint64
	Channel uint32
	MAC     [32]byte
	Keys    []SubKey
}

// InvalidSubscriptionLengthError is returned when a received/stored buffer
// cannot be a well-formed subscription packet (too short, or a trailing
// partial key entry).
type InvalidSubscriptionLengthError int

func (e InvalidSubscriptionLengthError) Error() string {
	return fmt.Sprintf("wire: invalid subscription packet length: %d", int(e))
}

func macHash(start, end uint64, channel uint32, plainKeys []SubKey) [32]byte {
	h := sha256.New()
	var hdr [8 + 8 + 4]byte
	binary.LittleEndian.PutUint64(hdr[0:8], start)
	binary.LittleEndian.PutUint64(hdr[8:16], end)
	binary.LittleEndian.PutUint32(hdr[16:20], channel)
	h.Write(hdr[:])
	for _, k := range plainKeys {
		h.Write([]byte{k.MaskIdx})
		h.Write(k.Key[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// GenerateSubscription is the headend issuance operation: decompose
// [start,end], derive a bit-range key per block, hash the plaintext key
// material into mac, then wrap every key under K_dev(deviceID).
func GenerateSubscription(secret keys.Secret, start, end uint64, channel, deviceID uint32) *SubscriptionPacket {
	blocks := mask.Decompose(start, end)

	plainKeys := make([]SubKey, len(blocks))
	for i, b := range blocks {
		plainKeys[i] = SubKey{
			MaskIdx: b.MaskIdx,
			Key:     secret.BitRangeKey(b.Start, b.MaskIdx, channel),
		}
	}

	mac := macHash(start, end, channel, plainKeys)

	devCipher := keys.CipherFrom(secret.DeviceKey(deviceID))
	wireKeys := make([]SubKey, len(plainKeys))
	for i, k := range plainKeys {
		wk := k
		devCipher.EncryptBlocks(wk.Key[:])
		wireKeys[i] = wk
	}

	return &SubscriptionPacket{
		Start:   start,
		End:     end,
		Channel: channel,
		MAC:     mac,
		Keys:    wireKeys,
	}
}

// Marshal serializes the packet to its packed little-endian wire/storage
// representation.
func (p *SubscriptionPacket) Marshal() []byte {
	buf := make([]byte, subHeaderWireSize+subKeyWireSize*len(p.Keys))
	binary.LittleEndian.PutUint64(buf[0:8], p.Start)
	binary.LittleEndian.PutUint64(buf[8:16], p.End)
	binary.LittleEndian.PutUint32(buf[16:20], p.Channel)
	copy(buf[20:52], p.MAC[:])

	off := subHeaderWireSize
	for _, k := range p.Keys {
		buf[off] = k.MaskIdx
		copy(buf[off+1:off+1+keys.Size], k.Key[:])
		off += subKeyWireSize
	}
	return buf
}

// ParseSubscriptionPacket parses a subscription buffer (received over the
// wire, or read back out of the flash-resident store).
func ParseSubscriptionPacket(data []byte) (*SubscriptionPacket, error) {
	if len(data) < subHeaderWireSize {
		return nil, InvalidSubscriptionLengthError(len(data))
	}
	rem := len(data) - subHeaderWireSize
	if rem%subKeyWireSize != 0 {
		return nil, InvalidSubscriptionLengthError(len(data))
	}

	p := &SubscriptionPacket{
		Start:   binary.LittleEndian.Uint64(data[0:8]),
		End:     binary.LittleEndian.Uint64(data[8:16]),
		Channel: binary.LittleEndian.Uint32(data[16:20]),
	}
	copy(p.MAC[:], data[20:52])

	n := rem / subKeyWireSize
	p.Keys = make([]SubKey, n)
	off := subHeaderWireSize
	for i := 0; i < n; i++ {
		p.Keys[i].MaskIdx = data[off]
		copy(p.Keys[i].Key[:], data[off+1:off+1+keys.Size])
		off += subKeyWireSize
	}
	return p, nil
}

// Authenticate decrypts each key in place under deviceKey and checks the
// recomputed MAC against p.MAC. On success, p.Keys holds plaintext bit-range
// keys from then on. On failure, p is left untouched and the caller MUST
// NOT store it.
func (p *SubscriptionPacket) Authenticate(deviceKey keys.Key) bool {
	plain := make([]SubKey, len(p.Keys))
	cipherCtx := keys.CipherFrom(deviceKey)
	for i, k := range p.Keys {
		pk := k
		cipherCtx.DecryptBlocks(pk.Key[:])
		plain[i] = pk
	}

	mac := macHash(p.Start, p.End, p.Channel, plain)
	if subtle.ConstantTimeCompare(mac[:], p.MAC[:]) != 1 {
		return false
	}

	p.Keys = plain
	return true
}

// Contains reports whether the subscription covers channel/timestamp t.
func (p *SubscriptionPacket) Contains(channel uint32, t uint64) bool {
	return p.Channel == channel && p.Start <= t && t <= p.End
}

// KeyForFrame walks the subscription's key list positionally alongside
// decompose(start,end) and returns the first key whose block covers t.
// p.Keys MUST already hold plaintext keys (i.e. Authenticate has succeeded,
// or this is the firmware-embedded channel-0 subscription).
func (p *SubscriptionPacket) KeyForFrame(channel uint32, t uint64) (SubKey, bool) {
	if !p.Contains(channel, t) {
		return SubKey{}, false
	}

	start := p.Start
	for _, k := range p.Keys {
		if mask.Contains(start, k.MaskIdx, t) {
			return k, true
		}
		start += uint64(1) << mask.Table[k.MaskIdx]
	}
	return SubKey{}, false
}
