package store

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/castv/castv/keys"
	"github.com/castv/castv/wire"
)

// magicSize is the width of the flash-header magic word.
const magicSize = 4

// recordAlignment is the byte alignment every record's end is padded to.
const recordAlignment = 16

func alignUp(n int64) int64 {
	return (n + recordAlignment - 1) &^ (recordAlignment - 1)
}

// flashMagic derives the 4-byte invalidation word from a deployment secret:
// the first 4 bytes of SHA-256(S). Rotating the secret therefore rotates the
// magic word, and any store built under the old secret is treated as blank
// on next boot.
func flashMagic(secret keys.Secret) [magicSize]byte {
	sum := sha256.Sum256(secret.Bytes)
	var m [magicSize]byte
	copy(m[:], sum[:magicSize])
	return m
}

// Entry is a subscription record read back out of the store: its parsed
// packet, plus the byte offset of its length prefix (used as a stable handle
// into the channel index).
type Entry struct {
	Offset int64
	Packet *wire.SubscriptionPacket
}

// Store is the decoder's flash-resident subscription log: a magic word
// followed by a sequence of length-prefixed, 16-byte-aligned
// SubscriptionPacket records, plus an in-RAM channelIndex rebuilt from the
// log at Open time.
type Store struct {
	arena Arena
	magic [magicSize]byte
	index *channelIndex
	next  int64
	count int
}

// Open scans arena for a valid magic word. If the word is missing or does
// not match the current secret (i.e. the secret was rotated since this
// arena was last written), the arena is wiped and reinitialized empty.
// Otherwise every record is parsed and indexed.
func Open(arena Arena, secret keys.Secret) (*Store, error) {
	want := flashMagic(secret)

	s := &Store{arena: arena, magic: want}

	var got [magicSize]byte
	n, err := arena.ReadAt(got[:], 0)
	valid := err == nil && n == magicSize && got == want

	if !valid {
		if err := arena.Truncate(); err != nil {
			return nil, fmt.Errorf("store: invalidate arena: %w", err)
		}
		if _, err := arena.WriteAt(want[:], 0); err != nil {
			return nil, fmt.Errorf("store: write magic: %w", err)
		}
	}

	var siphashKey [16]byte
	copy(siphashKey[:], secret.Bytes)
	s.index = newChannelIndex(siphashKey)

	if err := s.scan(); err != nil {
		return nil, err
	}
	return s, nil
}

// scan rebuilds the in-RAM channel index by walking every record from just
// past the magic word to end of arena.
func (s *Store) scan() error {
	s.index.reset()
	s.count = 0

	offset := int64(magicSize)
	for {
		var lenBuf [4]byte
		n, err := s.arena.ReadAt(lenBuf[:], offset)
		if err != nil || n < 4 {
			break
		}
		length := binary.LittleEndian.Uint32(lenBuf[:])
		if length == 0 {
			break
		}

		dataStart := offset + 4
		data := make([]byte, length)
		n, err = s.arena.ReadAt(data, dataStart)
		if err != nil || n != int(length) {
			break
		}

		pkt, err := wire.ParseSubscriptionPacket(data)
		if err != nil {
			return fmt.Errorf("store: corrupt record at offset %d: %w", offset, err)
		}

		s.index.add(pkt.Channel, offset)
		s.count++

		offset = alignUp(dataStart + int64(length))
	}
	s.next = offset
	return nil
}

// Seed inserts pkt only if no record for pkt.Channel already exists — used
// at boot to install the firmware-embedded channel-0 bypass subscription
// into the log without duplicating it across restarts within the same
// secret epoch (a secret rotation wipes the log entirely, at which point
// Seed runs again against an empty index).
func (s *Store) Seed(pkt *wire.SubscriptionPacket) error {
	existing, err := s.Lookup(pkt.Channel)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	return s.Insert(pkt)
}

// Insert appends a subscription record to the log and indexes it by
// channel. The packet MUST already be authenticated (its Keys decrypted)
// before storage, matching the decoder's push-after-auth flow.
func (s *Store) Insert(pkt *wire.SubscriptionPacket) error {
	data := pkt.Marshal()

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))

	offset := s.next
	if _, err := s.arena.WriteAt(lenBuf[:], offset); err != nil {
		return fmt.Errorf("store: write record length: %w", err)
	}
	if _, err := s.arena.WriteAt(data, offset+4); err != nil {
		return fmt.Errorf("store: write record data: %w", err)
	}

	s.index.add(pkt.Channel, offset)
	s.count++
	s.next = alignUp(offset + 4 + int64(len(data)))
	return nil
}

// Lookup returns every stored subscription for channel, most recently
// inserted last.
func (s *Store) Lookup(channel uint32) ([]*wire.SubscriptionPacket, error) {
	offsets := s.index.offsets(channel)
	out := make([]*wire.SubscriptionPacket, 0, len(offsets))
	for _, off := range offsets {
		pkt, err := s.readAt(off)
		if err != nil {
			return nil, err
		}
		if pkt.Channel != channel {
			// SipHash bucket collision across distinct channels; skip.
			continue
		}
		out = append(out, pkt)
	}
	return out, nil
}

// All returns every stored subscription, in log order — the data backing
// the decoder's LIST response.
func (s *Store) All() ([]*wire.SubscriptionPacket, error) {
	offset := int64(magicSize)
	var out []*wire.SubscriptionPacket
	for offset < s.next {
		var lenBuf [4]byte
		if _, err := s.arena.ReadAt(lenBuf[:], offset); err != nil {
			return nil, err
		}
		length := binary.LittleEndian.Uint32(lenBuf[:])
		if length == 0 {
			break
		}
		pkt, err := s.readAt(offset)
		if err != nil {
			return nil, err
		}
		out = append(out, pkt)
		offset = alignUp(offset + 4 + int64(length))
	}
	return out, nil
}

func (s *Store) readAt(offset int64) (*wire.SubscriptionPacket, error) {
	var lenBuf [4]byte
	if _, err := s.arena.ReadAt(lenBuf[:], offset); err != nil {
		return nil, err
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	data := make([]byte, length)
	if _, err := s.arena.ReadAt(data, offset+4); err != nil {
		return nil, err
	}
	return wire.ParseSubscriptionPacket(data)
}

// Count returns the number of subscriptions currently in the log.
func (s *Store) Count() int {
	return s.count
}
