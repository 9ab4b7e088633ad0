package store

import (
	"encoding/binary"
	"sync"

	"github.com/dchest/siphash"
)

// channelIndex buckets subscription record offsets by channel, so Lookup
// does not need to linearly rescan every stored subscription per decoded
// frame. It uses the same SipHash-2-4-keyed map/bucket shape as a
// connection-replay filter, applied here to channel membership instead, with
// no time-based eviction since subscriptions are never purged on their own
// (only a secret rotation wipes the whole index, via reset).
type channelIndex struct {
	mu      sync.Mutex
	key     [2]uint64
	buckets map[uint64][]int64
}

func newChannelIndex(key [16]byte) *channelIndex {
	return &channelIndex{
		key:     [2]uint64{binary.BigEndian.Uint64(key[0:8]), binary.BigEndian.Uint64(key[8:16])},
		buckets: make(map[uint64][]int64),
	}
}

func (c *channelIndex) bucketHash(channel uint32) uint64 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], channel)
	return siphash.Hash(c.key[0], c.key[1], buf[:])
}

// add records that a subscription for channel starts at recordOffset.
func (c *channelIndex) add(channel uint32, recordOffset int64) {
	h := c.bucketHash(channel)
	c.mu.Lock()
	c.buckets[h] = append(c.buckets[h], recordOffset)
	c.mu.Unlock()
}

// offsets returns every recorded offset for channel, in insertion order.
func (c *channelIndex) offsets(channel uint32) []int64 {
	h := c.bucketHash(channel)
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, len(c.buckets[h]))
	copy(out, c.buckets[h])
	return out
}

// reset discards every indexed offset, used when the backing log itself is
// invalidated and rebuilt.
func (c *channelIndex) reset() {
	c.mu.Lock()
	c.buckets = make(map[uint64][]int64)
	c.mu.Unlock()
}
