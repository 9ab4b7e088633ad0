package store

import (
	"testing"

	"github.com/castv/castv/keys"
	"github.com/castv/castv/wire"
	"github.com/stretchr/testify/require"
)

func testSecret() keys.Secret {
	return keys.Secret{Bytes: []byte("0123456789abcdef0123456789abcdef")}
}

func authenticatedSubscription(t *testing.T, secret keys.Secret, start, end uint64, channel, deviceID uint32) *wire.SubscriptionPacket {
	t.Helper()
	sub := wire.GenerateSubscription(secret, start, end, channel, deviceID)
	require.True(t, sub.Authenticate(secret.DeviceKey(deviceID)))
	return sub
}

func TestOpenInitializesBlankArena(t *testing.T) {
	secret := testSecret()
	arena := NewMemArena(1 << 16)

	s, err := Open(arena, secret)
	require.NoError(t, err)
	require.Equal(t, 0, s.Count())

	var magic [magicSize]byte
	_, err = arena.ReadAt(magic[:], 0)
	require.NoError(t, err)
	require.Equal(t, flashMagic(secret), magic)
}

func TestInsertAndLookupRoundTrip(t *testing.T) {
	secret := testSecret()
	arena := NewMemArena(1 << 16)
	s, err := Open(arena, secret)
	require.NoError(t, err)

	sub := authenticatedSubscription(t, secret, 100, 200, 5, 1)
	require.NoError(t, s.Insert(sub))
	require.Equal(t, 1, s.Count())

	found, err := s.Lookup(5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, sub.Start, found[0].Start)
	require.Equal(t, sub.End, found[0].End)
	require.Equal(t, sub.Channel, found[0].Channel)

	none, err := s.Lookup(6)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestScanRebuildsIndexAcrossReopen(t *testing.T) {
	secret := testSecret()
	arena := NewMemArena(1 << 16)
	s, err := Open(arena, secret)
	require.NoError(t, err)

	s1 := authenticatedSubscription(t, secret, 0, 99, 1, 1)
	s2 := authenticatedSubscription(t, secret, 100, 199, 2, 1)
	require.NoError(t, s.Insert(s1))
	require.NoError(t, s.Insert(s2))

	reopened, err := Open(arena, secret)
	require.NoError(t, err)
	require.Equal(t, 2, reopened.Count())

	found, err := reopened.Lookup(2)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, uint64(100), found[0].Start)
}

func TestSecretRotationInvalidatesStore(t *testing.T) {
	secret := testSecret()
	arena := NewMemArena(1 << 16)
	s, err := Open(arena, secret)
	require.NoError(t, err)

	sub := authenticatedSubscription(t, secret, 0, 10, 1, 1)
	require.NoError(t, s.Insert(sub))
	require.Equal(t, 1, s.Count())

	rotated := keys.Secret{Bytes: []byte("fedcba9876543210fedcba9876543210")}
	reopened, err := Open(arena, rotated)
	require.NoError(t, err)
	require.Equal(t, 0, reopened.Count())
}

func TestAllReturnsEveryRecordInOrder(t *testing.T) {
	secret := testSecret()
	arena := NewMemArena(1 << 16)
	s, err := Open(arena, secret)
	require.NoError(t, err)

	for i, ch := range []uint32{1, 2, 3} {
		sub := authenticatedSubscription(t, secret, uint64(i*10), uint64(i*10+5), ch, 1)
		require.NoError(t, s.Insert(sub))
	}

	all, err := s.All()
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, uint32(1), all[0].Channel)
	require.Equal(t, uint32(2), all[1].Channel)
	require.Equal(t, uint32(3), all[2].Channel)
}
