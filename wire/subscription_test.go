package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castv/castv/mask"
)

func TestGenerateAuthenticateSubscriptionRoundTrip(t *testing.T) {
	secret := testSecret()
	const deviceID = uint32(7)

	sub := GenerateSubscription(secret, 100, 500, 3, deviceID)
	require.NotEmpty(t, sub.Keys)

	raw := sub.Marshal()
	got, err := ParseSubscriptionPacket(raw)
	require.NoError(t, err)
	require.Equal(t, sub.Start, got.Start)
	require.Equal(t, sub.End, got.End)
	require.Equal(t, sub.Channel, got.Channel)
	require.Equal(t, sub.MAC, got.MAC)
	require.Equal(t, sub.Keys, got.Keys)

	devKey := secret.DeviceKey(deviceID)
	require.True(t, got.Authenticate(devKey))

	// After authentication, keys are plaintext bit-range keys matching what
	// the headend derived directly.
	want := secret.BitRangeKey(got.Start, got.Keys[0].MaskIdx, got.Channel)
	require.Equal(t, want, got.Keys[0].Key)
}

func TestAuthenticateRejectsWrongDeviceKey(t *testing.T) {
	secret := testSecret()
	sub := GenerateSubscription(secret, 0, 1, 1, 1)

	wrongDevKey := secret.DeviceKey(2)
	require.False(t, sub.Authenticate(wrongDevKey))
}

func TestAuthenticateRejectsTamperedMAC(t *testing.T) {
	secret := testSecret()
	sub := GenerateSubscription(secret, 0, 1, 1, 1)
	sub.MAC[0] ^= 0xFF

	devKey := secret.DeviceKey(1)
	require.False(t, sub.Authenticate(devKey))
}

func TestParseSubscriptionPacketRejectsBadLength(t *testing.T) {
	_, err := ParseSubscriptionPacket(make([]byte, subHeaderWireSize+3))
	require.Error(t, err)
	var lenErr InvalidSubscriptionLengthError
	require.ErrorAs(t, err, &lenErr)

	_, err = ParseSubscriptionPacket(make([]byte, subHeaderWireSize-1))
	require.Error(t, err)
}

func TestContainsBounds(t *testing.T) {
	secret := testSecret()
	sub := GenerateSubscription(secret, 100, 200, 5, 1)

	require.True(t, sub.Contains(5, 100))
	require.True(t, sub.Contains(5, 200))
	require.False(t, sub.Contains(5, 99))
	require.False(t, sub.Contains(5, 201))
	require.False(t, sub.Contains(6, 150))
}

func TestKeyForFrameFindsCoveringBlock(t *testing.T) {
	secret := testSecret()
	const deviceID = uint32(1)
	sub := GenerateSubscription(secret, 0, 999, 9, deviceID)
	require.True(t, sub.Authenticate(secret.DeviceKey(deviceID)))

	for _, tAt := range []uint64{0, 1, 500, 999} {
		k, ok := sub.KeyForFrame(9, tAt)
		require.True(t, ok, "t=%d", tAt)
		require.Equal(t, secret.BitRangeKey(mask.AlignDown(tAt, k.MaskIdx), k.MaskIdx, 9), k.Key)
	}

	_, ok := sub.KeyForFrame(9, 1000)
	require.False(t, ok)
	_, ok = sub.KeyForFrame(10, 500)
	require.False(t, ok)
}
