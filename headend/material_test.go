package headend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/castv/castv/mask"
	"github.com/castv/castv/wire"
)

func TestGenerateMaterialMarshalRoundTrip(t *testing.T) {
	m, err := GenerateMaterial(nil, nil)
	require.NoError(t, err)

	blob := m.Marshal()
	loaded, err := LoadMaterial(blob)
	require.NoError(t, err)

	require.Equal(t, m.Secret.Bytes, loaded.Secret.Bytes)
	require.Equal(t, m.Priv.D, loaded.Priv.D)
	require.Equal(t, m.Priv.N, loaded.Priv.N)
}

func TestChannel0SubscriptionIsSelfAuthenticating(t *testing.T) {
	m, err := GenerateMaterial(nil, nil)
	require.NoError(t, err)

	sub := m.Channel0Subscription(42)
	require.True(t, sub.Authenticate(m.Secret.DeviceKey(42)))
	require.True(t, sub.Contains(0, 0))
	require.True(t, sub.Contains(0, ^uint64(0)))
}

func TestEncodeFrameThenDecryptAndVerify(t *testing.T) {
	m, err := GenerateMaterial(nil, nil)
	require.NoError(t, err)

	var frame wire.Frame
	copy(frame[:], "headend integration test frame")

	pkt, err := m.EncodeFrame(frame, 7, 3)
	require.NoError(t, err)

	data := pkt.Marshal()
	parsed, err := wire.ParseFramePacket(data, len(pkt.Signature))
	require.NoError(t, err)
	require.Equal(t, pkt.Channel, parsed.Channel)
	require.Equal(t, pkt.Timestamp, parsed.Timestamp)

	kbr := m.Secret.BitRangeKey(mask.AlignDown(parsed.Timestamp, 0), 0, parsed.Channel)
	got := parsed.DecryptFrame(parsed.UnwrapFrameKey(0, kbr))
	require.Equal(t, frame, got)
	require.NoError(t, parsed.VerifySignature(&m.Priv.PublicKey, got))
}
