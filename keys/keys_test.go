package keys

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSecret() Secret {
	return Secret{Bytes: bytes.Repeat([]byte{0x01}, 32)}
}

func TestDerivationIsDeterministic(t *testing.T) {
	s := testSecret()
	require.Equal(t, s.DeviceKey(42), s.DeviceKey(42))
	require.Equal(t, s.BitRangeKey(100, 2, 1), s.BitRangeKey(100, 2, 1))
	require.Equal(t, s.FrameKey(12, 1), s.FrameKey(12, 1))
}

func TestDerivationIsContextSensitive(t *testing.T) {
	s := testSecret()
	require.NotEqual(t, s.DeviceKey(1), s.DeviceKey(2))
	require.NotEqual(t, s.BitRangeKey(100, 2, 1), s.BitRangeKey(100, 3, 1))
	require.NotEqual(t, s.BitRangeKey(100, 2, 1), s.BitRangeKey(100, 2, 2))
	require.NotEqual(t, s.FrameKey(12, 1), s.FrameKey(13, 1))
	require.NotEqual(t, s.FrameKey(12, 1), s.DeviceKey(12))
}

func TestSecretChangesEveryDerivation(t *testing.T) {
	s1 := Secret{Bytes: bytes.Repeat([]byte{0x01}, 32)}
	s2 := Secret{Bytes: bytes.Repeat([]byte{0x02}, 32)}
	require.NotEqual(t, s1.DeviceKey(1), s2.DeviceKey(1))
}

func TestCipherRoundTrip(t *testing.T) {
	s := testSecret()
	k := s.FrameKey(1, 1)
	c := CipherFrom(k)

	data := bytes.Repeat([]byte{'A'}, 64)
	orig := append([]byte(nil), data...)

	c.EncryptBlocks(data)
	require.NotEqual(t, orig, data)

	c.DecryptBlocks(data)
	require.Equal(t, orig, data)
}

func TestCipherPanicsOnMisalignedInput(t *testing.T) {
	s := testSecret()
	c := CipherFrom(s.FrameKey(1, 1))
	require.Panics(t, func() { c.EncryptBlocks(make([]byte, 15)) })
}
