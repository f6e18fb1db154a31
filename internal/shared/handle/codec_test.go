package handle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef" // 32 bytes

func TestNewCodec_KeyLength(t *testing.T) {
	_, err := NewCodec("short")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewCodec("")
	assert.ErrorIs(t, err, ErrInvalidKey)

	c, err := NewCodec(testKey)
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestEncodeDecode_Roundtrip(t *testing.T) {
	c, err := NewCodec(testKey)
	require.NoError(t, err)

	ids := []string{
		"BxBXxLj1m4HMXBm9WZZmCWVbPjX16EHwv99vp",
		"a",
		"account-with-dashes_and_underscores.123",
		strings.Repeat("x", 200),
	}

	for _, id := range ids {
		h, err := c.Encode(id)
		require.NoError(t, err, "Encode(%q)", id)
		assert.NotContains(t, h, id, "handle must not reveal the raw identifier")

		got, err := c.Decode(h)
		require.NoError(t, err, "Decode(Encode(%q))", id)
		assert.Equal(t, id, got)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	c, _ := NewCodec(testKey)

	h1, err := c.Encode("acct-123")
	require.NoError(t, err)
	h2, err := c.Encode("acct-123")
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "same identifier must always produce the same handle")

	other, err := c.Encode("acct-124")
	require.NoError(t, err)
	assert.NotEqual(t, h1, other, "distinct identifiers must not collide")
}

func TestEncode_EmptyID(t *testing.T) {
	c, _ := NewCodec(testKey)
	_, err := c.Encode("")
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestDecode_RejectsInvalidHandles(t *testing.T) {
	c, _ := NewCodec(testKey)

	valid, err := c.Encode("acct-999")
	require.NoError(t, err)

	tests := []struct {
		name   string
		handle string
	}{
		{"empty", ""},
		{"not base64url", "!!!not-base64!!!"},
		{"too short", "YWJj"},
		{"tampered", valid[:len(valid)-2] + "zz"},
		{"truncated", valid[:len(valid)/2]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.handle)
			assert.ErrorIs(t, err, ErrInvalidHandle)
		})
	}
}

func TestDecode_WrongKeyFails(t *testing.T) {
	c1, _ := NewCodec(testKey)
	c2, _ := NewCodec("ffffffffffffffffffffffffffffffff")

	h, err := c1.Encode("acct-777")
	require.NoError(t, err)

	_, err = c2.Decode(h)
	assert.ErrorIs(t, err, ErrInvalidHandle, "a handle minted under another key must not decode")
}
