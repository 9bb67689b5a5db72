package keys

import (
	"bytes"
	"encoding/base64"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 0; n <= 256; n++ {
		b := make([]byte, n)
		rng.Read(b)

		got, err := DecodeKey(base64.RawURLEncoding.EncodeToString(b))
		require.NoError(t, err, "length %d", n)
		if n == 0 {
			assert.Empty(t, got)
			continue
		}
		assert.True(t, bytes.Equal(b, got), "length %d", n)
	}
}

func TestDecodeEncodedKey(t *testing.T) {
	// The two production key shapes: 65-byte p256dh point, 16-byte auth secret.
	for _, n := range []int{65, 16} {
		b := make([]byte, n)
		rand.New(rand.NewSource(int64(n))).Read(b)

		got, err := DecodeKey(EncodeKey(b))
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
}

func TestDecodeMissingPadding(t *testing.T) {
	got, err := DecodeKey("aGVsbG8") // "hello" without its '=' padding
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestDecodeURLSafeAlphabet(t *testing.T) {
	raw := []byte{0xfb, 0xef, 0xff} // encodes to "++//" std, "--__" url-safe
	got, err := DecodeKey("--__")
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, in := range []string{"ab*d", "a b c", "ab!=", "é"} {
		_, err := DecodeKey(in)
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, ErrMalformedKeyMaterial), "input %q", in)
	}
}
