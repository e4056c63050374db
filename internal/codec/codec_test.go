package codec

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New("test-secret", "test-salt")
	require.NoError(t, err)
	return c
}

func TestSealOpenRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	for _, raw := range []string{"0", "10", "-3.5", "0.01", "123456789.987654321", "-0.0001"} {
		amount := decimal.RequireFromString(raw)
		sealed, err := c.Seal(amount)
		require.NoError(t, err)

		opened, err := c.Open(sealed)
		require.NoError(t, err)
		require.True(t, opened.Equal(amount), "want %s got %s", amount, opened)
	}
}

func TestSealUsesFreshNonces(t *testing.T) {
	c := newTestCodec(t)

	const calls = 10_000
	seen := make(map[string]struct{}, calls)
	for i := 0; i < calls; i++ {
		sealed, err := c.Seal(decimal.NewFromInt(42))
		require.NoError(t, err)
		seen[Nonce(sealed)] = struct{}{}
	}
	require.Len(t, seen, calls)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	c := newTestCodec(t)
	sealed, err := c.Seal(decimal.NewFromInt(100))
	require.NoError(t, err)

	parts := strings.Split(sealed, ":")
	last := []byte(parts[2])
	if last[0] == '0' {
		last[0] = '1'
	} else {
		last[0] = '0'
	}
	parts[2] = string(last)

	_, err = c.Open(strings.Join(parts, ":"))
	require.True(t, errors.Is(err, ErrIntegrity), "got %v", err)
}

func TestOpenRejectsForeignKey(t *testing.T) {
	sealed, err := newTestCodec(t).Seal(decimal.NewFromInt(7))
	require.NoError(t, err)

	other, err := New("another-secret", "test-salt")
	require.NoError(t, err)
	_, err = other.Open(sealed)
	require.ErrorIs(t, err, ErrIntegrity)
}

func TestOpenRejectsPlainNumbers(t *testing.T) {
	c := newTestCodec(t)

	for _, input := range []string{"", "100", "12.5", "a:b", "zz:zz:zz", "00:00:00"} {
		_, err := c.Open(input)
		require.ErrorIs(t, err, ErrFormat, "input %q", input)
	}
}

func TestOpenRejectsNonDecimalPlaintext(t *testing.T) {
	key := bytes.Repeat([]byte{7}, keyLength)
	c, err := newWithKey(key, bytes.NewReader(bytes.Repeat([]byte{1}, nonceLength)))
	require.NoError(t, err)

	nonce := bytes.Repeat([]byte{1}, nonceLength)
	sealed := c.aead.Seal(nil, nonce, []byte("not-a-number"), nil)
	ct, tag := sealed[:len(sealed)-tagLength], sealed[len(sealed)-tagLength:]
	encoded := strings.Join([]string{hex.EncodeToString(nonce), hex.EncodeToString(tag), hex.EncodeToString(ct)}, ":")

	_, err = c.Open(encoded)
	require.ErrorIs(t, err, ErrFormat)
}

func TestNewRequiresSecretAndSalt(t *testing.T) {
	_, err := New("", "salt")
	require.Error(t, err)
	_, err = New("secret", "")
	require.Error(t, err)
}
