package webhookutils

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flip(s string, i int) string {
	b := []byte(s)
	if b[i] == 'a' {
		b[i] = 'b'
	} else {
		b[i] = 'a'
	}
	return string(b)
}

func TestVerifyAcceptsOwnSignature(t *testing.T) {
	secret := "s3cr3t"
	nonce := "0123456789abcdef"
	body := `{"type":"Create","object":{"content":"hallo"}}`

	sig := Sign(secret, nonce, body)
	assert.True(t, Verify(secret, nonce, []byte(body), sig))
	assert.True(t, Verify(secret, nonce, []byte(body), strings.ToUpper(sig)), "hex comparison is case-insensitive")
}

func TestVerifyRejectsSingleCharacterChanges(t *testing.T) {
	secret := "s3cr3t"
	nonce := "0123456789abcdef"
	body := `{"type":"Create","object":{"content":"hallo"}}`
	sig := Sign(secret, nonce, body)

	for i := range body {
		assert.False(t, Verify(secret, nonce, []byte(flip(body, i)), sig), "body changed at %d", i)
	}
	for i := range nonce {
		assert.False(t, Verify(secret, flip(nonce, i), []byte(body), sig), "nonce changed at %d", i)
	}
	for i := range sig {
		assert.False(t, Verify(secret, nonce, []byte(body), flip(sig, i)), "signature changed at %d", i)
	}
}

func TestVerifyEmptySecret(t *testing.T) {
	sig := Sign("", "n", "b")
	assert.False(t, Verify("", "n", []byte("b"), sig))
}

func TestVerifyMissingSignature(t *testing.T) {
	assert.False(t, Verify("secret", "n", []byte("b"), ""))
}

func TestNewNonce(t *testing.T) {
	a, err := NewNonce()
	require.NoError(t, err)
	b, err := NewNonce()
	require.NoError(t, err)

	assert.Len(t, a, NonceSize*2)
	assert.NotEqual(t, a, b)
}

func TestTalkSignature(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderRandom, " abc ")
	h.Set(HeaderSignature, "def")

	nonce, sig := TalkSignature(h)
	assert.Equal(t, "abc", nonce)
	assert.Equal(t, "def", sig)

	raw := http.Header{"x-nextcloud-talk-random": []string{"lower"}}
	nonce, sig = TalkSignature(raw)
	assert.Equal(t, "lower", nonce)
	assert.Empty(t, sig)
}
