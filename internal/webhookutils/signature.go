package webhookutils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// NonceSize is the number of random bytes in an outbound nonce before hex encoding.
const NonceSize = 32

// Verify reports whether signature is the HMAC-SHA256 of nonce+body keyed by secret.
// An empty secret never verifies.
func Verify(secret, nonce string, body []byte, signature string) bool {
	if secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(nonce))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) == 1
}

// Sign returns the hex HMAC-SHA256 of nonce+message keyed by secret.
// Outbound bot messages are signed over the message text, not the request body.
func Sign(secret, nonce, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(nonce))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewNonce returns a fresh hex-encoded random nonce.
func NewNonce() (string, error) {
	buf := make([]byte, NonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
