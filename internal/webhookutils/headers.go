package webhookutils

import (
	"net/http"
	"strings"
)

// Header names used by Nextcloud Talk bots.
const (
	HeaderSignature    = "X-Nextcloud-Talk-Signature"
	HeaderRandom       = "X-Nextcloud-Talk-Random"
	HeaderBotSignature = "X-Nextcloud-Talk-Bot-Signature"
	HeaderBotRandom    = "X-Nextcloud-Talk-Bot-Random"
	HeaderOCSRequest   = "OCS-APIRequest"
)

// TalkSignature extracts the nonce and signature sent with an inbound Talk webhook.
// Missing headers come back as empty strings, which never verify.
func TalkSignature(h http.Header) (nonce, signature string) {
	nonce, _ = GetHeaderCaseInsensitive(h, HeaderRandom)
	signature, _ = GetHeaderCaseInsensitive(h, HeaderSignature)
	return strings.TrimSpace(nonce), strings.TrimSpace(signature)
}

// GetHeaderCaseInsensitive retrieves a header value using case-insensitive key matching.
// Proxies in front of Nextcloud have been seen to forward headers in non-canonical form
// into maps that bypass http.Header canonicalization.
func GetHeaderCaseInsensitive(headers http.Header, key string) (string, bool) {
	if v := headers.Get(key); v != "" {
		return v, true
	}
	for k, vals := range headers {
		if strings.EqualFold(k, key) && len(vals) > 0 {
			return vals[0], true
		}
	}
	return "", false
}
