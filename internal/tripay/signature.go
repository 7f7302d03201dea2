package tripay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// signatureHeaders lists accepted header names, newest first. Tripay has
// shipped both over time and merchants still see either from older
// environments.
var signatureHeaders = []string{
	"X-Callback-Signature",
	"X-Tripay-Signature",
}

// SignatureFromHeader returns the first non-empty signature header value.
func SignatureFromHeader(h http.Header) string {
	for _, name := range signatureHeaders {
		if v := strings.TrimSpace(h.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

// Sign computes the hex-encoded HMAC-SHA256 of body under key.
func Sign(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a supplied hex signature against the HMAC-SHA256 of
// the exact raw request bytes. It fails closed: an empty key or empty
// signature never verifies. Hex decoding makes the comparison
// case-insensitive and hmac.Equal keeps it constant-time.
func VerifySignature(key string, body []byte, supplied string) bool {
	if key == "" || supplied == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(supplied))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
