package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayload returns the lowercase hex HMAC-SHA256 of the exact bytes that
// are sent. An empty secret means the tenant does not sign, and "" is returned.
func SignPayload(payload []byte, secret string) string {
	if secret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against payload in constant time.
func VerifySignature(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expected))
}
