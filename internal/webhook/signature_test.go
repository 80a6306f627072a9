package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignPayload(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		payload  []byte
		expected string
	}{
		{
			name:     "rfc 4231 style vector",
			secret:   "key",
			payload:  []byte("The quick brown fox jumps over the lazy dog"),
			expected: "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		},
		{
			name:    "empty secret does not sign",
			secret:  "",
			payload: []byte(`{"event":"lead.qualified"}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SignPayload(tt.payload, tt.secret))
		})
	}
}

func TestSignPayload_Properties(t *testing.T) {
	payload := []byte(`{"event":"lead.qualified","data":{"score":85}}`)

	sig := SignPayload(payload, "s3cr3t")
	assert.Len(t, sig, 64)
	assert.Regexp(t, `^[0-9a-f]{64}$`, sig)
	assert.Equal(t, sig, SignPayload(payload, "s3cr3t"))

	assert.NotEqual(t, sig, SignPayload([]byte(`{"event":"lead.qualified","data":{"score":86}}`), "s3cr3t"))
	assert.NotEqual(t, sig, SignPayload(payload, "other"))
}

func TestVerifySignature(t *testing.T) {
	secret := "test-secret"
	payload := []byte(`{"test":"data"}`)
	validSignature := SignPayload(payload, secret)

	tests := []struct {
		name      string
		secret    string
		payload   []byte
		signature string
		expected  bool
	}{
		{
			name:      "valid signature",
			secret:    secret,
			payload:   payload,
			signature: validSignature,
			expected:  true,
		},
		{
			name:      "invalid signature",
			secret:    secret,
			payload:   payload,
			signature: "invalid",
			expected:  false,
		},
		{
			name:      "wrong secret",
			secret:    "wrong-secret",
			payload:   payload,
			signature: validSignature,
			expected:  false,
		},
		{
			name:      "modified payload",
			secret:    secret,
			payload:   []byte(`{"test":"modified"}`),
			signature: validSignature,
			expected:  false,
		},
		{
			name:      "empty secret never verifies",
			secret:    "",
			payload:   payload,
			signature: "",
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := VerifySignature(tt.payload, tt.signature, tt.secret)
			assert.Equal(t, tt.expected, result)
		})
	}
}
