package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// Prefix identifies the signature scheme on the wire
	Prefix = "sha256="

	// SecretBytes is the size of generated signing secrets
	SecretBytes = 32

	// SecretLength is the length of a hex-encoded secret
	SecretLength = SecretBytes * 2
)

// GenerateSecret creates a new cryptographically secure signing secret,
// hex-encoded to SecretLength characters.
func GenerateSecret() (string, error) {
	bytes := make([]byte, SecretBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// Sign computes the signature of a serialized payload:
// "sha256=" + hex(HMAC-SHA256(payload, secret)).
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares it in constant time
// to prevent timing attacks. Returns false for malformed signatures.
func Verify(payload []byte, sig, secret string) bool {
	if !strings.HasPrefix(sig, Prefix) {
		return false
	}

	expected, err := hex.DecodeString(strings.TrimPrefix(sig, Prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	calculated := mac.Sum(nil)

	return subtle.ConstantTimeCompare(expected, calculated) == 1
}
