// Package keys implements the device API key scheme: pbkdf2-sha256 derived
// hashes stored hex-encoded alongside a per-device salt. A device with no
// stored hash is treated as open, which keeps field provisioning optional.
package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	iterations = 120000
	keyLength  = 32
	saltLength = 16
	tokenBytes = 24
)

// Generate creates a new plaintext device key together with the salt and
// hash that get stored. The plaintext is only ever shown once.
func Generate() (plaintext, saltHex, hashHex string, err error) {
	token := make([]byte, tokenBytes)
	if _, err = rand.Read(token); err != nil {
		return "", "", "", fmt.Errorf("failed to generate device key: %w", err)
	}
	plaintext = base64.RawURLEncoding.EncodeToString(token)

	salt := make([]byte, saltLength)
	if _, err = rand.Read(salt); err != nil {
		return "", "", "", fmt.Errorf("failed to generate salt: %w", err)
	}

	saltHex = hex.EncodeToString(salt)
	hashHex = hex.EncodeToString(derive(plaintext, salt))
	return plaintext, saltHex, hashHex, nil
}

// Verify checks a presented key against the stored salt and hash. Devices
// without a stored hash or salt are open and always pass.
func Verify(hashHex, saltHex, presented string) bool {
	if hashHex == "" || saltHex == "" {
		return true
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	stored, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}

	derived := derive(presented, salt)
	return subtle.ConstantTimeCompare(derived, stored) == 1
}

func derive(plaintext string, salt []byte) []byte {
	return pbkdf2.Key([]byte(plaintext), salt, iterations, keyLength, sha256.New)
}
