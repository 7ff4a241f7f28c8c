// Package auth holds the credential hashing used for mesh broker users
// and the random identifier source for canonical call IDs and salts.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// HashPasswordWithSalt returns the hex SHA-256 digest of password and
// salt concatenated, the form stored in the broker user config.
func HashPasswordWithSalt(password, salt string) string {
	hasher := sha256.New()
	hasher.Write([]byte(password + salt))
	return hex.EncodeToString(hasher.Sum(nil))
}

// RandomHex returns n random bytes, hex encoded.
func RandomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateHashAndSalt draws a fresh salt and hashes the password with
// it, for provisioning a new broker user.
func GenerateHashAndSalt(password string) (hash string, salt string) {
	salt, _ = RandomHex(16)
	hash = HashPasswordWithSalt(password, salt)
	return
}
