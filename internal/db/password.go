package db

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const (
	hashIterations = 100000
	hashKeyLen     = 64
	saltHexLen     = 64
)

// HashPassword derives a storable hash from a client password token.
// The stored form is a 64-char hex salt followed by the hex pbkdf2-sha512
// digest, matching what older deployments already have on disk.
func HashPassword(password []byte) string {
	var raw [60]byte
	rand.Read(raw[:])
	digest := sha256.Sum256(raw[:])
	salt := hex.EncodeToString(digest[:])

	key := pbkdf2.Key(password, []byte(salt), hashIterations, hashKeyLen, sha512.New)
	return salt + hex.EncodeToString(key)
}

// VerifyPassword checks a client password token against a stored hash.
func VerifyPassword(password []byte, stored string) bool {
	if len(stored) <= saltHexLen || len(password) == 0 {
		return false
	}
	salt := stored[:saltHexLen]
	key := pbkdf2.Key(password, []byte(salt), hashIterations, hashKeyLen, sha512.New)
	expected := hex.EncodeToString(key)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(stored[saltHexLen:])) == 1
}
