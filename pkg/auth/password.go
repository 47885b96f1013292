package auth

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
)

// DigestPassword returns the hex encoded, unsalted SHA-1 of password.
// Existing credential records use this format, so it must not change.
func DigestPassword(password string) string {
	sum := sha1.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

// CheckPassword compares password against a stored digest.
func CheckPassword(password, digest string) bool {
	if digest == "" {
		return false
	}
	got := DigestPassword(password)
	return subtle.ConstantTimeCompare([]byte(got), []byte(digest)) == 1
}
