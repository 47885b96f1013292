package util

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID returns a 24 character hex id. Users, nodes, jobs and requests use it.
func NewID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// NewUUID returns a random (version 4) UUID string. Session tokens and
// content keys use it.
func NewUUID() string {
	return uuid.NewString()
}
