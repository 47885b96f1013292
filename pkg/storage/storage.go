package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotFound is returned by Get when no blob exists under the key.
var ErrNotFound = errors.New("content not found")

// ErrInvalidKey rejects keys that could escape the storage root.
var ErrInvalidKey = errors.New("invalid content key")

// ContentStore keeps opaque blobs under flat keys. Put overwrites, so
// writing the same bytes twice is harmless.
type ContentStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes a blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// VariantKey names the derived blob of width w for the original at key.
func VariantKey(key string, width int) string {
	return key + "_" + strconv.Itoa(width)
}

func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
