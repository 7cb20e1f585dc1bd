// Package ballot validates voter signing keys and submits ballots to a
// node, one at a time or as a rate-limited batch.
package ballot

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// DefaultKeyLength is the hex length of signing keys issued by nodes.
const DefaultKeyLength = 48

// Error variables for key validation.
var (
	// ErrKeyLength is returned when a key does not have the expected length.
	ErrKeyLength = errors.New("signing key has wrong length")
	// ErrKeyEncoding is returned when a key is not hex encoded.
	ErrKeyEncoding = errors.New("signing key is not hex")
	// ErrNoKeys is returned when a batch has nothing to submit.
	ErrNoKeys = errors.New("no signing keys")
)

// ValidateKey checks that key is a hex string of exactly length characters.
func ValidateKey(key string, length int) error {
	if len(key) != length {
		return fmt.Errorf("%w: got %d characters, want %d", ErrKeyLength, len(key), length)
	}
	if _, err := hex.DecodeString(key); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyEncoding, err)
	}
	return nil
}

// TrimQuotes strips one leading and one trailing double quote, which
// appear when keys are copied out of JSON.
func TrimQuotes(s string) string {
	s = strings.TrimPrefix(s, `"`)
	return strings.TrimSuffix(s, `"`)
}

// SplitKeys splits a comma separated key list. Blank entries are dropped
// and surrounding whitespace and quotes are removed from each key.
func SplitKeys(s string) []string {
	var keys []string
	for _, part := range strings.Split(s, ",") {
		key := TrimQuotes(strings.TrimSpace(part))
		if key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// Fingerprint returns a short SHA3-256 digest of key, safe to log in place
// of the secret itself.
func Fingerprint(key string) string {
	sum := sha3.Sum256([]byte(key))
	return hex.EncodeToString(sum[:4])
}
