package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

// HashPayload returns the canonical request hash used by the idempotency
// engine: unpadded base64url over sha256 of the raw payload bytes.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// HashFields builds a content hash over named fields in a stable order,
// independent of map iteration. Used for ETags and for pinning quote
// parameters against manipulation on accept.
func HashFields(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s=%s\n", name, fields[name])
	}
	return HashPayload([]byte(b.String()))
}

// CacheKey joins all query-affecting parameters into one deterministic key.
// Every parameter that can change the response must be part of the key.
func CacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}
