// Package dedupe provides the at-most-once processing guarantee: a persistent
// set of business keys checked and marked atomically by the enrichment
// scheduler.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/leadharvest/leadharvest/internal/leads"
)

// Key derives the fixed-length digest identifying a business for at-most-once
// processing. Two listings with the same derived key are treated as the same
// business.
func Key(name string, loc leads.Location) string {
	raw := strings.ToLower(strings.TrimSpace(name)) + "|" +
		strings.ToLower(strings.TrimSpace(loc.City)) + "|" +
		strings.ToLower(strings.TrimSpace(loc.Region))
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Store is a persistent set of opaque keys. TryAdd must be an atomic
// check-and-set: concurrent callers with the same key see exactly one true.
type Store interface {
	// Load reads the persisted key set. Missing or corrupt state degrades to
	// an empty set and never returns an error for those cases.
	Load(ctx context.Context) error
	// TryAdd inserts the key, reporting whether it was newly added.
	TryAdd(key string) bool
	// Persist writes the full key set to durable storage.
	Persist(ctx context.Context) error
	// Size reports the number of known keys.
	Size() int
}
