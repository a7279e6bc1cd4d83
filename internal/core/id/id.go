// Package id provides identifier generation for persisted records.
// Row identifiers are UUIDv7 (time-ordered); public hold identifiers are
// short random tokens that never reveal row identity or ordering.
package id

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// ID is a type alias for UUID, used as internal row identifier.
type ID = uuid.UUID

// HoldPrefix marks public held-sale identifiers.
const HoldPrefix = "HS-"

// New generates a new UUIDv7 (time-ordered UUID).
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to V4 if V7 fails (should never happen)
		return uuid.New()
	}
	return id
}

// HoldTokenLen is the number of hex digits after HoldPrefix.
const HoldTokenLen = 20

// NewHoldID returns a public hold identifier, e.g. HS-3F9A0C21B7D45E6A10C2.
// The 80 bits are the random bytes of a v4 UUID, skipping the version and
// variant bytes, so the id carries no timestamp.
func NewHoldID() string {
	u := uuid.New()
	return HoldPrefix + strings.ToUpper(hex.EncodeToString(u[:6])+hex.EncodeToString(u[9:13]))
}

// IsNil checks if ID is zero-value.
func IsNil(id ID) bool {
	return id == uuid.Nil
}
