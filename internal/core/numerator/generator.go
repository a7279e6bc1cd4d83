package numerator

import (
	"context"
)

// Sequencer is the storage contract behind bill numbering.
// Implementations live in the infrastructure layer.
//
// Both calls are expected to run inside the caller's transaction so that a
// rolled back sale also rolls back its counter advance.
type Sequencer interface {
	// LastIssued returns the greatest issued bill number starting with prefix,
	// comparing counter width first and then lexicographically.
	// found is false when the scope was never used.
	LastIssued(ctx context.Context, prefix string) (number string, found bool, err error)

	// Advance atomically bumps the counter of scope and returns the new value.
	// The result is strictly greater than both the stored counter and floor.
	// Concurrent calls for one scope must never return the same value.
	Advance(ctx context.Context, scope string, floor int64) (int64, error)
}
