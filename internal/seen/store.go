// Package seen tracks which agent identities have already reported
// telemetry, so ingestion can signal first contact exactly once per
// identity instead of re-counting on every batch.
package seen

import "context"

// Store records observed identities. MarkSeen returns true only for the
// first observation of key within scope; every later call returns false.
type Store interface {
	MarkSeen(ctx context.Context, scope, key string) (bool, error)
}
