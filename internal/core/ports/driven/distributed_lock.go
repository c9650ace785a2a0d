package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates singleton jobs (credential re-encryption,
// hygiene scans) across instances. Locks expire after their TTL so a
// crashed holder cannot wedge the job forever.
type DistributedLock interface {
	// Acquire attempts to take the named lock. Returns false when another
	// holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release frees the named lock if this instance holds it.
	Release(ctx context.Context, name string) error
}
