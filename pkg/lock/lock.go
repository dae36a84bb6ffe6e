package lock

import (
	"context"

	"github.com/opencontainers/go-digest"
)

// Locker serializes concurrent flatten requests for the same image digest,
// so two callers racing to build the same immutable image don't merge its
// layers twice. Blocks until the lock is acquired or ctx is cancelled.
type Locker interface {
	AcquireLock(ctx context.Context, digest digest.Digest) (Lock, error)
}

// Lock represents an acquired lock that must be released
type Lock interface {
	Release() error
}
