package lock

import (
	"context"
	"sync"

	"github.com/opencontainers/go-digest"
)

// MemoryLocker is an in-process Locker keyed by image digest, sufficient
// for a single strata process serving concurrent flatten requests. It does
// not coordinate across processes or machines.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[digest.Digest]*sync.Mutex
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[digest.Digest]*sync.Mutex)}
}

func (l *MemoryLocker) AcquireLock(ctx context.Context, d digest.Digest) (Lock, error) {
	l.mu.Lock()
	m, ok := l.locks[d]
	if !ok {
		m = &sync.Mutex{}
		l.locks[d] = m
	}
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return &memLock{mu: m}, nil
	case <-ctx.Done():
		// The goroutine above may still acquire m later; release it
		// immediately so it doesn't leak a held lock nobody will free.
		go func() {
			<-acquired
			m.Unlock()
		}()
		return nil, ctx.Err()
	}
}

type memLock struct {
	mu *sync.Mutex
}

func (l *memLock) Release() error {
	l.mu.Unlock()
	return nil
}
