package cache

import "context"

// NoOpStore never caches anything; every lookup misses. Useful for tests
// and for callers that intentionally disable cross-run reuse.
type NoOpStore struct{}

func NewNoOpStore() *NoOpStore { return &NoOpStore{} }

func (s *NoOpStore) Lookup(ctx context.Context, imageDigest string) (*Record, error) {
	return nil, nil
}

func (s *NoOpStore) Insert(ctx context.Context, rec Record) error {
	return nil
}

func (s *NoOpStore) Close() error {
	return nil
}
