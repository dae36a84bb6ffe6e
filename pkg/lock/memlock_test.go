package lock

import (
	"context"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
)

func TestMemoryLockerSerializesSameDigest(t *testing.T) {
	l := NewMemoryLocker()
	d := digest.FromString("same-image")

	lock1, err := l.AcquireLock(context.Background(), d)
	if err != nil {
		t.Fatalf("first AcquireLock failed: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		lock2, err := l.AcquireLock(context.Background(), d)
		if err != nil {
			t.Errorf("second AcquireLock failed: %v", err)
			return
		}
		close(acquired)
		lock2.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second AcquireLock returned before the first lock was released")
	case <-time.After(50 * time.Millisecond):
	}

	if err := lock1.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second AcquireLock never completed after release")
	}
}

func TestMemoryLockerContextCancellation(t *testing.T) {
	l := NewMemoryLocker()
	d := digest.FromString("busy-image")

	lock1, err := l.AcquireLock(context.Background(), d)
	if err != nil {
		t.Fatalf("first AcquireLock failed: %v", err)
	}
	defer lock1.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.AcquireLock(ctx, d)
	if err == nil {
		t.Fatal("expected AcquireLock to fail after context deadline")
	}
}

func TestMemoryLockerIndependentDigests(t *testing.T) {
	l := NewMemoryLocker()

	lock1, err := l.AcquireLock(context.Background(), digest.FromString("a"))
	if err != nil {
		t.Fatalf("AcquireLock(a) failed: %v", err)
	}
	defer lock1.Release()

	lock2, err := l.AcquireLock(context.Background(), digest.FromString("b"))
	if err != nil {
		t.Fatalf("AcquireLock(b) failed: %v", err)
	}
	defer lock2.Release()
}
