package lock

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })

	l, err := NewLocker(fmt.Sprintf("redis://%s/0", mr.Addr()), 5*time.Second)
	if err != nil {
		t.Fatalf("NewLocker: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l, mr
}

func TestTryAcquireExcludes(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()
	key := GameKey(7)

	token, err := l.TryAcquire(ctx, key)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if token == "" {
		t.Fatalf("empty token")
	}

	if _, err := l.TryAcquire(ctx, key); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("second acquire should fail with ErrNotAcquired, got %v", err)
	}

	if err := l.Release(ctx, key, token); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := l.TryAcquire(ctx, key); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestReleaseRequiresToken(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()
	key := GameKey(9)

	token, err := l.TryAcquire(ctx, key)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}

	// A stale holder with the wrong token must not free the lock.
	if err := l.Release(ctx, key, "stale-token"); err != nil {
		t.Fatalf("Release with wrong token errored: %v", err)
	}
	if _, err := l.TryAcquire(ctx, key); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("lock was freed by the wrong token")
	}

	if err := l.Release(ctx, key, token); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestAcquireWaits(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()
	key := GameKey(11)

	token, err := l.TryAcquire(ctx, key)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_, err := l.Acquire(wctx, key)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if err := l.Release(ctx, key, token); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("waiting Acquire should succeed after release: %v", err)
	}
}

func TestAcquireGivesUpOnDeadline(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()
	key := GameKey(13)

	if _, err := l.TryAcquire(ctx, key); err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}

	wctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(wctx, key); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired on deadline, got %v", err)
	}
}

func TestParseRedisURL(t *testing.T) {
	opts, err := parseRedisURL("redis://:secret@localhost:6379/2")
	if err != nil {
		t.Fatalf("parseRedisURL: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("unexpected options: %+v", opts)
	}

	if _, err := parseRedisURL("http://nope"); err == nil {
		t.Fatalf("expected scheme error")
	}
}
