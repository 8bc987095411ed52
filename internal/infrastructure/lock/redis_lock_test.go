package lock

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client), srv
}

func TestAcquireIsExclusive(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	first, acquired, err := locker.Acquire(ctx, "compute-metrics", "repo-1", "2025-06-01")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if !acquired {
		t.Fatal("first acquire should succeed")
	}

	_, acquired, err = locker.Acquire(ctx, "compute-metrics", "repo-1", "2025-06-01")
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if acquired {
		t.Fatal("second acquire should be refused while held")
	}

	released, err := locker.Release(ctx, first)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !released {
		t.Fatal("holder release should succeed")
	}

	_, acquired, err = locker.Acquire(ctx, "compute-metrics", "repo-1", "2025-06-01")
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	if !acquired {
		t.Fatal("acquire after release should succeed")
	}
}

func TestDifferentScopesDoNotContend(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	_, acquired, err := locker.Acquire(ctx, "compute-metrics", "repo-1", "2025-06-01")
	if err != nil || !acquired {
		t.Fatalf("acquire repo-1: acquired=%v err=%v", acquired, err)
	}

	cases := [][3]string{
		{"compute-metrics", "repo-2", "2025-06-01"},
		{"compute-metrics", "repo-1", "2025-06-02"},
		{"track-survival", "repo-1", "2025-06-01"},
	}
	for _, c := range cases {
		_, acquired, err := locker.Acquire(ctx, c[0], c[1], c[2])
		if err != nil {
			t.Fatalf("acquire %v: %v", c, err)
		}
		if !acquired {
			t.Fatalf("acquire %v should not contend with repo-1 lock", c)
		}
	}
}

func TestReleaseRequiresMatchingToken(t *testing.T) {
	locker, _ := newTestLocker(t)
	ctx := context.Background()

	handle, acquired, err := locker.Acquire(ctx, "track-survival", "repo-1", "2025-06-01")
	if err != nil || !acquired {
		t.Fatalf("acquire: acquired=%v err=%v", acquired, err)
	}

	stale := handle
	stale.Token = "not-the-token"
	released, err := locker.Release(ctx, stale)
	if err != nil {
		t.Fatalf("release with stale token: %v", err)
	}
	if released {
		t.Fatal("stale token must not release the lock")
	}

	released, err = locker.Release(ctx, handle)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !released {
		t.Fatal("matching token should release the lock")
	}
}

func TestExpiredLockCanBeReacquired(t *testing.T) {
	locker, srv := newTestLocker(t)
	ctx := context.Background()

	old, acquired, err := locker.Acquire(ctx, "monitor-saturation", "repo-1", "2025-06-01")
	if err != nil || !acquired {
		t.Fatalf("acquire: acquired=%v err=%v", acquired, err)
	}

	srv.FastForward(DefaultTTL)

	_, acquired, err = locker.Acquire(ctx, "monitor-saturation", "repo-1", "2025-06-01")
	if err != nil {
		t.Fatalf("reacquire after expiry: %v", err)
	}
	if !acquired {
		t.Fatal("expired lock should be reacquirable")
	}

	released, err := locker.Release(ctx, old)
	if err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if released {
		t.Fatal("previous holder must not release the new lock")
	}
}
