package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func exerciseMutualExclusion(t *testing.T, locker Locker) {
	t.Helper()

	const workers = 20
	var (
		inside  int32
		maxSeen int32
		counter int32
		wg      sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), AccountKey(1))
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				seen := atomic.LoadInt32(&maxSeen)
				if n <= seen || atomic.CompareAndSwapInt32(&maxSeen, seen, n) {
					break
				}
			}
			atomic.AddInt32(&counter, 1)
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&maxSeen) != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen)
	}
	if atomic.LoadInt32(&counter) != workers {
		t.Errorf("counter = %d, want %d", counter, workers)
	}
}

func TestLocalLockerMutualExclusion(t *testing.T) {
	l := NewLocalLocker()
	exerciseMutualExclusion(t, l)
	if l.size() != 0 {
		t.Errorf("slots leaked: %d", l.size())
	}
}

func TestLocalLockerIndependentKeys(t *testing.T) {
	l := NewLocalLocker()
	r1, err := l.Acquire(context.Background(), AccountKey(1))
	if err != nil {
		t.Fatal(err)
	}
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r2, err := l.Acquire(ctx, AccountKey(2))
	if err != nil {
		t.Fatalf("different key blocked: %v", err)
	}
	r2()
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()
	release, _ := l.Acquire(context.Background(), "k")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire = %v, want deadline exceeded", err)
	}
}

func TestLocalLockerReleaseIdempotent(t *testing.T) {
	l := NewLocalLocker()
	release, _ := l.Acquire(context.Background(), "k")
	release()
	release()
	if l.size() != 0 {
		t.Errorf("slots leaked: %d", l.size())
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLockerMutualExclusion(t *testing.T) {
	_, client := newTestRedis(t)
	locker := NewRedisLocker(client)
	locker.retryInterval = time.Millisecond
	locker.maxRetries = 5000
	exerciseMutualExclusion(t, locker)
}

func TestDistributedLockUnlockOnlyOwn(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()

	a := NewDistributedLock(client, "k", "owner-a", time.Second)
	if ok, err := a.TryLock(ctx); err != nil || !ok {
		t.Fatalf("TryLock a = %v, %v", ok, err)
	}

	// a 的锁过期后被 b 持有
	mr.FastForward(2 * time.Second)
	b := NewDistributedLock(client, "k", "owner-b", time.Minute)
	if ok, _ := b.TryLock(ctx); !ok {
		t.Fatal("b should acquire expired lock")
	}

	if err := a.Unlock(ctx); err != nil {
		t.Fatalf("Unlock a: %v", err)
	}
	if got, _ := mr.Get("k"); got != "owner-b" {
		t.Fatalf("a released b's lock, key = %q", got)
	}

	if err := b.Unlock(ctx); err != nil {
		t.Fatalf("Unlock b: %v", err)
	}
	if mr.Exists("k") {
		t.Fatal("lock should be released")
	}
}

func TestDistributedLockGivesUp(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()

	holder := NewDistributedLock(client, "k", "x", time.Minute)
	holder.TryLock(ctx)

	waiter := NewDistributedLock(client, "k", "y", time.Minute)
	if err := waiter.Lock(ctx, time.Millisecond, 3); !errors.Is(err, ErrLockFailed) {
		t.Fatalf("Lock = %v, want ErrLockFailed", err)
	}
}
