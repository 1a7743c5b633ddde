//go:build !integration

package redis

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

type fakeRedis struct {
	mu      sync.Mutex
	vals    map[string]string
	ttls    map[string]time.Duration
	failSet error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{vals: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Ping(context.Context) error { return nil }

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet != nil {
		return f.failSet
	}
	switch v := value.(type) {
	case []byte:
		f.vals[key] = string(v)
	case string:
		f.vals[key] = v
	}
	f.ttls[key] = exp
	return nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vals[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.vals[key], 10, 64)
	n++
	f.vals[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (f *fakeRedis) Expire(_ context.Context, key string, exp time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = exp
	return nil
}

func (f *fakeRedis) Close() error { return nil }

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	rl := NewRateLimiter(fake, "rate_limit")
	key := " login:A@B.com "

	for i := 1; i <= 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow #%d: %v", i, err)
		}
		if !ok {
			t.Fatalf("Allow #%d should pass", i)
		}
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Error("fourth call should be limited")
	}
	if got := fake.ttls["rate_limit:login:a@b.com"]; got != time.Minute {
		t.Errorf("window ttl = %v, want 1m", got)
	}

	t.Run("zero limit disables", func(t *testing.T) {
		ok, err := rl.Allow(ctx, "x", 0, time.Minute)
		if err != nil || !ok {
			t.Errorf("Allow with limit 0 = %v, %v", ok, err)
		}
	})
}

func TestDocumentStore(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	s, err := Factory(fake, "entitlements")("users")
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}

	data, err := s.Load(ctx)
	if err != nil || data != nil {
		t.Fatalf("Load on empty = %q, %v", data, err)
	}

	if err := s.Save(ctx, []byte(`{"last_id":1}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := fake.vals["entitlements:users"]; !ok {
		t.Error("expected key entitlements:users")
	}
	data, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != `{"last_id":1}` {
		t.Errorf("Load = %s", data)
	}

	boom := errors.New("connection reset")
	fake.failSet = boom
	if err := s.Save(ctx, []byte(`{}`)); !errors.Is(err, boom) {
		t.Errorf("Save error = %v, want wrapped %v", err, boom)
	}

	if _, err := Factory(fake, "p")(""); err == nil {
		t.Error("expected error for empty name")
	}
}
