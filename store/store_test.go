package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rushteam/tracksim/core"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	if _, err := s.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get(missing) err = %v", err)
	}
	if err := s.Set(ctx, "a", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if v, err := s.Get(ctx, "a"); err != nil || string(v) != "1" {
		t.Fatalf("Get(a) = %q, %v", v, err)
	}
	if err := s.BatchSet(ctx, map[string][]byte{"b": []byte("2"), "c": []byte("3")}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.BatchGet(ctx, []string{"a", "b", "nope"})
	if len(got) != 2 || string(got["b"]) != "2" {
		t.Fatalf("BatchGet = %v", got)
	}
	_ = s.Delete(ctx, "a")
	if _, err := s.Get(ctx, "a"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get after Delete err = %v", err)
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	s.mu.Lock()
	s.data["old"] = entry{value: []byte("x"), expire: time.Now().Add(-time.Second)}
	s.mu.Unlock()

	if _, err := s.Get(ctx, "old"); !core.IsStoreNotFound(err) {
		t.Fatalf("expired entry should be not found, got %v", err)
	}
	if got, _ := s.BatchGet(ctx, []string{"old"}); len(got) != 0 {
		t.Fatalf("BatchGet returned expired entry: %v", got)
	}
}

// 需要本地 Redis：REDIS_ADDR=localhost:6379 go test ./store
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	s, err := NewRedisStore(RedisOptions{Addr: addr, Prefix: "tracksim:test:"})
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer s.Close()

	if err := s.Set(ctx, "k", []byte("v"), 10); err != nil {
		t.Fatal(err)
	}
	if v, err := s.Get(ctx, "k"); err != nil || string(v) != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	_ = s.Delete(ctx, "k")
	if _, err := s.Get(ctx, "k"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get after Delete err = %v", err)
	}
}
