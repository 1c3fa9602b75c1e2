package cache

import (
	"context"
	"testing"
	"time"
)

// newTestCache returns a cache running in fallback mode. The URL points
// at a port nothing listens on, so the Redis connection attempt fails.
func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c := New(context.Background(), "redis://127.0.0.1:1", 5*time.Minute)
	if c.Connected() {
		t.Fatal("expected fallback mode")
	}
	return c
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	value := map[string]interface{}{"name": "doggie", "count": float64(3)}
	if err := c.Set(ctx, Key("test", "a"), value, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got map[string]interface{}
	ok, err := c.GetInto(ctx, Key("test", "a"), &got)
	if err != nil {
		t.Fatalf("GetInto: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if got["name"] != "doggie" || got["count"] != float64(3) {
		t.Errorf("round trip = %v", got)
	}
}

func TestGetMiss(t *testing.T) {
	c := newTestCache(t)
	if _, ok := c.Get(context.Background(), Key("missing")); ok {
		t.Error("expected miss")
	}
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, Key("d"), "v", 0)
	if err := c.Delete(ctx, Key("d")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := c.Get(ctx, Key("d")); ok {
		t.Error("expected miss after delete")
	}
	// Deleting a missing key is fine.
	if err := c.Delete(ctx, Key("d")); err != nil {
		t.Errorf("Delete missing: %v", err)
	}
}

func TestClearMatching(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "canvas:api:GET_/pet:abc", 1, 0)
	c.Set(ctx, "canvas:api:GET_/pet:def", 2, 0)
	c.Set(ctx, "canvas:session:s1:history", 3, 0)

	removed, err := c.ClearMatching(ctx, "canvas:api:*")
	if err != nil {
		t.Fatalf("ClearMatching: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if _, ok := c.Get(ctx, "canvas:session:s1:history"); !ok {
		t.Error("unmatched key should survive")
	}
}

func TestKey(t *testing.T) {
	if got := Key("api", "GET_/pet", "abc"); got != "canvas:api:GET_/pet:abc" {
		t.Errorf("Key = %q", got)
	}
}

func TestHashParamsStable(t *testing.T) {
	a := HashParams(map[string]interface{}{"status": "sold", "limit": 10})
	b := HashParams(map[string]interface{}{"limit": 10, "status": "sold"})
	if a != b {
		t.Errorf("insertion order changed hash: %q vs %q", a, b)
	}
	if len(a) != 10 {
		t.Errorf("hash length = %d, want 10", len(a))
	}

	c := HashParams(map[string]interface{}{"status": "available"})
	if a == c {
		t.Error("different params produced same hash")
	}
}
