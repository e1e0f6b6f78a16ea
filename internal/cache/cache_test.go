package cache

import (
	"context"
	"testing"
	"time"
)

func TestCache_GetSetExpiry(t *testing.T) {
	ctx := context.Background()
	c := New[string, int](0)
	defer c.Close()

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.Set(ctx, "a", 1, time.Minute)
	if v, ok := c.Get(ctx, "a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("expected expired entry to miss")
	}

	c.sweep()
	if c.Len() != 0 {
		t.Errorf("Len after sweep = %d, want 0", c.Len())
	}
}

func TestCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := New[string, string](time.Hour)
	defer c.Close()

	c.Set(ctx, "k", "v", time.Hour)
	c.Delete(ctx, "k")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected miss after Delete")
	}

	c.Close()
	c.Close()
}
