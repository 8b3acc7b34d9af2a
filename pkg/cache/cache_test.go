package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/netscane/rovel-desk/pkg/db"
)

func newTestCache(t *testing.T) *SQLiteCache {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("db init failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return NewSQLiteCache(d)
}

func TestCache_RoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if _, hit := c.GetCache(ctx, "audio:n1:0:v1"); hit {
		t.Fatal("unexpected hit on empty cache")
	}

	payload := []byte{0xff, 0xfb, 0x90, 0x00} // mp3 frame header
	if err := c.SetCache(ctx, "audio:n1:0:v1", payload); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}

	got, hit := c.GetCache(ctx, "audio:n1:0:v1")
	if !hit {
		t.Fatal("expected hit after set")
	}
	if string(got) != string(payload) {
		t.Errorf("payload mismatch: got %v", got)
	}

	// Overwrite replaces.
	if err := c.SetCache(ctx, "audio:n1:0:v1", []byte{1, 2}); err != nil {
		t.Fatalf("SetCache overwrite failed: %v", err)
	}
	got, _ = c.GetCache(ctx, "audio:n1:0:v1")
	if len(got) != 2 {
		t.Errorf("expected overwritten payload, got %d bytes", len(got))
	}
}

func TestCache_KeysAreIndependent(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_ = c.SetCache(ctx, "audio:n1:0:v1", []byte{1})
	_ = c.SetCache(ctx, "audio:n1:0:v2", []byte{2})

	a, _ := c.GetCache(ctx, "audio:n1:0:v1")
	b, _ := c.GetCache(ctx, "audio:n1:0:v2")
	if a[0] == b[0] {
		t.Error("voice-scoped keys must not collide")
	}
}
