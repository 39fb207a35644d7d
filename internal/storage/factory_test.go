package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestOpen_EmbeddedDefault(t *testing.T) {
	tests := []string{TypeEmbedded, "", "something-else"}

	for _, typ := range tests {
		t.Run("type="+typ, func(t *testing.T) {
			b, err := Open(Config{
				Type: typ,
				Path: filepath.Join(t.TempDir(), "test.db"),
			})
			if err != nil {
				t.Fatalf("open: %v", err)
			}
			defer b.Close()

			if _, ok := b.(*EmbeddedStore); !ok {
				t.Errorf("expected *EmbeddedStore, got %T", b)
			}
		})
	}
}

func TestOpen_RemoteFallsBackToEmbedded(t *testing.T) {
	// Nothing listens on this port; the remote open must fail fast and the
	// factory must substitute the embedded store instead of erroring out.
	b, err := Open(Config{
		Type: TypeRemote,
		Path: filepath.Join(t.TempDir(), "fallback.db"),
		Remote: RemoteConfig{
			URL:     "postgres://metrics@127.0.0.1:1/metrics",
			Timeout: 500 * time.Millisecond,
		},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer b.Close()

	if _, ok := b.(*EmbeddedStore); !ok {
		t.Fatalf("expected embedded fallback, got %T", b)
	}

	// The substitute is fully functional.
	if _, err := b.Store(context.Background(), testPayload("web-01")); err != nil {
		t.Errorf("store on fallback backend: %v", err)
	}
}

func TestOpenRemote_RequiresURL(t *testing.T) {
	if _, err := OpenRemote(Config{}); err == nil {
		t.Fatal("expected error for missing remote URL")
	}
}

func TestOpenRemote_RejectsBadBucket(t *testing.T) {
	_, err := OpenRemote(Config{
		Remote: RemoteConfig{
			URL:    "postgres://metrics@127.0.0.1:5432/metrics",
			Bucket: "bad bucket; DROP TABLE",
		},
	})
	if err == nil {
		t.Fatal("expected error for invalid bucket name")
	}
}
