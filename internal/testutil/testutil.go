// Package testutil provides shared test helpers: fixture graphs, temporary
// content directories and node caches.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/nodeql/internal/nodecache"
	"github.com/starford/nodeql/internal/storage"
)

// TestCache creates a temporary SQLite node cache that is automatically
// closed.
func TestCache(t *testing.T) *nodecache.DB {
	t.Helper()
	db, err := nodecache.Open(context.Background(), filepath.Join(t.TempDir(), "nodeql-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestContent creates a temporary content directory holding files (keyed by
// slash-separated relative path) and a storage.Provider over it.
func TestContent(t *testing.T, files map[string]string) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		WriteFile(t, dir, name, body)
	}
	provider, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, provider
}

// WriteFile writes body to name under dir, creating parent directories.
func WriteFile(t *testing.T, dir, name, body string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}
