package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_RebuildsOnChange(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rebuilds atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, root, 50*time.Millisecond, quiet, func(context.Context) error {
			rebuilds.Add(1)
			return nil
		})
	}()
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(root, "new.md"), []byte("# New"), 0o644)
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return rebuilds.Load() >= 1
	}, "no rebuild after file write")

	sub := filepath.Join(root, "sub")
	_ = os.MkdirAll(sub, 0o755)
	time.Sleep(200 * time.Millisecond)
	before := rebuilds.Load()
	_ = os.WriteFile(filepath.Join(sub, "deep.md"), []byte("# Deep"), 0o644)
	eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return rebuilds.Load() > before
	}, "no rebuild after write in new subdir")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Watch did not stop after cancel")
	}
}

func TestHidden(t *testing.T) {
	root := "/content"
	cases := map[string]bool{
		"/content/a.md":          false,
		"/content/sub/b.md":      false,
		"/content/.git/HEAD":     true,
		"/content/sub/.draft.md": true,
	}
	for p, want := range cases {
		if got := hidden(root, p); got != want {
			t.Errorf("hidden(%q) = %v, want %v", p, got, want)
		}
	}
}
