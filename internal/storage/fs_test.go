package storage

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/nodeql/internal/checksum"
)

func tempContent(t *testing.T, files map[string]string) *FS {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestRead(t *testing.T) {
	s := tempContent(t, map[string]string{"a/b/c.md": "deep"})
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("missing.md"); err == nil {
		t.Error("expected error reading missing file")
	}
}

func TestList(t *testing.T) {
	s := tempContent(t, map[string]string{
		"sub/b.md":      "b",
		"a.md":          "a",
		"readme.txt":    "not md",
		".hidden":       "x",
		".git/HEAD":     "ref",
		"img/cover.png": "png",
	})

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"a.md", "img/cover.png", "readme.txt", "sub/b.md"}
	if len(items) != len(want) {
		t.Fatalf("items = %v, want %v", items, want)
	}
	for i, w := range want {
		if items[i].Path != w {
			t.Errorf("items[%d] = %q, want %q", i, items[i].Path, w)
		}
	}
	if items[0].Size != 1 || items[0].Checksum != checksum.Sum([]byte("a")) {
		t.Errorf("a.md = %+v", items[0])
	}
	if items[0].ModTime.IsZero() {
		t.Error("expected mod time")
	}

	sub, err := s.List("sub")
	if err != nil {
		t.Fatalf("List sub: %v", err)
	}
	if len(sub) != 1 || sub[0].Path != "sub/b.md" {
		t.Errorf("sub = %v", sub)
	}
}

func TestList_SkipsUnreadableFile(t *testing.T) {
	s := tempContent(t, map[string]string{
		"good.md": "good",
		"bad.md":  "bad",
	})
	var logs bytes.Buffer
	s.logger = slog.New(slog.NewJSONHandler(&logs, nil))
	s.open = func(name string) (io.ReadCloser, error) {
		if filepath.Base(name) == "bad.md" {
			return nil, errors.New("permission denied")
		}
		return openFile(name)
	}

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "good.md" {
		t.Fatalf("items = %v, want only good.md", items)
	}
	if items[0].Checksum != checksum.Sum([]byte("good")) {
		t.Errorf("checksum = %s", items[0].Checksum)
	}
	if !strings.Contains(logs.String(), `"path":"bad.md"`) {
		t.Errorf("expected skip to be logged, got %s", logs.String())
	}
}

func TestList_SkipsPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	s := tempContent(t, map[string]string{
		"good.md":       "good",
		"locked.md":     "locked",
		"private/in.md": "in",
	})
	locked := filepath.Join(s.Root(), "locked.md")
	private := filepath.Join(s.Root(), "private")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if err := os.Chmod(private, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chmod(locked, 0o644)
		_ = os.Chmod(private, 0o755)
	})
	s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))

	items, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "good.md" {
		t.Errorf("items = %v, want only good.md", items)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempContent(t, nil)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if _, err := s.List(p); err == nil {
			t.Errorf("expected error listing %q", p)
		}
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "nodeql-test-*")
	_ = f.Close()
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
