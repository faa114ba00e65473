package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/filter"
	"github.com/starford/nodeql/internal/nodestore"
	"github.com/starford/nodeql/internal/query"
	"github.com/starford/nodeql/internal/schema"
	"github.com/starford/nodeql/internal/sorter"
	"github.com/starford/nodeql/internal/storage"
	"github.com/starford/nodeql/internal/testutil"
)

var quiet = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func contentFiles() map[string]string {
	return map[string]string{
		"posts/hello.md":  "---\ntitle: Hello\ndate: 2024-01-02\ntags: [go]\n---\n# Hello\nFirst para.\n",
		"posts/second.md": "# Second\ntext #sf\n",
		"img/a.png":       "png",
		".git/HEAD":       "ref",
	}
}

func syncSnapshot(t *testing.T, provider storage.Provider, opts Options) (*nodestore.Snapshot, Stats) {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quiet
	}
	store := nodestore.New()
	stats, err := Sync(context.Background(), store, provider, opts)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	return store.Freeze(), stats
}

func TestSync_CreatesNodes(t *testing.T) {
	dir, provider := testutil.TestContent(t, contentFiles())
	snap, stats := syncSnapshot(t, provider, Options{})

	if stats.Files != 3 || stats.Parsed != 2 || stats.Skipped != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if n := snap.Count(FileType); n != 3 {
		t.Errorf("File count = %d, want 3", n)
	}
	if n := snap.Count(MarkdownRemarkType); n != 2 {
		t.Errorf("MarkdownRemark count = %d, want 2", n)
	}

	file, ok := snap.Get(NodeID(FileType, "posts/hello.md"))
	if !ok {
		t.Fatal("hello.md File node missing")
	}
	if file.Fields["name"] != "hello" || file.Fields["extension"] != "md" || file.Fields["relativeDirectory"] != "posts" {
		t.Errorf("file fields = %v", file.Fields)
	}
	if file.Fields["absolutePath"] != filepath.Join(provider.Root(), "posts", "hello.md") {
		t.Errorf("absolutePath = %v (dir %s)", file.Fields["absolutePath"], dir)
	}
	if file.Internal.MediaType != "text/markdown" || file.Internal.Owner != DefaultOwner {
		t.Errorf("internal = %+v", file.Internal)
	}

	children := snap.Children(file)
	if len(children) != 1 {
		t.Fatalf("children = %d, want 1", len(children))
	}
	remark := children[0]
	if remark.Type() != MarkdownRemarkType || remark.Parent != file.ID {
		t.Errorf("remark = %+v", remark)
	}
	if remark.Fields["title"] != "Hello" || remark.Fields["excerpt"] != "First para." {
		t.Errorf("remark fields = %v", remark.Fields)
	}
	if remark.Internal.ContentDigest == "" {
		t.Error("remark digest is empty")
	}

	png, _ := snap.Get(NodeID(FileType, "img/a.png"))
	if png == nil || png.Internal.MediaType != "image/png" || len(png.Children) != 0 {
		t.Errorf("png = %+v", png)
	}
}

func TestSync_Queryable(t *testing.T) {
	_, provider := testutil.TestContent(t, contentFiles())
	snap, _ := syncSnapshot(t, provider, Options{})

	b := schema.NewBuilder()
	if err := b.AddSDL(SDL("extend type MarkdownRemarkFrontmatter { rating: Int }")); err != nil {
		t.Fatalf("AddSDL: %v", err)
	}
	reg, err := b.Seal()
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	exec := query.NewExecutor(reg, query.WithLogger(quiet))
	ctx := context.Background()

	n, err := exec.FindOne(ctx, snap, MarkdownRemarkType, filter.Expr{"frontmatter": map[string]any{"title": map[string]any{"eq": "Hello"}}}, nil)
	if err != nil {
		t.Fatalf("FindOne: %v", err)
	}
	if n.ID != NodeID(MarkdownRemarkType, "posts/hello.md") {
		t.Errorf("found %s", n.ID)
	}

	conn, err := exec.Query(ctx, snap, query.Request{
		Type:   FileType,
		Filter: filter.Expr{"childMarkdownRemark": map[string]any{"tags": map[string]any{"in": []any{"sf"}}}},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if conn.TotalCount != 1 || conn.Nodes[0].Fields["relativePath"] != "posts/second.md" {
		t.Errorf("nodes = %v", conn.Nodes)
	}

	conn, err = exec.Query(ctx, snap, query.Request{
		Type: FileType,
		Sort: &sorter.Spec{Fields: []string{"childMarkdownRemark___title"}, Order: []sorter.Order{sorter.Asc}},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	var paths []any
	for _, n := range conn.Nodes {
		paths = append(paths, n.Fields["relativePath"])
	}
	want := []any{"posts/hello.md", "posts/second.md", "img/a.png"}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("order = %v, want %v", paths, want)
		}
	}
}

func TestSync_UsesCache(t *testing.T) {
	dir, provider := testutil.TestContent(t, contentFiles())
	cache := testutil.TestCache(t)

	_, stats := syncSnapshot(t, provider, Options{Cache: cache})
	if stats.Parsed != 2 || stats.Cached != 0 {
		t.Errorf("first sync stats = %+v", stats)
	}

	snap, stats := syncSnapshot(t, provider, Options{Cache: cache})
	if stats.Parsed != 0 || stats.Cached != 3 {
		t.Errorf("second sync stats = %+v", stats)
	}
	remark, ok := snap.Get(NodeID(MarkdownRemarkType, "posts/hello.md"))
	if !ok || remark.Fields["title"] != "Hello" {
		t.Fatalf("cached remark = %+v", remark)
	}
	if remark.Parent != NodeID(FileType, "posts/hello.md") {
		t.Errorf("cached remark parent = %s", remark.Parent)
	}

	testutil.WriteFile(t, dir, "posts/hello.md", "# Hello again\n")
	if err := os.Remove(filepath.Join(dir, "posts", "second.md")); err != nil {
		t.Fatal(err)
	}
	snap, stats = syncSnapshot(t, provider, Options{Cache: cache})
	if stats.Parsed != 1 || stats.Cached != 1 || stats.Pruned != 1 {
		t.Errorf("third sync stats = %+v", stats)
	}
	remark, _ = snap.Get(NodeID(MarkdownRemarkType, "posts/hello.md"))
	if remark == nil || remark.Fields["title"] != "Hello again" {
		t.Errorf("reparsed remark = %+v", remark)
	}
}

func TestWarm(t *testing.T) {
	_, provider := testutil.TestContent(t, contentFiles())
	cache := testutil.TestCache(t)
	syncSnapshot(t, provider, Options{Cache: cache})

	store := nodestore.New()
	n, err := Warm(context.Background(), store, cache)
	if err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if n != 5 {
		t.Errorf("warmed %d nodes, want 5", n)
	}
	snap := store.Freeze()
	file, ok := snap.Get(NodeID(FileType, "posts/second.md"))
	if !ok {
		t.Fatal("file node missing after warm")
	}
	children := snap.Children(file)
	if len(children) != 1 || children[0].Fields["title"] != "Second" {
		t.Errorf("children = %v", children)
	}
}

func TestSync_Cancelled(t *testing.T) {
	_, provider := testutil.TestContent(t, contentFiles())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Sync(ctx, nodestore.New(), provider, Options{Logger: quiet})
	if !errors.Is(err, apperr.ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
}

func TestNodeID_Stable(t *testing.T) {
	a := NodeID(FileType, "a.md")
	if a != NodeID(FileType, "a.md") {
		t.Error("NodeID is not deterministic")
	}
	if a == NodeID(MarkdownRemarkType, "a.md") || a == NodeID(FileType, "b.md") {
		t.Error("NodeID collides across type or path")
	}
}

func TestMediaType(t *testing.T) {
	cases := map[string]string{
		".md":       "text/markdown",
		".MARKDOWN": "text/markdown",
		".png":      "image/png",
		"":          "application/octet-stream",
		".zzz":      "application/octet-stream",
	}
	for ext, want := range cases {
		if got := mediaType(ext); got != want {
			t.Errorf("mediaType(%q) = %q, want %q", ext, got, want)
		}
	}
}
