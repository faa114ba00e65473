// Package ingest turns a content directory into File and MarkdownRemark
// nodes and keeps a node cache in step with it.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/node"
	"github.com/starford/nodeql/internal/nodecache"
	"github.com/starford/nodeql/internal/nodestore"
	"github.com/starford/nodeql/internal/parser"
	"github.com/starford/nodeql/internal/storage"
)

// DefaultOwner is the Internal.Owner of nodes created by Sync.
const DefaultOwner = "source-filesystem"

// Options configures Sync.
type Options struct {
	// Name is stored as File.sourceInstanceName. Defaults to "content".
	Name string
	// Owner defaults to DefaultOwner.
	Owner string
	// PruneLength bounds MarkdownRemark.excerpt. Defaults to
	// parser.DefaultPruneLength.
	PruneLength int
	// Cache, when set, is consulted before parsing and updated after.
	Cache  nodecache.Cache
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "content"
	}
	if o.Owner == "" {
		o.Owner = DefaultOwner
	}
	if o.PruneLength == 0 {
		o.PruneLength = parser.DefaultPruneLength
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Stats summarises one Sync run.
type Stats struct {
	Files   int
	Parsed  int
	Cached  int
	Skipped int
	Pruned  int
}

// Sync walks the content root and inserts one File node per file into store.
// Markdown files also get a MarkdownRemark child. Files that cannot be read
// are skipped and logged. With a cache, unchanged Markdown is taken from the
// cache and sources gone from disk are dropped from it.
func Sync(ctx context.Context, store *nodestore.Store, provider storage.Provider, opts Options) (Stats, error) {
	opts = opts.withDefaults()
	logger := opts.Logger
	var stats Stats

	files, err := provider.List("")
	if err != nil {
		return stats, fmt.Errorf("ingest: %w", err)
	}

	var cached map[string]string
	if opts.Cache != nil {
		if cached, err = opts.Cache.Checksums(ctx); err != nil {
			logger.Warn("sync: cache checksums failed", slog.String("error", err.Error()))
			cached = nil
		}
	}

	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		if err := apperr.CheckContext(ctx); err != nil {
			return stats, fmt.Errorf("ingest: %w", err)
		}
		disk[f.Path] = struct{}{}

		file := fileNode(provider.Root(), opts.Name, opts.Owner, f)
		derived, fresh, ok := derive(ctx, provider, opts, f, file, cached[f.Path] == f.Checksum)
		if !ok {
			stats.Skipped++
			continue
		}
		if err := store.Insert(file); err != nil {
			return stats, fmt.Errorf("ingest: %s: %w", f.Path, err)
		}
		for _, d := range derived {
			d.Parent = ""
			d.Children = nil
			if err := store.Insert(d); err != nil {
				return stats, fmt.Errorf("ingest: %s: %w", f.Path, err)
			}
			if err := store.AddChild(file.ID, d.ID); err != nil {
				return stats, fmt.Errorf("ingest: %s: %w", f.Path, err)
			}
		}
		stats.Files++

		switch {
		case !fresh:
			stats.Cached++
		case isMarkdown(f.Path):
			stats.Parsed++
		}
		if fresh && opts.Cache != nil {
			if err := opts.Cache.Put(ctx, f.Path, f.Checksum, append([]*node.Node{file}, derived...)); err != nil {
				logger.Warn("sync: cache put failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			}
		}
	}

	if opts.Cache != nil {
		for p := range cached {
			if _, ok := disk[p]; ok {
				continue
			}
			if err := opts.Cache.Delete(ctx, p); err != nil {
				logger.Warn("sync: cache delete failed", slog.String("path", p), slog.String("error", err.Error()))
				continue
			}
			stats.Pruned++
		}
	}

	logger.Info("sync: done",
		slog.Int("files", stats.Files),
		slog.Int("parsed", stats.Parsed),
		slog.Int("cached", stats.Cached),
		slog.Int("skipped", stats.Skipped),
		slog.Int("pruned", stats.Pruned),
	)
	return stats, nil
}

// derive returns the child nodes of file. fresh is false when they came from
// the cache; ok is false when the file has to be skipped.
func derive(ctx context.Context, provider storage.Provider, opts Options, f storage.FileInfo, file *node.Node, unchanged bool) (derived []*node.Node, fresh, ok bool) {
	logger := opts.Logger

	if unchanged {
		nodes, hit, err := opts.Cache.Lookup(ctx, f.Path, f.Checksum)
		if err != nil {
			logger.Warn("sync: cache lookup failed", slog.String("path", f.Path), slog.String("error", err.Error()))
		}
		if hit {
			for _, n := range nodes {
				if n.Type() != FileType {
					derived = append(derived, n)
				}
			}
			return derived, false, true
		}
	}

	if !isMarkdown(f.Path) {
		return nil, true, true
	}
	data, err := provider.Read(f.Path)
	if err != nil {
		logger.Warn("sync: read failed", slog.String("path", f.Path), slog.String("error", err.Error()))
		return nil, false, false
	}
	doc, err := parser.ParseWithPrune(data, opts.PruneLength)
	if err != nil {
		logger.Warn("sync: parse failed", slog.String("path", f.Path), slog.String("error", err.Error()))
		return nil, false, false
	}
	remark, err := remarkNode(file, opts.Owner, doc)
	if err != nil {
		logger.Warn("sync: build node failed", slog.String("path", f.Path), slog.String("error", err.Error()))
		return nil, false, false
	}
	logger.Debug("sync: parsed", slog.String("path", f.Path))
	return []*node.Node{remark}, true, true
}

// Warm fills store from the cache alone. It is the fallback when the content
// root cannot be read.
func Warm(ctx context.Context, store *nodestore.Store, cache nodecache.Cache) (int, error) {
	nodes, err := cache.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("ingest: warm: %w", err)
	}
	for _, n := range nodes {
		n.Children = nil
		if err := store.Insert(n); err != nil {
			return 0, fmt.Errorf("ingest: warm: %w", err)
		}
	}
	for _, n := range nodes {
		if n.Parent == "" {
			continue
		}
		if err := store.AddChild(n.Parent, n.ID); err != nil {
			return 0, fmt.Errorf("ingest: warm: %w", err)
		}
	}
	return len(nodes), nil
}
