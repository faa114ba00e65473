package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/nodeql/internal/apperr"
	"github.com/starford/nodeql/internal/ingest"
	"github.com/starford/nodeql/internal/nodecache"
	"github.com/starford/nodeql/internal/nodeservice"
	"github.com/starford/nodeql/internal/nodestore"
	"github.com/starford/nodeql/internal/query"
	"github.com/starford/nodeql/internal/schema"
	"github.com/starford/nodeql/internal/sse"
	"github.com/starford/nodeql/internal/storage"
)

// engine ties the registry, the node cache and the serving snapshot
// together. serve, query and mcp all build one.
type engine struct {
	cfg     *Config
	logger  *slog.Logger
	svc     *nodeservice.Service
	cache   *nodecache.DB
	broker  *sse.Broker
	metrics *rebuildMetrics
}

func newEngine(ctx context.Context, cfg *Config, logger *slog.Logger, promReg prometheus.Registerer) (*engine, error) {
	reg, err := loadRegistry(cfg.Schema)
	if err != nil {
		return nil, err
	}

	exec := query.NewExecutor(reg,
		query.WithLogger(logger),
		query.WithMetrics(query.NewMetrics(promReg)),
		query.WithTimeout(cfg.Query.Timeout),
		query.WithMaxLimit(cfg.Query.MaxLimit),
		query.WithWorkers(cfg.Query.Workers),
	)

	e := &engine{
		cfg:     cfg,
		logger:  logger,
		svc:     nodeservice.NewService(exec),
		metrics: newRebuildMetrics(promReg),
	}

	if cfg.SQLite.Enabled() {
		db, err := nodecache.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init node cache: %w", err)
		}
		e.cache = db
	}
	return e, nil
}

// loadRegistry seals the built-in content types together with the user SDL,
// if any.
func loadRegistry(cfg SchemaConfig) (*schema.Registry, error) {
	var user string
	if cfg.Path != "" {
		data, err := os.ReadFile(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		user = string(data)
	}

	b := schema.NewBuilder(schema.WithMaxDepth(cfg.MaxDepth))
	if err := b.AddSDL(ingest.SDL(user)); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	reg, err := b.Seal()
	if err != nil {
		return nil, fmt.Errorf("seal schema: %w", err)
	}
	return reg, nil
}

func (e *engine) close() {
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			e.logger.Warn("close node cache", slog.String("error", err.Error()))
		}
	}
}

// rebuild crawls the content root into a fresh store, freezes it and swaps
// it in. Queries already running keep the snapshot they started with.
func (e *engine) rebuild(ctx context.Context) error {
	start := time.Now()

	store, err := e.load(ctx)
	if err != nil {
		e.metrics.observe(err, time.Since(start), 0)
		return err
	}
	snap := store.Freeze()
	e.svc.Swap(snap)

	elapsed := time.Since(start)
	e.metrics.observe(nil, elapsed, snap.Len())

	types := make(map[string]int)
	for _, t := range snap.Types() {
		types[t] = snap.Count(t)
	}
	e.logger.Info("snapshot rebuilt",
		slog.Int("nodes", snap.Len()),
		slog.Int("types", len(types)),
		slog.Duration("elapsed", elapsed))

	if e.broker != nil {
		e.broker.PublishRebuild(sse.Rebuild{
			Nodes:    snap.Len(),
			Types:    types,
			FrozenAt: snap.FrozenAt(),
			Elapsed:  elapsed,
		})
	}
	return nil
}

// load syncs the content root into a new store. When the root cannot be
// crawled and a cache is configured, the store is warmed from the cache
// instead.
func (e *engine) load(ctx context.Context) (*nodestore.Store, error) {
	store := nodestore.New()
	opts := ingest.Options{
		Name:        e.cfg.Content.Name,
		PruneLength: e.cfg.Content.PruneLength,
		Logger:      e.logger,
	}
	if e.cache != nil {
		opts.Cache = e.cache
	}

	provider, err := storage.NewFS(e.cfg.Content.Path, storage.WithLogger(e.logger))
	if err == nil {
		_, err = ingest.Sync(ctx, store, provider, opts)
		if err == nil {
			return store, nil
		}
	}
	if errors.Is(err, apperr.ErrCancelled) || e.cache == nil {
		return nil, fmt.Errorf("sync content: %w", err)
	}

	e.logger.Warn("content unreadable, warming from node cache",
		slog.String("path", e.cfg.Content.Path),
		slog.String("error", err.Error()))

	store = nodestore.New()
	n, werr := ingest.Warm(ctx, store, e.cache)
	if werr != nil {
		return nil, fmt.Errorf("warm from cache: %w", werr)
	}
	e.logger.Info("warmed from node cache", slog.Int("nodes", n))
	return store, nil
}

// rebuildMetrics records snapshot rebuilds. A nil *rebuildMetrics records
// nothing.
type rebuildMetrics struct {
	rebuilds *prometheus.CounterVec
	duration prometheus.Histogram
	nodes    prometheus.Gauge
}

func newRebuildMetrics(reg prometheus.Registerer) *rebuildMetrics {
	if reg == nil {
		return nil
	}
	m := &rebuildMetrics{
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nodeql",
			Subsystem: "snapshot",
			Name:      "rebuilds_total",
			Help:      "Snapshot rebuilds, by outcome",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "nodeql",
			Subsystem: "snapshot",
			Name:      "rebuild_duration_seconds",
			Help:      "Time spent crawling and freezing a snapshot",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nodeql",
			Subsystem: "snapshot",
			Name:      "nodes",
			Help:      "Nodes in the snapshot being served",
		}),
	}
	reg.MustRegister(m.rebuilds, m.duration, m.nodes)
	return m
}

func (m *rebuildMetrics) observe(err error, elapsed time.Duration, nodes int) {
	if m == nil {
		return
	}
	if err != nil {
		m.rebuilds.WithLabelValues("error").Inc()
		return
	}
	m.rebuilds.WithLabelValues("ok").Inc()
	m.duration.Observe(elapsed.Seconds())
	m.nodes.Set(float64(nodes))
}
