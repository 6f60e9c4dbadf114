package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"metadesc/internal/core/config"
	"metadesc/internal/core/ports"
	"metadesc/internal/core/watcher"
	"metadesc/internal/data/history"
	"metadesc/internal/engine/metadata"
	"metadesc/internal/engine/resource"
	"metadesc/internal/engine/trace"
)

// App resolves the descriptors selected by a configuration. Every run gets a
// fresh resource manager so edited imports are always read again.
type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths

	filter  *watcher.Filter
	kinds   map[metadata.Kind]bool
	store   ports.RunStore
	logger  *slog.Logger
	timer   trace.Timer
	manager func() *resource.Manager

	aggregate *trace.ProcessTrace

	lastMu  sync.Mutex
	last    history.Run
	hasLast bool
}

type Option func(*App)

// WithRunStore records every run in store.
func WithRunStore(store ports.RunStore) Option {
	return func(a *App) {
		a.store = store
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTimer replaces the clock used by process traces.
func WithTimer(t trace.Timer) Option {
	return func(a *App) {
		if t != nil {
			a.timer = t
		}
	}
}

// WithManagerFactory overrides how the per-run resource manager is built.
func WithManagerFactory(f func() *resource.Manager) Option {
	return func(a *App) {
		if f != nil {
			a.manager = f
		}
	}
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		return nil, err
	}

	filter, err := watcher.NewFilter(cfg.Descriptors.Include, cfg.Descriptors.Exclude)
	if err != nil {
		return nil, err
	}

	kinds := make(map[metadata.Kind]bool, len(cfg.Descriptors.Kinds))
	for _, k := range cfg.Descriptors.Kinds {
		kinds[metadata.Kind(strings.ToLower(k))] = true
	}

	a := &App{
		Config: cfg,
		Paths:  paths,
		filter: filter,
		kinds:  kinds,
		logger: slog.Default(),
		timer:  trace.WallTimer,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.manager == nil {
		a.manager = a.defaultManager
	}
	a.aggregate = trace.New(cfg.Trace.Enabled && cfg.Trace.Aggregate, trace.WithTimer(a.timer))
	return a, nil
}

func (a *App) defaultManager() *resource.Manager {
	opts := []resource.Option{
		resource.WithLogger(a.logger),
		resource.WithLookupCapacity(a.Config.Cache.NameLookups),
	}
	if len(a.Paths.DataPath) > 0 {
		opts = append(opts, resource.WithDataPath(a.Paths.DataPath...))
	}
	m := resource.New(opts...)
	if v, ok := os.LookupEnv(resource.DataPathEnv); ok && len(a.Paths.DataPath) == 0 {
		m.SetDataPath(v)
	}
	return m
}

// ResolutionService exposes the app through the driving port.
func (a *App) ResolutionService() ports.ResolutionService {
	return &resolutionService{app: a}
}

// AggregateTrace returns the trace folded over all runs so far. It is
// disabled unless both trace.enabled and trace.aggregate are set.
func (a *App) AggregateTrace() *trace.ProcessTrace {
	return a.aggregate
}

func (a *App) recordLast(run history.Run) {
	a.lastMu.Lock()
	a.last, a.hasLast = run, true
	a.lastMu.Unlock()
}

func (a *App) lastRun() (history.Run, bool) {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	return a.last, a.hasLast
}

func (a *App) acceptsKind(k metadata.Kind) bool {
	return len(a.kinds) == 0 || a.kinds[k]
}

func (a *App) Close() error {
	if c, ok := a.store.(interface{ Close() error }); ok && c != nil {
		return c.Close()
	}
	return nil
}
