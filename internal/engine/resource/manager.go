package resource

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"metadesc/internal/core/errors"
	"metadesc/internal/shared/observability"
)

// DataPathEnv names the environment variable NewDefault reads the data path from.
const DataPathEnv = "METADESC_DATA_PATH"

const defaultLookupCapacity = 256

// ParseFunc turns fetched descriptor bytes into a descriptor object.
type ParseFunc = func(locator string, data []byte) (any, error)

// Manager owns everything that import resolution shares across calls: the
// data path searched for by-name imports, extra name providers, the fetcher
// and the import cache.
type Manager struct {
	fetcher Fetcher
	logger  *slog.Logger

	mu        sync.RWMutex
	dataPath  []string
	providers []NameProvider

	cache   *ImportCache
	lookups *LRUCache[string, string]
}

type Option func(*Manager)

func WithFetcher(f Fetcher) Option {
	return func(m *Manager) {
		if f != nil {
			m.fetcher = f
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDataPath sets the ordered directory list searched for by-name imports.
// Entries may be plain paths or locators.
func WithDataPath(dirs ...string) Option {
	return func(m *Manager) {
		m.dataPath = normalizeDirs(dirs)
	}
}

func WithProviders(p ...NameProvider) Option {
	return func(m *Manager) {
		m.providers = append(m.providers, p...)
	}
}

func WithLookupCapacity(n int) Option {
	return func(m *Manager) {
		m.lookups = NewLRUCache[string, string](n)
	}
}

func New(opts ...Option) *Manager {
	m := &Manager{
		logger: slog.Default(),
		cache:  NewImportCache(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.fetcher == nil {
		m.fetcher = NewAFSFetcher(nil)
	}
	if m.lookups == nil {
		m.lookups = NewLRUCache[string, string](defaultLookupCapacity)
	}
	return m
}

// NewDefault returns a manager whose data path comes from METADESC_DATA_PATH.
func NewDefault() *Manager {
	m := New()
	if v, ok := os.LookupEnv(DataPathEnv); ok {
		m.SetDataPath(v)
	}
	return m
}

// SetDataPath replaces the data path with a list separated by the OS path
// list separator. Cached name lookups are dropped.
func (m *Manager) SetDataPath(list string) {
	dirs := SplitDataPath(list)
	m.mu.Lock()
	m.dataPath = normalizeDirs(dirs)
	m.mu.Unlock()
	m.lookups.Clear()
}

// DataPath returns the directory locators searched for by-name imports.
func (m *Manager) DataPath() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.dataPath))
	copy(out, m.dataPath)
	return out
}

func (m *Manager) AddProvider(p NameProvider) {
	if p == nil {
		return
	}
	m.mu.Lock()
	m.providers = append(m.providers, p)
	m.mu.Unlock()
	m.lookups.Clear()
}

func (m *Manager) ImportCache() *ImportCache {
	return m.cache
}

func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

// ResolveRelativePath finds filename (slash separated) in the data path and
// then through the registered providers, in that order.
func (m *Manager) ResolveRelativePath(ctx context.Context, filename string) (string, bool, error) {
	if loc, ok := m.lookups.Get(filename); ok {
		observability.NameLookupsTotal.WithLabelValues("cached").Inc()
		return loc, true, nil
	}

	m.mu.RLock()
	dirs := append([]string(nil), m.dataPath...)
	providers := append([]NameProvider(nil), m.providers...)
	m.mu.RUnlock()

	for _, dir := range dirs {
		candidate := JoinDir(dir, filename)
		ok, err := m.fetcher.Exists(ctx, candidate)
		if err != nil {
			m.logger.Debug("data path probe failed", "candidate", candidate, "error", err)
			continue
		}
		if ok {
			m.lookups.Put(filename, candidate)
			observability.NameLookupsTotal.WithLabelValues("data_path").Inc()
			return candidate, true, nil
		}
	}

	for _, p := range providers {
		loc, ok, err := p.FindResource(ctx, filename)
		if err != nil {
			return "", false, errors.AddContext(
				errors.Wrap(err, errors.CodeImportNotFound, "name provider failed"),
				errors.CtxPath, filename)
		}
		if ok {
			m.lookups.Put(filename, loc)
			observability.NameLookupsTotal.WithLabelValues("provider").Inc()
			return loc, true, nil
		}
	}

	observability.NameLookupsTotal.WithLabelValues("missing").Inc()
	return "", false, nil
}

// Load returns the descriptor published at locator, fetching and parsing it
// on first use. Concurrent loads of the same locator parse it once.
func (m *Manager) Load(ctx context.Context, locator string, parse ParseFunc) (any, error) {
	return m.cache.GetOrLoad(ctx, locator, func(ctx context.Context) (any, error) {
		data, err := m.fetcher.Fetch(ctx, locator)
		if err != nil {
			return nil, errors.AddContext(
				errors.Wrap(err, errors.CodeImportUnreadable, "could not read descriptor"),
				errors.CtxLocator, locator)
		}
		desc, err := parse(locator, data)
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxLocator, locator)
		}
		m.logger.Debug("descriptor loaded into import cache", "locator", locator, "bytes", len(data))
		return desc, nil
	})
}

// SplitDataPath splits a path list on the OS list separator. On systems
// where the separator is ':' a URL scheme is kept with the rest of its URL.
func SplitDataPath(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	var out []string
	for _, p := range filepath.SplitList(list) {
		if n := len(out); n > 0 && strings.HasPrefix(p, "//") && isScheme(out[n-1]) {
			out[n-1] += ":" + p
			continue
		}
		out = append(out, p)
	}
	return out
}

func isScheme(s string) bool {
	if len(s) < 2 {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return false
		}
	}
	return true
}

func normalizeDirs(dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		loc, err := ToLocator(d)
		if err != nil {
			continue
		}
		out = append(out, strings.TrimRight(loc, "/"))
	}
	return out
}
