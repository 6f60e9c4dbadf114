package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the configuration file name looked up when none is given.
const DefaultFile = "metadesc.toml"

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	DataPath      []string      `toml:"data_path"`
	Descriptors   Descriptors   `toml:"descriptors"`
	Cache         Cache         `toml:"cache"`
	Trace         Trace         `toml:"trace"`
	Watch         Watch         `toml:"watch"`
	Output        Output        `toml:"output"`
	DB            Database      `toml:"db"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	StateDir    string `toml:"state_dir"`
	DatabaseDir string `toml:"database_dir"`
}

// Descriptors selects the root descriptors to resolve.
type Descriptors struct {
	Roots   []string `toml:"roots"`
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
	Kinds   []string `toml:"kinds"`
}

type Cache struct {
	NameLookups int `toml:"name_lookups"`
}

type Trace struct {
	Enabled bool `toml:"enabled"`
	// Aggregate folds the traces of successive watch runs into one.
	Aggregate bool `toml:"aggregate"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// Rate bounds re-resolutions per second; Burst allows short spikes.
	Rate  float64 `toml:"rate"`
	Burst int     `toml:"burst"`
}

type Output struct {
	EmitDir string `toml:"emit_dir"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Driver      string        `toml:"driver"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type Observability struct {
	Enabled       bool   `toml:"enabled"`
	Port          int    `toml:"port"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	EnableTracing bool   `toml:"enable_tracing"`
	EnableMetrics bool   `toml:"enable_metrics"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Save writes cfg as TOML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// FindConfig returns the first existing candidate, trying DefaultFile in the
// working directory when explicit is empty.
func FindConfig(explicit string) (string, bool) {
	candidates := []string{DefaultFile, filepath.Join("data", "config", DefaultFile)}
	if strings.TrimSpace(explicit) != "" {
		candidates = []string{explicit}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	return "", false
}
