package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// KnownKinds lists the descriptor kinds accepted in descriptors.kinds.
var KnownKinds = []string{
	"type_system",
	"type_priorities",
	"fs_index_collection",
	"resource_manager_configuration",
	"external_override_settings",
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateDescriptors(cfg *Config) error {
	for field, patterns := range map[string][]string{
		"descriptors.include": cfg.Descriptors.Include,
		"descriptors.exclude": cfg.Descriptors.Exclude,
	} {
		for _, p := range patterns {
			if _, err := glob.Compile(p, '/'); err != nil {
				return fmt.Errorf("%s: invalid pattern %q: %w", field, p, err)
			}
		}
	}
	for _, k := range cfg.Descriptors.Kinds {
		if !knownKind(k) {
			return fmt.Errorf("descriptors.kinds: unknown kind %q; expected one of %s", k, strings.Join(KnownKinds, ", "))
		}
	}
	return nil
}

func knownKind(k string) bool {
	for _, known := range KnownKinds {
		if k == known {
			return true
		}
	}
	return false
}

func validateDatabase(cfg *Config) error {
	if !cfg.DB.Enabled {
		return nil
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	if driver != "sqlite" {
		return fmt.Errorf("db.driver must be sqlite, got %q", cfg.DB.Driver)
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if cfg.Observability.Enabled && (cfg.Observability.Port <= 0 || cfg.Observability.Port > 65535) {
		return fmt.Errorf("observability.port must be between 1 and 65535, got %d", cfg.Observability.Port)
	}
	if cfg.Observability.EnableTracing && cfg.Observability.OTLPEndpoint == "" {
		return fmt.Errorf("observability.otlp_endpoint is required when enable_tracing is set")
	}
	return nil
}
