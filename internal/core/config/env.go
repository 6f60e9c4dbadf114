package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: METADESC_[SECTION]_[KEY] (e.g., METADESC_OBSERVABILITY_PORT).
func ApplyEnvOverrides(cfg *Config) {
	// Paths
	setEnvString(&cfg.Paths.ProjectRoot, "METADESC_PATHS_PROJECT_ROOT")
	setEnvString(&cfg.Paths.StateDir, "METADESC_PATHS_STATE_DIR")
	setEnvString(&cfg.Paths.DatabaseDir, "METADESC_PATHS_DATABASE_DIR")

	// Data path, in OS path list form.
	if val, ok := os.LookupEnv("METADESC_DATA_PATH"); ok {
		slog.Info("applying env override", "key", "METADESC_DATA_PATH", "value", val)
		cfg.DataPath = splitList(val)
	}

	// Cache and trace
	setEnvInt(&cfg.Cache.NameLookups, "METADESC_CACHE_NAME_LOOKUPS")
	setEnvBool(&cfg.Trace.Enabled, "METADESC_TRACE_ENABLED")
	setEnvBool(&cfg.Trace.Aggregate, "METADESC_TRACE_AGGREGATE")

	// Database
	setEnvBool(&cfg.DB.Enabled, "METADESC_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "METADESC_DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "METADESC_DB_BUSY_TIMEOUT")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "METADESC_WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.Rate, "METADESC_WATCH_RATE")
	setEnvInt(&cfg.Watch.Burst, "METADESC_WATCH_BURST")

	// Output
	setEnvString(&cfg.Output.EmitDir, "METADESC_OUTPUT_EMIT_DIR")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "METADESC_OBSERVABILITY_ENABLED")
	setEnvInt(&cfg.Observability.Port, "METADESC_OBSERVABILITY_PORT")
	setEnvString(&cfg.Observability.OTLPEndpoint, "METADESC_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "METADESC_OBSERVABILITY_ENABLE_TRACING")
	setEnvBool(&cfg.Observability.EnableMetrics, "METADESC_OBSERVABILITY_ENABLE_METRICS")
}

// splitList splits an OS path list, keeping URL schemes attached.
func splitList(val string) []string {
	var out []string
	for _, p := range strings.Split(val, string(os.PathListSeparator)) {
		if n := len(out); n > 0 && strings.HasPrefix(p, "//") && !strings.ContainsAny(out[n-1], `/\`) {
			out[n-1] += ":" + p
			continue
		}
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Info("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Info("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Info("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Info("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Info("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
