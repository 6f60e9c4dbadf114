package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	coreapp "metadesc/internal/core/app"
	"metadesc/internal/core/config"
	"metadesc/internal/core/ports"
	"metadesc/internal/data/history"
	"metadesc/internal/shared/observability"
)

func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "metadesc v%s\n", versionString)
		return 0
	}

	configureLogging(stderr, opts.verbose)

	cfg, cfgPath, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	if err := applyModeOptions(&opts, cfg); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	shutdownTracing, err := setupTracing(ctx, cfg)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("failed to flush spans", "error", err)
		}
	}()

	a, err := newApp(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer a.Close()
	svc := a.ResolutionService()

	if cfg.Observability.Enabled && cfg.Observability.EnableMetrics {
		server := NewObservabilityServer(fmt.Sprintf(":%d", cfg.Observability.Port), coreapp.NewHealthService(a))
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return 1
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Stop(stopCtx)
		}()
	}

	result, err := svc.ResolveAll(ctx, ports.ResolveRequest{Paths: opts.args, Trigger: coreapp.TriggerOnce})
	if err != nil {
		slog.Error("resolution failed", "error", err)
		return 1
	}
	printResult(stdout, result, opts.trace)

	if opts.history {
		if err := printHistory(ctx, stdout, svc, opts); err != nil {
			slog.Error("history report failed", "error", err)
			return 1
		}
	}

	if !opts.watch {
		if result.FailedCount() > 0 {
			return 1
		}
		return 0
	}

	if err := runWatch(ctx, stdout, a, cfgPath, opts); err != nil {
		slog.Error("watch mode failed", "error", err)
		return 1
	}
	return 0
}

// runWatch keeps resolving until ctx is done. A change to the config file
// rebuilds the app from the reloaded config.
func runWatch(ctx context.Context, stdout io.Writer, a *coreapp.App, cfgPath string, opts cliOptions) error {
	reloads := make(chan *config.Config, 1)
	if cfgPath != "" {
		cw := config.NewWatcher(cfgPath, a.Config.Watch.Debounce, func(cfg *config.Config) {
			select {
			case reloads <- cfg:
			default:
			}
		})
		if err := cw.Start(ctx); err != nil {
			slog.Warn("config watcher unavailable", "path", cfgPath, "error", err)
		} else {
			defer cw.Stop()
		}
	}

	current := a
	for {
		watchCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func(app *coreapp.App) {
			done <- app.Watch(watchCtx, func(res ports.ResolveResult) {
				printResult(stdout, res, opts.trace)
			})
		}(current)

		select {
		case err := <-done:
			cancel()
			printAggregate(stdout, current)
			if current != a {
				_ = current.Close()
			}
			return err
		case cfg := <-reloads:
			cancel()
			if err := <-done; err != nil {
				return err
			}
			if err := applyModeOptions(&opts, cfg); err != nil {
				slog.Error("reloaded config rejected", "error", err)
				continue
			}
			next, err := newApp(cfg)
			if err != nil {
				slog.Error("failed to rebuild app from reloaded config", "error", err)
				continue
			}
			if current != a {
				_ = current.Close()
			}
			current = next
			slog.Info("config reloaded, watching with new settings")
		}
	}
}

func newApp(cfg *config.Config) (*coreapp.App, error) {
	var appOpts []coreapp.Option
	if cfg.DB.Enabled {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		paths, err := config.ResolvePaths(cfg, cwd)
		if err != nil {
			return nil, err
		}
		store, err := history.Open(paths.DBPath, cfg.DB.BusyTimeout)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		appOpts = append(appOpts, coreapp.WithRunStore(history.NewAdapter(store)))
	}
	return coreapp.New(cfg, appOpts...)
}

func loadConfig(path string) (*config.Config, string, error) {
	found, ok := config.FindConfig(path)
	if !ok {
		if strings.TrimSpace(path) != "" {
			return nil, "", fmt.Errorf("config file %s not found", path)
		}
		cfg := config.Default()
		config.ApplyEnvOverrides(cfg)
		return cfg, "", nil
	}
	cfg, err := config.Load(found)
	if err != nil {
		return nil, "", err
	}
	config.ApplyEnvOverrides(cfg)
	return cfg, found, nil
}

func applyModeOptions(opts *cliOptions, cfg *config.Config) error {
	if opts.once && opts.watch {
		return fmt.Errorf("--once and --watch cannot be combined")
	}
	if !opts.history && (opts.since != "" || opts.historyLimit != 20) {
		return fmt.Errorf("--since and --history-limit require --history")
	}
	if opts.since != "" {
		if _, err := parseSince(opts.since); err != nil {
			return fmt.Errorf("invalid --since value %q: %w", opts.since, err)
		}
	}
	if opts.trace {
		cfg.Trace.Enabled = true
	}
	if opts.history {
		cfg.DB.Enabled = true
	}
	if opts.emit != "" {
		cfg.Output.EmitDir = opts.emit
	}
	return nil
}

func setupTracing(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.Observability.Enabled || !cfg.Observability.EnableTracing {
		return func(context.Context) error { return nil }, nil
	}
	return observability.SetupTracing(ctx, cfg.Observability.OTLPEndpoint)
}

func printHistory(ctx context.Context, w io.Writer, svc ports.ResolutionService, opts cliOptions) error {
	since, err := parseSince(opts.since)
	if err != nil {
		return err
	}
	report, err := svc.History(ctx, ports.HistoryRequest{Since: since, Limit: opts.historyLimit})
	if err != nil {
		return err
	}
	printTrend(w, report)
	return nil
}

func configureLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}
