package cli

import (
	"flag"
	"io"
	"time"
)

const versionString = "1.0.0"

type cliOptions struct {
	configPath   string
	once         bool
	watch        bool
	trace        bool
	history      bool
	historyLimit int
	since        string
	emit         string
	verbose      bool
	version      bool
	args         []string
}

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("metadesc", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", "", "Path to config file (default: ./metadesc.toml when present)")
	fs.BoolVar(&opts.once, "once", false, "Resolve all descriptors once and exit (default mode)")
	fs.BoolVar(&opts.watch, "watch", false, "Re-resolve descriptors whenever one changes")
	fs.BoolVar(&opts.trace, "trace", false, "Record and print the process trace of each run")
	fs.BoolVar(&opts.history, "history", false, "Store runs in the history database and print the trend")
	fs.IntVar(&opts.historyLimit, "history-limit", 20, "Number of recent runs in the history trend (requires --history)")
	fs.StringVar(&opts.since, "since", "", "Only include runs at/after this timestamp (RFC3339 or YYYY-MM-DD, requires --history)")
	fs.StringVar(&opts.emit, "emit", "", "Write resolved descriptors to this directory")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	opts.args = fs.Args()
	return opts, nil
}

func parseSince(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
