package ports

import (
	"context"
	"time"

	"metadesc/internal/data/history"
	"metadesc/internal/engine/metadata"
	"metadesc/internal/engine/trace"
)

// RunStore abstracts persistence of resolution runs.
type RunStore interface {
	SaveRun(run history.Run, records []history.Record) (history.Run, error)
	LoadRuns(projectKey string, since time.Time, limit int) ([]history.Run, error)
	LoadRecords(runID string) ([]history.Record, error)
}

// ResolveRequest selects the descriptors of one run. Empty Paths means the
// configured roots.
type ResolveRequest struct {
	Paths   []string
	Trigger string
}

// DescriptorResult is the outcome for one root descriptor.
type DescriptorResult struct {
	Path     string
	Locator  string
	Kind     metadata.Kind
	Stats    metadata.Stats
	Duration time.Duration
	Emitted  string
	Err      error
}

func (r DescriptorResult) Failed() bool {
	return r.Err != nil
}

// ResolveResult summarizes a completed run.
type ResolveResult struct {
	Run         history.Run
	Descriptors []DescriptorResult
	Skipped     []string
	Trace       *trace.ProcessTrace
	Saved       bool
}

func (r ResolveResult) FailedCount() int {
	n := 0
	for _, d := range r.Descriptors {
		if d.Failed() {
			n++
		}
	}
	return n
}

// HistoryRequest selects stored runs for a trend report.
type HistoryRequest struct {
	ProjectKey string
	Since      time.Time
	Limit      int
}

// ResolutionService is the driving port used by the CLI.
type ResolutionService interface {
	ResolveAll(ctx context.Context, req ResolveRequest) (ResolveResult, error)
	Watch(ctx context.Context, handler func(ResolveResult)) error
	History(ctx context.Context, req HistoryRequest) (history.TrendReport, error)
	AggregateTrace() *trace.ProcessTrace
	Close() error
}
