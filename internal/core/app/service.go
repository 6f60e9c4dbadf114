package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"metadesc/internal/core/errors"
	"metadesc/internal/core/ports"
	"metadesc/internal/data/history"
	"metadesc/internal/engine/metadata"
	"metadesc/internal/engine/resource"
	"metadesc/internal/engine/trace"
	"metadesc/internal/shared/observability"
	"metadesc/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const (
	TriggerOnce  = "once"
	TriggerWatch = "watch"

	traceComponent = "metadesc"
)

// Trace event types recorded per run and per descriptor.
const (
	EventRun     = "run"
	EventResolve = "resolve"
	EventParse   = "parse"
	EventImports = "imports"
	EventEmit    = "emit"
)

type resolutionService struct {
	app *App
}

var _ ports.ResolutionService = (*resolutionService)(nil)

func (s *resolutionService) ResolveAll(ctx context.Context, req ports.ResolveRequest) (ports.ResolveResult, error) {
	return s.app.ResolveAll(ctx, req)
}

func (s *resolutionService) Watch(ctx context.Context, handler func(ports.ResolveResult)) error {
	return s.app.Watch(ctx, handler)
}

func (s *resolutionService) History(ctx context.Context, req ports.HistoryRequest) (history.TrendReport, error) {
	return s.app.History(ctx, req)
}

func (s *resolutionService) AggregateTrace() *trace.ProcessTrace {
	return s.app.AggregateTrace()
}

func (s *resolutionService) Close() error {
	return s.app.Close()
}

// ResolveAll parses and resolves every selected root descriptor against one
// fresh resource manager. A failing descriptor is reported in its result and
// does not stop the run.
func (a *App) ResolveAll(ctx context.Context, req ports.ResolveRequest) (ports.ResolveResult, error) {
	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerOnce
	}
	ctx, span := observability.Tracer.Start(ctx, "app.ResolveAll",
		oteltrace.WithAttributes(attribute.String("metadesc.trigger", trigger)))
	defer span.End()

	files, err := a.DescriptorFiles(req.Paths)
	if err != nil {
		return ports.ResolveResult{}, errors.AddContext(
			errors.Wrap(err, errors.CodeNotFound, "could not list descriptors"),
			errors.CtxOperation, "scan")
	}

	started := a.timer.Now()
	rm := a.manager()
	pt := trace.New(a.Config.Trace.Enabled, trace.WithTimer(a.timer))
	result := ports.ResolveResult{Trace: pt}

	pt.StartEvent(traceComponent, EventRun, trigger)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			_ = pt.EndEvent(traceComponent, EventRun, "canceled")
			return result, err
		}
		res, skipped := a.resolveFile(ctx, rm, pt, path)
		if skipped {
			result.Skipped = append(result.Skipped, path)
			continue
		}
		result.Descriptors = append(result.Descriptors, res)
	}
	_ = pt.EndEvent(traceComponent, EventRun, fmt.Sprintf("%d descriptors", len(result.Descriptors)))

	result.Run = a.summarize(result, trigger, started, a.timer.Now().Sub(started))
	span.SetAttributes(
		attribute.Int("metadesc.descriptors", result.Run.DescriptorCount),
		attribute.Int("metadesc.failed", result.Run.FailedCount),
	)

	if a.Config.Trace.Aggregate {
		a.aggregate.Aggregate(pt)
	}

	if a.store != nil {
		saved, err := a.store.SaveRun(result.Run, records(result))
		if err != nil {
			a.logger.Warn("failed to record resolution run", "error", err)
		} else {
			result.Run = saved
			result.Saved = true
		}
	}

	a.recordLast(result.Run)
	a.logger.Info("resolution run finished",
		"trigger", trigger,
		"descriptors", result.Run.DescriptorCount,
		"failed", result.Run.FailedCount,
		"skipped", len(result.Skipped),
		"duration", result.Run.Duration)
	return result, nil
}

func (a *App) resolveFile(ctx context.Context, rm *resource.Manager, pt *trace.ProcessTrace, path string) (ports.DescriptorResult, bool) {
	res := ports.DescriptorResult{Path: path}
	loc, err := resource.ToLocator(path)
	if err != nil {
		res.Err = errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "invalid descriptor path"), errors.CtxPath, path)
		return res, false
	}
	res.Locator = loc
	start := a.timer.Now()

	pt.StartEvent(loc, EventResolve, "")
	pt.StartEvent(loc, EventParse, "")
	desc, err := a.parseRoot(path, loc)
	if err != nil {
		_ = pt.EndEvent(loc, EventParse, codeMessage(err))
		_ = pt.EndEvent(loc, EventResolve, codeMessage(err))
		res.Err = err
		res.Duration = a.timer.Now().Sub(start)
		a.logger.Warn("failed to parse descriptor", "path", path, "error", err)
		return res, false
	}
	_ = pt.EndEvent(loc, EventParse, "ok")

	res.Kind = desc.Kind()
	if !a.acceptsKind(res.Kind) {
		_ = pt.EndEvent(loc, EventResolve, "skipped")
		a.logger.Debug("descriptor kind not selected", "path", path, "kind", res.Kind)
		return res, true
	}

	pt.StartEvent(loc, EventImports, res.Kind.String())
	stats, err := metadata.Resolve(ctx, desc, rm)
	res.Stats = stats
	if err != nil {
		_ = pt.EndEvent(loc, EventImports, codeMessage(err))
		_ = pt.EndEvent(loc, EventResolve, codeMessage(err))
		res.Err = err
		res.Duration = a.timer.Now().Sub(start)
		a.logger.Warn("failed to resolve descriptor imports", "path", path, "kind", res.Kind, "error", err)
		return res, false
	}
	_ = pt.EndEvent(loc, EventImports, fmt.Sprintf("%d collected", stats.Collected))

	if a.Paths.EmitDir != "" {
		pt.StartEvent(loc, EventEmit, "")
		out, err := a.emit(desc, path)
		if err != nil {
			_ = pt.EndEvent(loc, EventEmit, codeMessage(err))
			_ = pt.EndEvent(loc, EventResolve, codeMessage(err))
			res.Err = err
			res.Duration = a.timer.Now().Sub(start)
			a.logger.Warn("failed to emit resolved descriptor", "path", path, "error", err)
			return res, false
		}
		res.Emitted = out
		_ = pt.EndEvent(loc, EventEmit, out)
	}

	_ = pt.EndEvent(loc, EventResolve, "ok")
	res.Duration = a.timer.Now().Sub(start)
	a.logger.Debug("resolved descriptor",
		"path", path,
		"kind", res.Kind,
		"collected", stats.Collected,
		"elements", metadata.CollectibleCount(desc),
		"imports", stats.ImportsFollowed,
		"cycles", stats.CyclesSkipped)
	return res, false
}

// parseRoot reads a root descriptor directly. Roots stay out of the import
// cache because resolution mutates them.
func (a *App) parseRoot(path, loc string) (metadata.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(
			errors.Wrap(err, errors.CodeImportUnreadable, "could not read descriptor"),
			errors.CtxLocator, loc)
	}
	return metadata.Parse(loc, data)
}

func (a *App) emit(desc metadata.Descriptor, path string) (string, error) {
	rel, err := filepath.Rel(a.rootFor(path), path)
	if err != nil {
		rel = filepath.Base(path)
	}
	out := filepath.Join(a.Paths.EmitDir, rel)
	data, err := metadata.Marshal(desc)
	if err != nil {
		return "", err
	}
	if err := util.WriteFileWithDirs(out, data, 0o644); err != nil {
		return "", errors.AddContext(errors.Wrap(err, errors.CodeInternal, "could not write resolved descriptor"), errors.CtxPath, out)
	}
	return out, nil
}

func (a *App) summarize(result ports.ResolveResult, trigger string, started time.Time, d time.Duration) history.Run {
	run := history.Run{
		ProjectKey:      a.projectKey(),
		StartedAt:       started.UTC(),
		Duration:        d,
		Trigger:         trigger,
		DescriptorCount: len(result.Descriptors),
		FailedCount:     result.FailedCount(),
	}
	for _, r := range result.Descriptors {
		run.Collected += r.Stats.Collected
		run.ImportsFollowed += r.Stats.ImportsFollowed
		run.CyclesSkipped += r.Stats.CyclesSkipped
	}
	if result.Trace.Enabled() {
		run.Trace = result.Trace.String()
	}
	return run
}

func records(result ports.ResolveResult) []history.Record {
	out := make([]history.Record, 0, len(result.Descriptors))
	for _, r := range result.Descriptors {
		rec := history.Record{
			Locator:         r.Locator,
			Kind:            r.Kind.String(),
			Collected:       r.Stats.Collected,
			Locators:        len(r.Stats.Locators),
			ImportsFollowed: r.Stats.ImportsFollowed,
			CyclesSkipped:   r.Stats.CyclesSkipped,
			Duration:        r.Duration,
		}
		if rec.Locator == "" {
			rec.Locator = r.Path
		}
		if r.Err != nil {
			code, ok := errors.CodeOf(r.Err)
			if !ok {
				code = errors.CodeInternal
			}
			rec.ErrorCode = string(code)
			rec.Error = r.Err.Error()
		}
		out = append(out, rec)
	}
	return out
}

// History builds a trend report from the stored runs.
func (a *App) History(ctx context.Context, req ports.HistoryRequest) (history.TrendReport, error) {
	if err := ctx.Err(); err != nil {
		return history.TrendReport{}, err
	}
	if a.store == nil {
		return history.TrendReport{}, errors.New(errors.CodeNotSupported, "history store is not configured")
	}
	key := req.ProjectKey
	if key == "" {
		key = a.projectKey()
	}
	runs, err := a.store.LoadRuns(key, req.Since, req.Limit)
	if err != nil {
		return history.TrendReport{}, errors.AddContext(err, errors.CtxOperation, "load_runs")
	}
	if len(runs) == 0 {
		return history.TrendReport{}, errors.AddContext(
			errors.New(errors.CodeNotFound, "no resolution runs recorded"),
			errors.CtxOperation, "load_runs")
	}
	return history.BuildTrendReport(key, runs)
}

func (a *App) projectKey() string {
	return filepath.Base(a.Paths.ProjectRoot)
}

func codeMessage(err error) string {
	if code, ok := errors.CodeOf(err); ok {
		return string(code)
	}
	return "error"
}
