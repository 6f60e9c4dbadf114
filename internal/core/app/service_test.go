package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"metadesc/internal/core/errors"
	"metadesc/internal/core/ports"
	"metadesc/internal/data/history"
	"metadesc/internal/engine/metadata"
	"metadesc/internal/engine/trace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byPath(t *testing.T, res ports.ResolveResult, path string) ports.DescriptorResult {
	t.Helper()
	for _, d := range res.Descriptors {
		if d.Path == path {
			return d
		}
	}
	t.Fatalf("no result for %s in %+v", path, res.Descriptors)
	return ports.DescriptorResult{}
}

func TestResolveAll_ResolvesRootsAndRecordsTrace(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"main.xml":     typeSystem([]string{"a.Main"}, "lib/base.xml"),
		"lib/base.xml": typeSystem([]string{"a.Base"}),
		"notes.txt":    "ignored",
	})

	a := newTestApp(t, testConfig(root))
	res, err := a.ResolveAll(context.Background(), ports.ResolveRequest{})
	require.NoError(t, err)

	require.Len(t, res.Descriptors, 2)
	assert.Equal(t, TriggerOnce, res.Run.Trigger)
	assert.Equal(t, 2, res.Run.DescriptorCount)
	assert.Zero(t, res.Run.FailedCount)

	main := byPath(t, res, filepath.Join(root, "main.xml"))
	require.NoError(t, main.Err)
	assert.Equal(t, metadata.KindTypeSystem, main.Kind)
	assert.Equal(t, 2, main.Stats.Collected)
	assert.Equal(t, 1, main.Stats.ImportsFollowed)
	assert.Len(t, main.Stats.Locators, 1)

	require.True(t, res.Trace.Enabled())
	assert.Len(t, res.Trace.EventsByType(EventResolve, false), 2)
	run := res.Trace.Event(traceComponent, EventRun)
	require.NotNil(t, run)
	assert.Len(t, run.SubEvents, 2)
	assert.Contains(t, res.Run.Trace, EventResolve)
}

func TestResolveAll_EmitsResolvedDescriptors(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"main.xml":     typeSystem([]string{"a.Main"}, "lib/base.xml"),
		"lib/base.xml": typeSystem([]string{"a.Base"}),
	})
	cfg := testConfig(root)
	cfg.Output.EmitDir = "out"

	a := newTestApp(t, cfg)
	res, err := a.ResolveAll(context.Background(), ports.ResolveRequest{})
	require.NoError(t, err)

	main := byPath(t, res, filepath.Join(root, "main.xml"))
	require.Equal(t, filepath.Join(root, "out", "main.xml"), main.Emitted)

	data, err := os.ReadFile(main.Emitted)
	require.NoError(t, err)
	emitted, err := metadata.Parse("", data)
	require.NoError(t, err)
	ts, ok := emitted.(*metadata.TypeSystemDescription)
	require.True(t, ok)
	assert.Empty(t, ts.Imports())
	assert.Len(t, ts.Types(), 2)

	// Emitted files are outputs, not roots.
	again, err := a.ResolveAll(context.Background(), ports.ResolveRequest{})
	require.NoError(t, err)
	assert.Len(t, again.Descriptors, 2)
}

func TestResolveAll_ReportsFailuresPerDescriptor(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"good.xml":   typeSystem([]string{"a.Good"}),
		"broken.xml": typeSystem([]string{"a.Broken"}, "missing.xml"),
		"bad.xml":    "<typeSystemDescription",
	})

	a := newTestApp(t, testConfig(root))
	res, err := a.ResolveAll(context.Background(), ports.ResolveRequest{})
	require.NoError(t, err)
	require.Len(t, res.Descriptors, 3)
	assert.Equal(t, 2, res.FailedCount())
	assert.Equal(t, 2, res.Run.FailedCount)

	assert.NoError(t, byPath(t, res, filepath.Join(root, "good.xml")).Err)
	broken := byPath(t, res, filepath.Join(root, "broken.xml"))
	require.Error(t, broken.Err)
	assert.True(t, errors.IsCode(broken.Err, errors.CodeImportUnreadable), "got %v", broken.Err)
	assert.Error(t, byPath(t, res, filepath.Join(root, "bad.xml")).Err)

	recs := records(res)
	for _, r := range recs {
		if r.Locator == broken.Locator {
			assert.Equal(t, string(errors.CodeImportUnreadable), r.ErrorCode)
		}
	}
}

func TestResolveAll_KindsFilter(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"ts.xml":  typeSystem([]string{"a.T"}),
		"pri.xml": `<typePriorities xmlns="` + ns + `"><name>p</name></typePriorities>`,
	})
	cfg := testConfig(root)
	cfg.Descriptors.Kinds = []string{"type_priorities"}

	a := newTestApp(t, cfg)
	res, err := a.ResolveAll(context.Background(), ports.ResolveRequest{})
	require.NoError(t, err)
	require.Len(t, res.Descriptors, 1)
	assert.Equal(t, metadata.KindTypePriorities, res.Descriptors[0].Kind)
	assert.Equal(t, []string{filepath.Join(root, "ts.xml")}, res.Skipped)
}

func TestResolveAll_ExplicitPaths(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.xml": typeSystem([]string{"a.A"}),
		"b.xml": typeSystem([]string{"a.B"}),
	})

	a := newTestApp(t, testConfig(root))
	res, err := a.ResolveAll(context.Background(), ports.ResolveRequest{Paths: []string{filepath.Join(root, "b.xml")}})
	require.NoError(t, err)
	require.Len(t, res.Descriptors, 1)
	assert.Equal(t, filepath.Join(root, "b.xml"), res.Descriptors[0].Path)

	_, err = a.ResolveAll(context.Background(), ports.ResolveRequest{Paths: []string{filepath.Join(root, "nope.xml")}})
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestResolveAll_CanceledContext(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.xml": typeSystem([]string{"a.A"})})

	a := newTestApp(t, testConfig(root))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.ResolveAll(ctx, ports.ResolveRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveAll_HistoryStore(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"main.xml":     typeSystem([]string{"a.Main"}, "lib/base.xml"),
		"lib/base.xml": typeSystem([]string{"a.Base"}),
	})
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"), 0)
	require.NoError(t, err)

	a := newTestApp(t, testConfig(root), WithRunStore(history.NewAdapter(store)))
	svc := a.ResolutionService()

	_, err = svc.History(context.Background(), ports.HistoryRequest{})
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	first, err := svc.ResolveAll(context.Background(), ports.ResolveRequest{})
	require.NoError(t, err)
	require.True(t, first.Saved)
	require.NotEmpty(t, first.Run.ID)

	_, err = svc.ResolveAll(context.Background(), ports.ResolveRequest{Trigger: TriggerWatch})
	require.NoError(t, err)

	report, err := svc.History(context.Background(), ports.HistoryRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.RunCount)
	assert.Equal(t, filepath.Base(root), report.ProjectKey)
	assert.Zero(t, report.Points[1].DeltaCollected)

	recs, err := store.LoadRecords(first.Run.ID)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestHistory_WithoutStore(t *testing.T) {
	a := newTestApp(t, testConfig(t.TempDir()))
	_, err := a.History(context.Background(), ports.HistoryRequest{})
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
}

func TestResolveAll_AggregatesTraceAcrossRuns(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.xml": typeSystem([]string{"a.A"})})
	cfg := testConfig(root)
	cfg.Trace.Aggregate = true

	clock := trace.NewManualTimer(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	a := newTestApp(t, cfg, WithTimer(clock))
	for i := 0; i < 3; i++ {
		_, err := a.ResolveAll(context.Background(), ports.ResolveRequest{})
		require.NoError(t, err)
	}

	agg := a.AggregateTrace()
	require.True(t, agg.Enabled())
	require.Len(t, agg.Events(), 1)
	run := agg.Event(traceComponent, EventRun)
	require.NotNil(t, run)
	assert.Len(t, run.SubEvents, 1)
}

func TestHealthService(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"bad.xml": "<nope/>"})

	a := newTestApp(t, testConfig(root))
	health := NewHealthService(a)
	assert.Equal(t, "up", health.Check(context.Background()).Status)

	_, err := a.ResolveAll(context.Background(), ports.ResolveRequest{})
	require.NoError(t, err)
	status := health.Check(context.Background())
	assert.Equal(t, "degraded", status.Status)
	assert.Contains(t, status.Components["last_run"], "1 failed")
}

func TestWatch_ReResolvesOnChange(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.xml": typeSystem([]string{"a.A"})})
	cfg := testConfig(root)
	cfg.Watch.Debounce = 50 * time.Millisecond
	cfg.Watch.Rate = 100
	cfg.Watch.Burst = 10

	a := newTestApp(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan ports.ResolveResult, 4)
	done := make(chan error, 1)
	go func() {
		done <- a.Watch(ctx, func(r ports.ResolveResult) { results <- r })
	}()

	// Give the watcher time to register the root.
	time.Sleep(200 * time.Millisecond)
	writeFiles(t, root, map[string]string{"a.xml": typeSystem([]string{"a.A", "a.B"})})

	select {
	case r := <-results:
		assert.Equal(t, TriggerWatch, r.Run.Trigger)
		require.Len(t, r.Descriptors, 1)
		assert.Equal(t, 2, r.Descriptors[0].Stats.Collected)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watch re-resolution")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestDescriptorFiles_DedupesRoots(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.xml": "<x/>", "sub/b.xml": "<x/>"})
	a := newTestApp(t, testConfig(root))

	files, err := a.DescriptorFiles([]string{root, filepath.Join(root, "sub"), root})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "a.xml"), filepath.Join(root, "sub", "b.xml")}, files)
}
