package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"metadesc/internal/core/errors"
	"metadesc/internal/shared/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Collectible is a child element merged from imports. Elements are deduplicated
// by identity, so implementations are pointer types.
type Collectible[T any] interface {
	comparable
	Clone() T
}

// Stats summarizes one resolution.
type Stats struct {
	Kind Kind

	// Locators lists the imported descriptors in first-visit order.
	Locators []string

	ImportsFollowed    int
	CyclesSkipped      int
	SelfImportsSkipped int
	Collected          int
}

// ImportResolver merges the collectibles of a descriptor's transitive imports
// into the descriptor. It holds no per-call state and may be shared.
type ImportResolver[T Collectible[T]] struct {
	kind   Kind
	suffix string
	logger *slog.Logger
}

func NewImportResolver[T Collectible[T]](kind Kind) *ImportResolver[T] {
	return &ImportResolver[T]{kind: kind, suffix: DefaultImportSuffix, logger: slog.Default()}
}

// WithSuffix sets the file suffix appended to by-name imports.
func (r *ImportResolver[T]) WithSuffix(suffix string) *ImportResolver[T] {
	r.suffix = suffix
	return r
}

func (r *ImportResolver[T]) WithLogger(l *slog.Logger) *ImportResolver[T] {
	if l != nil {
		r.logger = l
	}
	return r
}

// Resolve collects the imported elements of root and, on success, replaces
// root's collectibles with the merged list and clears its imports. On error
// root is left as it was.
func (r *ImportResolver[T]) Resolve(ctx context.Context, root Adapter[T], alreadyImported []string, rm ResourceManager) (Stats, error) {
	if len(root.Imports()) == 0 {
		return Stats{Kind: r.kind}, nil
	}
	merged, stats, err := r.Collect(ctx, root, alreadyImported, rm)
	if err != nil {
		return stats, err
	}
	root.SetCollectibles(merged)
	root.ClearImports()
	return stats, nil
}

// Collect walks the import graph of root and returns the merged element list
// without touching root. Root's own elements come first and are returned as
// is; imported elements are clones, so later edits of the root never reach
// descriptors held in the import cache.
//
// Imports are followed depth first in declaration order. An import of the
// containing descriptor itself is skipped, as is one that points at a
// descriptor still being expanded further up the chain. A descriptor reached
// again after it was fully expanded contributes its own elements, which are
// already collected, and is not descended into. Locators in alreadyImported
// count as fully expanded, except root's own.
func (r *ImportResolver[T]) Collect(ctx context.Context, root Adapter[T], alreadyImported []string, rm ResourceManager) ([]T, Stats, error) {
	stats := Stats{Kind: r.kind}
	if len(root.Imports()) == 0 {
		return append([]T(nil), root.Collectibles()...), stats, nil
	}
	if rm == nil {
		rm = defaultResourceManager()
	}

	rootLoc := root.SourceLocator()
	if rootLoc == "" {
		rootLoc = "urn:metadesc:root:" + uuid.NewString()
	}

	ctx, span := observability.Tracer.Start(ctx, "metadata.ResolveImports",
		trace.WithAttributes(
			attribute.String("metadesc.kind", r.kind.String()),
			attribute.String("metadesc.root", rootLoc),
		))
	defer span.End()
	start := time.Now()

	w := &walk[T]{
		r:       r,
		ctx:     ctx,
		rm:      rm,
		visited: make(map[string]struct{}, len(alreadyImported)),
		onStack: make(map[string]struct{}),
		loaded:  make(map[string]struct{}),
		seen:    make(map[T]struct{}),
		stats:   &stats,
	}
	for _, loc := range alreadyImported {
		if loc != rootLoc {
			w.visited[loc] = struct{}{}
		}
	}

	w.push(rootLoc)
	err := w.visit(root, rootLoc)
	w.pop(rootLoc)

	observability.ResolveDuration.WithLabelValues(r.kind.String()).Observe(time.Since(start).Seconds())
	observability.ImportsVisitedTotal.WithLabelValues(r.kind.String()).Add(float64(stats.ImportsFollowed))
	if stats.CyclesSkipped > 0 {
		observability.ImportCyclesTotal.WithLabelValues(r.kind.String()).Add(float64(stats.CyclesSkipped))
	}
	if err != nil {
		observability.ResolveErrorsTotal.WithLabelValues(r.kind.String()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, stats, err
	}

	owned := make(map[T]struct{}, len(root.Collectibles()))
	for _, c := range root.Collectibles() {
		owned[c] = struct{}{}
	}
	merged := make([]T, len(w.collected))
	for i, c := range w.collected {
		if _, ok := owned[c]; ok {
			merged[i] = c
		} else {
			merged[i] = c.Clone()
		}
	}
	stats.Collected = len(merged)
	span.SetAttributes(
		attribute.Int("metadesc.imports_followed", stats.ImportsFollowed),
		attribute.Int("metadesc.collected", stats.Collected),
	)
	r.logger.Debug("imports resolved",
		"kind", r.kind,
		"root", rootLoc,
		"descriptors", len(stats.Locators),
		"collected", stats.Collected,
		"cycles_skipped", stats.CyclesSkipped,
	)
	return merged, stats, nil
}

// walk is the state of one resolution call.
type walk[T Collectible[T]] struct {
	r   *ImportResolver[T]
	ctx context.Context
	rm  ResourceManager

	visited map[string]struct{}
	onStack map[string]struct{}
	stack   []string
	loaded  map[string]struct{}

	collected []T
	seen      map[T]struct{}

	stats *Stats
}

func (w *walk[T]) push(loc string) {
	w.stack = append(w.stack, loc)
	w.onStack[loc] = struct{}{}
}

func (w *walk[T]) pop(loc string) {
	w.stack = w.stack[:len(w.stack)-1]
	delete(w.onStack, loc)
}

func (w *walk[T]) absorb(items []T) {
	for _, it := range items {
		if _, dup := w.seen[it]; dup {
			continue
		}
		w.seen[it] = struct{}{}
		w.collected = append(w.collected, it)
	}
}

func (w *walk[T]) visit(node Adapter[T], loc string) error {
	w.absorb(node.Collectibles())
	if _, done := w.visited[loc]; done {
		return nil
	}

	imports := node.Imports()
	for _, imp := range imports {
		if err := imp.Validate(); err != nil {
			return errors.AddContext(err, errors.CtxSource, sourceOrUnknown(node.SourceLocator()))
		}
	}

	for _, imp := range imports {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		target, err := imp.FindAbsoluteLocator(w.ctx, w.rm, w.r.suffix, node.SourceLocator())
		if err != nil {
			return err
		}
		if target == loc {
			w.stats.SelfImportsSkipped++
			continue
		}
		if _, active := w.onStack[target]; active {
			w.stats.CyclesSkipped++
			w.r.logger.Debug("import cycle skipped",
				"kind", w.r.kind,
				"cycle", w.cycle(target),
			)
			continue
		}

		child, err := node.Load(w.ctx, w.rm, target)
		if err != nil {
			return loadError(err, imp, target, node.SourceLocator())
		}
		w.stats.ImportsFollowed++
		if _, ok := w.loaded[target]; !ok {
			w.loaded[target] = struct{}{}
			w.stats.Locators = append(w.stats.Locators, target)
		}

		w.push(target)
		err = w.visit(child, target)
		w.pop(target)
		if err != nil {
			return err
		}
	}

	w.visited[loc] = struct{}{}
	return nil
}

// cycle renders the active chain from target back to target.
func (w *walk[T]) cycle(target string) string {
	for i, loc := range w.stack {
		if loc == target {
			return strings.Join(append(append([]string(nil), w.stack[i:]...), target), " -> ")
		}
	}
	return target
}

// loadError wraps a load failure in a fresh error: the cause may be shared
// with concurrent callers of the same cache flight and must not be mutated.
func loadError(err error, imp *Import, target, source string) error {
	code, ok := errors.CodeOf(err)
	if !ok || code == errors.CodeInternal {
		code = errors.CodeImportUnreadable
	}
	de := &errors.DomainError{
		Code:    code,
		Message: fmt.Sprintf("could not load import %s", imp),
		Err:     err,
	}
	return de.
		WithContext(errors.CtxLocator, target).
		WithContext(errors.CtxImport, imp.String()).
		WithContext(errors.CtxSource, sourceOrUnknown(source))
}
