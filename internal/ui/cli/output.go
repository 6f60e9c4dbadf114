package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	coreapp "metadesc/internal/core/app"
	"metadesc/internal/core/ports"
	"metadesc/internal/data/history"
	"metadesc/internal/shared/util"
)

func printResult(w io.Writer, res ports.ResolveResult, withTrace bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DESCRIPTOR\tKIND\tCOLLECTED\tIMPORTS\tCYCLES\tSTATUS")
	for _, d := range res.Descriptors {
		status := "ok"
		if d.Err != nil {
			status = d.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			filepath.Base(d.Path), d.Kind, d.Stats.Collected, d.Stats.ImportsFollowed, d.Stats.CyclesSkipped, status)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\n%d descriptors resolved, %d failed, %d skipped in %s (%s)\n",
		res.Run.DescriptorCount-res.Run.FailedCount, res.Run.FailedCount, len(res.Skipped), res.Run.Duration, res.Run.Trigger)
	if kinds := countKinds(res.Descriptors); len(kinds) > 0 {
		parts := make([]string, 0, len(kinds))
		for _, k := range util.SortedStringKeys(kinds) {
			parts = append(parts, fmt.Sprintf("%s=%d", k, kinds[k]))
		}
		fmt.Fprintf(w, "By kind: %s\n", strings.Join(parts, " "))
	}
	if res.Saved {
		fmt.Fprintf(w, "Recorded run %s\n", res.Run.ID)
	}
	if withTrace && res.Trace != nil && res.Trace.Enabled() {
		fmt.Fprintln(w, "\nProcess trace")
		fmt.Fprintln(w, "=============")
		fmt.Fprint(w, res.Trace.String())
	}
}

func countKinds(results []ports.DescriptorResult) map[string]int {
	kinds := make(map[string]int)
	for _, d := range results {
		if d.Kind != "" {
			kinds[d.Kind.String()]++
		}
	}
	return kinds
}

func printAggregate(w io.Writer, a *coreapp.App) {
	agg := a.AggregateTrace()
	if agg == nil || !agg.Enabled() || len(agg.Events()) == 0 {
		return
	}
	fmt.Fprintln(w, "\nAggregated process trace")
	fmt.Fprintln(w, "========================")
	fmt.Fprint(w, agg.String())
}

func printTrend(w io.Writer, report history.TrendReport) {
	fmt.Fprintf(w, "\nHistory for %s (%d runs)\n", report.ProjectKey, report.RunCount)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tDESCRIPTORS\tFAILED\tCOLLECTED\tCYCLES\tDELTA")
	for _, p := range report.Points {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%+d\n",
			p.StartedAt.Format("2006-01-02 15:04:05"), p.DescriptorCount, p.FailedCount, p.Collected, p.CyclesSkipped, p.DeltaCollected)
	}
	_ = tw.Flush()
}
