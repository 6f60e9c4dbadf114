package history

import (
	"fmt"
	"math"
)

// BuildTrendReport compares each run with the one before it.
func BuildTrendReport(projectKey string, runs []Run) (TrendReport, error) {
	if len(runs) == 0 {
		return TrendReport{}, fmt.Errorf("no runs available")
	}

	points := make([]TrendPoint, 0, len(runs))
	for i, current := range runs {
		point := TrendPoint{
			RunID:           current.ID,
			StartedAt:       current.StartedAt,
			DescriptorCount: current.DescriptorCount,
			FailedCount:     current.FailedCount,
			Collected:       current.Collected,
			CyclesSkipped:   current.CyclesSkipped,
		}
		if i > 0 {
			prev := runs[i-1]
			point.DeltaDescriptors = current.DescriptorCount - prev.DescriptorCount
			point.DeltaFailed = current.FailedCount - prev.FailedCount
			point.DeltaCollected = current.Collected - prev.Collected
			point.DeltaCycles = current.CyclesSkipped - prev.CyclesSkipped
			if prev.Collected > 0 {
				point.CollectedGrowth = round2(float64(point.DeltaCollected) / float64(prev.Collected) * 100)
			}
		}
		points = append(points, point)
	}

	return TrendReport{
		ProjectKey: projectKeyOrDefault(projectKey),
		Since:      runs[0].StartedAt,
		Until:      runs[len(runs)-1].StartedAt,
		RunCount:   len(points),
		Points:     points,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
