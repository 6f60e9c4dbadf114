package app

import (
	"context"
	"fmt"
	"os"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}
	if err := ctx.Err(); err != nil {
		status.Status = "down"
		status.Components["context"] = err.Error()
		return status
	}

	missing := 0
	for _, r := range s.app.Paths.Roots {
		if _, err := os.Stat(r); err != nil {
			missing++
		}
	}
	if missing > 0 {
		status.Status = "degraded"
		status.Components["roots"] = fmt.Sprintf("%d of %d missing", missing, len(s.app.Paths.Roots))
	} else {
		status.Components["roots"] = fmt.Sprintf("ok (%d)", len(s.app.Paths.Roots))
	}

	switch {
	case s.app.store != nil:
		status.Components["history"] = "ok"
	case s.app.Config.DB.Enabled:
		status.Status = "degraded"
		status.Components["history"] = "missing but enabled in config"
	}

	if last, ok := s.app.lastRun(); ok {
		status.Components["last_run"] = fmt.Sprintf("%s (%d descriptors, %d failed)",
			last.StartedAt.Format(time.RFC3339), last.DescriptorCount, last.FailedCount)
		if last.FailedCount > 0 {
			status.Status = "degraded"
		}
	}
	return status
}
