package history

import "time"

const SchemaVersion = 2

// Run summarizes one pass over the configured root descriptors.
type Run struct {
	ID              string        `json:"id"`
	ProjectKey      string        `json:"project_key"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	Trigger         string        `json:"trigger"`
	DescriptorCount int           `json:"descriptor_count"`
	FailedCount     int           `json:"failed_count"`
	Collected       int           `json:"collected"`
	ImportsFollowed int           `json:"imports_followed"`
	CyclesSkipped   int           `json:"cycles_skipped"`
	Trace           string        `json:"trace,omitempty"`
}

// Record is the outcome of resolving a single root descriptor within a run.
type Record struct {
	RunID           string        `json:"run_id"`
	Locator         string        `json:"locator"`
	Kind            string        `json:"kind"`
	Collected       int           `json:"collected"`
	Locators        int           `json:"locators"`
	ImportsFollowed int           `json:"imports_followed"`
	CyclesSkipped   int           `json:"cycles_skipped"`
	Duration        time.Duration `json:"duration"`
	ErrorCode       string        `json:"error_code,omitempty"`
	Error           string        `json:"error,omitempty"`
}

func (r Record) Failed() bool {
	return r.ErrorCode != "" || r.Error != ""
}

type TrendPoint struct {
	RunID            string    `json:"run_id"`
	StartedAt        time.Time `json:"started_at"`
	DescriptorCount  int       `json:"descriptor_count"`
	FailedCount      int       `json:"failed_count"`
	Collected        int       `json:"collected"`
	CyclesSkipped    int       `json:"cycles_skipped"`
	DeltaDescriptors int       `json:"delta_descriptors"`
	DeltaFailed      int       `json:"delta_failed"`
	DeltaCollected   int       `json:"delta_collected"`
	DeltaCycles      int       `json:"delta_cycles"`
	CollectedGrowth  float64   `json:"collected_growth_pct"`
}

type TrendReport struct {
	ProjectKey string       `json:"project_key"`
	Since      time.Time    `json:"since"`
	Until      time.Time    `json:"until"`
	RunCount   int          `json:"run_count"`
	Points     []TrendPoint `json:"points"`
}
