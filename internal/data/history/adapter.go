package history

import "time"

// Adapter bridges Store to the core RunStore port.
type Adapter struct {
	store *Store
}

func NewAdapter(store *Store) *Adapter {
	return &Adapter{store: store}
}

func (a *Adapter) SaveRun(run Run, records []Record) (Run, error) {
	return a.store.SaveRun(run, records)
}

func (a *Adapter) LoadRuns(projectKey string, since time.Time, limit int) ([]Run, error) {
	return a.store.LoadRuns(projectKey, since, limit)
}

func (a *Adapter) LoadRecords(runID string) ([]Record, error) {
	return a.store.LoadRecords(runID)
}

func (a *Adapter) Close() error {
	return a.store.Close()
}
