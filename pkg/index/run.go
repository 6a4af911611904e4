package index

import "time"

// Run represents a single indexed MTS run in the database.
type Run struct {
	ID           uint   `gorm:"primaryKey"`
	RunID        string `gorm:"not null;uniqueIndex:idx_runs_run_id"`
	PlanFile     string `gorm:"index"`
	Status       string
	Timestamp    int64
	TimestampEnd int64
	ExitCode     int

	// Denormalized report counters.
	TestsTotal   int
	TestsPassed  int
	TestsFailed  int
	TestsSkipped int
	TestsUnknown int
	Percentage   float64

	IndexedAt   time.Time
	ReindexedAt *time.Time
}
