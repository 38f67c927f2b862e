package core

import "time"

// Store defines the interface for run history operations.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	CreateRun(startedAt time.Time) (*Run, error)
	CompleteRun(run *Run) error
	GetRun(id string) (*Run, error)
	LatestRun() (*Run, error)
	ListRuns(limit int) ([]*Run, error)
}

// RunStatus represents the status of a pipeline run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents a single pipeline invocation.
type Run struct {
	ID              string
	Status          RunStatus
	StartedAt       time.Time
	CompletedAt     *time.Time
	CompletionStamp string
	ReportPath      string
	ArchiveURI      string
	MarketingRows   int
	SearchRows      int
	Error           string
}

// Duration returns how long the run took, or zero while it is still running.
func (r *Run) Duration() time.Duration {
	if r == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}
