package runs

import (
	"context"
	"time"

	"species-checker/internal/reconcile"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one asynchronous pipeline execution as seen by the web layer.
type Run struct {
	ID           string                  `json:"id"`
	Source       string                  `json:"source"`
	Status       Status                  `json:"status"`
	Processed    int                     `json:"processed"`
	Total        int                     `json:"total"`
	ErrorCode    string                  `json:"errorCode,omitempty"`
	ErrorMessage string                  `json:"errorMessage,omitempty"`
	Presentation *reconcile.Presentation `json:"presentation,omitempty"`
	Rows         []reconcile.ResultRow   `json:"rows,omitempty"`
	CreatedAt    time.Time               `json:"createdAt"`
	FinishedAt   *time.Time              `json:"finishedAt,omitempty"`
}

func (r *Run) Done() bool {
	return r.Status != StatusRunning
}

// Table returns the finished rows as a reconcile.Table.
func (r *Run) Table() *reconcile.Table {
	return &reconcile.Table{Rows: r.Rows}
}

func (r *Run) clone() *Run {
	c := *r
	if r.Presentation != nil {
		p := *r.Presentation
		c.Presentation = &p
	}
	if r.FinishedAt != nil {
		f := *r.FinishedAt
		c.FinishedAt = &f
	}
	return &c
}

// Store persists runs. Get returns a RUN_NOT_FOUND error for unknown or expired ids.
type Store interface {
	Create(ctx context.Context, run *Run) error
	Update(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
}
