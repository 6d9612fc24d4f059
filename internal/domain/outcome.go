package domain

import (
	"time"

	"github.com/google/uuid"
)

// LoadStatus tags the result of a load
type LoadStatus string

const (
	LoadSuccess LoadStatus = "success"
	LoadEmpty   LoadStatus = "empty"
	LoadFault   LoadStatus = "fault"
)

// LoadOutcome reports what a loader did
type LoadOutcome struct {
	ID         string     `json:"id"`
	Source     string     `json:"source"`
	Resource   string     `json:"resource"`
	Status     LoadStatus `json:"status"`
	HTTPStatus int        `json:"http_status,omitempty"`
	Count      int        `json:"count"`
	Skipped    int        `json:"skipped,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// NewLoadOutcome starts an outcome for source/resource
func NewLoadOutcome(source, resource string) LoadOutcome {
	return LoadOutcome{
		ID:        uuid.NewString(),
		Source:    source,
		Resource:  resource,
		StartedAt: time.Now(),
	}
}

// Succeed finishes the outcome with count published items
func (o LoadOutcome) Succeed(count int) LoadOutcome {
	o.Status = LoadSuccess
	if count == 0 {
		o.Status = LoadEmpty
	}
	o.Count = count
	o.FinishedAt = time.Now()
	return o
}

// Fail finishes the outcome with err
func (o LoadOutcome) Fail(err error) LoadOutcome {
	o.Status = LoadFault
	if err != nil {
		o.Error = err.Error()
	}
	o.FinishedAt = time.Now()
	return o
}

// Duration of the load
func (o LoadOutcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}
