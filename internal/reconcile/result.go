package reconcile

import (
	"time"

	"github.com/google/uuid"
)

// FileIssue names a file the pass could not index and why.
type FileIssue struct {
	Filename string `json:"file"`
	Reason   string `json:"reason"`
}

// Result summarises one reconciliation pass.
type Result struct {
	RunID     uuid.UUID     `json:"run_id"`
	Dir       string        `json:"dir"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	Created   []string `json:"created,omitempty"`
	Updated   []string `json:"updated,omitempty"`
	Unchanged []string `json:"unchanged,omitempty"`
	Deleted   []string `json:"deleted,omitempty"`

	// Skipped holds files that were empty or unreadable. They are neither
	// written nor deleted.
	Skipped []FileIssue `json:"skipped,omitempty"`
	// Failed holds files whose storage write failed.
	Failed []FileIssue `json:"failed,omitempty"`
}

// OK reports whether the pass finished without storage failures.
func (r *Result) OK() bool {
	return r != nil && len(r.Failed) == 0
}

// Mutations counts rows written or removed by the pass.
func (r *Result) Mutations() int {
	if r == nil {
		return 0
	}
	return len(r.Created) + len(r.Updated) + len(r.Deleted)
}
