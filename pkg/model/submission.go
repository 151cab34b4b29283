// Package model holds the plain data types shared across the pipeline:
// submissions, embeddings, clusters, tasks, change sets, and the
// batch summary. Types carry no behavior beyond small invariants.
package model

import (
	"fmt"
	"time"
)

// SubmissionStatus is the sum type over a submission's lifecycle state.
type SubmissionStatus string

const (
	StatusPending    SubmissionStatus = "pending"
	StatusInProgress SubmissionStatus = "in_progress"
	StatusDone       SubmissionStatus = "done"
	StatusRejected   SubmissionStatus = "rejected"
)

// Submission is one user-contributed piece of feedback text.
//
// Reference is assigned exactly once at insertion ("LW-" + the
// zero-padded decimal id, minimum width 3) and never mutated.
type Submission struct {
	ID          int64
	Reference   string
	Content     string
	Status      SubmissionStatus
	AgentNotes  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Reference formats a submission id as "LW-NNN", widening past three
// digits rather than truncating.
func Reference(id int64) string {
	return fmt.Sprintf("LW-%03d", id)
}
