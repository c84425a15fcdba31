package domain

import (
	"fmt"
	"time"
)

// JobStatus is the extraction job lifecycle.
//
//	created ──► queued ──► processing ──► done
//	   │          │            │
//	   └──────────┴────────────┴──────────► failed
//
// done and failed are terminal. needs_review is never stored: it is derived
// for clients from a done job whose extraction confidence is low.
type JobStatus string

const (
	JobCreated     JobStatus = "created"
	JobQueued      JobStatus = "queued"
	JobProcessing  JobStatus = "processing"
	JobDone        JobStatus = "done"
	JobFailed      JobStatus = "failed"
	JobNeedsReview JobStatus = "needs_review"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobCreated:    {JobQueued, JobFailed},
	JobQueued:     {JobProcessing, JobFailed},
	JobProcessing: {JobDone, JobFailed},
}

func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(s)
	switch st {
	case JobCreated, JobQueued, JobProcessing, JobDone, JobFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// CanTransition reports whether from → to is an edge of the lifecycle graph.
func CanTransition(from, to JobStatus) bool {
	for _, s := range jobTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// WorkerOwned reports whether only the extraction worker may move a job into s.
func (s JobStatus) WorkerOwned() bool {
	return s == JobProcessing || s == JobDone
}

type ExtractionJob struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	Status      JobStatus `json:"status"`
	StoragePath string    `json:"storagePath"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mimeType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Confidence  *float64  `json:"confidence,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PublicStatus is the status shown to clients.
func (j ExtractionJob) PublicStatus(minConfidence float64) JobStatus {
	if j.Status == JobDone && j.Confidence != nil && *j.Confidence < minConfidence {
		return JobNeedsReview
	}
	return j.Status
}
