package domain

import (
	"context"
	"maps"
	"time"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobError     JobStatus = "error"
)

type JobStage string

const (
	StageInit      JobStage = "init"
	StageParsing   JobStage = "parsing"
	StageImporting JobStage = "importing"
	StageDone      JobStage = "done"
	StageError     JobStage = "error"
)

// Progress tracks one collection of an import.
type Progress struct {
	TotalDocs     int    `json:"totalDocs"`
	ProcessedDocs int    `json:"processedDocs"`
	FailedDocs    int    `json:"failedDocs"`
	Error         string `json:"error,omitempty"`
}

// Job is the pollable record of one snapshot import.
type Job struct {
	ID              string              `json:"id"`
	Status          JobStatus           `json:"status"`
	Stage           JobStage            `json:"stage"`
	Totals          map[string]Progress `json:"totals"`
	StartedAt       time.Time           `json:"startedAt"`
	FinishedAt      *time.Time          `json:"finishedAt,omitempty"`
	Error           string              `json:"error,omitempty"`
	ReplaceExisting bool                `json:"replaceExisting"`
	Source          string              `json:"source,omitempty"`
}

// Terminal reports whether the job reached completed or error.
func (j *Job) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobError
}

// Fail moves the job to the error state.
func (j *Job) Fail(msg string, at time.Time) {
	j.Status = JobError
	j.Stage = StageError
	j.Error = msg
	j.FinishedAt = &at
}

// Clone returns a deep copy safe to hand to callers.
func (j *Job) Clone() *Job {
	c := *j
	c.Totals = maps.Clone(j.Totals)
	if c.Totals == nil {
		c.Totals = map[string]Progress{}
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// JobStore holds job records. Get returns ErrJobNotFound for unknown ids.
type JobStore interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	// Update applies fn to the stored record atomically.
	Update(ctx context.Context, id string, fn func(*Job)) error
}
