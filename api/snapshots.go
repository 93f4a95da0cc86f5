package api

// JobAccepted is returned when an import job is queued.
type JobAccepted struct {
	JobID string `json:"jobId"`
}

// Error is the body of every failed request. JobID is set when a job record
// was created before the failure.
type Error struct {
	Error string `json:"error"`
	JobID string `json:"jobId,omitempty"`
}
