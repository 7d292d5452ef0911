package models

import "time"

type JobState string

const (
	JobWaiting   JobState = "waiting"
	JobActive    JobState = "active"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Terminal reports whether a job in this state will never run again.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// BackfillJob tracks one request to populate a token's full daily price
// history. State and progress are owned by the queue/worker pair.
type BackfillJob struct {
	ID         string     `json:"jobId"`
	Token      string     `json:"token"`
	Network    string     `json:"network"`
	State      JobState   `json:"state"`
	Progress   int        `json:"progress"`
	Reason     string     `json:"reason,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	FinishedOn *time.Time `json:"finishedOn,omitempty"`
}
