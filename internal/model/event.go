package model

import "time"

type EventType string

const (
	EventSyncStarted   EventType = "SYNC_STARTED"
	EventProgress      EventType = "PROGRESS"
	EventSyncCompleted EventType = "SYNC_COMPLETED"
	EventSyncFailed    EventType = "SYNC_FAILED"
)

type Event struct {
	Type      EventType `json:"type"`
	JobID     uint      `json:"job_id"`
	RunID     string    `json:"run_id,omitempty"`
	SrcPath   string    `json:"src"`
	DstPath   string    `json:"dst"`
	Percent   int       `json:"percent"`
	Err       string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
