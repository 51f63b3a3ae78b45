package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RunStatus string

const (
	RunSuccess RunStatus = "SUCCESS"
	RunFailed  RunStatus = "FAILED"
	RunSkipped RunStatus = "SKIPPED"
)

type TriggerOrigin string

const (
	OriginScheduled TriggerOrigin = "SCHEDULED"
	OriginManual    TriggerOrigin = "MANUAL"
)

// Run is one recorded execution attempt of a job.
type Run struct {
	gorm.Model
	RunID      string        `gorm:"uniqueIndex;not null" json:"run_id"`
	JobID      uint          `gorm:"index;not null" json:"job_id"`
	SrcPath    string        `gorm:"not null" json:"src"`
	DstPath    string        `gorm:"not null" json:"dst"`
	Origin     TriggerOrigin `gorm:"not null" json:"origin"`
	Status     RunStatus     `gorm:"not null" json:"status"`
	Files      int           `json:"files"`
	Bytes      int64         `json:"bytes"`
	ErrMsg     string        `json:"error,omitempty"`
	StartedAt  time.Time     `gorm:"not null" json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

func NewRun(job Job, origin TriggerOrigin) *Run {
	return &Run{
		RunID:     uuid.NewString(),
		JobID:     job.ID,
		SrcPath:   job.SourcePath,
		DstPath:   job.DestPath,
		Origin:    origin,
		StartedAt: time.Now(),
	}
}
