package model

import (
	"fmt"
	"time"
)

const TriggerLayout = "15:04"

type Job struct {
	ID                   uint   `json:"id"`
	SourcePath           string `json:"source_path"`
	DestPath             string `json:"dest_path"`
	TriggerTime          string `json:"trigger_time"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

// Scheduled reports whether the job fires automatically.
func (j Job) Scheduled() bool {
	return j.TriggerTime != ""
}

// ParseTriggerTime validates a 24-hour "HH:MM" trigger time. An empty string
// is valid and means the job has no automatic trigger.
func ParseTriggerTime(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	if len(s) != len(TriggerLayout) || s[2] != ':' {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	t, err := time.Parse(TriggerLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	return t.Format(TriggerLayout), nil
}
