package model

type ExecutionState struct {
	JobID    uint `json:"job_id"`
	Running  bool `json:"running"`
	Progress int  `json:"progress"`
}

// JobView is a job joined with its execution state, as listed to clients.
type JobView struct {
	Job
	Running  bool `json:"running"`
	Progress int  `json:"progress"`
}
