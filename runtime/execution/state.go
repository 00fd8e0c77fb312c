package execution

// Status captures the lifecycle state of a session.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the session can make no further progress.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
