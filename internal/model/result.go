package model

import "time"

// TargetStatus is the final outcome of one target session.
type TargetStatus string

const (
	// TargetStatusDetected indicates at least one command output was classified as a defect.
	TargetStatusDetected TargetStatus = "detected"
	// TargetStatusUndetected indicates every command ran and none was classified as a defect.
	TargetStatusUndetected TargetStatus = "undetected"
	// TargetStatusFailed indicates a connection, detector or usage fault.
	TargetStatusFailed TargetStatus = "failed"
	// TargetStatusTimedOut indicates the session was cut by the join deadline, the verdict is incomplete.
	TargetStatusTimedOut TargetStatus = "timed-out"
)

// Label returns the human label used in the verdict table.
func (s TargetStatus) Label() string {
	switch s {
	case TargetStatusDetected:
		return "Detected"
	case TargetStatusUndetected:
		return "Undetected"
	case TargetStatusFailed:
		return "Failed"
	case TargetStatusTimedOut:
		return "Timed out"
	}
	return "Unknown"
}

// TargetResult is the outcome of a finished target session.
type TargetResult struct {
	ProjectName   string
	ContainerName string
	Status        TargetStatus
	// Verdict is the OR-folded detector result of the commands that completed.
	// It is partial when the status is failed or timed out.
	Verdict bool
	// Err is the fault that ended the session, if any.
	Err           error
	CommandsRun   int
	CommandsTotal int
	OutputBytes   int64
	StartedAt     time.Time
	Duration      time.Duration
}

// ReportRow is a single row of the verdict table.
type ReportRow struct {
	// Index is the 1-based sequence number.
	Index  int
	Result TargetResult
}

// Report is the verdict table of one run.
type Report struct {
	RunID     string
	StartedAt time.Time
	Rows      []ReportRow
}

// HasFaults returns true if any reported target failed or timed out.
func (r Report) HasFaults() bool {
	for _, row := range r.Rows {
		if row.Result.Status == TargetStatusFailed || row.Result.Status == TargetStatusTimedOut {
			return true
		}
	}
	return false
}
