package lib

import (
	"errors"
	"time"

	"github.com/g8/uafrepro/internal/model"
)

var (
	// ErrNotValid is returned on invalid targets, unknown detectors or invalid options.
	ErrNotValid = errors.New("not valid")
	// ErrNotFound is returned when a targets file or an uploaded file does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConnection is returned when a remote session could not be opened.
	ErrConnection = errors.New("connection failed")
	// ErrDetector is returned when a detector could not classify a command output.
	ErrDetector = errors.New("detector failed")
	// ErrTimeout is returned when a session did not finish before the join deadline.
	ErrTimeout = errors.New("timed out")
)

// DetectorFunc classifies the output of one command as defect detected or not.
//
// It receives a copy of the target, so the markers of the target can be used
// as parameters. An error marks the target session as failed.
type DetectorFunc func(stdout, stderr string, target Target) (bool, error)

// Markers are the output signatures the generic detectors look for.
type Markers struct {
	Positive string
	Negative string
}

// Target describes one pre-provisioned container reachable over SSH.
type Target struct {
	// ProjectName is the display label, unique per run.
	ProjectName string
	// ContainerName identifies the container for the container-management tool.
	ContainerName string
	Host          string
	// Port defaults to 22.
	Port     int
	Username string
	Password string
	// PrivateKeyPath is an optional PEM private key.
	PrivateKeyPath string
	// Commands run in order in the same remote session.
	Commands []string
	// Detector is the registered detector name, see [Client.Detectors].
	Detector string
	// UploadPath is the destination of [RunOpts].UploadFile inside the target.
	UploadPath string
	Markers    Markers
	// ExcludeFromReport hides the target from the report.
	ExcludeFromReport bool
}

// Status is the final outcome of one target session.
type Status string

const (
	// StatusDetected indicates at least one command output was classified as a defect.
	StatusDetected Status = "detected"
	// StatusUndetected indicates every command ran and none was classified as a defect.
	StatusUndetected Status = "undetected"
	// StatusFailed indicates a connection or detector fault.
	StatusFailed Status = "failed"
	// StatusTimedOut indicates the session was cut by the join deadline.
	StatusTimedOut Status = "timed-out"
)

// Result is the outcome of one target session.
type Result struct {
	ProjectName   string
	ContainerName string
	Status        Status
	// Verdict is partial when the status is failed or timed out.
	Verdict bool
	// Err is the fault that ended the session, if any.
	Err           error
	CommandsRun   int
	CommandsTotal int
	OutputBytes   int64
	StartedAt     time.Time
	Duration      time.Duration
}

// Row is a single row of a report.
type Row struct {
	// Index is the 1-based sequence number.
	Index  int
	Result Result
}

// Report is the verdict table of one run.
type Report struct {
	RunID     string
	StartedAt time.Time
	Rows      []Row
}

// HasFaults returns true if any reported target failed or timed out.
func (r Report) HasFaults() bool {
	for _, row := range r.Rows {
		if row.Result.Status == StatusFailed || row.Result.Status == StatusTimedOut {
			return true
		}
	}
	return false
}

func toInternalTarget(t Target) model.Target {
	return model.Target{
		ProjectName:       t.ProjectName,
		ContainerName:     t.ContainerName,
		Host:              t.Host,
		Port:              t.Port,
		Username:          t.Username,
		Password:          t.Password,
		PrivateKeyPath:    t.PrivateKeyPath,
		Commands:          append([]string(nil), t.Commands...),
		Detector:          t.Detector,
		UploadPath:        t.UploadPath,
		Markers:           model.Markers{Positive: t.Markers.Positive, Negative: t.Markers.Negative},
		ExcludeFromReport: t.ExcludeFromReport,
	}
}

func toInternalTargets(ts []Target) []model.Target {
	result := make([]model.Target, len(ts))
	for i, t := range ts {
		result[i] = toInternalTarget(t)
	}
	return result
}

func fromInternalTarget(t model.Target) Target {
	return Target{
		ProjectName:       t.ProjectName,
		ContainerName:     t.ContainerName,
		Host:              t.Host,
		Port:              t.Port,
		Username:          t.Username,
		Password:          t.Password,
		PrivateKeyPath:    t.PrivateKeyPath,
		Commands:          append([]string(nil), t.Commands...),
		Detector:          t.Detector,
		UploadPath:        t.UploadPath,
		Markers:           Markers{Positive: t.Markers.Positive, Negative: t.Markers.Negative},
		ExcludeFromReport: t.ExcludeFromReport,
	}
}

func fromInternalTargets(ts []model.Target) []Target {
	result := make([]Target, len(ts))
	for i, t := range ts {
		result[i] = fromInternalTarget(t)
	}
	return result
}

func fromInternalReport(r model.Report) *Report {
	rows := make([]Row, len(r.Rows))
	for i, row := range r.Rows {
		res := row.Result
		rows[i] = Row{
			Index: row.Index,
			Result: Result{
				ProjectName:   res.ProjectName,
				ContainerName: res.ContainerName,
				Status:        Status(res.Status),
				Verdict:       res.Verdict,
				Err:           mapError(res.Err),
				CommandsRun:   res.CommandsRun,
				CommandsTotal: res.CommandsTotal,
				OutputBytes:   res.OutputBytes,
				StartedAt:     res.StartedAt,
				Duration:      res.Duration,
			},
		}
	}

	return &Report{
		RunID:     r.RunID,
		StartedAt: r.StartedAt,
		Rows:      rows,
	}
}

var errorMapping = []struct {
	internal error
	public   error
}{
	{model.ErrConnection, ErrConnection},
	{model.ErrDetector, ErrDetector},
	{model.ErrTimeout, ErrTimeout},
	{model.ErrNotFound, ErrNotFound},
	{model.ErrNotValid, ErrNotValid},
}

// mapError adds the public sentinel to internal errors so callers can use errors.Is.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	for _, m := range errorMapping {
		if errors.Is(err, m.internal) {
			return errors.Join(err, m.public)
		}
	}
	return err
}
