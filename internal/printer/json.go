package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/g8/uafrepro/internal/model"
)

// JSONPrinter prints run information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type reportOutput struct {
	RunID     string      `json:"run_id"`
	StartedAt time.Time   `json:"started_at"`
	Rows      []rowOutput `json:"rows"`
}

type rowOutput struct {
	Index         int     `json:"index"`
	Project       string  `json:"project"`
	Container     string  `json:"container"`
	Status        string  `json:"status"`
	Verdict       bool    `json:"verdict"`
	Error         string  `json:"error,omitempty"`
	CommandsRun   int     `json:"commands_run"`
	CommandsTotal int     `json:"commands_total"`
	OutputBytes   int64   `json:"output_bytes"`
	DurationSec   float64 `json:"duration_seconds"`
}

type targetOutput struct {
	Project    string   `json:"project"`
	Container  string   `json:"container"`
	Address    string   `json:"address"`
	Username   string   `json:"username"`
	Detector   string   `json:"detector"`
	Commands   []string `json:"commands"`
	UploadPath string   `json:"upload_path,omitempty"`
}

type messageOutput struct {
	Message string `json:"message"`
}

// PrintReport prints the verdict table in JSON format.
func (j *JSONPrinter) PrintReport(report model.Report) error {
	output := reportOutput{
		RunID:     report.RunID,
		StartedAt: report.StartedAt.UTC(),
		Rows:      make([]rowOutput, 0, len(report.Rows)),
	}
	for _, row := range report.Rows {
		r := row.Result
		out := rowOutput{
			Index:         row.Index,
			Project:       r.ProjectName,
			Container:     r.ContainerName,
			Status:        string(r.Status),
			Verdict:       r.Verdict,
			CommandsRun:   r.CommandsRun,
			CommandsTotal: r.CommandsTotal,
			OutputBytes:   r.OutputBytes,
			DurationSec:   r.Duration.Seconds(),
		}
		if r.Err != nil {
			out.Error = r.Err.Error()
		}
		output.Rows = append(output.Rows, out)
	}

	return j.encode(output)
}

// PrintTargets prints the configured targets in JSON format, credentials are omitted.
func (j *JSONPrinter) PrintTargets(targets []model.Target) error {
	items := make([]targetOutput, len(targets))
	for i, t := range targets {
		items[i] = targetOutput{
			Project:    t.ProjectName,
			Container:  t.ContainerName,
			Address:    t.Address(),
			Username:   t.Username,
			Detector:   t.Detector,
			Commands:   t.Commands,
			UploadPath: t.UploadPath,
		}
	}
	return j.encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
