package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/g8/uafrepro/internal/model"
)

const (
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

// TablePrinter prints run information in a table format.
type TablePrinter struct {
	writer io.Writer
	color  bool
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer, color bool) *TablePrinter {
	return &TablePrinter{writer: w, color: color}
}

// PrintReport prints the verdict table.
func (t *TablePrinter) PrintReport(report model.Report) error {
	if report.RunID != "" {
		fmt.Fprintf(t.writer, "Run:        %s\n", report.RunID)
		fmt.Fprintf(t.writer, "Started:    %s\n\n", FormatTimestamp(report.StartedAt))
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "#\tPROJECT\tRESULT\tCOMMANDS\tOUTPUT\tDURATION\tERROR")

	for _, row := range report.Rows {
		r := row.Result
		errMsg := "-"
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d/%d\t%s\t%s\t%s\n",
			row.Index,
			r.ProjectName,
			t.resultLabel(r),
			r.CommandsRun, r.CommandsTotal,
			FormatBytes(r.OutputBytes),
			FormatDuration(r.Duration),
			errMsg,
		)
	}

	return nil
}

func (t *TablePrinter) resultLabel(r model.TargetResult) string {
	label := r.Status.Label()
	partial := r.Verdict && (r.Status == model.TargetStatusFailed || r.Status == model.TargetStatusTimedOut)
	if partial {
		label += " (partial: detected)"
	}
	if !t.color {
		return label
	}

	switch r.Status {
	case model.TargetStatusDetected:
		return colorRed + label + colorReset
	case model.TargetStatusUndetected:
		return colorGreen + label + colorReset
	default:
		return colorYellow + label + colorReset
	}
}

// PrintTargets prints the configured targets.
func (t *TablePrinter) PrintTargets(targets []model.Target) error {
	if len(targets) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "#\tPROJECT\tCONTAINER\tADDRESS\tDETECTOR\tCOMMANDS\tUPLOAD PATH")

	for i, tg := range targets {
		upload := tg.UploadPath
		if upload == "" {
			upload = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n", i+1, tg.ProjectName, tg.ContainerName, tg.Address(), tg.Detector, len(tg.Commands), upload)
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}
