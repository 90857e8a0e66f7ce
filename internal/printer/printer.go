package printer

import "github.com/g8/uafrepro/internal/model"

// Printer knows how to print run information in different formats.
type Printer interface {
	PrintReport(report model.Report) error
	PrintTargets(targets []model.Target) error
	PrintMessage(msg string) error
}
