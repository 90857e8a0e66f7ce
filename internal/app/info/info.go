package info

import (
	"context"
	"fmt"

	"github.com/g8/uafrepro/internal/log"
	"github.com/g8/uafrepro/internal/model"
	"github.com/g8/uafrepro/internal/printer"
)

const (
	header       = "G8 Project"
	reproduction = "We want to reproduce the following projects with their use-after-free proof of concepts."
)

// ServiceConfig is the configuration for the info service.
type ServiceConfig struct {
	Printer printer.Printer
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Printer == nil {
		return fmt.Errorf("printer is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Info"})
	return nil
}

// Service prints the static project information.
type Service struct {
	printer printer.Printer
	logger  log.Logger
}

// NewService creates a new info service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		printer: cfg.Printer,
		logger:  cfg.Logger,
	}, nil
}

// Request contains the parameters for the info.
type Request struct {
	Targets []model.Target
}

// Run prints the project information. It has no side effects on the targets.
func (s *Service) Run(ctx context.Context, req Request) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.Debugf("Printing info of %d targets", len(req.Targets))

	lines := []string{printer.RuleLine(header), "Reproduction", reproduction}
	for _, l := range lines {
		if err := s.printer.PrintMessage(l); err != nil {
			return fmt.Errorf("could not print info: %w", err)
		}
	}

	if err := s.printer.PrintTargets(req.Targets); err != nil {
		return fmt.Errorf("could not print targets: %w", err)
	}

	if err := s.printer.PrintMessage(printer.RuleLine(header)); err != nil {
		return fmt.Errorf("could not print info: %w", err)
	}

	return nil
}
