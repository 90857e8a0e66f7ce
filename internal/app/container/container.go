package container

import (
	"context"
	"errors"
	"fmt"

	"github.com/g8/uafrepro/internal/log"
	"github.com/g8/uafrepro/internal/model"
	"github.com/g8/uafrepro/internal/printer"
)

// Action is a lifecycle action applied to every configured container.
type Action string

const (
	ActionStart   Action = "start"
	ActionRestart Action = "restart"
	ActionStop    Action = "stop"
	ActionStatus  Action = "status"
)

// Actions are the supported lifecycle actions.
var Actions = []Action{ActionStart, ActionRestart, ActionStop, ActionStatus}

// Manager manages the target containers.
type Manager interface {
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
	State(ctx context.Context, name string) (string, error)
	Raw(ctx context.Context, args []string) (int, error)
}

// ServiceConfig is the configuration for the container service.
type ServiceConfig struct {
	Manager Manager
	Printer printer.Printer
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Manager == nil {
		return fmt.Errorf("manager is required")
	}
	if c.Printer == nil {
		return fmt.Errorf("printer is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Container"})
	return nil
}

// Service controls the configured containers.
type Service struct {
	manager Manager
	printer printer.Printer
	logger  log.Logger
}

// NewService creates a new container service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		manager: cfg.Manager,
		printer: cfg.Printer,
		logger:  cfg.Logger,
	}, nil
}

// Request contains the parameters of a container command. Exactly one of All or Raw is set.
type Request struct {
	Targets []model.Target
	All     Action
	Raw     []string
}

func (r Request) validate() error {
	if r.All == "" && len(r.Raw) == 0 {
		return fmt.Errorf("an action or a raw docker command is required: %w", model.ErrNotValid)
	}
	if r.All != "" && len(r.Raw) > 0 {
		return fmt.Errorf("action and raw docker command are exclusive: %w", model.ErrNotValid)
	}
	return nil
}

// Run applies the request. For raw commands it returns the docker exit code.
func (s *Service) Run(ctx context.Context, req Request) (int, error) {
	if err := req.validate(); err != nil {
		return -1, fmt.Errorf("invalid request: %w", err)
	}

	if len(req.Raw) > 0 {
		return s.manager.Raw(ctx, req.Raw)
	}

	var op func(ctx context.Context, name string) error
	switch req.All {
	case ActionStart:
		op = s.manager.Start
	case ActionRestart:
		op = s.manager.Restart
	case ActionStop:
		op = s.manager.Stop
	case ActionStatus:
		op = s.printState
	default:
		return -1, fmt.Errorf("unknown action %q: %w", req.All, model.ErrNotValid)
	}

	// Every container is attempted, failures are collected.
	var errs []error
	for _, t := range req.Targets {
		if t.ContainerName == "" {
			s.logger.Warningf("Skipping %s, no container name", t.ProjectName)
			continue
		}

		if err := op(ctx, t.ContainerName); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.ProjectName, err))
			continue
		}
		if req.All != ActionStatus {
			if err := s.printer.PrintMessage(fmt.Sprintf("%s: %s", t.ContainerName, req.All)); err != nil {
				return -1, err
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return 1, err
	}
	return 0, nil
}

func (s *Service) printState(ctx context.Context, name string) error {
	state, err := s.manager.State(ctx, name)
	if err != nil {
		return err
	}
	return s.printer.PrintMessage(fmt.Sprintf("%s: %s", name, state))
}
