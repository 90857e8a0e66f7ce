package run

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/g8/uafrepro/internal/detector"
	"github.com/g8/uafrepro/internal/log"
	"github.com/g8/uafrepro/internal/model"
	"github.com/g8/uafrepro/internal/printer"
	"github.com/g8/uafrepro/internal/session"
)

// DefaultJoinTimeout is the shared deadline used to join every session.
const DefaultJoinTimeout = 10 * time.Second

// ServiceConfig is the configuration for the run service.
type ServiceConfig struct {
	Dialer   session.Dialer
	Registry detector.Registry
	// Console receives the echoed session blocks.
	Console *printer.Console
	Logger  log.Logger
	TimeNow func() time.Time
	// IDGen returns the run identifier.
	IDGen func() string
}

func (c *ServiceConfig) defaults() error {
	if c.Dialer == nil {
		return fmt.Errorf("dialer is required")
	}
	if c.Registry == nil {
		c.Registry = detector.DefaultRegistry
	}
	if c.Console == nil {
		c.Console = printer.NewConsole(nil)
	}
	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}
	if c.IDGen == nil {
		c.IDGen = func() string {
			return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
		}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Run"})
	return nil
}

// Service runs the configured targets and builds the verdict table.
type Service struct {
	dialer   session.Dialer
	registry detector.Registry
	console  *printer.Console
	logger   log.Logger
	timeNow  func() time.Time
	idGen    func() string
}

// NewService creates a new run service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		dialer:   cfg.Dialer,
		registry: cfg.Registry,
		console:  cfg.Console,
		logger:   cfg.Logger,
		timeNow:  cfg.TimeNow,
		idGen:    cfg.IDGen,
	}, nil
}

// Request contains the parameters of a run.
type Request struct {
	Targets []model.Target
	// Indexes selects a subset of Targets by 0-based position (quick test mode).
	Indexes []int
	// UploadFile is copied into every target with an upload path before starting.
	UploadFile string
	Uploader   session.Uploader
	Echo       bool
	// JoinTimeout is the single deadline shared by every session join.
	JoinTimeout time.Duration
	// Exclude hides the named projects from the report.
	Exclude []string
}

func (r *Request) defaults() error {
	if len(r.Targets) == 0 {
		return fmt.Errorf("at least one target is required: %w", model.ErrNotValid)
	}
	if r.UploadFile != "" && r.Uploader == nil {
		return fmt.Errorf("uploader is required to upload files: %w", model.ErrNotValid)
	}
	if r.JoinTimeout <= 0 {
		r.JoinTimeout = DefaultJoinTimeout
	}
	return nil
}

func (r Request) selected() ([]model.Target, error) {
	if len(r.Indexes) == 0 {
		return slices.Clone(r.Targets), nil
	}

	targets := make([]model.Target, 0, len(r.Indexes))
	for _, i := range r.Indexes {
		if i < 0 || i >= len(r.Targets) {
			return nil, fmt.Errorf("target index %d out of range [0, %d): %w", i, len(r.Targets), model.ErrNotValid)
		}
		targets = append(targets, r.Targets[i])
	}
	return targets, nil
}

// Run executes every selected target concurrently and returns the report.
// Configuration and upload faults abort the run before any session starts,
// per-target faults are reported in the rows.
func (s *Service) Run(ctx context.Context, req Request) (*model.Report, error) {
	if err := req.defaults(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	runID := s.idGen()
	logger := s.logger.WithValues(log.Kv{"run-id": runID})
	startedAt := s.timeNow()

	// 1. Configuration.
	targets, err := req.selected()
	if err != nil {
		return nil, err
	}
	if err := model.ValidateTargets(targets); err != nil {
		return nil, fmt.Errorf("invalid targets: %w", err)
	}
	detectors, err := s.registry.Resolve(targets)
	if err != nil {
		return nil, fmt.Errorf("could not resolve detectors: %w", err)
	}

	// 2. Runners.
	runners := make([]*session.Runner, 0, len(targets))
	for _, t := range targets {
		r, err := session.NewRunner(session.RunnerConfig{
			Target:  t,
			Dialer:  s.dialer,
			Console: s.console,
			NoEcho:  !req.Echo,
			Logger:  logger,
			TimeNow: s.timeNow,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create session for %s: %w", t.ProjectName, err)
		}
		r.Register(detectors[t.ProjectName])
		runners = append(runners, r)
	}

	// 3. Uploads.
	if req.UploadFile != "" {
		for _, r := range runners {
			t := r.Target()
			if t.UploadPath == "" {
				logger.Infof("Skipping upload to %s, no upload path", t.ProjectName)
				continue
			}
			if req.Echo {
				s.console.Printf("uploading file: `%s` to docker: `%s:%s`", req.UploadFile, t.ContainerName, t.UploadPath)
			}
			if err := r.Upload(ctx, req.Uploader, req.UploadFile); err != nil {
				return nil, err
			}
		}
	}

	// 4. Start everything before joining anything.
	for i, r := range runners {
		if err := r.Start(ctx); err != nil {
			s.abort(runners[:i])
			return nil, fmt.Errorf("could not start session: %w", err)
		}
	}
	logger.Infof("Started %d sessions", len(runners))

	// 5. Join concurrently against one deadline.
	joinCtx, cancel := context.WithTimeout(ctx, req.JoinTimeout)
	defer cancel()

	var g errgroup.Group
	for _, r := range runners {
		r := r
		g.Go(func() error {
			err := r.Join(joinCtx)
			if err != nil && !errors.Is(err, model.ErrTimeout) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("could not join sessions: %w", err)
	}

	// 6. Report.
	report := &model.Report{RunID: runID, StartedAt: startedAt}
	for _, r := range runners {
		res, err := r.Result()
		if err != nil {
			return nil, fmt.Errorf("missing session result: %w", err)
		}

		t := r.Target()
		if t.ExcludeFromReport || slices.Contains(req.Exclude, t.ProjectName) {
			logger.Debugf("Excluding %s from report (%s)", t.ProjectName, res.Status)
			continue
		}

		report.Rows = append(report.Rows, model.ReportRow{Index: len(report.Rows) + 1, Result: res})
		if res.Status == model.TargetStatusTimedOut {
			logger.Warningf("%s timed out after %d/%d commands, verdict is incomplete", t.ProjectName, res.CommandsRun, res.CommandsTotal)
		}
	}

	return report, nil
}

// abort releases already started sessions.
func (s *Service) abort(runners []*session.Runner) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, r := range runners {
		_ = r.Join(ctx)
	}
}
