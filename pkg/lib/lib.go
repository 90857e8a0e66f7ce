package lib

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/g8/uafrepro/internal/app/run"
	"github.com/g8/uafrepro/internal/detector"
	"github.com/g8/uafrepro/internal/log"
	"github.com/g8/uafrepro/internal/model"
	"github.com/g8/uafrepro/internal/printer"
	"github.com/g8/uafrepro/internal/session"
	"github.com/g8/uafrepro/internal/ssh"
	storageio "github.com/g8/uafrepro/internal/storage/io"
)

// Config configures the SDK client.
//
// All fields are optional. An empty Config{} uses password/key auth without
// host key checking, the built-in detectors and no echo.
type Config struct {
	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger

	// Echo receives the per-command output blocks and the per-target result
	// block of every session. Nil disables echoing.
	Echo io.Writer

	// UseAgent adds the keys of the running ssh-agent to the auth methods.
	UseAgent bool
	// StrictHostKey checks the target host keys against KnownHostsPath.
	StrictHostKey bool
	// KnownHostsPath is the known_hosts file used with StrictHostKey.
	// Default: ~/.ssh/known_hosts.
	KnownHostsPath string
	// ConnectTimeout bounds the TCP connect and SSH handshake.
	ConnectTimeout time.Duration

	// Detectors registers extra detectors by name. A name that already
	// exists in the built-in set replaces the built-in detector.
	Detectors map[string]DetectorFunc

	dialer   session.Dialer
	uploader session.Uploader
}

func (c *Config) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "lib.Client"})

	if c.dialer == nil {
		d, err := ssh.NewDialer(ssh.DialerConfig{
			UseAgent:       c.UseAgent,
			StrictHostKey:  c.StrictHostKey,
			KnownHostsPath: c.KnownHostsPath,
			ConnectTimeout: c.ConnectTimeout,
			Logger:         c.Logger,
		})
		if err != nil {
			return fmt.Errorf("could not create ssh dialer: %w", err)
		}
		c.dialer = d
		if c.uploader == nil {
			c.uploader = ssh.NewSFTPUploader(d)
		}
	}

	for name, fn := range c.Detectors {
		if name == "" || fn == nil {
			return fmt.Errorf("detector %q is not valid: %w", name, ErrNotValid)
		}
	}

	return nil
}

// Client runs reproduction targets programmatically.
//
// Create a Client with [New]. A Client is safe for concurrent use, every
// [Client.Run] call uses its own sessions.
type Client struct {
	service  *run.Service
	registry detector.Registry
	uploader session.Uploader
	echo     bool
	logger   log.Logger
}

// New creates a new SDK client.
func New(cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, mapError(fmt.Errorf("invalid config: %w", err))
	}

	registry := make(detector.Registry, len(detector.DefaultRegistry)+len(cfg.Detectors))
	for name, fn := range detector.DefaultRegistry {
		registry[name] = fn
	}
	for name, fn := range cfg.Detectors {
		registry[name] = toInternalDetector(fn)
	}

	svc, err := run.NewService(run.ServiceConfig{
		Dialer:   cfg.dialer,
		Registry: registry,
		Console:  printer.NewConsole(cfg.Echo),
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create run service: %w", err)
	}

	return &Client{
		service:  svc,
		registry: registry,
		uploader: cfg.uploader,
		echo:     cfg.Echo != nil,
		logger:   cfg.Logger,
	}, nil
}

// Detectors returns the sorted names of every detector the client can use.
func (c *Client) Detectors() []string {
	return c.registry.Names()
}

// LoadTargets reads and validates a JSON or YAML targets file.
func (c *Client) LoadTargets(ctx context.Context, path string) ([]Target, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("could not resolve %s: %w", path, err)
	}

	repo := storageio.NewTargetsRepository(os.DirFS(filepath.Dir(abs)))
	targets, err := repo.ListTargets(ctx, filepath.Base(abs))
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalTargets(targets), nil
}

// RunOpts are the optional parameters of [Client.Run].
type RunOpts struct {
	// Indexes selects a subset of the targets by 0-based position.
	Indexes []int
	// JoinTimeout is the single deadline shared by every session.
	// Default: 10s.
	JoinTimeout time.Duration
	// Exclude hides the named projects from the report.
	Exclude []string
	// UploadFile is copied over SFTP into every target with an upload path
	// before any session starts.
	UploadFile string
}

// Run executes the targets concurrently and returns the verdict report.
//
// Configuration faults (invalid targets, unknown detectors, out of range
// indexes) and upload faults return an error and no session is started.
// Per-target faults are reported in the rows, use [Report.HasFaults].
func (c *Client) Run(ctx context.Context, targets []Target, opts *RunOpts) (*Report, error) {
	if opts == nil {
		opts = &RunOpts{}
	}

	req := run.Request{
		Targets:     toInternalTargets(targets),
		Indexes:     opts.Indexes,
		Echo:        c.echo,
		JoinTimeout: opts.JoinTimeout,
		Exclude:     opts.Exclude,
		UploadFile:  opts.UploadFile,
	}
	if opts.UploadFile != "" {
		req.Uploader = c.uploader
	}

	report, err := c.service.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalReport(*report), nil
}

func toInternalDetector(fn DetectorFunc) detector.Func {
	return func(stdout, stderr string, target model.Target) (bool, error) {
		return fn(stdout, stderr, fromInternalTarget(target))
	}
}
