package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/g8/uafrepro/internal/detector"
	"github.com/g8/uafrepro/internal/log"
	"github.com/g8/uafrepro/internal/model"
	"github.com/g8/uafrepro/internal/printer"
)

// RunnerConfig is the configuration for a session runner.
type RunnerConfig struct {
	Target model.Target
	Dialer Dialer
	// Console receives the echoed command outputs (optional).
	Console *printer.Console
	// NoEcho disables echoing from the start.
	NoEcho bool
	Logger log.Logger
	// TimeNow is used to measure the session (optional).
	TimeNow func() time.Time
}

func (c *RunnerConfig) defaults() error {
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("invalid target: %w", err)
	}
	if c.Dialer == nil {
		return fmt.Errorf("dialer is required")
	}
	if c.Console == nil {
		c.Console = printer.NewConsole(nil)
	}
	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{
		"svc":       "session.Runner",
		"project":   c.Target.ProjectName,
		"container": c.Target.ContainerName,
	})
	return nil
}

// Runner runs the command sequence of one target in a single remote session
// and folds every command verdict into the target verdict.
//
// A runner is used once: Register, Start, Join and then Verdict or Result.
type Runner struct {
	target  model.Target
	dialer  Dialer
	console *printer.Console
	logger  log.Logger
	timeNow func() time.Time

	mu       sync.Mutex
	detector detector.Func
	echo     bool
	started  bool
	released bool
	conn     Conn
	cancel   context.CancelFunc
	done     chan struct{}

	// Progress, only updated while not finished.
	startedAt   time.Time
	verdict     bool
	commandsRun int
	outputBytes int64

	finished bool
	result   model.TargetResult
}

// NewRunner creates a new session runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	target := cfg.Target
	target.Commands = append([]string(nil), cfg.Target.Commands...)

	return &Runner{
		target:  target,
		dialer:  cfg.Dialer,
		console: cfg.Console,
		logger:  cfg.Logger,
		timeNow: cfg.TimeNow,
		echo:    !cfg.NoEcho,
		done:    make(chan struct{}),
	}, nil
}

// Target returns the target descriptor of the runner.
func (r *Runner) Target() model.Target { return r.target }

// Register sets the detector used on every command output. It must be called before Start.
func (r *Runner) Register(fn detector.Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detector = fn
}

// CloseEcho disables the echo of the command outputs for this session only.
func (r *Runner) CloseEcho() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.echo = false
}

func (r *Runner) echoEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.echo
}

// Upload copies a local file into the target container upload path.
func (r *Runner) Upload(ctx context.Context, uploader Uploader, srcLocal string) error {
	if r.target.UploadPath == "" {
		return fmt.Errorf("%s has no upload path: %w", r.target.ProjectName, model.ErrNotValid)
	}
	if uploader == nil {
		return fmt.Errorf("uploader is required: %w", model.ErrNotValid)
	}

	r.logger.Infof("Uploading %s to %s:%s", srcLocal, r.target.ContainerName, r.target.UploadPath)
	if err := uploader.Upload(ctx, r.target, srcLocal); err != nil {
		return fmt.Errorf("could not upload %s to %s:%s: %w", srcLocal, r.target.ContainerName, r.target.UploadPath, err)
	}

	return nil
}

// Start begins the concurrent execution of the session. The session keeps
// running after Start returns until it finishes or Join releases it.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("%s: %w", r.target.ProjectName, model.ErrAlreadyStarted)
	}
	if r.detector == nil {
		return fmt.Errorf("%s: call Register before Start: %w", r.target.ProjectName, model.ErrDetectorMissing)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.started = true
	r.cancel = cancel
	r.startedAt = r.timeNow()

	go r.run(runCtx, r.detector)

	return nil
}

func (r *Runner) run(ctx context.Context, fn detector.Func) {
	err := r.execute(ctx, fn)
	r.finish(err)
}

func (r *Runner) execute(ctx context.Context, fn detector.Func) error {
	r.logger.Infof("Connecting to %s", r.target.Address())

	conn, err := r.dialer.Dial(ctx, r.target)
	if err != nil {
		return fmt.Errorf("could not open session with %s: %w: %w", r.target.Address(), model.ErrConnection, err)
	}

	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("session released before connection: %w", model.ErrTimeout)
	}
	r.conn = conn
	r.mu.Unlock()

	for i, command := range r.target.Commands {
		r.logger.Debugf("Running command %d/%d: %s", i+1, len(r.target.Commands), command)

		out, err := conn.Run(ctx, command)
		if err != nil {
			return fmt.Errorf("command %d %q failed: %w", i+1, command, err)
		}

		if r.echoEnabled() {
			r.console.PrintOutput(r.target.ProjectName, out.Stdout, out.Stderr)
		}

		detected, err := fn(out.Stdout, out.Stderr, r.target)
		if err != nil {
			r.addProgress(out, false)
			return fmt.Errorf("command %d %q: %w: %w", i+1, command, model.ErrDetector, err)
		}

		if !r.addProgress(out, detected) {
			// Finished by Join.
			return nil
		}
	}

	return nil
}

// addProgress folds a command verdict, it returns false if the session was already finished.
func (r *Runner) addProgress(out model.CommandOutput, detected bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return false
	}

	r.commandsRun++
	r.outputBytes += out.Size()
	if detected {
		r.verdict = true
	}

	return true
}

// finish publishes the result of a session that ended by itself.
func (r *Runner) finish(err error) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}

	status := model.TargetStatusUndetected
	switch {
	case err != nil:
		status = model.TargetStatusFailed
	case r.verdict:
		status = model.TargetStatusDetected
	}

	// The result block is written before done is closed so joiners never
	// race with it.
	if err == nil && r.echo {
		r.console.PrintResult(r.target.ProjectName, r.verdict)
	}
	r.publish(status, err)
	r.mu.Unlock()

	if err != nil {
		r.logger.Errorf("Session failed: %v", err)
		return
	}
	r.logger.Infof("Session finished: %s", status)
}

// publish must be called with the lock held.
func (r *Runner) publish(status model.TargetStatus, err error) {
	r.result = model.TargetResult{
		ProjectName:   r.target.ProjectName,
		ContainerName: r.target.ContainerName,
		Status:        status,
		Verdict:       r.verdict,
		Err:           err,
		CommandsRun:   r.commandsRun,
		CommandsTotal: len(r.target.Commands),
		OutputBytes:   r.outputBytes,
		StartedAt:     r.startedAt,
		Duration:      r.timeNow().Sub(r.startedAt),
	}
	r.finished = true
	close(r.done)
}

// Done returns a channel that is closed when the session result is available.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Join blocks until the session finishes or ctx ends, then releases the
// remote connection. When ctx ends first, the in-flight command is cancelled,
// the session is marked as timed out with the verdict folded so far and
// model.ErrTimeout is returned.
func (r *Runner) Join(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		r.release()
		return fmt.Errorf("%s: %w", r.target.ProjectName, model.ErrNotStarted)
	}
	r.mu.Unlock()

	var err error
	select {
	case <-r.done:
	case <-ctx.Done():
		err = r.timeout()
	}

	r.cancel()
	r.release()

	return err
}

func (r *Runner) timeout() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return nil
	}

	err := fmt.Errorf("%s: %d/%d commands completed: %w", r.target.ProjectName, r.commandsRun, len(r.target.Commands), model.ErrTimeout)
	r.publish(model.TargetStatusTimedOut, err)
	r.logger.Warningf("Session timed out, verdict is incomplete")

	return err
}

// release closes the remote connection exactly once.
func (r *Runner) release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	conn := r.conn
	r.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		r.logger.Debugf("Could not close connection: %v", err)
	}
}

// Verdict returns the session verdict. It fails with model.ErrNotFinished
// before the session finished, and returns the session fault (with the
// partial verdict) when the session failed or timed out.
func (r *Runner) Verdict() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.finished {
		return false, fmt.Errorf("%s: %w", r.target.ProjectName, model.ErrNotFinished)
	}
	return r.result.Verdict, r.result.Err
}

// Result returns the full session result once finished.
func (r *Runner) Result() (model.TargetResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.finished {
		return model.TargetResult{}, fmt.Errorf("%s: %w", r.target.ProjectName, model.ErrNotFinished)
	}
	return r.result, nil
}
