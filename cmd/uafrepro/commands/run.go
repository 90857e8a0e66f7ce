package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/g8/uafrepro/internal/app/run"
	"github.com/g8/uafrepro/internal/container/docker"
	"github.com/g8/uafrepro/internal/printer"
	"github.com/g8/uafrepro/internal/session"
	"github.com/g8/uafrepro/internal/ssh"
)

const (
	uploadViaDocker = "docker"
	uploadViaSFTP   = "sftp"

	// ExitCodeFaults is the exit code of a run with failed or timed out targets.
	ExitCodeFaults = 2
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	file           string
	echo           bool
	timeout        time.Duration
	quick          []int
	exclude        []string
	uploadVia      string
	format         string
	strictHostKey  bool
	knownHosts     string
	sshAgent       bool
	connectTimeout time.Duration
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run the reproduction on every configured target.")
	c.Cmd.Flag("file", "Local file uploaded to every target upload path before running.").Short('f').StringVar(&c.file)
	c.Cmd.Flag("echo", "Echo the command outputs.").Default("true").BoolVar(&c.echo)
	c.Cmd.Flag("timeout", "Deadline shared by every session.").Default(run.DefaultJoinTimeout.String()).DurationVar(&c.timeout)
	c.Cmd.Flag("quick", "Only run the target at this 0-based index (repeatable).").IntsVar(&c.quick)
	c.Cmd.Flag("exclude", "Hide this project from the verdict table (repeatable).").StringsVar(&c.exclude)
	c.Cmd.Flag("upload-via", "Upload transport.").Default(uploadViaDocker).EnumVar(&c.uploadVia, uploadViaDocker, uploadViaSFTP)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")
	c.Cmd.Flag("strict-host-key", "Verify the target host keys.").BoolVar(&c.strictHostKey)
	c.Cmd.Flag("known-hosts", "known_hosts file used with strict host key checking.").Default(ssh.DefaultKnownHostsPath()).StringVar(&c.knownHosts)
	c.Cmd.Flag("ssh-agent", "Also authenticate with the SSH agent keys.").BoolVar(&c.sshAgent)
	c.Cmd.Flag("connect-timeout", "SSH connection timeout.").Default(ssh.DefaultConnectTimeout.String()).DurationVar(&c.connectTimeout)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	targets, err := c.rootCmd.LoadTargets(ctx)
	if err != nil {
		return err
	}

	dialer, err := ssh.NewDialer(ssh.DialerConfig{
		UseAgent:       c.sshAgent,
		StrictHostKey:  c.strictHostKey,
		KnownHostsPath: c.knownHosts,
		ConnectTimeout: c.connectTimeout,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create ssh dialer: %w", err)
	}

	var uploader session.Uploader
	if c.file != "" {
		switch c.uploadVia {
		case uploadViaSFTP:
			uploader = ssh.NewSFTPUploader(dialer)
		default:
			m, err := docker.NewManager(docker.ManagerConfig{Logger: logger})
			if err != nil {
				return fmt.Errorf("could not create docker manager: %w", err)
			}
			uploader = m
		}
	}

	svc, err := run.NewService(run.ServiceConfig{
		Dialer:  dialer,
		Console: printer.NewConsole(c.rootCmd.Stdout),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	report, err := svc.Run(ctx, run.Request{
		Targets:     targets,
		Indexes:     c.quick,
		UploadFile:  c.file,
		Uploader:    uploader,
		Echo:        c.echo,
		JoinTimeout: c.timeout,
		Exclude:     c.exclude,
	})
	if err != nil {
		return fmt.Errorf("could not run targets: %w", err)
	}

	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout, !c.rootCmd.NoColor)
	}

	if err := p.PrintReport(*report); err != nil {
		return fmt.Errorf("could not print report: %w", err)
	}

	if report.HasFaults() {
		return ExitError{Code: ExitCodeFaults, Err: fmt.Errorf("some targets failed or timed out")}
	}

	return nil
}
