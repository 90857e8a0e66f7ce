package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/g8/uafrepro/internal/app/container"
	"github.com/g8/uafrepro/internal/container/docker"
	"github.com/g8/uafrepro/internal/model"
	"github.com/g8/uafrepro/internal/printer"
)

type DockerCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	all string
	raw []string
}

// NewDockerCommand returns the docker command.
func NewDockerCommand(rootCmd *RootCommand, app *kingpin.Application) *DockerCommand {
	c := &DockerCommand{rootCmd: rootCmd}

	actions := make([]string, 0, len(container.Actions))
	for _, a := range container.Actions {
		actions = append(actions, string(a))
	}

	c.Cmd = app.Command("docker", "Manage the target containers (use -- before raw docker flags).")
	c.Cmd.Flag("all", "Apply the action to every configured container.").EnumVar(&c.all, actions...)
	c.Cmd.Arg("command", "Raw docker command.").StringsVar(&c.raw)

	return c
}

func (c DockerCommand) Name() string { return c.Cmd.FullCommand() }

func (c DockerCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	var targets []model.Target
	if c.all != "" {
		t, err := c.rootCmd.LoadTargets(ctx)
		if err != nil {
			return err
		}
		targets = t
	}

	manager, err := docker.NewManager(docker.ManagerConfig{
		Stdin:  c.rootCmd.Stdin,
		Stdout: c.rootCmd.Stdout,
		Stderr: c.rootCmd.Stderr,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create docker manager: %w", err)
	}

	svc, err := container.NewService(container.ServiceConfig{
		Manager: manager,
		Printer: printer.NewTablePrinter(c.rootCmd.Stdout, !c.rootCmd.NoColor),
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	code, err := svc.Run(ctx, container.Request{
		Targets: targets,
		All:     container.Action(c.all),
		Raw:     c.raw,
	})
	if err != nil {
		return err
	}
	if code != 0 {
		return ExitError{Code: code}
	}

	return nil
}
