package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/g8/uafrepro/internal/app/info"
	"github.com/g8/uafrepro/internal/printer"
)

type InfoCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewInfoCommand returns the info command.
func NewInfoCommand(rootCmd *RootCommand, app *kingpin.Application) *InfoCommand {
	c := &InfoCommand{rootCmd: rootCmd}
	c.Cmd = app.Command("info", "Display project information.")
	return c
}

func (c InfoCommand) Name() string { return c.Cmd.FullCommand() }

func (c InfoCommand) Run(ctx context.Context) error {
	targets, err := c.rootCmd.LoadTargets(ctx)
	if err != nil {
		return err
	}

	svc, err := info.NewService(info.ServiceConfig{
		Printer: printer.NewTablePrinter(c.rootCmd.Stdout, !c.rootCmd.NoColor),
		Logger:  c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	return svc.Run(ctx, info.Request{Targets: targets})
}
