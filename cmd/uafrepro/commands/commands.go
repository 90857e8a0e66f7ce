package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/g8/uafrepro/internal/log"
	"github.com/g8/uafrepro/internal/model"
	storageio "github.com/g8/uafrepro/internal/storage/io"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	// DefaultConfigPath is the default targets file.
	DefaultConfigPath = "config/docker.json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// ExitError is returned by commands that must end the process with a specific exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e ExitError) Unwrap() error { return e.Err }

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	ConfigPath string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger and table colors.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("config", "Path to the targets file (JSON or YAML).").Short('c').Default(DefaultConfigPath).StringVar(&c.ConfigPath)

	return c
}

// LoadTargets loads the targets file.
func (c RootCommand) LoadTargets(ctx context.Context) ([]model.Target, error) {
	abs, err := filepath.Abs(c.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path %q: %w", c.ConfigPath, err)
	}

	repo := storageio.NewTargetsRepository(os.DirFS(filepath.Dir(abs)))
	targets, err := repo.ListTargets(ctx, filepath.Base(abs))
	if err != nil {
		return nil, fmt.Errorf("could not load targets: %w", err)
	}

	c.Logger.Debugf("Loaded %d targets from %s", len(targets), abs)
	return targets, nil
}
