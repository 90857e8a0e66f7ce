package model

import (
	"fmt"
	"strings"
)

// DefaultSSHPort is the port used when a target does not set one.
const DefaultSSHPort = 22

// Target describes one pre-provisioned container that will be tested.
// Targets are immutable once loaded.
type Target struct {
	// ProjectName is the display label, unique per run.
	ProjectName string
	// ContainerName identifies the container for the container-management tool.
	ContainerName string
	Host          string
	Port          int
	Username      string
	Password      string
	// PrivateKeyPath is an optional PEM private key used in addition to the password.
	PrivateKeyPath string
	// Commands run in order in the same remote session.
	Commands []string
	// Detector is the registered detector name used for every command output.
	Detector string
	// UploadPath is the destination inside the container for uploaded files (optional).
	UploadPath string
	// Markers are used by the generic detectors.
	Markers Markers
	// ExcludeFromReport hides the target from the verdict table (helper sessions).
	ExcludeFromReport bool
}

// Markers are the output signatures a generic detector looks for.
type Markers struct {
	Positive string
	Negative string
}

// Address returns the host:port the remote shell listens on.
func (t Target) Address() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// Validate validates the target descriptor.
func (t *Target) Validate() error {
	if t.ProjectName == "" {
		return fmt.Errorf("project name is required: %w", ErrNotValid)
	}
	if t.Host == "" {
		return fmt.Errorf("%s: host is required: %w", t.ProjectName, ErrNotValid)
	}
	if t.Port == 0 {
		t.Port = DefaultSSHPort
	}
	if t.Port < 0 || t.Port > 65535 {
		return fmt.Errorf("%s: port %d out of range: %w", t.ProjectName, t.Port, ErrNotValid)
	}
	if t.Username == "" {
		return fmt.Errorf("%s: username is required: %w", t.ProjectName, ErrNotValid)
	}
	if t.Password == "" && t.PrivateKeyPath == "" {
		return fmt.Errorf("%s: password or private key is required: %w", t.ProjectName, ErrNotValid)
	}
	if len(t.Commands) == 0 {
		return fmt.Errorf("%s: at least one command is required: %w", t.ProjectName, ErrNotValid)
	}
	for i, c := range t.Commands {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("%s: command %d is empty: %w", t.ProjectName, i, ErrNotValid)
		}
	}
	if t.Detector == "" {
		return fmt.Errorf("%s: detector is required: %w", t.ProjectName, ErrNotValid)
	}

	return nil
}

// ValidateTargets validates every target and the uniqueness of project names.
func ValidateTargets(targets []Target) error {
	seen := map[string]struct{}{}
	for i := range targets {
		if err := targets[i].Validate(); err != nil {
			return fmt.Errorf("target %d: %w", i, err)
		}
		name := targets[i].ProjectName
		if _, ok := seen[name]; ok {
			return fmt.Errorf("target %d: duplicated project name %q: %w", i, name, ErrNotValid)
		}
		seen[name] = struct{}{}
	}
	return nil
}
