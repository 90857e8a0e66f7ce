package uafrepro

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/g8/uafrepro/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
	// TargetsFile points to the targets of running reproduction containers (optional).
	TargetsFile string
}

func (c *Config) defaults() error {
	// go test changes the CWD to the test package directory, relative paths are ambiguous.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("UAFREPRO_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("uafrepro binary not found at %q: %w", c.Binary, err)
	}

	if c.TargetsFile != "" {
		if _, err := os.Stat(c.TargetsFile); err != nil {
			return fmt.Errorf("targets file not found at %q: %w", c.TargetsFile, err)
		}
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "UAFREPRO_INTEGRATION"
		envBinary     = "UAFREPRO_INTEGRATION_BINARY"
		envTargets    = "UAFREPRO_INTEGRATION_TARGETS"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{
		Binary:      os.Getenv(envBinary),
		TargetsFile: os.Getenv(envTargets),
	}

	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// RequireTargets skips the test when no running reproduction containers are configured.
func (c Config) RequireTargets(t *testing.T) {
	t.Helper()
	if c.TargetsFile == "" {
		t.Skip("Skipping: UAFREPRO_INTEGRATION_TARGETS is not set")
	}
}

// RunCmd runs a uafrepro command against a targets file with logging disabled.
func RunCmd(ctx context.Context, config Config, targetsFile, cmdArgs string) (stdout, stderr []byte, err error) {
	args := fmt.Sprintf("--no-log --no-color --config %s %s", targetsFile, cmdArgs)
	return testutils.RunUAFRepro(ctx, nil, config.Binary, args, true)
}
