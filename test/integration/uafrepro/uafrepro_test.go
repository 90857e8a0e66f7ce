package uafrepro_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intuafrepro "github.com/g8/uafrepro/test/integration/uafrepro"
	"github.com/g8/uafrepro/test/integration/testutils"
)

const offlineTargets = `[
  {
    "project_name": "DangSan",
    "docker_name": "g8-dangsan",
    "host": "127.0.0.1",
    "port": 1,
    "username": "root",
    "password": "root",
    "commands": ["./run.sh"],
    "callback": "dangsan_callback",
    "upload_path": "/root/test"
  }
]`

type report struct {
	RunID string `json:"run_id"`
	Rows  []struct {
		Index   int    `json:"index"`
		Project string `json:"project"`
		Status  string `json:"status"`
		Error   string `json:"error"`
	} `json:"rows"`
}

func writeTargets(t *testing.T, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "docker.json")
	require.NoError(t, os.WriteFile(p, []byte(data), 0644))
	return p
}

func TestInfo(t *testing.T) {
	config := intuafrepro.NewConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stdout, _, err := intuafrepro.RunCmd(ctx, config, writeTargets(t, offlineTargets), "info")
	require.NoError(t, err)

	out := string(stdout)
	assert.Contains(t, out, "G8 Project")
	assert.Contains(t, out, "Reproduction")
	assert.Contains(t, out, "DangSan")
	assert.Contains(t, out, "127.0.0.1:1")
}

func TestRunUnreachableTargetIsAFault(t *testing.T) {
	config := intuafrepro.NewConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	stdout, _, err := intuafrepro.RunCmd(ctx, config, writeTargets(t, offlineTargets), "run --no-echo --format json --connect-timeout 2s")
	assert.Equal(t, 2, testutils.ExitCode(err))

	var r report
	require.NoError(t, json.Unmarshal(stdout, &r))
	assert.NotEmpty(t, r.RunID)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, "DangSan", r.Rows[0].Project)
	assert.Equal(t, "failed", r.Rows[0].Status)
	assert.NotEmpty(t, r.Rows[0].Error)
}

func TestRunInvalidConfigFails(t *testing.T) {
	config := intuafrepro.NewConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	targets := strings.Replace(offlineTargets, "dangsan_callback", "unknown_callback", 1)
	_, stderr, err := intuafrepro.RunCmd(ctx, config, writeTargets(t, targets), "run --no-echo")
	assert.Equal(t, 1, testutils.ExitCode(err))
	assert.Contains(t, string(stderr), "unknown detector")
}

func TestRunTargets(t *testing.T) {
	config := intuafrepro.NewConfig(t)
	config.RequireTargets(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stdout, _, err := intuafrepro.RunCmd(ctx, config, config.TargetsFile, "run --no-echo --format json --timeout 2m")
	require.NoError(t, err)

	var r report
	require.NoError(t, json.Unmarshal(stdout, &r))
	require.NotEmpty(t, r.Rows)
	for i, row := range r.Rows {
		assert.Equal(t, i+1, row.Index)
		assert.Contains(t, []string{"detected", "undetected"}, row.Status, row.Project)
	}
}

func TestDockerStatus(t *testing.T) {
	config := intuafrepro.NewConfig(t)
	config.RequireTargets(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stdout, _, err := intuafrepro.RunCmd(ctx, config, config.TargetsFile, "docker --all status")
	require.NoError(t, err)
	assert.Contains(t, string(stdout), "running")
}
