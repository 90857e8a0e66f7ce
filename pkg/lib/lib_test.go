package lib_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g8/uafrepro/internal/model"
	"github.com/g8/uafrepro/internal/session"
	"github.com/g8/uafrepro/pkg/lib"
)

// fakeRemote answers every command with the output registered for the target host.
type fakeRemote struct {
	outputs map[string]string
	failing map[string]bool
}

func (f fakeRemote) Dial(ctx context.Context, target model.Target) (session.Conn, error) {
	if f.failing[target.Host] {
		return nil, errors.New("connection refused")
	}
	return fakeConn{output: f.outputs[target.Host]}, nil
}

type fakeConn struct{ output string }

func (c fakeConn) Run(ctx context.Context, command string) (model.CommandOutput, error) {
	if c.output == "block" {
		<-ctx.Done()
		return model.CommandOutput{}, ctx.Err()
	}
	return model.CommandOutput{Command: command, Stdout: c.output}, nil
}

func (fakeConn) Close() error { return nil }

type recordingUploader struct {
	mu      sync.Mutex
	uploads []string
}

func (u *recordingUploader) Upload(ctx context.Context, target model.Target, src string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads = append(u.uploads, target.ProjectName+":"+target.UploadPath)
	return nil
}

func newTarget(name, host, detector string) lib.Target {
	return lib.Target{
		ProjectName: name,
		Host:        host,
		Username:    "root",
		Password:    "root",
		Commands:    []string{"./poc"},
		Detector:    detector,
	}
}

func newTestClient(t *testing.T, cfg lib.Config, remote fakeRemote, u session.Uploader) *lib.Client {
	t.Helper()

	c, err := lib.New(lib.WithTransport(cfg, remote, u))
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	tests := map[string]struct {
		cfg    lib.Config
		expErr error
	}{
		"An empty config should use the SSH transport.": {
			cfg: lib.Config{},
		},

		"A detector without function should fail.": {
			cfg:    lib.Config{Detectors: map[string]lib.DetectorFunc{"broken": nil}},
			expErr: lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := lib.New(test.cfg)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestClientDetectors(t *testing.T) {
	c := newTestClient(t, lib.Config{
		Detectors: map[string]lib.DetectorFunc{
			"freesentry": func(stdout, _ string, _ lib.Target) (bool, error) { return false, nil },
		},
	}, fakeRemote{}, nil)

	names := c.Detectors()
	assert.Contains(t, names, "dangsan")
	assert.Contains(t, names, "address_sanitizer")
	assert.Contains(t, names, "freesentry")
	assert.IsNonDecreasing(t, names)
}

func TestClientRun(t *testing.T) {
	remote := fakeRemote{
		outputs: map[string]string{
			"dangsan-host": "G8 UAF DETECTED!",
			"clean-host":   "G8 UAF NO!",
			"custom-host":  "FREESENTRY: UAF at 0x1000",
			"slow-host":    "block",
		},
		failing: map[string]bool{"down-host": true},
	}

	freesentry := func(stdout, _ string, target lib.Target) (bool, error) {
		return bytes.Contains([]byte(stdout), []byte(target.Markers.Positive)), nil
	}

	tests := map[string]struct {
		targets   []lib.Target
		opts      *lib.RunOpts
		expStatus map[string]lib.Status
		expErr    error
		expFaults bool
	}{
		"Built-in detectors should classify every target.": {
			targets: []lib.Target{
				newTarget("A", "dangsan-host", "dangsan"),
				newTarget("B", "clean-host", "dangsan"),
			},
			expStatus: map[string]lib.Status{"A": lib.StatusDetected, "B": lib.StatusUndetected},
		},

		"Custom detectors should receive the target markers.": {
			targets: func() []lib.Target {
				t := newTarget("F", "custom-host", "freesentry")
				t.Markers = lib.Markers{Positive: "FREESENTRY: UAF"}
				return []lib.Target{t}
			}(),
			expStatus: map[string]lib.Status{"F": lib.StatusDetected},
		},

		"Connection faults should be reported in the rows.": {
			targets: []lib.Target{
				newTarget("A", "dangsan-host", "dangsan"),
				newTarget("D", "down-host", "dangsan"),
			},
			expStatus: map[string]lib.Status{"A": lib.StatusDetected, "D": lib.StatusFailed},
			expFaults: true,
		},

		"Slow targets should time out.": {
			targets:   []lib.Target{newTarget("S", "slow-host", "dangsan")},
			opts:      &lib.RunOpts{JoinTimeout: 100 * time.Millisecond},
			expStatus: map[string]lib.Status{"S": lib.StatusTimedOut},
			expFaults: true,
		},

		"Selected and excluded targets should be filtered.": {
			targets: []lib.Target{
				newTarget("A", "dangsan-host", "dangsan"),
				newTarget("B", "clean-host", "dangsan"),
				newTarget("C", "clean-host", "dangsan"),
			},
			opts:      &lib.RunOpts{Indexes: []int{0, 2}, Exclude: []string{"C"}},
			expStatus: map[string]lib.Status{"A": lib.StatusDetected},
		},

		"Unknown detectors should fail the run.": {
			targets: []lib.Target{newTarget("A", "dangsan-host", "missing")},
			expErr:  lib.ErrNotValid,
		},

		"Out of range indexes should fail the run.": {
			targets: []lib.Target{newTarget("A", "dangsan-host", "dangsan")},
			opts:    &lib.RunOpts{Indexes: []int{3}},
			expErr:  lib.ErrNotValid,
		},

		"Upload without upload support should fail the run.": {
			targets: []lib.Target{newTarget("A", "dangsan-host", "dangsan")},
			opts:    &lib.RunOpts{UploadFile: "poc.c"},
			expErr:  lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, lib.Config{
				Detectors: map[string]lib.DetectorFunc{"freesentry": freesentry},
			}, remote, nil)

			report, err := c.Run(context.Background(), test.targets, test.opts)
			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				return
			}
			require.NoError(t, err)

			gotStatus := map[string]lib.Status{}
			for i, row := range report.Rows {
				assert.Equal(t, i+1, row.Index)
				gotStatus[row.Result.ProjectName] = row.Result.Status
			}
			assert.Equal(t, test.expStatus, gotStatus)
			assert.Equal(t, test.expFaults, report.HasFaults())
			assert.NotEmpty(t, report.RunID)
		})
	}
}

func TestClientRunFaultErrors(t *testing.T) {
	c := newTestClient(t, lib.Config{}, fakeRemote{
		outputs: map[string]string{"slow-host": "block"},
		failing: map[string]bool{"down-host": true},
	}, nil)

	report, err := c.Run(context.Background(), []lib.Target{
		newTarget("D", "down-host", "dangsan"),
		newTarget("S", "slow-host", "dangsan"),
	}, &lib.RunOpts{JoinTimeout: 100 * time.Millisecond})
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)

	assert.ErrorIs(t, report.Rows[0].Result.Err, lib.ErrConnection)
	assert.ErrorIs(t, report.Rows[1].Result.Err, lib.ErrTimeout)
}

func TestClientRunEcho(t *testing.T) {
	var out bytes.Buffer
	c := newTestClient(t, lib.Config{Echo: &out}, fakeRemote{
		outputs: map[string]string{"dangsan-host": "G8 UAF DETECTED!"},
	}, nil)

	_, err := c.Run(context.Background(), []lib.Target{newTarget("A", "dangsan-host", "dangsan")}, nil)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "G8 UAF DETECTED!")
	assert.Contains(t, out.String(), "uaf detected!")
}

func TestClientRunUpload(t *testing.T) {
	u := &recordingUploader{}
	c := newTestClient(t, lib.Config{}, fakeRemote{
		outputs: map[string]string{"dangsan-host": "G8 UAF DETECTED!"},
	}, u)

	a := newTarget("A", "dangsan-host", "dangsan")
	a.UploadPath = "/root/poc"
	b := newTarget("B", "dangsan-host", "dangsan")

	_, err := c.Run(context.Background(), []lib.Target{a, b}, &lib.RunOpts{UploadFile: "poc.c"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A:/root/poc"}, u.uploads)
}

func TestClientLoadTargets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docker.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"project_name": "DangSan", "docker_name": "g8-dangsan", "host": "127.0.0.1", "port": 10022,
   "username": "root", "password": "root", "commands": ["./poc"], "callback": "dangsan_callback"}
]`), 0644))

	c := newTestClient(t, lib.Config{}, fakeRemote{}, nil)

	targets, err := c.LoadTargets(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []lib.Target{{
		ProjectName:   "DangSan",
		ContainerName: "g8-dangsan",
		Host:          "127.0.0.1",
		Port:          10022,
		Username:      "root",
		Password:      "root",
		Commands:      []string{"./poc"},
		Detector:      "dangsan_callback",
	}}, targets)

	_, err = c.LoadTargets(context.Background(), filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, lib.ErrNotFound)
}
