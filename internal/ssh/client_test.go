package ssh

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/g8/uafrepro/internal/log"
	"github.com/g8/uafrepro/internal/model"
)

const (
	testUser     = "root"
	testPassword = "g8-secret"
)

// testSSHServer is an in-process SSH server that runs exec requests with the
// local shell and serves the sftp subsystem on the local filesystem.
type testSSHServer struct {
	listener net.Listener
	config   *ssh.ServerConfig
	hostKey  ssh.PublicKey
	addr     string
	wg       sync.WaitGroup
}

func newTestSSHServer(t *testing.T, hostKeyBytes []byte) *testSSHServer {
	t.Helper()

	config := &ssh.ServerConfig{
		PasswordCallback: func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if conn.User() == testUser && string(password) == testPassword {
				return nil, nil
			}
			return nil, errors.New("wrong password")
		},
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			return nil, nil
		},
	}

	signer, err := ssh.ParsePrivateKey(hostKeyBytes)
	require.NoError(t, err)
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &testSSHServer{
		listener: listener,
		config:   config,
		hostKey:  signer.PublicKey(),
		addr:     listener.Addr().String(),
	}

	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.close)

	return s
}

func (s *testSSHServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *testSSHServer) handleConn(netConn net.Conn) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		return
	}
	defer sshConn.Close()

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		go s.handleSession(newChannel)
	}
}

func (s *testSSHServer) handleSession(newChannel ssh.NewChannel) {
	channel, requests, err := newChannel.Accept()
	if err != nil {
		return
	}
	defer channel.Close()

	for req := range requests {
		var payload struct{ Value string }
		if req.Type == "exec" || req.Type == "subsystem" {
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				continue
			}
		}

		switch {
		case req.Type == "exec":
			_ = req.Reply(true, nil)

			cmd := exec.Command("sh", "-c", payload.Value)
			cmd.Stdin = channel
			cmd.Stdout = channel
			cmd.Stderr = channel.Stderr()

			var status struct{ Status uint32 }
			if err := cmd.Run(); err != nil {
				status.Status = 1
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					status.Status = uint32(exitErr.ExitCode())
				}
			}
			_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(&status))
			return

		case req.Type == "subsystem" && payload.Value == "sftp":
			_ = req.Reply(true, nil)
			server, err := sftp.NewServer(channel)
			if err != nil {
				return
			}
			_ = server.Serve()
			return

		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}

func (s *testSSHServer) close() {
	s.listener.Close()
	s.wg.Wait()
}

func (s *testSSHServer) hostPort(t *testing.T) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(s.addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

// generateTestKeyPair generates an Ed25519 key pair and returns PEM-encoded private key bytes.
func generateTestKeyPair(t *testing.T) []byte {
	t.Helper()

	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	pemBlock, err := ssh.MarshalPrivateKey(privKey, "test-key")
	require.NoError(t, err)

	return pem.EncodeToMemory(pemBlock)
}

func writeKnownHosts(t *testing.T, addr string, key ssh.PublicKey) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{addr}, key)
	require.NoError(t, os.WriteFile(p, []byte(line+"\n"), 0600))
	return p
}

func TestClient_NewClient(t *testing.T) {
	hostKey := generateTestKeyPair(t)
	server := newTestSSHServer(t, hostKey)
	host, port := server.hostPort(t)

	clientKey := generateTestKeyPair(t)

	otherSigner, err := ssh.ParsePrivateKey(generateTestKeyPair(t))
	require.NoError(t, err)
	goodKnownHosts := writeKnownHosts(t, server.addr, server.hostKey)
	badKnownHosts := writeKnownHosts(t, server.addr, otherSigner.PublicKey())

	tests := map[string]struct {
		cfg    ClientConfig
		expErr bool
	}{
		"Password authentication should connect.": {
			cfg: ClientConfig{Host: host, Port: port, User: testUser, Password: testPassword, Logger: log.Noop},
		},

		"Private key authentication should connect.": {
			cfg: ClientConfig{Host: host, Port: port, User: testUser, PrivateKey: clientKey},
		},

		"Wrong password should fail.": {
			cfg:    ClientConfig{Host: host, Port: port, User: testUser, Password: "nope"},
			expErr: true,
		},

		"Missing host should fail.": {
			cfg:    ClientConfig{User: testUser, Password: testPassword},
			expErr: true,
		},

		"Missing user should fail.": {
			cfg:    ClientConfig{Host: host, Port: port, Password: testPassword},
			expErr: true,
		},

		"Missing credentials should fail.": {
			cfg:    ClientConfig{Host: host, Port: port, User: testUser},
			expErr: true,
		},

		"Invalid private key should fail.": {
			cfg:    ClientConfig{Host: host, Port: port, User: testUser, PrivateKey: []byte("not-a-key")},
			expErr: true,
		},

		"Strict host key without known hosts should fail.": {
			cfg:    ClientConfig{Host: host, Port: port, User: testUser, Password: testPassword, StrictHostKey: true},
			expErr: true,
		},

		"Strict host key with a known host should connect.": {
			cfg: ClientConfig{Host: host, Port: port, User: testUser, Password: testPassword, StrictHostKey: true, KnownHostsPath: goodKnownHosts},
		},

		"Strict host key with a mismatched host key should fail.": {
			cfg:    ClientConfig{Host: host, Port: port, User: testUser, Password: testPassword, StrictHostKey: true, KnownHostsPath: badKnownHosts},
			expErr: true,
		},

		"Connection to a non listening port should fail.": {
			cfg:    ClientConfig{Host: "127.0.0.1", Port: 1, User: testUser, Password: testPassword, ConnectTimeout: time.Second},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			client, err := NewClient(ctx, test.cfg)
			if test.expErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.NoError(t, client.Close())
		})
	}
}

func newTestClient(t *testing.T, server *testSSHServer) *Client {
	t.Helper()
	host, port := server.hostPort(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := NewClient(ctx, ClientConfig{Host: host, Port: port, User: testUser, Password: testPassword})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func TestClient_Output(t *testing.T) {
	server := newTestSSHServer(t, generateTestKeyPair(t))
	client := newTestClient(t, server)

	tests := map[string]struct {
		command string
		expOut  model.CommandOutput
	}{
		"Stdout should be captured.": {
			command: "echo 'G8 UAF NO!'",
			expOut:  model.CommandOutput{Command: "echo 'G8 UAF NO!'", Stdout: "G8 UAF NO!\n"},
		},

		"Stderr should be captured apart from stdout.": {
			command: "echo out; echo ERROR: AddressSanitizer: heap-use-after-free >&2",
			expOut: model.CommandOutput{
				Command: "echo out; echo ERROR: AddressSanitizer: heap-use-after-free >&2",
				Stdout:  "out\n",
				Stderr:  "ERROR: AddressSanitizer: heap-use-after-free\n",
			},
		},

		"Non zero exit code should not be an error.": {
			command: "echo aborted >&2; exit 134",
			expOut:  model.CommandOutput{Command: "echo aborted >&2; exit 134", Stderr: "aborted\n", ExitCode: 134},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			out, err := client.Run(ctx, test.command)
			require.NoError(t, err)
			assert.Equal(t, test.expOut, out)
		})
	}
}

func TestClient_Exec(t *testing.T) {
	server := newTestSSHServer(t, generateTestKeyPair(t))
	client := newTestClient(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var stdout bytes.Buffer
	code, err := client.Exec(ctx, "cat", ExecOpts{Stdin: bytes.NewBufferString("from stdin"), Stdout: &stdout})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "from stdin", stdout.String())
}

func TestClient_ExecContextCancellation(t *testing.T) {
	server := newTestSSHServer(t, generateTestKeyPair(t))
	client := newTestClient(t, server)

	t.Run("Already cancelled context should not run.", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Exec(ctx, "sleep 60", ExecOpts{})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Deadline should abort a running command.", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := client.Output(ctx, "sleep 60")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 10*time.Second)
	})
}

func TestClient_CopyTo(t *testing.T) {
	server := newTestSSHServer(t, generateTestKeyPair(t))
	client := newTestClient(t, server)

	tests := map[string]struct {
		setup    func(t *testing.T) (srcLocal, dstRemote string)
		expErr   bool
		validate func(t *testing.T, dstRemote string)
	}{
		"Copy single file should work.": {
			setup: func(t *testing.T) (string, string) {
				src := filepath.Join(t.TempDir(), "poc.c")
				require.NoError(t, os.WriteFile(src, []byte("int main(){}"), 0644))
				return src, filepath.Join(t.TempDir(), "poc.c")
			},
			validate: func(t *testing.T, dstRemote string) {
				data, err := os.ReadFile(dstRemote)
				require.NoError(t, err)
				assert.Equal(t, "int main(){}", string(data))
			},
		},

		"Copy file into an existing directory should keep the file name.": {
			setup: func(t *testing.T) (string, string) {
				src := filepath.Join(t.TempDir(), "poc.c")
				require.NoError(t, os.WriteFile(src, []byte("poc"), 0644))
				return src, t.TempDir()
			},
			validate: func(t *testing.T, dstRemote string) {
				data, err := os.ReadFile(filepath.Join(dstRemote, "poc.c"))
				require.NoError(t, err)
				assert.Equal(t, "poc", string(data))
			},
		},

		"Copy directory should work.": {
			setup: func(t *testing.T) (string, string) {
				srcDir := t.TempDir()
				require.NoError(t, os.MkdirAll(filepath.Join(srcDir, "inc"), 0755))
				require.NoError(t, os.WriteFile(filepath.Join(srcDir, "poc.c"), []byte("poc"), 0644))
				require.NoError(t, os.WriteFile(filepath.Join(srcDir, "inc", "poc.h"), []byte("hdr"), 0644))
				return srcDir, filepath.Join(t.TempDir(), "test")
			},
			validate: func(t *testing.T, dstRemote string) {
				data, err := os.ReadFile(filepath.Join(dstRemote, "poc.c"))
				require.NoError(t, err)
				assert.Equal(t, "poc", string(data))

				data, err = os.ReadFile(filepath.Join(dstRemote, "inc", "poc.h"))
				require.NoError(t, err)
				assert.Equal(t, "hdr", string(data))
			},
		},

		"Copy non-existent source should fail.": {
			setup: func(t *testing.T) (string, string) {
				return "/nonexistent/path", filepath.Join(t.TempDir(), "dst")
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			srcLocal, dstRemote := test.setup(t)

			err := client.CopyTo(ctx, srcLocal, dstRemote)
			if test.expErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			test.validate(t, dstRemote)
		})
	}
}
