package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/g8/uafrepro/internal/log"
	"github.com/g8/uafrepro/internal/model"
)

const (
	// DefaultConnectTimeout is the default SSH connection timeout.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultSSHPort is the default SSH port.
	DefaultSSHPort = model.DefaultSSHPort
)

// ClientConfig holds the configuration for creating an SSH connection.
type ClientConfig struct {
	// Host is the IP address or hostname of the container.
	Host string
	// Port is the SSH port (default: 22).
	Port int
	// User is the SSH user (e.g., "root").
	User string
	// Password enables password (and keyboard-interactive) authentication.
	Password string
	// PrivateKey is the PEM-encoded private key bytes (optional).
	PrivateKey []byte
	// UseAgent adds the keys of the agent listening on SSH_AUTH_SOCK.
	UseAgent bool
	// StrictHostKey verifies the host key against KnownHostsPath.
	StrictHostKey bool
	// KnownHostsPath is the known_hosts file used when StrictHostKey is set.
	KnownHostsPath string
	// ConnectTimeout is the SSH connection timeout (default: 10s).
	ConnectTimeout time.Duration
	// Logger for logging (optional).
	Logger log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	if c.Password == "" && len(c.PrivateKey) == 0 && !c.UseAgent {
		return fmt.Errorf("password, private key or agent is required")
	}
	if c.StrictHostKey && c.KnownHostsPath == "" {
		return fmt.Errorf("known hosts path is required with strict host key checking")
	}
	if c.Port == 0 {
		c.Port = DefaultSSHPort
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "ssh.Client"})
	return nil
}

func (c ClientConfig) authMethods() ([]ssh.AuthMethod, io.Closer, error) {
	var auths []ssh.AuthMethod

	if len(c.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(c.PrivateKey)
		if err != nil {
			return nil, nil, fmt.Errorf("could not parse private key: %w", err)
		}
		auths = append(auths, ssh.PublicKeys(signer))
	}

	var agentConn io.Closer
	if c.UseAgent {
		if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
			conn, err := net.Dial("unix", sock)
			if err != nil {
				c.Logger.Warningf("Could not connect to ssh agent: %v", err)
			} else {
				agentConn = conn
				auths = append(auths, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			}
		}
	}

	if c.Password != "" {
		password := c.Password
		auths = append(auths,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	if len(auths) == 0 {
		return nil, agentConn, fmt.Errorf("no usable authentication method")
	}

	return auths, agentConn, nil
}

func (c ClientConfig) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if !c.StrictHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	cb, err := knownhosts.New(c.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("could not load known hosts %s: %w", c.KnownHostsPath, err)
	}
	return cb, nil
}

// Client wraps an SSH connection with high-level operations.
type Client struct {
	conn   *ssh.Client
	logger log.Logger
}

// NewClient dials the SSH server and returns an authenticated client.
// The handshake is aborted when ctx ends.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid ssh client config: %w", err)
	}

	auths, agentConn, err := cfg.authMethods()
	if agentConn != nil {
		defer agentConn.Close()
	}
	if err != nil {
		return nil, err
	}

	hostKeyCB, err := cfg.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auths,
		HostKeyCallback: hostKeyCB,
		Timeout:         cfg.ConnectTimeout,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	// Use a dialer with context for cancellation support.
	d := net.Dialer{Timeout: cfg.ConnectTimeout}
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", addr, err)
	}

	// Closing the raw connection unblocks a stuck handshake.
	stop := context.AfterFunc(ctx, func() { netConn.Close() })
	defer stop()

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, sshCfg)
	if err != nil {
		netConn.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("ssh handshake with %s aborted: %w", addr, ctx.Err())
		}
		return nil, fmt.Errorf("ssh handshake failed with %s: %w", addr, err)
	}

	cfg.Logger.Debugf("Connected to %s as %s", addr, cfg.User)

	return &Client{
		conn:   ssh.NewClient(sshConn, chans, reqs),
		logger: cfg.Logger,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ExecOpts are options for command execution (non-TTY only).
type ExecOpts struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Exec runs a command on the remote host and returns the exit code.
func (c *Client) Exec(ctx context.Context, command string, opts ExecOpts) (int, error) {
	if ctx.Err() != nil {
		return -1, ctx.Err()
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return -1, fmt.Errorf("could not create ssh session: %w", err)
	}
	defer session.Close()

	if opts.Stdin != nil {
		session.Stdin = opts.Stdin
	}
	if opts.Stdout != nil {
		session.Stdout = opts.Stdout
	}
	if opts.Stderr != nil {
		session.Stderr = opts.Stderr
	}

	// Run with context cancellation support.
	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		// Send signal to remote process and close session.
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return -1, ctx.Err()
	case err := <-done:
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				return exitErr.ExitStatus(), nil
			}
			return -1, fmt.Errorf("command execution failed: %w", err)
		}
		return 0, nil
	}
}

// Output runs a command and captures its stdout and stderr as text.
// A non-zero exit code is not an error, memory-safety tools usually abort the
// reproduced program.
func (c *Client) Output(ctx context.Context, command string) (model.CommandOutput, error) {
	var stdout, stderr bytes.Buffer

	exitCode, err := c.Exec(ctx, command, ExecOpts{Stdout: &stdout, Stderr: &stderr})
	if err != nil {
		return model.CommandOutput{}, err
	}

	c.logger.Debugf("Command %q exited with code %d", command, exitCode)

	return model.CommandOutput{
		Command:  command,
		Stdout:   strings.ToValidUTF8(stdout.String(), "�"),
		Stderr:   strings.ToValidUTF8(stderr.String(), "�"),
		ExitCode: exitCode,
	}, nil
}

// CopyTo copies a local file or directory to the remote host via SFTP.
func (c *Client) CopyTo(ctx context.Context, srcLocal, dstRemote string) error {
	sftpClient, err := sftp.NewClient(c.conn)
	if err != nil {
		return fmt.Errorf("could not create sftp client: %w", err)
	}
	defer sftpClient.Close()

	srcInfo, err := os.Stat(srcLocal)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source path '%s' does not exist: %w", srcLocal, os.ErrNotExist)
		}
		return fmt.Errorf("could not stat source: %w", err)
	}

	if srcInfo.IsDir() {
		return c.copyDirTo(ctx, sftpClient, srcLocal, dstRemote)
	}

	// Uploading into an existing remote directory keeps the local file name.
	if info, err := sftpClient.Stat(dstRemote); err == nil && info.IsDir() {
		dstRemote = path.Join(dstRemote, filepath.Base(srcLocal))
	}

	return c.copyFileTo(ctx, sftpClient, srcLocal, dstRemote, srcInfo.Mode())
}

// copyFileTo copies a single local file to the remote host.
func (c *Client) copyFileTo(ctx context.Context, sftpClient *sftp.Client, srcLocal, dstRemote string, mode fs.FileMode) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	src, err := os.Open(srcLocal)
	if err != nil {
		return fmt.Errorf("could not open local file %s: %w", srcLocal, err)
	}
	defer src.Close()

	dst, err := sftpClient.Create(dstRemote)
	if err != nil {
		return fmt.Errorf("could not create remote file %s: %w", dstRemote, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("could not copy to remote file %s: %w", dstRemote, err)
	}

	if err := sftpClient.Chmod(dstRemote, mode); err != nil {
		c.logger.Debugf("Could not set permissions on %s: %v", dstRemote, err)
	}

	return nil
}

// copyDirTo recursively copies a local directory to the remote host.
func (c *Client) copyDirTo(ctx context.Context, sftpClient *sftp.Client, srcLocal, dstRemote string) error {
	return filepath.WalkDir(srcLocal, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		relPath, err := filepath.Rel(srcLocal, p)
		if err != nil {
			return err
		}
		remotePath := path.Join(dstRemote, filepath.ToSlash(relPath))

		// Skip symlinks.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if d.IsDir() {
			return sftpClient.MkdirAll(remotePath)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		return c.copyFileTo(ctx, sftpClient, p, remotePath, info.Mode())
	})
}
