package ssh

import (
	"context"
	"fmt"
	"time"

	"github.com/g8/uafrepro/internal/log"
	"github.com/g8/uafrepro/internal/model"
	"github.com/g8/uafrepro/internal/session"
)

// DialerConfig is the configuration shared by every connection opened by the Dialer.
type DialerConfig struct {
	UseAgent       bool
	StrictHostKey  bool
	KnownHostsPath string
	ConnectTimeout time.Duration
	Logger         log.Logger
}

func (c *DialerConfig) defaults() error {
	if c.StrictHostKey && c.KnownHostsPath == "" {
		c.KnownHostsPath = DefaultKnownHostsPath()
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "ssh.Dialer"})
	return nil
}

// Dialer opens SSH sessions to targets.
type Dialer struct {
	cfg DialerConfig
}

// NewDialer returns a new SSH dialer.
func NewDialer(cfg DialerConfig) (*Dialer, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Dialer{cfg: cfg}, nil
}

// Dial implements session.Dialer.
func (d *Dialer) Dial(ctx context.Context, target model.Target) (session.Conn, error) {
	return d.client(ctx, target)
}

func (d *Dialer) client(ctx context.Context, target model.Target) (*Client, error) {
	var key []byte
	if target.PrivateKeyPath != "" {
		k, err := LoadPrivateKey(target.PrivateKeyPath)
		if err != nil {
			return nil, err
		}
		key = k
	}

	return NewClient(ctx, ClientConfig{
		Host:           target.Host,
		Port:           target.Port,
		User:           target.Username,
		Password:       target.Password,
		PrivateKey:     key,
		UseAgent:       d.cfg.UseAgent,
		StrictHostKey:  d.cfg.StrictHostKey,
		KnownHostsPath: ExpandHome(d.cfg.KnownHostsPath),
		ConnectTimeout: d.cfg.ConnectTimeout,
		Logger:         d.cfg.Logger.WithValues(log.Kv{"project": target.ProjectName}),
	})
}

// Run implements session.Conn, every command runs in a new exec channel of the same connection.
func (c *Client) Run(ctx context.Context, command string) (model.CommandOutput, error) {
	return c.Output(ctx, command)
}

// SFTPUploader uploads files through the SSH server of the target.
type SFTPUploader struct {
	dialer *Dialer
}

// NewSFTPUploader returns an uploader that opens its own connection per upload.
func NewSFTPUploader(d *Dialer) *SFTPUploader {
	return &SFTPUploader{dialer: d}
}

// Upload implements session.Uploader.
func (u *SFTPUploader) Upload(ctx context.Context, target model.Target, srcLocal string) error {
	c, err := u.dialer.client(ctx, target)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrConnection, err)
	}
	defer c.Close()

	return c.CopyTo(ctx, srcLocal, target.UploadPath)
}

var (
	_ session.Dialer   = &Dialer{}
	_ session.Conn     = &Client{}
	_ session.Uploader = &SFTPUploader{}
)
