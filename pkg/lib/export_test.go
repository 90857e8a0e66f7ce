package lib

import "github.com/g8/uafrepro/internal/session"

// WithTransport returns cfg using d and u instead of the SSH transport.
func WithTransport(cfg Config, d session.Dialer, u session.Uploader) Config {
	cfg.dialer = d
	cfg.uploader = u
	return cfg
}
