package session

import (
	"context"

	"github.com/g8/uafrepro/internal/model"
)

// Conn is an open remote shell session to a target.
type Conn interface {
	// Run executes a command and returns its captured output. Run must return
	// once ctx is cancelled or the connection is closed.
	Run(ctx context.Context, command string) (model.CommandOutput, error)
	Close() error
}

// Dialer opens authenticated remote shell sessions.
type Dialer interface {
	Dial(ctx context.Context, target model.Target) (Conn, error)
}

// Uploader copies local files into a target container.
type Uploader interface {
	Upload(ctx context.Context, target model.Target, srcLocal string) error
}
