package natsconn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedOptions configures an in-process JetStream server.
type EmbeddedOptions struct {
	Host string
	// Port -1 picks a random free port.
	Port     int
	StoreDir string
	// ReadyTimeout defaults to 10s.
	ReadyTimeout time.Duration
}

// Embedded is an in-process NATS server with JetStream enabled, used for
// single-node deployments and tests.
type Embedded struct {
	srv *server.Server
}

// StartEmbedded starts the server and waits until it accepts connections.
func StartEmbedded(opts EmbeddedOptions) (*Embedded, error) {
	if opts.StoreDir == "" {
		return nil, errors.New("embedded nats: store dir is required")
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 10 * time.Second
	}
	ns, err := server.NewServer(&server.Options{
		ServerName: "media-platform",
		Host:       opts.Host,
		Port:       opts.Port,
		JetStream:  true,
		StoreDir:   opts.StoreDir,
		NoSigs:     true,
		MaxPayload: 8 * 1024 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("embedded nats: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(opts.ReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats: not ready within %s", opts.ReadyTimeout)
	}
	return &Embedded{srv: ns}, nil
}

func (e *Embedded) ClientURL() string { return e.srv.ClientURL() }

// Shutdown stops the server, giving up on the wait when ctx ends first.
func (e *Embedded) Shutdown(ctx context.Context) error {
	e.srv.Shutdown()
	done := make(chan struct{})
	go func() {
		e.srv.WaitForShutdown()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
