// Package run owns process lifecycle: signal handling, concurrent server
// start-up and bounded graceful shutdown.
package run

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultShutdownTimeout = 10 * time.Second

type Runner struct {
	Logger          *zap.Logger
	ShutdownTimeout time.Duration
}

func New(log *zap.Logger) *Runner {
	return &Runner{Logger: log, ShutdownTimeout: DefaultShutdownTimeout}
}

// Unit is one long-running component (an HTTP server, a gRPC server, a queue
// consumer). Start blocks until the component stops; Stop is called once on
// shutdown with a deadline.
type Unit struct {
	Name  string
	Start func(ctx context.Context) error
	Stop  func(ctx context.Context) error
}

// Units starts every unit concurrently. The first unit to return, or a signal,
// stops all of them. Units returns after every Stop has completed.
func (r *Runner) Units(units ...Unit) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return r.exitCode(r.runUnits(ctx, units))
}

// runUnits treats any unit returning, cleanly or not, as the signal to stop
// the rest.
func (r *Runner) runUnits(ctx context.Context, units []Unit) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for _, u := range units {
		u := u
		g.Go(func() error {
			defer cancel()
			r.Logger.Info("starting", zap.String("unit", u.Name))
			err := u.Start(gctx)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		for i := len(units) - 1; i >= 0; i-- {
			u := units[i]
			if u.Stop == nil {
				continue
			}
			r.Graceful(func(c context.Context) error {
				if err := u.Stop(c); err != nil {
					r.Logger.Warn("stop failed", zap.String("unit", u.Name), zap.Error(err))
					return err
				}
				return nil
			})
		}
		return nil
	})
	return g.Wait()
}

// Graceful calls shutdown with a fresh context bounded by ShutdownTimeout.
func (r *Runner) Graceful(shutdown func(context.Context) error) {
	timeout := r.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	c, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = shutdown(c)
}

func (r *Runner) exitCode(err error) int {
	if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		return 0
	}
	r.Logger.Error("service exited with error", zap.Error(err))
	return 1
}

func Exit(code int) {
	os.Exit(code)
}
