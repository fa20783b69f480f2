// Package listener runs the TCP accept loop for the DICOM SCP: one
// goroutine accepts connections and hands each to a bounded worker pool,
// so a burst of simultaneous associations cannot outrun configured
// capacity. Grounded on original_source/src/listener_tcp_loop.rs (accept
// loop shape, one association per worker) with thread_pool.rs's fixed
// worker count replaced by golang.org/x/sync/semaphore.Weighted, the
// idiomatic Go bounded-concurrency primitive the storage package also
// uses.
package listener

import (
	"context"
	"net"

	"github.com/otcheredev/oxidicom-go/internal/scp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Config holds the listener's own knobs, distinct from the SCP
// negotiation policy it hands off to each accepted connection.
type Config struct {
	Address string
	Workers int64
}

// Listener owns the bound TCP socket and the worker semaphore gating
// concurrent association handlers.
type Listener struct {
	cfg     Config
	handler *scp.Handler
	sem     *semaphore.Weighted
}

// New constructs a Listener that will dispatch accepted connections to
// handler, never running more than cfg.Workers concurrently.
func New(cfg Config, handler *scp.Handler) *Listener {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	return &Listener{cfg: cfg, handler: handler, sem: semaphore.NewWeighted(cfg.Workers)}
}

// Run binds cfg.Address and accepts connections until ctx is cancelled or
// the listener socket errors. It blocks the calling goroutine.
func (l *Listener) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", l.cfg.Address)
	if err != nil {
		return err
	}
	defer ln.Close()

	log.Info().Str("address", l.cfg.Address).Int64("workers", l.cfg.Workers).Msg("dicom scp listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Warn().Err(err).Msg("accept error")
				return err
			}
		}

		if err := l.sem.Acquire(ctx, 1); err != nil {
			conn.Close()
			return ctx.Err()
		}

		go func(c net.Conn) {
			defer l.sem.Release(1)
			if err := l.handler.Serve(c); err != nil {
				log.Error().Err(err).Msg("association handler returned an error")
			}
		}(conn)
	}
}
