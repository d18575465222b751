// Package supervisor keeps the venue session alive: Liveness probes it on a timer and Recovery
// stops, resets and restarts it after a fault.
package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"peeler-go/internal/metrics"
	"peeler-go/internal/session"
)

// Keepaliver is the part of a session the liveness probe needs.
type Keepaliver interface {
	RequestKeepalive(ctx context.Context) error
}

// FaultReporter receives faults found outside the session; engine.Engine satisfies it.
type FaultReporter interface {
	Report(fault session.Fault)
}

// Liveness periodically asks the venue to prove the session is still alive.
type Liveness struct {
	log      zerolog.Logger
	target   Keepaliver
	sink     FaultReporter
	interval time.Duration
	timeout  time.Duration
}

// NewLiveness builds a probe; zero durations default to a five minute interval and a 30s timeout.
func NewLiveness(log zerolog.Logger, target Keepaliver, sink FaultReporter, interval, timeout time.Duration) *Liveness {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Liveness{
		log:      log.With().Str("component", "liveness").Logger(),
		target:   target,
		sink:     sink,
		interval: interval,
		timeout:  timeout,
	}
}

// Run probes every interval until ctx is cancelled.
func (l *Liveness) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	l.log.Info().Dur("interval", l.interval).Msg("liveness probe running")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Probe(ctx)
		}
	}
}

// Probe sends one keepalive and reports a fault if it fails or does not answer within the timeout.
func (l *Liveness) Probe(ctx context.Context) {
	err := l.keepalive(ctx)
	if err == nil {
		metrics.KeepalivesTotal.WithLabelValues("ok").Inc()
		l.log.Debug().Msg("keepalive ok")
		return
	}
	if ctx.Err() != nil {
		return
	}
	metrics.KeepalivesTotal.WithLabelValues("failed").Inc()
	l.log.Warn().Err(err).Msg("keepalive failed")
	l.sink.Report(session.NewFault(session.KeepaliveFailure, err))
}

func (l *Liveness) keepalive(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- l.target.RequestKeepalive(ctx) }()
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("keepalive timed out")
		}
		return ctx.Err()
	}
}
