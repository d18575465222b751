package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"peeler-go/internal/metrics"
	"peeler-go/internal/session"
)

var (
	// ErrFatal marks faults the process must exit on.
	ErrFatal = errors.New("fatal session fault")
	// ErrRecoveryExhausted is returned when the attempt cap is reached without a healthy session.
	ErrRecoveryExhausted = errors.New("recovery attempts exhausted")
)

// Policy controls restart pacing.
type Policy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// HealthyAfter is how long a session must stay up before the backoff streak resets.
	HealthyAfter time.Duration
	// MaxAttempts caps consecutive failed starts in one recovery; 0 retries forever.
	MaxAttempts int
	// BreakerThreshold recoveries within BreakerWindow pause restarts for BreakerCooldown; 0 disables.
	BreakerThreshold int
	BreakerWindow    time.Duration
	BreakerCooldown  time.Duration
}

// DefaultPolicy retries forever with a 1s..30s exponential backoff and no breaker.
func DefaultPolicy() Policy {
	return Policy{
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     1.8,
		HealthyAfter:   time.Minute,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.HealthyAfter <= 0 {
		p.HealthyAfter = def.HealthyAfter
	}
	if p.BreakerThreshold > 0 {
		if p.BreakerWindow <= 0 {
			p.BreakerWindow = 10 * time.Minute
		}
		if p.BreakerCooldown <= 0 {
			p.BreakerCooldown = 5 * time.Minute
		}
	}
	return p
}

// Recovery owns the session lifecycle: initial start, and stop/reset/restart after faults.
type Recovery struct {
	log     zerolog.Logger
	session session.Session
	feeds   []session.Feed
	policy  Policy

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	backoff   time.Duration
	healthyAt time.Time
	recent    []time.Time
}

// NewRecovery supervises sess, subscribing it to every feed the instruments need.
func NewRecovery(log zerolog.Logger, sess session.Session, instruments []string, policy Policy) *Recovery {
	policy = policy.withDefaults()
	return &Recovery{
		log:     log.With().Str("component", "recovery").Logger(),
		session: sess,
		feeds:   session.Feeds(instruments),
		policy:  policy,
		sleep:   sleepCtx,
		now:     time.Now,
		backoff: policy.InitialBackoff,
	}
}

// Start connects the session for the first time.
func (r *Recovery) Start(ctx context.Context, l session.Listener) error {
	return r.connect(ctx, l, false)
}

// Recover handles a fault. Fatal faults stop the session and return an error wrapping ErrFatal.
// Recoverable faults stop the session, call reset, then restart it after the current backoff.
func (r *Recovery) Recover(ctx context.Context, fault session.Fault, reset func(), l session.Listener) error {
	if fault.Fatal() {
		r.stop()
		return fmt.Errorf("%w: %w", ErrFatal, fault)
	}
	r.log.Warn().Err(fault.Err).Str("kind", string(fault.Kind)).Msg("recovering session")
	r.stop()
	reset()

	now := r.now()
	if !r.healthyAt.IsZero() && now.Sub(r.healthyAt) >= r.policy.HealthyAfter {
		r.backoff = r.policy.InitialBackoff
	}
	if err := r.breaker(ctx, now); err != nil {
		return err
	}
	return r.connect(ctx, l, true)
}

// connect starts and subscribes the session, retrying transient start failures.
func (r *Recovery) connect(ctx context.Context, l session.Listener, restart bool) error {
	attempts := 0
	wait := restart
	for {
		if wait {
			r.log.Info().Dur("backoff", r.backoff).Int("attempt", attempts+1).Msg("waiting before restart")
			if err := r.sleep(ctx, r.backoff); err != nil {
				return err
			}
			r.backoff = r.nextBackoff()
		}
		err := r.session.Start(ctx, l)
		if err == nil {
			break
		}
		if errors.Is(err, session.ErrLogin) {
			return fmt.Errorf("%w: %w", ErrFatal, session.NewFault(session.LoginFailure, err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		attempts++
		r.log.Error().Err(err).Int("attempt", attempts).Msg("session start failed")
		r.stop()
		if r.policy.MaxAttempts > 0 && attempts >= r.policy.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrRecoveryExhausted, attempts, err)
		}
		wait = true
	}

	for _, feed := range r.feeds {
		if err := r.session.Subscribe(ctx, feed); err != nil {
			r.stop()
			return fmt.Errorf("%w: %w", ErrFatal, session.NewFault(session.SubscriptionFailure,
				fmt.Errorf("subscribe %s: %w", feed, err)))
		}
	}
	r.healthyAt = r.now()
	if restart {
		metrics.RecoveriesTotal.Inc()
		r.log.Info().Msg("session restarted")
	} else {
		r.log.Info().Int("feeds", len(r.feeds)).Msg("session started")
	}
	return nil
}

func (r *Recovery) nextBackoff() time.Duration {
	next := time.Duration(float64(r.backoff) * r.policy.Multiplier)
	if next > r.policy.MaxBackoff {
		next = r.policy.MaxBackoff
	}
	return next
}

// breaker pauses restarts once too many recoveries land inside the window.
func (r *Recovery) breaker(ctx context.Context, now time.Time) error {
	if r.policy.BreakerThreshold <= 0 {
		return nil
	}
	cutoff := now.Add(-r.policy.BreakerWindow)
	kept := r.recent[:0]
	for _, at := range r.recent {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	r.recent = append(kept, now)
	if len(r.recent) < r.policy.BreakerThreshold {
		return nil
	}
	r.log.Warn().
		Int("recoveries", len(r.recent)).
		Dur("window", r.policy.BreakerWindow).
		Dur("cooldown", r.policy.BreakerCooldown).
		Msg("recovery breaker open")
	r.recent = r.recent[:0]
	return r.sleep(ctx, r.policy.BreakerCooldown)
}

func (r *Recovery) stop() {
	if err := r.session.Stop(); err != nil {
		r.log.Warn().Err(err).Msg("session stop failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
