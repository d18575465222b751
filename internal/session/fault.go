package session

import (
	"fmt"
	"time"
)

// FaultKind classifies venue failures.
type FaultKind string

const (
	LoginFailure        FaultKind = "login_failure"
	SubscriptionFailure FaultKind = "subscription_failure"
	StreamFault         FaultKind = "stream_fault"
	Disconnected        FaultKind = "disconnected"
	KeepaliveFailure    FaultKind = "keepalive_failure"
	StuckOrder          FaultKind = "stuck_order"
)

// Fatal reports whether the fault ends the process instead of triggering a restart.
func (k FaultKind) Fatal() bool {
	return k == LoginFailure || k == SubscriptionFailure
}

// Fault is a failure reported to the recovery supervisor.
type Fault struct {
	Kind FaultKind
	Err  error
	At   time.Time
}

// NewFault stamps a fault with the current time.
func NewFault(kind FaultKind, err error) Fault {
	return Fault{Kind: kind, Err: err, At: time.Now()}
}

// Fatal reports whether the fault is fatal.
func (f Fault) Fatal() bool { return f.Kind.Fatal() }

func (f Fault) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f Fault) Unwrap() error { return f.Err }
