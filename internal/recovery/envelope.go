package recovery

import (
	"context"
	"time"

	"github.com/erigontech/erigon-lib/log/v3"
)

// Metrics is the subset of the metrics sink the recovery envelope writes to. A
// narrow interface keeps this package free of a direct dependency on internal/metrics.
type Metrics interface {
	SetRecoveryModeActive(active bool)
	IncRelayException()
	IncParaException()
}

// Reconnector is implemented by both the relay and the parachain sessions: a
// reconnect attempt that may itself fail with a transient error, to be retried.
type Reconnector interface {
	Reconnect(ctx context.Context) error
	Name() string
}

// RecoveryObserver is notified once a recovery cycle completes successfully, so the
// controller can tell "era hasn't moved because we were down" apart from "era
// genuinely hasn't moved yet" on the tick right after (§4.5 Idle step 3).
type RecoveryObserver interface {
	NotifyRecovered()
}

// Envelope wraps the era loop controller (C6) at exactly one boundary (§7
// "Propagation policy"): it runs tick repeatedly, classifies any error it returns,
// and drives recovery.
type Envelope struct {
	Metrics  Metrics
	Relay    Reconnector
	Para     Reconnector
	Observer RecoveryObserver
}

// RunTick runs a single controller tick, classifying its error per §4.6/§7 and
// recovering as needed. Returns (shutdown, err): shutdown is true when the process
// should exit (the "socket is already closed" sentinel, the era loop's
// ErrDelayShutdown, or ctx cancellation).
func (e *Envelope) RunTick(ctx context.Context, tick func(ctx context.Context) error) (shutdown bool, err error) {
	tickErr := tick(ctx)
	if tickErr == nil {
		return false, nil
	}

	class := Classify(tickErr)
	switch class {
	case ClassShutdown:
		log.Error("fatal: shutdown condition reached, exiting", "err", tickErr)
		return true, tickErr
	case ClassTransientNetwork, ClassTransientChain:
		log.Warn("transient error, entering recovery", "class", class, "err", tickErr)
		if rerr := e.recover(ctx); rerr != nil {
			return ctx.Err() != nil, rerr
		}
		return false, nil
	default:
		log.Error("unexpected error, entering recovery", "err", tickErr)
		if rerr := e.recover(ctx); rerr != nil {
			return ctx.Err() != nil, rerr
		}
		return false, nil
	}
}

// recover implements §4.6 "Recovering": set the flag, reconnect both sessions
// (retry forever, swallow expected errors, warn on the rest), clear the flag.
func (e *Envelope) recover(ctx context.Context) error {
	e.Metrics.SetRecoveryModeActive(true)
	defer e.Metrics.SetRecoveryModeActive(false)

	if err := reconnectForever(ctx, e.Relay, e.Metrics.IncRelayException); err != nil {
		return err
	}
	if err := reconnectForever(ctx, e.Para, e.Metrics.IncParaException); err != nil {
		return err
	}
	if e.Observer != nil {
		e.Observer.NotifyRecovered()
	}
	return nil
}

// reconnectForever retries Reconnect until it succeeds or ctx is cancelled,
// swallowing expected errors and warning on the rest, per §4.6.
func reconnectForever(ctx context.Context, r Reconnector, incException func()) error {
	const retryDelay = 5 * time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := r.Reconnect(ctx)
		if err == nil {
			return nil
		}
		incException()
		if Classify(err) != ClassTransientNetwork {
			log.Warn("reconnect attempt failed", "session", r.Name(), "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}
