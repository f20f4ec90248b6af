package idler

import (
	"context"
	"time"
)

// waitLoop enters wait mode and reacts to events until ctx is done or the
// connection is lost. Other protocol errors are logged and retried in place
// after the transient pause.
func (i *Idler) waitLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		state, err := i.waitStep(ctx)
		if err == nil {
			continue
		}
		if isConnectionLoss(err) {
			return &ConnectionError{Op: "wait loop", Err: err}
		}

		terr := &TransientLoopError{State: state, Err: err}
		i.log.Error("Error in wait loop", "state", state.String(), "error", err, "pause", i.transientPause)
		i.track.loopError(terr)

		if err := sleep(ctx, i.transientPause); err != nil {
			return err
		}
	}
}

// waitStep performs one Waiting -> (Reacting | Keepalive) -> Waiting round.
func (i *Idler) waitStep(ctx context.Context) (LoopState, error) {
	if err := i.sess.EnterWait(); err != nil {
		return StateWaiting, err
	}

	i.log.Debug("Waiting for events", "timeout", i.sess.waitTimeout)

	events, err := i.sess.Poll()
	if err != nil {
		// The wait command may have ended with the error; clear the state so
		// the next round re-enters it.
		_ = i.sess.ExitWait()
		return StateWaiting, err
	}

	if err := i.sess.ExitWait(); err != nil {
		return StateWaiting, err
	}

	if len(events) > 0 {
		i.log.Info("Mailbox activity detected", "events", len(events), "first", events[0].Kind)
		if _, err := i.fetch(ctx); err != nil {
			return StateReacting, err
		}
	} else {
		i.log.Debug("Wait timeout elapsed, sending keepalive")
		if err := i.sess.Noop(); err != nil {
			return StateKeepalive, err
		}
	}

	if err := i.sess.EnterWait(); err != nil {
		return StateWaiting, err
	}
	return StateWaiting, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
