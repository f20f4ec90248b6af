// Package idler watches a mailbox in wait mode, hands new messages to a
// Processor and moves the processed ones to a destination folder.
package idler

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const (
	DefaultPort           = 143
	DefaultSource         = "INBOX"
	DefaultDestination    = "INBOX.done"
	DefaultWaitTimeout    = 60 * time.Second
	DefaultTransientPause = 10 * time.Second
	DefaultReconnectPause = 60 * time.Second
)

// Options configures an Idler. Zero values fall back to the defaults above.
type Options struct {
	Endpoint    Endpoint
	Source      string
	Destination string
	WaitTimeout time.Duration

	// TransientPause follows an error inside the wait loop, ReconnectPause
	// follows a lost or failed connection.
	TransientPause time.Duration
	ReconnectPause time.Duration

	Dialer    Dialer
	Processor Processor
	Logger    *slog.Logger
	Recorder  Recorder
}

// Idler drives one Session through its lifecycle.
type Idler struct {
	sess  *Session
	proc  Processor
	log   *slog.Logger
	track *tracker

	transientPause time.Duration
	reconnectPause time.Duration
}

// New builds an Idler. A nil Processor makes every fetch cycle fail with
// ErrNotImplemented.
func New(opts Options) (*Idler, error) {
	if opts.Dialer == nil {
		return nil, errors.New("idler: dialer is required")
	}
	if opts.Endpoint.Host == "" {
		return nil, errors.New("idler: host is required")
	}

	if opts.Endpoint.Port == 0 {
		opts.Endpoint.Port = DefaultPort
	}
	if opts.Source == "" {
		opts.Source = DefaultSource
	}
	if opts.Destination == "" {
		opts.Destination = DefaultDestination
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.TransientPause <= 0 {
		opts.TransientPause = DefaultTransientPause
	}
	if opts.ReconnectPause <= 0 {
		opts.ReconnectPause = DefaultReconnectPause
	}
	if opts.Processor == nil {
		opts.Processor = notImplemented{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}

	log := opts.Logger.With("mailbox", opts.Endpoint.String(), "source", opts.Source)
	track := newTracker(opts.Recorder)

	return &Idler{
		sess: &Session{
			ep:          opts.Endpoint,
			source:      opts.Source,
			destination: opts.Destination,
			waitTimeout: opts.WaitTimeout,
			dialer:      opts.Dialer,
			log:         log,
			track:       track,
		},
		proc:           opts.Processor,
		log:            log,
		track:          track,
		transientPause: opts.TransientPause,
		reconnectPause: opts.ReconnectPause,
	}, nil
}

// Status returns a snapshot of the watcher state. It may be called from any
// goroutine.
func (i *Idler) Status() Status {
	return i.track.snapshot()
}

// Run watches the mailbox until ctx is done: connect, drain the backlog and
// wait for events. A failed or lost connection is rebuilt after the reconnect
// pause. On cancellation the session is closed and Run returns nil.
func (i *Idler) Run(ctx context.Context) error {
	defer i.track.service("stopped")

	for ctx.Err() == nil {
		err := i.runConnected(ctx)
		if ctx.Err() != nil {
			break
		}

		i.log.Error("Connection failed, reconnecting after pause", "error", err, "delay", i.reconnectPause)
		i.sess.discard()
		i.track.reconnect(err)

		if sleep(ctx, i.reconnectPause) != nil {
			break
		}
	}

	i.log.Info("Received termination request, finishing")
	i.sess.Close()
	return nil
}

func (i *Idler) runConnected(ctx context.Context) error {
	if err := i.sess.Connect(ctx); err != nil {
		return err
	}
	i.track.service("running")

	if err := i.drainBacklog(ctx); err != nil {
		return err
	}
	return i.waitLoop(ctx)
}

// drainBacklog runs the fetch cycle until it succeeds or the connection is
// lost.
func (i *Idler) drainBacklog(ctx context.Context) error {
	for {
		_, err := i.fetch(ctx)
		if err == nil {
			return nil
		}
		if isConnectionLoss(err) {
			return &ConnectionError{Op: "backlog drain", Err: err}
		}

		i.log.Error("Backlog drain failed, retrying after pause", "error", err, "pause", i.transientPause)
		if err := sleep(ctx, i.transientPause); err != nil {
			return err
		}
	}
}

// RunOnce connects, drains the backlog and closes the session. Errors are
// returned as they are; there is no retry.
func (i *Idler) RunOnce(ctx context.Context) (int, error) {
	if err := i.sess.Connect(ctx); err != nil {
		return 0, err
	}
	defer i.sess.Close()

	return i.fetch(ctx)
}
