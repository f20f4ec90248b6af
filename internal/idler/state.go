package idler

import (
	"sync"
	"time"
)

// WaitState tracks whether a wait command is outstanding on the connection.
type WaitState int

const (
	NotWaiting WaitState = iota
	Waiting
)

func (s WaitState) String() string {
	if s == Waiting {
		return "waiting"
	}
	return "not-waiting"
}

// LoopState is the position of the event-wait loop.
type LoopState int

const (
	StateWaiting LoopState = iota
	StateReacting
	StateKeepalive
)

func (s LoopState) String() string {
	switch s {
	case StateReacting:
		return "reacting"
	case StateKeepalive:
		return "keepalive"
	default:
		return "waiting"
	}
}

// Status is a point-in-time view of the watcher, safe to hand to other
// goroutines.
type Status struct {
	Connected     bool      `json:"connected"`
	WaitState     string    `json:"wait_state"`
	Cycles        int       `json:"cycles"`
	Relocated     int       `json:"relocated"`
	Reconnects    int       `json:"reconnects"`
	LoopErrors    int       `json:"loop_errors"`
	LastCycleAt   time.Time `json:"last_cycle_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorAt   time.Time `json:"last_error_at,omitempty"`
	ServiceStatus string    `json:"service_status"`
}

// Recorder receives watcher events, typically to export them as metrics.
type Recorder interface {
	CycleCompleted(relocated, skipped int)
	CycleFailed(relocated int)
	Reconnect()
	LoopError()
	WaitStateChanged(waiting bool)
}

type nopRecorder struct{}

func (nopRecorder) CycleCompleted(int, int) {}
func (nopRecorder) CycleFailed(int)         {}
func (nopRecorder) Reconnect()              {}
func (nopRecorder) LoopError()              {}
func (nopRecorder) WaitStateChanged(bool)   {}

// tracker owns the Status copy read by other goroutines. The session itself
// is never shared.
type tracker struct {
	mu  sync.Mutex
	st  Status
	rec Recorder
}

func newTracker(rec Recorder) *tracker {
	return &tracker{
		st:  Status{WaitState: NotWaiting.String(), ServiceStatus: "starting"},
		rec: rec,
	}
}

func (t *tracker) update(fn func(*Status)) {
	t.mu.Lock()
	fn(&t.st)
	t.mu.Unlock()
}

func (t *tracker) snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st
}

func (t *tracker) connected(ok bool) {
	t.update(func(s *Status) {
		s.Connected = ok
		if !ok {
			s.WaitState = NotWaiting.String()
		}
	})
}

func (t *tracker) waitState(w WaitState) {
	t.update(func(s *Status) { s.WaitState = w.String() })
	t.rec.WaitStateChanged(w == Waiting)
}

func (t *tracker) cycle(relocated, skipped int) {
	t.update(func(s *Status) {
		s.Cycles++
		s.Relocated += relocated
		s.LastCycleAt = time.Now()
	})
	t.rec.CycleCompleted(relocated, skipped)
}

func (t *tracker) failedCycle(relocated int, err error) {
	t.update(func(s *Status) {
		s.Relocated += relocated
		s.LastError = err.Error()
		s.LastErrorAt = time.Now()
	})
	t.rec.CycleFailed(relocated)
}

func (t *tracker) loopError(err error) {
	t.update(func(s *Status) {
		s.LoopErrors++
		s.LastError = err.Error()
		s.LastErrorAt = time.Now()
	})
	t.rec.LoopError()
}

func (t *tracker) reconnect(err error) {
	t.update(func(s *Status) {
		s.Reconnects++
		s.LastError = err.Error()
		s.LastErrorAt = time.Now()
		s.ServiceStatus = "reconnecting"
	})
	t.rec.Reconnect()
}

func (t *tracker) service(status string) {
	t.update(func(s *Status) { s.ServiceStatus = status })
}
