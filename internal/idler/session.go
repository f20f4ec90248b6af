package idler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Session holds the connection to one mailbox. It is owned by a single
// goroutine; only the tracker copy of its state is shared.
type Session struct {
	ep          Endpoint
	source      string
	destination string
	waitTimeout time.Duration

	dialer Dialer
	log    *slog.Logger
	track  *tracker

	conn  Conn
	state WaitState
}

// Connected reports whether the session holds a connection.
func (s *Session) Connected() bool { return s.conn != nil }

// WaitState returns whether a wait command is outstanding.
func (s *Session) WaitState() WaitState { return s.state }

// Connect dials the server, logs in and selects the source folder. Any
// failure discards the connection and returns a *ConnectionError.
func (s *Session) Connect(ctx context.Context) error {
	if s.conn != nil {
		s.discard()
	}

	s.log.Info("Connecting to server", "host", s.ep.Host, "port", s.ep.Port, "user", s.ep.Username)

	conn, err := s.dialer.Dial(ctx, s.ep)
	if err != nil {
		return s.connectFailed("dial", nil, err)
	}

	if err := conn.Login(s.ep.Username, s.ep.Password); err != nil {
		return s.connectFailed("login", conn, err)
	}

	info, err := conn.Select(s.source)
	if err != nil {
		return s.connectFailed(fmt.Sprintf("select %s", s.source), conn, err)
	}
	s.log.Debug("Connect info", "folder", s.source, "response", info)

	s.conn = conn
	s.setState(NotWaiting)
	s.track.connected(true)
	return nil
}

func (s *Session) connectFailed(op string, conn Conn, err error) error {
	s.log.Error("Cannot connect to server", "host", s.ep.Host, "port", s.ep.Port, "op", op, "error", err)
	if conn != nil {
		_ = conn.Logout()
	}
	s.conn = nil
	s.setState(NotWaiting)
	s.track.connected(false)
	return &ConnectionError{Op: op, Err: err}
}

// EnterWait issues the wait command. It is a no-op while already waiting.
func (s *Session) EnterWait() error {
	if s.conn == nil {
		return ErrNotConnected
	}
	if s.state == Waiting {
		return nil
	}
	if err := s.conn.EnterWait(); err != nil {
		return fmt.Errorf("enter wait: %w", err)
	}
	s.setState(Waiting)
	return nil
}

// ExitWait terminates the wait command. It is a no-op while not waiting.
// The state is cleared even if the server reports an error, since the
// command is finished either way.
func (s *Session) ExitWait() error {
	if s.state != Waiting {
		return nil
	}
	s.setState(NotWaiting)
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.ExitWait(); err != nil {
		return fmt.Errorf("exit wait: %w", err)
	}
	return nil
}

// Poll blocks for at most the wait timeout and returns the events seen.
func (s *Session) Poll() ([]Event, error) {
	if s.conn == nil {
		return nil, ErrNotConnected
	}
	events, err := s.conn.PollWait(s.waitTimeout)
	if err != nil {
		return nil, fmt.Errorf("poll wait: %w", err)
	}
	return events, nil
}

// Noop sends a keepalive.
func (s *Session) Noop() error {
	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.Noop(); err != nil {
		return fmt.Errorf("noop: %w", err)
	}
	return nil
}

// Close tears the connection down. Exit-wait, folder close and logout are
// attempted independently; failures are logged and never returned.
func (s *Session) Close() {
	if s.conn == nil {
		return
	}

	s.log.Debug("Closing server connection")

	if s.state == Waiting {
		if err := s.ExitWait(); err != nil {
			s.log.Warn("Failed to leave wait mode", "error", err)
		}
	}
	if err := s.conn.CloseFolder(); err != nil {
		s.log.Warn("Failed to close folder", "folder", s.source, "error", err)
	}
	if err := s.conn.Logout(); err != nil {
		s.log.Warn("Failed to log out", "error", err)
	}

	s.conn = nil
	s.setState(NotWaiting)
	s.track.connected(false)
}

// discard drops a connection that is known to be broken.
func (s *Session) discard() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Logout(); err != nil {
		s.log.Debug("Logout on broken connection failed", "error", err)
	}
	s.conn = nil
	s.setState(NotWaiting)
	s.track.connected(false)
}

func (s *Session) setState(w WaitState) {
	if s.state == w {
		return
	}
	s.state = w
	s.track.waitState(w)
}
