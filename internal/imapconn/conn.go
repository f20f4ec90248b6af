package imapconn

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/meko-christian/mail-idler/internal/idler"
)

// maxPending caps buffered notifications; one is enough to trigger a fetch.
const maxPending = 64

var errNotWaiting = errors.New("not in IDLE")

type idleRunner interface {
	IdleWithFallback(stop <-chan struct{}, pollInterval time.Duration) error
}

// Conn is a selected IMAP connection. It implements idler.Conn and is not
// safe for concurrent use apart from the internal update pump.
type Conn struct {
	c    *client.Client
	idle idleRunner
	opts Options
	log  *slog.Logger

	updates chan client.Update
	synced  chan struct{}

	mu      sync.Mutex
	pending []idler.Event
	notify  chan struct{}

	stop     chan struct{}
	done     chan error
	finished bool
	timeout  time.Duration
}

func newConn(c *client.Client, runner idleRunner, opts Options) *Conn {
	updates := make(chan client.Update, maxPending)
	c.Updates = updates

	conn := &Conn{
		c:       c,
		idle:    runner,
		opts:    opts,
		log:     opts.Logger,
		updates: updates,
		synced:  make(chan struct{}, 1),
		notify:  make(chan struct{}, 1),
	}
	go conn.pump(updates)
	return conn
}

// pump drains unilateral server updates so the client reader never blocks,
// keeping only the ones that signal new mail. A nil update is a marker sent
// by discardPending: everything queued before it is dropped.
func (c *Conn) pump(updates <-chan client.Update) {
	for {
		select {
		case u := <-updates:
			if u == nil {
				c.takePending()
				select {
				case c.synced <- struct{}{}:
				default:
				}
				continue
			}
			ev, ok := toEvent(u)
			if !ok {
				continue
			}
			c.mu.Lock()
			if len(c.pending) < maxPending {
				c.pending = append(c.pending, ev)
			}
			c.mu.Unlock()
			select {
			case c.notify <- struct{}{}:
			default:
			}
		case <-c.c.LoggedOut():
			return
		}
	}
}

func toEvent(u client.Update) (idler.Event, bool) {
	switch u := u.(type) {
	case *client.MailboxUpdate:
		detail := ""
		if u.Mailbox != nil {
			detail = fmt.Sprintf("messages=%d recent=%d", u.Mailbox.Messages, u.Mailbox.Recent)
		}
		return idler.Event{Kind: "mailbox", Detail: detail}, true
	default:
		// Flag changes and expunges are caused by our own fetch cycle.
		return idler.Event{}, false
	}
}

// takePending empties the event queue together with its wake-up token.
func (c *Conn) takePending() []idler.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := c.pending
	c.pending = nil
	select {
	case <-c.notify:
	default:
	}
	return events
}

// discardPending drops every update the server sent so far. The client
// reader queues updates before it completes the command that caused them,
// so once the pump reaches the marker nothing older is left.
func (c *Conn) discardPending() {
	select {
	case <-c.synced:
	default:
	}

	select {
	case c.updates <- nil:
	case <-c.c.LoggedOut():
		return
	}

	select {
	case <-c.synced:
	case <-c.c.LoggedOut():
	case <-time.After(c.opts.CommandTimeout):
		c.log.Warn("Timed out discarding queued updates")
	}
}

// wrap marks errors after which the connection cannot be used again.
func (c *Conn) wrap(op string, err error) error {
	if err == nil {
		return nil
	}

	lost := c.c.State() == imap.LogoutState
	select {
	case <-c.c.LoggedOut():
		lost = true
	default:
	}

	var netErr net.Error
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || (errors.As(err, &netErr) && netErr.Timeout()) {
		lost = true
	}

	if lost {
		return fmt.Errorf("%s: %w: %v", op, idler.ErrConnectionLost, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Conn) Login(username, password string) error {
	if err := c.c.Login(username, password); err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}
	return nil
}

func (c *Conn) Select(folder string) (string, error) {
	status, err := c.c.Select(folder, false)
	if err != nil {
		return "", c.wrap(fmt.Sprintf("select %s", folder), err)
	}
	// Updates from SELECT describe the backlog, which is drained anyway.
	c.discardPending()
	return fmt.Sprintf("messages=%d recent=%d unseen=%d uidnext=%d uidvalidity=%d read_only=%t",
		status.Messages, status.Recent, status.Unseen, status.UidNext, status.UidValidity, status.ReadOnly), nil
}

func (c *Conn) SearchUndeleted() ([]uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.DeletedFlag}

	uids, err := c.c.UidSearch(criteria)
	if err != nil {
		return nil, c.wrap("search", err)
	}
	return uids, nil
}

// FetchRaw fetches the full RFC 822 content without setting \Seen.
func (c *Conn) FetchRaw(ids []uint32) (map[uint32][]byte, error) {
	out := make(map[uint32][]byte, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(ids))
	if err := c.c.UidFetch(seqset, items, messages); err != nil {
		return nil, c.wrap("fetch", err)
	}

	for msg := range messages {
		for _, body := range msg.Body {
			if body == nil {
				continue
			}
			raw, err := io.ReadAll(body)
			if err != nil {
				c.log.Warn("Failed to read message body", "uid", msg.Uid, "error", err)
				break
			}
			out[msg.Uid] = raw
			break
		}
	}
	return out, nil
}

func (c *Conn) Copy(id uint32, folder string) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(id)
	if err := c.c.UidCopy(seqset, folder); err != nil {
		return c.wrap(fmt.Sprintf("copy %d to %s", id, folder), err)
	}
	return nil
}

func (c *Conn) MarkDeleted(id uint32) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(id)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.DeletedFlag}
	if err := c.c.UidStore(seqset, item, flags, nil); err != nil {
		return c.wrap(fmt.Sprintf("mark %d as \\Deleted", id), err)
	}
	return nil
}

func (c *Conn) Expunge() error {
	if err := c.c.Expunge(nil); err != nil {
		return c.wrap("expunge", err)
	}
	return nil
}

// EnterWait starts IDLE in the background. Servers without IDLE are polled
// with NOOP instead.
func (c *Conn) EnterWait() error {
	if c.stop != nil {
		return errors.New("already in IDLE")
	}
	select {
	case <-c.c.LoggedOut():
		return fmt.Errorf("idle: %w", idler.ErrConnectionLost)
	default:
	}

	// The command timeout would cut the long-running IDLE short.
	c.timeout = c.c.Timeout
	c.c.Timeout = 0

	stop := make(chan struct{})
	done := make(chan error, 1)
	c.stop, c.done, c.finished = stop, done, false

	go func() {
		done <- c.idle.IdleWithFallback(stop, c.opts.PollInterval)
	}()
	return nil
}

// PollWait returns pending notifications, waits up to timeout for new ones,
// or reports why IDLE ended on its own.
func (c *Conn) PollWait(timeout time.Duration) ([]idler.Event, error) {
	if c.stop == nil {
		return nil, errNotWaiting
	}
	if events := c.takePending(); len(events) > 0 {
		return events, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-c.notify:
			if events := c.takePending(); len(events) > 0 {
				return events, nil
			}
		case err := <-c.done:
			c.finished = true
			if err == nil {
				err = errors.New("IDLE ended unexpectedly")
			}
			return nil, c.wrap("idle", err)
		case <-timer.C:
			return nil, nil
		}
	}
}

// ExitWait sends DONE and waits for IDLE to finish.
func (c *Conn) ExitWait() error {
	if c.stop == nil {
		return nil
	}
	close(c.stop)

	var err error
	if !c.finished {
		select {
		case err = <-c.done:
		case <-time.After(c.opts.CommandTimeout):
			// The IDLE goroutine still owns the client; closing the socket is
			// the only way to end it.
			c.stop, c.done, c.finished = nil, nil, false
			if terr := c.c.Terminate(); terr != nil {
				c.log.Warn("Failed to terminate connection", "error", terr)
			}
			return fmt.Errorf("idle done: timed out leaving IDLE: %w", idler.ErrConnectionLost)
		}
	}

	c.stop, c.done, c.finished = nil, nil, false
	c.c.Timeout = c.timeout
	return c.wrap("idle done", err)
}

func (c *Conn) Noop() error {
	return c.wrap("noop", c.c.Noop())
}

func (c *Conn) CloseFolder() error {
	return c.wrap("close", c.c.Close())
}

func (c *Conn) Logout() error {
	if c.stop != nil {
		_ = c.ExitWait()
	}
	if err := c.c.Logout(); err != nil && !errors.Is(err, client.ErrAlreadyLoggedOut) {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
