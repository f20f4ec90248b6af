package idler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

var errBoom = errors.New("boom")

type fakeMessage struct {
	id      uint32
	raw     []byte
	deleted bool
}

type pollResult struct {
	events []Event
	err    error
}

// fakeServer is an in-memory mailbox that records every command it sees.
type fakeServer struct {
	mu       sync.Mutex
	folders  map[string][]*fakeMessage
	nextID   uint32
	calls    []string
	fail     map[string][]error
	polls    []pollResult
	missing  map[uint32]bool
	dialErrs []error
	dials    int
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		folders: map[string][]*fakeMessage{},
		fail:    map[string][]error{},
		missing: map[uint32]bool{},
	}
}

func (f *fakeServer) add(folder, raw string) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.folders[folder] = append(f.folders[folder], &fakeMessage{id: f.nextID, raw: []byte(raw)})
	return f.nextID
}

// failNext queues results for op; a nil entry lets that call succeed.
func (f *fakeServer) failNext(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = append(f.fail[op], errs...)
}

func (f *fakeServer) queuePoll(events []Event, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls = append(f.polls, pollResult{events: events, err: err})
}

// contents lists the raw messages in folder, deleted or not.
func (f *fakeServer) contents(folder string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.folders[folder] {
		out = append(out, string(m.raw))
	}
	return out
}

func (f *fakeServer) isDeleted(folder string, id uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.folders[folder] {
		if m.id == id {
			return m.deleted
		}
	}
	return false
}

func (f *fakeServer) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeServer) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeServer) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	if q := f.fail[op]; len(q) > 0 {
		f.fail[op] = q[1:]
		return q[0]
	}
	return nil
}

func (f *fakeServer) Dial(_ context.Context, _ Endpoint) (Conn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	f.calls = append(f.calls, "dial")
	if len(f.dialErrs) > 0 {
		err := f.dialErrs[0]
		f.dialErrs = f.dialErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &fakeConn{srv: f}, nil
}

type fakeConn struct {
	srv      *fakeServer
	selected string
}

func (c *fakeConn) Login(string, string) error { return c.srv.record("login") }

func (c *fakeConn) Select(folder string) (string, error) {
	if err := c.srv.record("select"); err != nil {
		return "", err
	}
	c.selected = folder
	return "OK [READ-WRITE]", nil
}

func (c *fakeConn) SearchUndeleted() ([]uint32, error) {
	if err := c.srv.record("search"); err != nil {
		return nil, err
	}
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	var ids []uint32
	for _, m := range c.srv.folders[c.selected] {
		if !m.deleted {
			ids = append(ids, m.id)
		}
	}
	return ids, nil
}

func (c *fakeConn) FetchRaw(ids []uint32) (map[uint32][]byte, error) {
	if err := c.srv.record("fetch"); err != nil {
		return nil, err
	}
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	want := map[uint32]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[uint32][]byte{}
	for _, m := range c.srv.folders[c.selected] {
		if want[m.id] && !c.srv.missing[m.id] {
			out[m.id] = m.raw
		}
	}
	return out, nil
}

func (c *fakeConn) Copy(id uint32, folder string) error {
	if err := c.srv.record("copy"); err != nil {
		return err
	}
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	for _, m := range c.srv.folders[c.selected] {
		if m.id == id {
			c.srv.nextID++
			c.srv.folders[folder] = append(c.srv.folders[folder], &fakeMessage{id: c.srv.nextID, raw: m.raw})
			return nil
		}
	}
	return errors.New("no such message")
}

func (c *fakeConn) MarkDeleted(id uint32) error {
	if err := c.srv.record("delete"); err != nil {
		return err
	}
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	for _, m := range c.srv.folders[c.selected] {
		if m.id == id {
			m.deleted = true
		}
	}
	return nil
}

func (c *fakeConn) Expunge() error {
	if err := c.srv.record("expunge"); err != nil {
		return err
	}
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	var kept []*fakeMessage
	for _, m := range c.srv.folders[c.selected] {
		if !m.deleted {
			kept = append(kept, m)
		}
	}
	c.srv.folders[c.selected] = kept
	return nil
}

func (c *fakeConn) EnterWait() error { return c.srv.record("enter-wait") }
func (c *fakeConn) ExitWait() error  { return c.srv.record("exit-wait") }
func (c *fakeConn) Noop() error      { return c.srv.record("noop") }

func (c *fakeConn) PollWait(timeout time.Duration) ([]Event, error) {
	if err := c.srv.record("poll"); err != nil {
		return nil, err
	}
	c.srv.mu.Lock()
	if len(c.srv.polls) > 0 {
		p := c.srv.polls[0]
		c.srv.polls = c.srv.polls[1:]
		c.srv.mu.Unlock()
		return p.events, p.err
	}
	c.srv.mu.Unlock()
	time.Sleep(timeout)
	return nil, nil
}

func (c *fakeConn) CloseFolder() error { return c.srv.record("close-folder") }
func (c *fakeConn) Logout() error      { return c.srv.record("logout") }

// recordingProcessor remembers every message it was handed.
type recordingProcessor struct {
	mu     sync.Mutex
	seen   []string
	decide func(raw string) (bool, error)
}

func (p *recordingProcessor) Process(_ context.Context, raw []byte) (bool, error) {
	p.mu.Lock()
	p.seen = append(p.seen, string(raw))
	p.mu.Unlock()
	if p.decide == nil {
		return true, nil
	}
	return p.decide(string(raw))
}

func (p *recordingProcessor) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestIdler(srv *fakeServer, proc Processor) *Idler {
	i, err := New(Options{
		Endpoint:       Endpoint{Host: "mail.example.org", Username: "user", Password: "secret"},
		WaitTimeout:    5 * time.Millisecond,
		TransientPause: 5 * time.Millisecond,
		ReconnectPause: 10 * time.Millisecond,
		Dialer:         srv,
		Processor:      proc,
		Logger:         discardLogger(),
	})
	if err != nil {
		panic(err)
	}
	return i
}
