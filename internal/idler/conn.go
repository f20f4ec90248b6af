package idler

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Endpoint describes where and as whom to connect.
type Endpoint struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Addr returns host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s@%s", e.Username, e.Addr())
}

// Event is a notification received while waiting.
type Event struct {
	Kind   string
	Detail string
}

// Dialer opens protocol connections. Dial only establishes the transport;
// authentication and folder selection are issued on the returned Conn.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, ep Endpoint) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, ep Endpoint) (Conn, error) { return f(ctx, ep) }

// Conn is the set of mail protocol commands the watcher depends on. Message
// ids are stable for the lifetime of the selected folder (IMAP UIDs).
type Conn interface {
	Login(username, password string) error
	// Select opens folder read-write and returns a printable summary of the
	// server response.
	Select(folder string) (string, error)
	SearchUndeleted() ([]uint32, error)
	// FetchRaw returns the full content per id. Ids whose content could not
	// be retrieved are absent from the map.
	FetchRaw(ids []uint32) (map[uint32][]byte, error)
	Copy(id uint32, folder string) error
	MarkDeleted(id uint32) error
	Expunge() error

	EnterWait() error
	ExitWait() error
	// PollWait blocks until events arrive or timeout elapses. A timeout
	// returns no events and no error.
	PollWait(timeout time.Duration) ([]Event, error)
	Noop() error

	CloseFolder() error
	Logout() error
}
