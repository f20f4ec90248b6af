// Package imapconn implements the watcher's protocol connection on top of
// github.com/emersion/go-imap.
package imapconn

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	idle "github.com/emersion/go-imap-idle"
	"github.com/emersion/go-imap/client"

	"github.com/meko-christian/mail-idler/internal/idler"
)

// Security modes for the IMAP transport.
const (
	SecurityNone     = "none"
	SecuritySTARTTLS = "starttls"
	SecuritySSL      = "ssl"
)

// Options controls how connections are established.
type Options struct {
	Security           string
	InsecureSkipVerify bool
	DialTimeout        time.Duration
	CommandTimeout     time.Duration
	// PollInterval is used when the server does not advertise IDLE and the
	// wait falls back to NOOP polling.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Dialer opens IMAP connections. It implements idler.Dialer.
type Dialer struct {
	opts Options
}

func NewDialer(opts Options) *Dialer {
	if opts.Security == "" {
		opts.Security = SecurityNone
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 30 * time.Second
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dialer{opts: opts}
}

// Dial connects to ep.Addr() and, depending on the security mode, wraps or
// upgrades the connection with TLS. It does not log in.
func (d *Dialer) Dial(ctx context.Context, ep idler.Endpoint) (idler.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.DialTimeout)
	defer cancel()

	tlsConfig := &tls.Config{
		ServerName:         ep.Host,
		InsecureSkipVerify: d.opts.InsecureSkipVerify,
	}

	nd := &net.Dialer{}
	raw, err := nd.DialContext(ctx, "tcp", ep.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	security := strings.ToLower(d.opts.Security)
	if security == SecuritySSL || security == "tls" {
		tlsConn := tls.Client(raw, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("TLS handshake failed: %w", err)
		}
		raw = tlsConn
	}

	// Bound the greeting read by the dial deadline.
	if deadline, ok := ctx.Deadline(); ok {
		_ = raw.SetDeadline(deadline)
	}
	c, err := client.New(raw)
	if err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("failed to read server greeting: %w", err)
	}
	_ = raw.SetDeadline(time.Time{})

	c.Timeout = d.opts.CommandTimeout

	if security == SecuritySTARTTLS {
		if err := c.StartTLS(tlsConfig); err != nil {
			_ = c.Logout()
			return nil, fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	conn := newConn(c, idle.NewClient(c), d.opts)
	d.opts.Logger.Debug("IMAP connection established", "addr", ep.Addr(), "security", security)
	return conn, nil
}
