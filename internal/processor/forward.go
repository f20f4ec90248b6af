package processor

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	gomail "gopkg.in/gomail.v2"
)

// SMTP holds outbound server settings.
type SMTP struct {
	Server   string
	Port     int
	Security string
	Username string
	Password string
}

// Forwarder re-sends each message to a fixed recipient list. A message counts
// as processed once the SMTP server accepted it.
type Forwarder struct {
	smtp          SMTP
	recipients    []string
	subjectPrefix string
	send          func(*gomail.Message) error
	log           *slog.Logger
}

func NewForwarder(smtp SMTP, recipients []string, subjectPrefix string, log *slog.Logger) (*Forwarder, error) {
	if len(recipients) == 0 {
		return nil, errors.New("forward: no recipients configured")
	}
	if log == nil {
		log = slog.Default()
	}

	dialer := gomail.NewDialer(smtp.Server, smtp.Port, smtp.Username, smtp.Password)
	if smtp.Security == "ssl" {
		dialer.SSL = true
	} else {
		dialer.TLSConfig = &tls.Config{ServerName: smtp.Server}
	}

	return &Forwarder{
		smtp:          smtp,
		recipients:    recipients,
		subjectPrefix: subjectPrefix,
		send:          func(m *gomail.Message) error { return dialer.DialAndSend(m) },
		log:           log,
	}, nil
}

func (f *Forwarder) Process(_ context.Context, raw []byte) (bool, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		// Unparseable mail stays in the source folder for manual handling.
		f.log.Warn("Failed to parse MIME message", "error", err)
		return false, nil
	}

	h := mail.Header{Header: entity.Header}
	subject, _ := h.Subject()
	from, _ := h.AddressList("From")

	b := splitBodies(entity)

	msg := gomail.NewMessage()
	msg.SetHeader("From", f.smtp.Username)
	msg.SetHeader("Bcc", f.recipients...)
	msg.SetHeader("Subject", f.subjectPrefix+subject)
	if len(from) > 0 {
		msg.SetHeader("To", from[0].Address)
		msg.SetHeader("Reply-To", from[0].Address)
	} else {
		msg.SetHeader("To", f.smtp.Username)
	}

	msg.SetBody("text/plain", b.Text)
	if b.HTML != "" {
		msg.AddAlternative("text/html", b.HTML)
	}

	for _, att := range b.Attachments {
		att := att
		msg.Attach(att.Filename,
			gomail.SetHeader(map[string][]string{
				"Content-Type": {att.ContentType},
			}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(att.Data)
				return err
			}),
		)
	}

	if err := f.send(msg); err != nil {
		return false, fmt.Errorf("failed to send mail: %w", err)
	}

	f.log.Info("Forwarded mail", "subject", subject, "recipients", len(f.recipients))
	return true, nil
}
