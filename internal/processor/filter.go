package processor

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/meko-christian/mail-idler/internal/idler"
)

// SenderFilter passes only messages whose From address is in the allow list
// to next. Everything else is reported as not processed and stays put.
type SenderFilter struct {
	allowed map[string]struct{}
	next    idler.Processor
	log     *slog.Logger
}

func NewSenderFilter(allowed []string, next idler.Processor, log *slog.Logger) *SenderFilter {
	if log == nil {
		log = slog.Default()
	}
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[allowedAddress(a)] = struct{}{}
	}
	return &SenderFilter{allowed: set, next: next, log: log}
}

func (f *SenderFilter) Process(ctx context.Context, raw []byte) (bool, error) {
	from := senderOf(raw)
	if _, ok := f.allowed[from]; !ok {
		f.log.Debug("Sender not in filter, leaving message", "from", from)
		return false, nil
	}
	return f.next.Process(ctx, raw)
}

// allowedAddress reduces an allow-list entry such as "Alice <alice@x.org>"
// to its lower-cased address.
func allowedAddress(entry string) string {
	entry = strings.TrimSpace(entry)
	if addr, err := mail.ParseAddress(entry); err == nil {
		entry = addr.Address
	}
	return strings.ToLower(entry)
}

// senderOf returns the lower-cased first From address, or "" if the header
// cannot be parsed.
func senderOf(raw []byte) string {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return ""
	}
	h := mail.Header{Header: entity.Header}
	addrs, err := h.AddressList("From")
	if err != nil || len(addrs) == 0 {
		return ""
	}
	return strings.ToLower(addrs[0].Address)
}
