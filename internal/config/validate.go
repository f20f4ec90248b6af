package config

import (
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
)

// Validator collects every problem in a Config instead of stopping at the
// first one.
type Validator struct {
	errors []string
}

func NewValidator() *Validator {
	return &Validator{errors: make([]string, 0)}
}

// Validate returns all problems found in cfg; an empty result means valid.
func (cv *Validator) Validate(cfg Config) []string {
	cv.errors = make([]string, 0)

	cv.validateIMAP(cfg.IMAP)
	cv.validateRetry(cfg.Retry)
	cv.validateProcessor(cfg)
	cv.validateWeb(cfg.Web)

	return cv.errors
}

func (cv *Validator) addError(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	cv.errors = append(cv.errors, message)
	slog.Debug("Config validation error", "error", message)
}

func (cv *Validator) validateIMAP(c IMAP) {
	if c.Server == "" {
		cv.addError("IMAP server is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		cv.addError("IMAP port must be between 1 and 65535")
	}
	if !slices.Contains([]string{"none", "starttls", "ssl", "tls"}, c.Security) {
		cv.addError("IMAP security must be one of: none, starttls, ssl")
	}
	if c.Username == "" {
		cv.addError("IMAP username is required")
	}
	if c.Password == "" {
		cv.addError("IMAP password is required")
	}
	if c.Source == "" {
		cv.addError("IMAP source folder is required")
	}
	if c.Destination == "" {
		cv.addError("IMAP destination folder is required")
	}
	if c.Source != "" && c.Source == c.Destination {
		cv.addError("IMAP source and destination folders must differ")
	}
	if c.WaitTimeout <= 0 {
		cv.addError("IMAP wait_timeout must be positive")
	}
}

func (cv *Validator) validateRetry(r Retry) {
	if r.TransientPause <= 0 {
		cv.addError("retry.transient_pause must be positive")
	}
	if r.ReconnectPause <= 0 {
		cv.addError("retry.reconnect_pause must be positive")
	}
}

func (cv *Validator) validateProcessor(cfg Config) {
	for _, filter := range cfg.Processor.FilterFrom {
		if _, err := mail.ParseAddress(filter); err != nil {
			cv.addError("Invalid email format in sender filter: %s", filter)
		}
	}

	switch cfg.Processor.Type {
	case ProcessorCommand:
		if len(cfg.Processor.Command) == 0 || strings.TrimSpace(cfg.Processor.Command[0]) == "" {
			cv.addError("processor.command is required for the command processor")
		}
	case ProcessorForward:
		cv.validateSMTP(cfg.SMTP)
		if len(cfg.Recipients) == 0 {
			cv.addError("At least one recipient is required for the forward processor")
		}
		for _, r := range cfg.Recipients {
			if _, err := mail.ParseAddress(r); err != nil {
				cv.addError("Invalid recipient email format: %s", r)
			}
		}
	default:
		cv.addError("processor.type must be one of: command, forward")
	}
}

func (cv *Validator) validateSMTP(c SMTP) {
	if c.Server == "" {
		cv.addError("SMTP server is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		cv.addError("SMTP port must be between 1 and 65535")
	}
	if !slices.Contains([]string{"ssl", "starttls", "tls", "none"}, c.Security) {
		cv.addError("SMTP security must be one of: ssl, starttls, none")
	}
	if c.Username == "" {
		cv.addError("SMTP username is required")
	}
}

func (cv *Validator) validateWeb(w Web) {
	if !w.Enabled {
		return
	}
	if w.Port == "" {
		cv.addError("web.port is required when the web interface is enabled")
	}
	if w.PasswordHash == "" {
		cv.addError("web.password_hash is required when the web interface is enabled")
	} else if !strings.HasPrefix(w.PasswordHash, "$2") {
		cv.addError("web.password_hash must be a bcrypt hash")
	}
}
