package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/meko-christian/mail-idler/internal/config"
	"github.com/meko-christian/mail-idler/internal/idler"
	"github.com/meko-christian/mail-idler/internal/imapconn"
	"github.com/meko-christian/mail-idler/internal/processor"
)

// loadConfig reads and validates the configuration.
func loadConfig() (config.Config, error) {
	cfg := config.Load(viper.GetViper())
	if problems := config.NewValidator().Validate(cfg); len(problems) > 0 {
		return cfg, fmt.Errorf(`configuration missing or incomplete:
  - %s

Create a config.yaml file by running:
  mail-idler init`, strings.Join(problems, "\n  - "))
	}
	return cfg, nil
}

func newProcessor(cfg config.Config, log *slog.Logger) (idler.Processor, error) {
	var p idler.Processor

	switch cfg.Processor.Type {
	case config.ProcessorCommand:
		c, err := processor.NewCommand(cfg.Processor.Command, cfg.Processor.Timeout, log)
		if err != nil {
			return nil, err
		}
		p = c
	case config.ProcessorForward:
		f, err := processor.NewForwarder(processor.SMTP{
			Server:   cfg.SMTP.Server,
			Port:     cfg.SMTP.Port,
			Security: cfg.SMTP.Security,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		}, cfg.Recipients, cfg.Processor.SubjectPrefix, log)
		if err != nil {
			return nil, err
		}
		p = f
	default:
		return nil, fmt.Errorf("unknown processor type %q", cfg.Processor.Type)
	}

	if len(cfg.Processor.FilterFrom) > 0 {
		p = processor.NewSenderFilter(cfg.Processor.FilterFrom, p, log)
	}
	return p, nil
}

func newIdler(cfg config.Config, rec idler.Recorder) (*idler.Idler, error) {
	log := slog.Default()

	proc, err := newProcessor(cfg, log)
	if err != nil {
		return nil, err
	}

	dialer := imapconn.NewDialer(imapconn.Options{
		Security:           cfg.IMAP.Security,
		InsecureSkipVerify: cfg.IMAP.InsecureSkipVerify,
		DialTimeout:        cfg.IMAP.DialTimeout,
		CommandTimeout:     cfg.IMAP.CommandTimeout,
		PollInterval:       cfg.IMAP.WaitTimeout,
		Logger:             log,
	})

	return idler.New(idler.Options{
		Endpoint: idler.Endpoint{
			Host:     cfg.IMAP.Server,
			Port:     cfg.IMAP.Port,
			Username: cfg.IMAP.Username,
			Password: cfg.IMAP.Password,
		},
		Source:         cfg.IMAP.Source,
		Destination:    cfg.IMAP.Destination,
		WaitTimeout:    cfg.IMAP.WaitTimeout,
		TransientPause: cfg.Retry.TransientPause,
		ReconnectPause: cfg.Retry.ReconnectPause,
		Dialer:         dialer,
		Processor:      proc,
		Logger:         log,
		Recorder:       rec,
	})
}
