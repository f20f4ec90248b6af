// Package config loads watcher settings through viper.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Processor types.
const (
	ProcessorCommand = "command"
	ProcessorForward = "forward"
)

type IMAP struct {
	Server             string
	Port               int
	Security           string
	Username           string
	Password           string
	InsecureSkipVerify bool
	Source             string
	Destination        string
	WaitTimeout        time.Duration
	DialTimeout        time.Duration
	CommandTimeout     time.Duration
}

type Retry struct {
	TransientPause time.Duration
	ReconnectPause time.Duration
}

type Processor struct {
	Type          string
	Command       []string
	Timeout       time.Duration
	SubjectPrefix string
	FilterFrom    []string
}

type SMTP struct {
	Server   string
	Port     int
	Security string
	Username string
	Password string
}

type Web struct {
	Enabled      bool
	Bind         string
	Port         string
	Username     string
	PasswordHash string
}

// Config is the complete runtime configuration.
type Config struct {
	IMAP       IMAP
	Retry      Retry
	Processor  Processor
	SMTP       SMTP
	Recipients []string
	Web        Web
}

// SetDefaults registers the default for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("imap.port", 143)
	v.SetDefault("imap.security", "none")
	v.SetDefault("imap.source", "INBOX")
	v.SetDefault("imap.destination", "INBOX.done")
	v.SetDefault("imap.wait_timeout", 60)
	v.SetDefault("imap.dial_timeout", 30)
	v.SetDefault("imap.command_timeout", 60)

	v.SetDefault("retry.transient_pause", 10)
	v.SetDefault("retry.reconnect_pause", 60)

	v.SetDefault("processor.type", ProcessorCommand)
	v.SetDefault("processor.timeout", 300)
	v.SetDefault("processor.subject_prefix", "[Fwd] ")

	v.SetDefault("smtp.port", 465)
	v.SetDefault("smtp.security", "ssl")

	v.SetDefault("web.enabled", false)
	v.SetDefault("web.bind", "127.0.0.1")
	v.SetDefault("web.port", "8080")
	v.SetDefault("web.username", "admin")
}

// BindEnv makes every key overridable as MAIL_IDLER_<SECTION>_<KEY>.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix("mail_idler")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from v. Durations are configured in seconds.
func Load(v *viper.Viper) Config {
	return Config{
		IMAP: IMAP{
			Server:             v.GetString("imap.server"),
			Port:               v.GetInt("imap.port"),
			Security:           strings.ToLower(v.GetString("imap.security")),
			Username:           v.GetString("imap.username"),
			Password:           v.GetString("imap.password"),
			InsecureSkipVerify: v.GetBool("imap.insecure_skip_verify"),
			Source:             v.GetString("imap.source"),
			Destination:        v.GetString("imap.destination"),
			WaitTimeout:        seconds(v, "imap.wait_timeout"),
			DialTimeout:        seconds(v, "imap.dial_timeout"),
			CommandTimeout:     seconds(v, "imap.command_timeout"),
		},
		Retry: Retry{
			TransientPause: seconds(v, "retry.transient_pause"),
			ReconnectPause: seconds(v, "retry.reconnect_pause"),
		},
		Processor: Processor{
			Type:          strings.ToLower(v.GetString("processor.type")),
			Command:       v.GetStringSlice("processor.command"),
			Timeout:       seconds(v, "processor.timeout"),
			SubjectPrefix: v.GetString("processor.subject_prefix"),
			FilterFrom:    v.GetStringSlice("filter.from"),
		},
		SMTP: SMTP{
			Server:   v.GetString("smtp.server"),
			Port:     v.GetInt("smtp.port"),
			Security: strings.ToLower(v.GetString("smtp.security")),
			Username: v.GetString("smtp.username"),
			Password: v.GetString("smtp.password"),
		},
		Recipients: v.GetStringSlice("recipients"),
		Web: Web{
			Enabled:      v.GetBool("web.enabled"),
			Bind:         v.GetString("web.bind"),
			Port:         v.GetString("web.port"),
			Username:     v.GetString("web.username"),
			PasswordHash: v.GetString("web.password_hash"),
		},
	}
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetFloat64(key) * float64(time.Second))
}
