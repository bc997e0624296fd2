package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of both doorbell binaries.
type Config struct {
	// ListenAddress is the HTTP address the server binds to.
	ListenAddress string `yaml:"listen_addr"`
	// LogLevel is the minimum level written to the log.
	LogLevel string `yaml:"log_level"`

	// OpenWindow bounds how long an open decision stays valid for the latch.
	OpenWindow time.Duration `yaml:"open_window"`
	// ConfirmWindow bounds how long after a buzz an operator reply is honored.
	ConfirmWindow time.Duration `yaml:"confirm_window"`
	// DefaultPollTimeout applies to long-polls that do not pass a timeout.
	DefaultPollTimeout time.Duration `yaml:"default_poll_timeout"`
	// MaxPollTimeout caps the timeout a long-poll may request.
	MaxPollTimeout time.Duration `yaml:"max_poll_timeout"`

	// NotifyTimeout bounds a single notification delivery.
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
	// NotifyQueueSize is the number of notifications buffered for delivery.
	NotifyQueueSize int `yaml:"notify_queue_size"`

	// TargetPhones lists the operators: they receive every notification
	// and are the only numbers whose replies are acted upon.
	TargetPhones []string `yaml:"target_phones"`
	// Twilio holds SMS gateway credentials.
	Twilio Twilio `yaml:"twilio"`

	// Client holds the embedded client settings.
	Client Client `yaml:"client"`
}

// Twilio holds the credentials used to send text messages.
type Twilio struct {
	// AccountSID is the account the messages are sent from.
	AccountSID string `yaml:"account_sid"`
	// APIKeySID is the API key used to authenticate.
	APIKeySID string `yaml:"api_key_sid"`
	// APIKeySecret is the secret of the API key.
	APIKeySecret string `yaml:"api_key_secret"`
	// FromPhone is the sender number.
	FromPhone string `yaml:"from_phone"`
}

// Enabled reports whether enough credentials are present to send messages.
func (t *Twilio) Enabled() bool {
	return t.AccountSID != "" && t.APIKeySID != "" && t.APIKeySecret != "" && t.FromPhone != ""
}

// Client configures the embedded client that rings and drives the latch.
type Client struct {
	// ServerURL is the base URL of doorbell-server.
	ServerURL string `yaml:"server_url"`
	// PollTimeout is sent with each long-poll request.
	PollTimeout time.Duration `yaml:"poll_timeout"`
	// WaitBudget bounds the total time spent waiting for an open instruction.
	WaitBudget time.Duration `yaml:"wait_budget"`
	// RequestTimeout bounds requests other than long-polls.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// RingAttempts is the number of tries for reporting a ring.
	RingAttempts uint `yaml:"ring_attempts"`
	// UnlatchCommand is executed to fire the latch relay.
	UnlatchCommand []string `yaml:"unlatch_command"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "doorbell-settings.yaml"

	// DefaultListenAddress is used when neither the file nor the environment sets one.
	DefaultListenAddress = ":8080"

	// DefaultOpenWindow is the time an open decision stays valid.
	DefaultOpenWindow = 10 * time.Second

	// DefaultConfirmWindow is the time after a buzz during which replies are honored.
	DefaultConfirmWindow = 60 * time.Second

	// DefaultPollTimeout is the long-poll timeout used when none is requested.
	DefaultPollTimeout = 60 * time.Second

	// DefaultMaxPollTimeout caps requested long-poll timeouts.
	DefaultMaxPollTimeout = 5 * time.Minute

	// DefaultNotifyTimeout bounds one notification delivery.
	DefaultNotifyTimeout = 10 * time.Second

	// DefaultNotifyQueueSize is the notification buffer length.
	DefaultNotifyQueueSize = 32

	// DefaultWaitBudget bounds how long the client waits for the operator.
	DefaultWaitBudget = 2 * time.Minute

	// DefaultRequestTimeout bounds short client requests.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultRingAttempts is the number of tries for reporting a ring.
	DefaultRingAttempts = 5

	// DefaultLogLevel is the log level used when none is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the file permission for saved settings.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeDuration is returned when a window or timeout is negative.
	errNegativeDuration = errors.New("duration must not be negative")
	// errPollTimeoutAboveMax is returned when the default poll timeout exceeds the cap.
	errPollTimeoutAboveMax = errors.New("default poll timeout exceeds max poll timeout")
	// errAccountSIDRequired is returned when an API key is set without its account.
	errAccountSIDRequired = errors.New("twilio account SID must be provided with an API key")
	// errEmptyPhone is returned for a blank entry in target_phones.
	errEmptyPhone = errors.New("target phone must not be empty")

	// ErrServerURLRequired is returned by ValidateClient when no server URL is set.
	ErrServerURLRequired = errors.New("client server URL must be provided")
)

// Load reads configuration from the provided path, applies environment
// overrides and validates the result. A missing default file is not an
// error: the settings then come from the environment alone.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	return load(path, path == DefaultConfigFilename, os.LookupEnv)
}

// load reads path, tolerating its absence when optional is set.
func load(path string, optional bool, lookup LookupFunc) (*Config, error) {
	var cfg Config

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	ApplyEnv(&cfg, lookup)

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may hold API secrets.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the settings and fills in defaults for unset values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", cfg.ListenAddress, err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	durations := []struct {
		name     string
		value    *time.Duration
		fallback time.Duration
	}{
		{"open_window", &cfg.OpenWindow, DefaultOpenWindow},
		{"confirm_window", &cfg.ConfirmWindow, DefaultConfirmWindow},
		{"default_poll_timeout", &cfg.DefaultPollTimeout, DefaultPollTimeout},
		{"max_poll_timeout", &cfg.MaxPollTimeout, DefaultMaxPollTimeout},
		{"notify_timeout", &cfg.NotifyTimeout, DefaultNotifyTimeout},
		{"client.poll_timeout", &cfg.Client.PollTimeout, DefaultPollTimeout},
		{"client.wait_budget", &cfg.Client.WaitBudget, DefaultWaitBudget},
		{"client.request_timeout", &cfg.Client.RequestTimeout, DefaultRequestTimeout},
	}

	for _, d := range durations {
		switch {
		case *d.value < 0:
			return fmt.Errorf("%s: %w", d.name, errNegativeDuration)
		case *d.value == 0:
			*d.value = d.fallback
		}
	}

	if cfg.DefaultPollTimeout > cfg.MaxPollTimeout {
		return errPollTimeoutAboveMax
	}

	if cfg.NotifyQueueSize <= 0 {
		cfg.NotifyQueueSize = DefaultNotifyQueueSize
	}

	if cfg.Client.RingAttempts == 0 {
		cfg.Client.RingAttempts = DefaultRingAttempts
	}

	for _, phone := range cfg.TargetPhones {
		if phone == "" {
			return errEmptyPhone
		}
	}

	// API keys authenticate against an account, they do not name one.
	if cfg.Twilio.APIKeySID != "" && cfg.Twilio.AccountSID == "" {
		return errAccountSIDRequired
	}

	if cfg.Client.ServerURL == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(cfg.Client.ServerURL); err != nil {
		return fmt.Errorf("invalid client server URL: %w", err)
	}

	return nil
}

// ValidateClient checks the settings the embedded client cannot run without.
func ValidateClient(cfg *Config) error {
	if cfg.Client.ServerURL == "" {
		return ErrServerURLRequired
	}

	return nil
}
