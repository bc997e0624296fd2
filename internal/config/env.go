package config

import (
	"net"
	"strings"
)

// Environment variables understood by ApplyEnv.
const (
	EnvTwilioAPIKeySID    = "TWILIO_API_SID"
	EnvTwilioAPIKeySecret = "TWILIO_API_TOKEN"
	EnvTwilioAccountSID   = "TWILIO_ACCOUNT_SID"
	EnvTwilioFromPhone    = "TWILIO_PHONE"
	EnvTargetPhones       = "TARGET_PHONES"
	EnvListenIP           = "IP"
	EnvListenPort         = "PORT"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides file settings with values from the environment.
// Set but empty variables are ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	get := func(key string) (string, bool) {
		value, ok := lookup(key)
		value = strings.TrimSpace(value)

		return value, ok && value != ""
	}

	overrides := map[string]*string{
		EnvTwilioAPIKeySID:    &cfg.Twilio.APIKeySID,
		EnvTwilioAPIKeySecret: &cfg.Twilio.APIKeySecret,
		EnvTwilioAccountSID:   &cfg.Twilio.AccountSID,
		EnvTwilioFromPhone:    &cfg.Twilio.FromPhone,
	}

	for key, field := range overrides {
		if value, ok := get(key); ok {
			*field = value
		}
	}

	if value, ok := get(EnvTargetPhones); ok {
		cfg.TargetPhones = splitList(value)
	}

	ip, hasIP := get(EnvListenIP)
	port, hasPort := get(EnvListenPort)

	if !hasIP && !hasPort {
		return
	}

	currentHost, currentPort, err := net.SplitHostPort(cfg.ListenAddress)
	if err != nil {
		currentHost, currentPort = "", ""
	}

	if hasIP {
		currentHost = ip
	}

	if hasPort {
		currentPort = port
	}

	if currentPort == "" {
		_, currentPort, _ = net.SplitHostPort(DefaultListenAddress)
	}

	cfg.ListenAddress = net.JoinHostPort(currentHost, currentPort)
}

// splitList splits a comma separated list, dropping blanks.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}

	return result
}
