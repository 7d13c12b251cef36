package main

import (
	"strconv"
	"strings"
	"time"

	hconfig "github.com/horgh/config"
	"github.com/pkg/errors"
)

// Config holds the server's configuration, consumed by the core as a flat
// struct per spec.md section 6. Command-line argument parsing and
// daemonization are external collaborators that populate the config file
// this loads from; they are not part of the core.
type Config struct {
	Ports         []string
	ListenAddress string
	IPv6          bool

	// Password is the literal connection password. PasswordFile, if set,
	// takes precedence (spec.md section 9 "Password file vs literal").
	Password     string
	PasswordFile string

	ServerCloak string
	MOTDFile    string
	ChanLogDir  string
	StateDir    string
	TLSCertFile string
	TLSKeyFile  string

	ServerName string
	Version    string

	WakeupInterval time.Duration
	PingTime       time.Duration
	DeadTime       time.Duration
	ReadBufferCap  int
}

const (
	defaultServerName     = "miniircd"
	defaultVersion        = "miniircd-go-1.0"
	defaultWakeupInterval = 10 * time.Second
	defaultPingTime       = 90 * time.Second
	defaultDeadTime       = 180 * time.Second
	defaultReadBufferCap  = 1024
)

// defaultConfig returns a Config with every default spec.md section 4.7
// names, before any file-based overrides are applied.
func defaultConfig() Config {
	return Config{
		Ports:          []string{"6667"},
		ListenAddress:  "",
		ServerName:     defaultServerName,
		Version:        defaultVersion,
		WakeupInterval: defaultWakeupInterval,
		PingTime:       defaultPingTime,
		DeadTime:       defaultDeadTime,
		ReadBufferCap:  defaultReadBufferCap,
	}
}

// loadConfig reads a config file in the "key = value" format
// github.com/horgh/config parses, and overlays it onto the defaults.
// Every key is optional; unrecognized keys are ignored so the same parser
// used for per-channel persistence (see channel.go) can read either kind
// of file without choking on the other's keys.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		return cfg, nil
	}

	values, err := hconfig.ReadStringMap(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "unable to read config file")
	}

	if v, ok := values["ports"]; ok && v != "" {
		cfg.Ports = splitAndTrim(v, ",")
	}
	if v, ok := values["listen-address"]; ok {
		cfg.ListenAddress = v
	}
	if v, ok := values["ipv6"]; ok {
		cfg.IPv6, err = strconv.ParseBool(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "ipv6 is not a valid boolean")
		}
	}
	if v, ok := values["password"]; ok {
		cfg.Password = v
	}
	if v, ok := values["password-file"]; ok {
		cfg.PasswordFile = v
	}
	if v, ok := values["server-cloak"]; ok {
		cfg.ServerCloak = v
	}
	if v, ok := values["motd-file"]; ok {
		cfg.MOTDFile = v
	}
	if v, ok := values["chan-log-dir"]; ok {
		cfg.ChanLogDir = v
	}
	if v, ok := values["state-dir"]; ok {
		cfg.StateDir = v
	}
	if v, ok := values["tls-cert-file"]; ok {
		cfg.TLSCertFile = v
	}
	if v, ok := values["tls-key-file"]; ok {
		cfg.TLSKeyFile = v
	}
	if v, ok := values["server-name"]; ok && v != "" {
		cfg.ServerName = v
	}
	if v, ok := values["wakeup-interval"]; ok {
		cfg.WakeupInterval, err = time.ParseDuration(v)
		if err != nil {
			return Config{}, errors.Wrap(err, "wakeup-interval is not a valid duration")
		}
	}

	if err := cfg.resolvePassword(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// resolvePassword implements "a file takes precedence; the file's trailing
// newline is stripped" (spec.md section 9).
func (c *Config) resolvePassword() error {
	if c.PasswordFile == "" {
		return nil
	}

	raw, err := readTrimmedFile(c.PasswordFile)
	if err != nil {
		return errors.Wrap(err, "unable to read password file")
	}

	c.Password = raw
	return nil
}

func readTrimmedFile(path string) (string, error) {
	data, err := readFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
