// Package config loads the etheripd TOML configuration file: a link
// table plus a log-level filter, with strict schema validation and
// per-link remote-address resolution (static literal or DNS name).
//
// Configuration is loaded and validated in two distinct passes: koanf
// unmarshals and rejects unknown fields, then validateLinks checks each
// link (interface-name rules, non-empty remote, known ip_version).
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/mapstructure"

	"github.com/menhera-org/etherip-rs/internal/tap"
)

// envPrefix namespaces environment-variable overrides, e.g.
// ETHERIPD_LOG_LEVEL.
const envPrefix = "ETHERIPD_"

// LogLevel is the daemon's log verbosity, matching the six levels the
// original implementation's `log` crate exposes.
type LogLevel int

const (
	LogLevelOff LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
	LogLevelTrace
)

// DefaultLogLevel is used when log_level is absent from the config file.
const DefaultLogLevel = LogLevelWarn

var logLevelNames = map[string]LogLevel{
	"off":   LogLevelOff,
	"error": LogLevelError,
	"warn":  LogLevelWarn,
	"info":  LogLevelInfo,
	"debug": LogLevelDebug,
	"trace": LogLevelTrace,
}

// ErrUnknownLogLevel is returned by ParseLogLevel for any string outside
// {off, error, warn, info, debug, trace}.
var ErrUnknownLogLevel = errors.New("unknown log level")

// ParseLogLevel parses one of off/error/warn/info/debug/trace.
func ParseLogLevel(s string) (LogLevel, error) {
	lvl, ok := logLevelNames[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLogLevel, s)
	}
	return lvl, nil
}

// SlogLevel maps a LogLevel onto the nearest log/slog.Level. LogLevelOff
// maps to a level above slog.LevelError so nothing is emitted; LogLevelTrace
// maps below slog.LevelDebug since slog has no dedicated trace level.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelOff:
		return slog.LevelError + 4
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelTrace:
		return slog.LevelDebug - 4
	default:
		return slog.LevelWarn
	}
}

// IPVersion constrains DNS resolution and literal-parsing to one address
// family.
type IPVersion int

const (
	IPVersionUnspecified IPVersion = iota
	IPVersionV4
	IPVersionV6
)

// ErrUnknownIPVersion is returned when ip_version is neither "V4" nor "V6".
var ErrUnknownIPVersion = errors.New("unknown ip_version")

func parseIPVersion(s string) (IPVersion, error) {
	switch s {
	case "V4":
		return IPVersionV4, nil
	case "V6":
		return IPVersionV6, nil
	default:
		return IPVersionUnspecified, fmt.Errorf("%w: %q", ErrUnknownIPVersion, s)
	}
}

// LinkConfig is one entry of the links table.
type LinkConfig struct {
	Remote    string `koanf:"remote"`
	IPVersion string `koanf:"ip_version"`
}

// Config is the fully parsed, validated etheripd.toml.
type Config struct {
	LogLevel string                `koanf:"log_level"`
	Links    map[string]LinkConfig `koanf:"links"`

	logLevel LogLevel
}

// ErrUnknownField is wrapped into the error returned by Load when the
// TOML file contains a key this schema does not recognize.
var ErrUnknownField = errors.New("unknown configuration field")

// Load reads and validates the TOML configuration file at path,
// rejecting unrecognized keys and invalid link definitions.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	envKey := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: read environment overrides: %w", err)
	}

	cfg := &Config{}
	decoderConfig := &mapstructure.DecoderConfig{
		ErrorUnused: true,
		TagName:     "koanf",
		Result:      cfg,
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{DecoderConfig: decoderConfig}); err != nil {
		return nil, fmt.Errorf("config: %s: %w: %v", path, ErrUnknownField, err)
	}

	if cfg.LogLevel == "" {
		cfg.logLevel = DefaultLogLevel
	} else {
		lvl, err := ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		cfg.logLevel = lvl
	}

	if err := cfg.validateLinks(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) validateLinks() error {
	for name, link := range c.Links {
		if err := tap.ValidateLinkName(name); err != nil {
			return fmt.Errorf("link %q: %w", name, err)
		}
		if link.Remote == "" {
			return fmt.Errorf("link %q: remote must not be empty", name)
		}
		if _, err := parseIPVersion(link.IPVersion); err != nil {
			return fmt.Errorf("link %q: %w", name, err)
		}
	}
	return nil
}

// Level returns the parsed, validated log level.
func (c *Config) Level() LogLevel {
	return c.logLevel
}

// RemoteAddr is a link's remote peer, either a literal address (resolved
// once, at parse time) or a hostname resolved on demand by the DNS
// refresher.
type RemoteAddr struct {
	static   netip.Addr
	hostname string
	version  IPVersion

	mu     sync.Mutex
	cached netip.Addr
}

// NewRemoteAddr classifies link's remote as Static (parses as a literal
// IP) or Dynamic (a hostname, resolved lazily).
func NewRemoteAddr(link LinkConfig) (*RemoteAddr, error) {
	version, err := parseIPVersion(link.IPVersion)
	if err != nil {
		return nil, err
	}

	ra := &RemoteAddr{version: version}
	if addr, err := netip.ParseAddr(link.Remote); err == nil {
		ra.static = addr
		ra.cached = addr
	} else {
		ra.hostname = link.Remote
	}
	return ra, nil
}

// Resolve returns the current address for this remote. For a static
// remote it returns the literal address immediately. For a dynamic
// remote it performs a DNS lookup filtered to the configured IP version;
// on failure it returns the last successfully resolved address (if any)
// together with the lookup error, per the "no negative caching" rule.
func (r *RemoteAddr) Resolve(ctx context.Context) (netip.Addr, error) {
	if r.static.IsValid() {
		return r.static, nil
	}

	addr, err := LookupAddr(ctx, r.hostname, r.version)
	if err != nil {
		r.mu.Lock()
		prev := r.cached
		r.mu.Unlock()
		return prev, err
	}

	r.mu.Lock()
	r.cached = addr
	r.mu.Unlock()
	return addr, nil
}
