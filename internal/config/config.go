// Package config handles dissect configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"firestige.xyz/dissect/internal/core"
)

// Config is the top-level configuration, fixed after startup.
type Config struct {
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics,omitempty"`
}

// CaptureConfig selects what to capture and how matches are presented.
type CaptureConfig struct {
	Interface   string    `mapstructure:"interface" yaml:"interface,omitempty"` // Empty = default device
	ReadFile    string    `mapstructure:"read_file" yaml:"read_file,omitempty"` // Replay a pcap file instead of a live device
	Protocol    string    `mapstructure:"protocol" yaml:"protocol"`
	Port        uint16    `mapstructure:"port" yaml:"port"`                 // 0 = protocol default
	Filter      string    `mapstructure:"filter" yaml:"filter,omitempty"`   // Overrides "udp port <port>"
	Verbose     bool      `mapstructure:"verbose" yaml:"verbose"`
	Color       ColorMode `mapstructure:"color" yaml:"color"`
	SnapLen     int       `mapstructure:"snaplen" yaml:"snaplen"`
	Promiscuous bool      `mapstructure:"promiscuous" yaml:"promiscuous"`
	Backend     string    `mapstructure:"backend" yaml:"backend"`                 // pcap / afpacket
	BufferMB    int       `mapstructure:"buffer_mb" yaml:"buffer_mb,omitempty"` // afpacket ring size
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string        `mapstructure:"level" yaml:"level"`   // trace / debug / info / warn / error
	Format  string        `mapstructure:"format" yaml:"format"` // pattern / prefixed
	Pattern string        `mapstructure:"pattern" yaml:"pattern,omitempty"`
	Time    string        `mapstructure:"time" yaml:"time,omitempty"`
	File    LogFileConfig `mapstructure:"file" yaml:"file,omitempty"`
}

// LogFileConfig configures the optional rotating log file.
type LogFileConfig struct {
	Path       string `mapstructure:"path" yaml:"path,omitempty"` // Empty = disabled
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb,omitempty"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days,omitempty"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups,omitempty"`
	Compress   bool   `mapstructure:"compress" yaml:"compress,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr,omitempty"` // Empty = disabled
	Path string `mapstructure:"path" yaml:"path,omitempty"`
}

// ColorMode selects how traffic sources are keyed for colorization.
type ColorMode int

const (
	ColorByAddressAndPort ColorMode = iota
	ColorByAddress
	ColorDisabled
)

var colorModeNames = map[ColorMode]string{
	ColorByAddressAndPort: "address-port",
	ColorByAddress:        "address",
	ColorDisabled:         "none",
}

func (m ColorMode) String() string {
	if s, ok := colorModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("ColorMode(%d)", int(m))
}

// ParseColorMode accepts the names printed by String.
func ParseColorMode(s string) (ColorMode, error) {
	for m, name := range colorModeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown color mode %q (must be address-port, address or none)", core.ErrConfigInvalid, s)
}

func (m ColorMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *ColorMode) UnmarshalText(text []byte) error {
	parsed, err := ParseColorMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// DefaultPortFunc resolves a protocol name to its well-known port.
// A zero port means the protocol has none and --port is mandatory.
type DefaultPortFunc func(protocol string) (uint16, error)

// ValidateAndApplyDefaults checks cfg and fills in derived values.
func (cfg *Config) ValidateAndApplyDefaults(defaultPort DefaultPortFunc) error {
	c := &cfg.Capture

	if c.Interface != "" && c.ReadFile != "" {
		return fmt.Errorf("%w: interface and read_file are mutually exclusive", core.ErrConfigInvalid)
	}

	if c.Protocol == "" {
		return fmt.Errorf("%w: protocol is required", core.ErrConfigInvalid)
	}
	port, err := defaultPort(c.Protocol)
	if err != nil {
		return err
	}
	if c.Port == 0 {
		if port == 0 {
			return fmt.Errorf("%w: protocol %s has no default port, set --port", core.ErrConfigInvalid, c.Protocol)
		}
		c.Port = port
	}

	if c.SnapLen <= 0 {
		c.SnapLen = defaultSnapLen
	}

	switch c.Backend {
	case "":
		c.Backend = "pcap"
	case "pcap":
	case "afpacket":
		if c.BufferMB <= 0 {
			return fmt.Errorf("%w: buffer_mb must be positive for the afpacket backend", core.ErrConfigInvalid)
		}
		if c.ReadFile != "" {
			return fmt.Errorf("%w: the afpacket backend cannot read files", core.ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: invalid capture backend: %s (must be pcap/afpacket)", core.ErrConfigInvalid, c.Backend)
	}

	if _, ok := colorModeNames[c.Color]; !ok {
		return fmt.Errorf("%w: invalid color mode %d", core.ErrConfigInvalid, int(c.Color))
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("%w: invalid log level: %s (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "pattern", "prefixed":
	default:
		return fmt.Errorf("%w: invalid log format: %s (must be pattern/prefixed)", core.ErrConfigInvalid, cfg.Log.Format)
	}

	if cfg.Metrics.Addr != "" && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("%w: metrics path must start with /: %q", core.ErrConfigInvalid, cfg.Metrics.Path)
	}

	return nil
}

// YAML renders the effective configuration.
func (cfg *Config) YAML() ([]byte, error) {
	return yaml.Marshal(cfg)
}
