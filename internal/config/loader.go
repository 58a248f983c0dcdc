package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "DISSECT"
	defaultSnapLen = 65535
)

// flagKeys maps config keys to the command-line flags that override them.
var flagKeys = map[string]string{
	"capture.interface":   "interface",
	"capture.read_file":   "read",
	"capture.protocol":    "protocol",
	"capture.port":        "port",
	"capture.filter":      "filter",
	"capture.verbose":     "verbose",
	"capture.color":       "color",
	"capture.snaplen":     "snaplen",
	"capture.promiscuous": "promisc",
	"capture.backend":     "backend",
	"capture.buffer_mb":   "buffer-mb",
	"log.level":           "log-level",
	"log.format":          "log-format",
	"log.file.path":       "log-file",
	"metrics.addr":        "metrics-addr",
}

// Load merges defaults, the optional config file at path, DISSECT_* environment
// variables and flags (highest precedence), then validates the result.
func Load(path string, flags *pflag.FlagSet, defaultPort DefaultPortFunc) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// capture.port -> DISSECT_CAPTURE_PORT
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	cfg, err := decode(v.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.ValidateAndApplyDefaults(defaultPort); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func decode(settings map[string]interface{}) (*Config, error) {
	var cfg Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(settings); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("capture.interface", "")
	v.SetDefault("capture.read_file", "")
	v.SetDefault("capture.protocol", "sip")
	v.SetDefault("capture.port", 0)
	v.SetDefault("capture.filter", "")
	v.SetDefault("capture.verbose", false)
	v.SetDefault("capture.color", ColorByAddressAndPort.String())
	v.SetDefault("capture.snaplen", defaultSnapLen)
	v.SetDefault("capture.promiscuous", true)
	v.SetDefault("capture.backend", "pcap")
	v.SetDefault("capture.buffer_mb", 8)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "pattern")
	v.SetDefault("log.pattern", "")
	v.SetDefault("log.time", "")
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")
}
