// Package config loads the daemon's configuration from layered
// sources: built-in defaults, an optional YAML file, environment
// variables, and explicit flags, merged through
// github.com/spf13/viper (SPEC_FULL §10).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// StoreMode selects which Store Adapter backend to open (SPEC_FULL
// §4.7).
type StoreMode string

const (
	StoreModeEmbedded StoreMode = "embedded"
	StoreModeServer    StoreMode = "server"
)

// Listen configures one transport the Service Façade exposes
// (SPEC_FULL §4.9).
type Listen struct {
	Socket   string `mapstructure:"socket"`
	TCP      string `mapstructure:"tcp"`
	HTTP     string `mapstructure:"http"`
	TCPToken string `mapstructure:"tcp_token"`
	TLSCert  string `mapstructure:"tls_cert"`
	TLSKey   string `mapstructure:"tls_key"`
}

// OTel configures observability export (SPEC_FULL §4.8).
type OTel struct {
	Exporter string `mapstructure:"exporter"` // "stdout" or "otlp"
	Endpoint string `mapstructure:"endpoint"` // OTLP collector address
}

// Config is the fully resolved daemon configuration.
type Config struct {
	StoreMode      StoreMode     `mapstructure:"store_mode"`
	StorePath      string        `mapstructure:"store_path"`
	StoreDSN       string        `mapstructure:"store_dsn"`
	StoreDatabase  string        `mapstructure:"store_database"`
	Listen         Listen        `mapstructure:"listen"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxConnections int           `mapstructure:"max_connections"`
	OTel           OTel          `mapstructure:"otel"`
}

// defaults mirror the teacher's pattern of seeding a viper instance
// with SetDefault before any file or environment layer is read
// (cmd/bd/config.go, internal/labelmutex/policy.go).
func defaults(v *viper.Viper) {
	v.SetDefault("store_mode", string(StoreModeEmbedded))
	v.SetDefault("store_path", ".latticegraphd/data")
	v.SetDefault("store_database", "latticegraph")
	v.SetDefault("listen.socket", ".latticegraphd/latticegraphd.sock")
	v.SetDefault("listen.tcp", "")
	v.SetDefault("listen.http", "")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("max_connections", 64)
	v.SetDefault("otel.exporter", "stdout")
}

// Load resolves Config from, in ascending precedence: built-in
// defaults, configPath (if non-empty, a YAML file), environment
// variables prefixed LATTICEGRAPHD_ (nested keys use "_" in place of
// "."), and flags already registered on fs (if non-nil).
func Load(configPath string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("LATTICEGRAPHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreMode = StoreMode(strings.ToLower(string(cfg.StoreMode)))
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.StoreMode {
	case StoreModeEmbedded, StoreModeServer:
	default:
		return fmt.Errorf("store_mode: %q is invalid (valid values: embedded, server)", c.StoreMode)
	}
	if c.StoreMode == StoreModeServer && c.StoreDSN == "" {
		return fmt.Errorf("store_dsn is required when store_mode is %q", StoreModeServer)
	}
	if c.Listen.Socket == "" && c.Listen.TCP == "" && c.Listen.HTTP == "" {
		return fmt.Errorf("at least one of listen.socket, listen.tcp, listen.http must be set")
	}
	switch c.OTel.Exporter {
	case "stdout", "otlp":
	default:
		return fmt.Errorf("otel.exporter: %q is invalid (valid values: stdout, otlp)", c.OTel.Exporter)
	}
	return nil
}
