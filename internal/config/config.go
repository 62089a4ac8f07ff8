package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	envPrefix = "TUTORRELAY"
)

type Config struct {
	Env       string           `json:"env"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Sweeper   *SweeperConfig   `json:"sweeper"`
	Hub       *HubConfig       `json:"hub"`
	Audit     *AuditConfig     `json:"audit"`
	Log       *LogConfig       `json:"log"`
}

type HTTPConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	AllowedOrigins []string      `json:"allowed_origins"`
}

// WebSocketConfig tunes each real-time connection. ReadTimeout must exceed
// PingInterval or idle peers are dropped between pings.
type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

type SweeperConfig struct {
	Interval time.Duration `json:"interval"`
}

type HubConfig struct {
	InboundBuffer int `json:"inbound_buffer"`
}

// AuditConfig controls the optional sqlite journal.
type AuditConfig struct {
	Enabled   bool          `json:"enabled"`
	Path      string        `json:"path"`
	Timeout   time.Duration `json:"timeout"`
	QueueSize int           `json:"queue_size"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Env: EnvDevelopment,
		HTTP: &HTTPConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Sweeper: &SweeperConfig{
			Interval: time.Minute,
		},
		Hub: &HubConfig{
			InboundBuffer: 1000,
		},
		Audit: &AuditConfig{
			Enabled:   false,
			Path:      "./data/tutorrelay-audit.db",
			Timeout:   5 * time.Second,
			QueueSize: 256,
		},
		Log: &LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func (c *Config) Validate() error {
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		return fmt.Errorf("env must be %q or %q", EnvDevelopment, EnvProduction)
	}

	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must be longer than the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}

	if c.Sweeper == nil || c.Sweeper.Interval <= 0 {
		return fmt.Errorf("sweeper interval must be positive")
	}
	if c.Hub == nil || c.Hub.InboundBuffer <= 0 {
		return fmt.Errorf("hub inbound buffer must be positive")
	}

	if c.Audit == nil {
		return fmt.Errorf("audit configuration is required")
	}
	if c.Audit.Enabled {
		if c.Audit.Path == "" {
			return fmt.Errorf("audit path cannot be empty when the journal is enabled")
		}
		if c.Audit.Timeout <= 0 {
			return fmt.Errorf("audit timeout must be positive")
		}
		if c.Audit.QueueSize <= 0 {
			return fmt.Errorf("audit queue size must be positive")
		}
	}

	if c.Log == nil {
		return fmt.Errorf("log configuration is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log format must be json or console")
	}

	return nil
}

// LoadFromEnv reads TUTORRELAY_* variables, after loading a .env file if one
// exists. Unparsable values fall back to the defaults.
func LoadFromEnv() *Config {
	_ = godotenv.Load()
	return fromViper(newEnvViper())
}

// LoadFromFile reads a JSON or YAML config file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigWithPrecedence merges file > environment > defaults. A missing
// file is ignored; an unreadable or invalid one is an error.
func LoadConfigWithPrecedence(path string) (*Config, error) {
	_ = godotenv.Load()
	v := newEnvViper()

	if path != "" {
		fv := viper.New()
		fv.SetConfigFile(path)
		switch err := fv.ReadInConfig(); {
		case err == nil:
			for _, key := range fv.AllKeys() {
				v.Set(key, fv.Get(key))
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newEnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) *Config {
	d := DefaultConfig()

	return &Config{
		Env: strings.ToLower(stringOr(v, "env", d.Env)),
		HTTP: &HTTPConfig{
			Host:           stringOr(v, "http.host", d.HTTP.Host),
			Port:           intOr(v, "http.port", d.HTTP.Port),
			ReadTimeout:    durationOr(v, "http.read_timeout", d.HTTP.ReadTimeout),
			WriteTimeout:   durationOr(v, "http.write_timeout", d.HTTP.WriteTimeout),
			AllowedOrigins: sliceOr(v, "http.allowed_origins", d.HTTP.AllowedOrigins),
		},
		WebSocket: &WebSocketConfig{
			PingInterval: durationOr(v, "websocket.ping_interval", d.WebSocket.PingInterval),
			ReadTimeout:  durationOr(v, "websocket.read_timeout", d.WebSocket.ReadTimeout),
			WriteTimeout: durationOr(v, "websocket.write_timeout", d.WebSocket.WriteTimeout),
			BufferSize:   intOr(v, "websocket.buffer_size", d.WebSocket.BufferSize),
		},
		Sweeper: &SweeperConfig{
			Interval: durationOr(v, "sweeper.interval", d.Sweeper.Interval),
		},
		Hub: &HubConfig{
			InboundBuffer: intOr(v, "hub.inbound_buffer", d.Hub.InboundBuffer),
		},
		Audit: &AuditConfig{
			Enabled:   boolOr(v, "audit.enabled", d.Audit.Enabled),
			Path:      stringOr(v, "audit.path", d.Audit.Path),
			Timeout:   durationOr(v, "audit.timeout", d.Audit.Timeout),
			QueueSize: intOr(v, "audit.queue_size", d.Audit.QueueSize),
		},
		Log: &LogConfig{
			Level:  stringOr(v, "log.level", d.Log.Level),
			Format: strings.ToLower(stringOr(v, "log.format", d.Log.Format)),
		},
	}
}

func stringOr(v *viper.Viper, key, def string) string {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		return s
	}
	return def
}

func intOr(v *viper.Viper, key string, def int) int {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func boolOr(v *viper.Viper, key string, def bool) bool {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func durationOr(v *viper.Viper, key string, def time.Duration) time.Duration {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// sliceOr accepts a comma separated string (env) or a list (file).
func sliceOr(v *viper.Viper, key string, def []string) []string {
	var items []string
	switch raw := v.Get(key).(type) {
	case nil:
		return def
	case string:
		items = strings.Split(raw, ",")
	default:
		items = v.GetStringSlice(key)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
