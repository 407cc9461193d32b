package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string       `mapstructure:"port"`
	Environment    string       `mapstructure:"environment"`
	AllowedOrigins []string     `mapstructure:"allowed_origins"`
	JWTSecret      string       `mapstructure:"jwt_secret"`
	Redis          RedisConfig  `mapstructure:"redis"`
	Relay          RelayConfig  `mapstructure:",squash"`
	Events         EventsConfig `mapstructure:",squash"`
	Socket         SocketConfig `mapstructure:",squash"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RelayConfig points at the external video signaling server.
type RelayConfig struct {
	VideoServerURL string        `mapstructure:"video_server_url"`
	Timeout        time.Duration `mapstructure:"relay_timeout"`
}

type EventsConfig struct {
	QueueSize    int           `mapstructure:"event_queue_size"`
	WriteTimeout time.Duration `mapstructure:"event_write_timeout"`
}

// SocketConfig tunes the per-connection websocket pumps.
type SocketConfig struct {
	PingPeriod time.Duration `mapstructure:"ping_period"`
	PongWait   time.Duration `mapstructure:"pong_wait"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	SendBuffer int           `mapstructure:"send_buffer"`
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads defaults, an optional config.yaml and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.AllowedOrigins = cleanOrigins(cfg.AllowedOrigins)
	cfg.Relay.VideoServerURL = strings.TrimRight(cfg.Relay.VideoServerURL, "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("environment", "development")
	// Comma-separated so ALLOWED_ORIGINS has the same shape as the default.
	v.SetDefault("allowed_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("jwt_secret", "change-me-in-production")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("video_server_url", "http://localhost:9099/signal")
	v.SetDefault("relay_timeout", "10s")

	v.SetDefault("event_queue_size", 1024)
	v.SetDefault("event_write_timeout", "3s")

	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("read_limit", 64*1024)
	v.SetDefault("send_buffer", 256)
}

func (c *Config) validate() error {
	if c.IsProduction() && c.JWTSecret == "change-me-in-production" {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.Socket.PingPeriod >= c.Socket.PongWait {
		return fmt.Errorf("ping_period (%s) must be shorter than pong_wait (%s)", c.Socket.PingPeriod, c.Socket.PongWait)
	}
	if c.Events.QueueSize <= 0 {
		return fmt.Errorf("event_queue_size must be positive, got %d", c.Events.QueueSize)
	}
	if c.Relay.VideoServerURL == "" {
		return errors.New("video_server_url is required")
	}
	return nil
}

func cleanOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		// A single env value may still carry commas if the decode hook was bypassed.
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
