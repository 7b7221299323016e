package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Socket struct {
		PingInterval   time.Duration `yaml:"ping_interval"`
		PongTimeout    time.Duration `yaml:"pong_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		MaxMessageSize int64         `yaml:"max_message_size"`
	} `yaml:"socket"`

	Presence struct {
		QueryTimeout time.Duration `yaml:"query_timeout"`
	} `yaml:"presence"`

	Snowflake struct {
		// WorkerID < 0 means pick one at random on startup.
		WorkerID int64 `yaml:"worker_id"`
	} `yaml:"snowflake"`

	Database struct {
		URL             string        `yaml:"url"`
		MaxConns        int32         `yaml:"max_conns"`
		ConnectTimeout  time.Duration `yaml:"connect_timeout"`
		ConnectAttempts int           `yaml:"connect_attempts"`
	} `yaml:"database"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret      string        `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled           bool          `yaml:"enabled"`
		RequestsPerWindow int           `yaml:"requests_per_window"`
		Window            time.Duration `yaml:"window"`

		Socket struct {
			FramesPerSecond float64 `yaml:"frames_per_second"`
			Burst           int     `yaml:"burst"`
		} `yaml:"socket"`
	} `yaml:"rate_limiting"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration that runs the gateway against
// in-memory repositories with sane socket timeouts.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 15 * time.Second
	cfg.Server.WriteTimeout = 15 * time.Second
	cfg.Server.ShutdownTimeout = 10 * time.Second

	cfg.Socket.PingInterval = 30 * time.Second
	cfg.Socket.PongTimeout = 60 * time.Second
	cfg.Socket.WriteTimeout = 10 * time.Second
	cfg.Socket.MaxMessageSize = 4096

	cfg.Presence.QueryTimeout = 2 * time.Second

	cfg.Snowflake.WorkerID = -1

	cfg.Database.MaxConns = 8
	cfg.Database.ConnectTimeout = 5 * time.Second
	cfg.Database.ConnectAttempts = 5

	cfg.Redis.PoolSize = 10

	cfg.Auth.JWTSecret = "dev-secret-do-not-use"
	cfg.Auth.AccessTokenTTL = 24 * time.Hour

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.RequestsPerWindow = 60
	cfg.RateLimiting.Window = time.Minute
	cfg.RateLimiting.Socket.FramesPerSecond = 10
	cfg.RateLimiting.Socket.Burst = 20

	cfg.Tracing.ServiceName = "owlet"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	return cfg
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Socket.PingInterval <= 0 {
		return fmt.Errorf("socket.ping_interval must be > 0")
	}
	if c.Socket.PongTimeout <= c.Socket.PingInterval {
		return fmt.Errorf("socket.pong_timeout must be > socket.ping_interval")
	}
	if c.Socket.WriteTimeout <= 0 {
		return fmt.Errorf("socket.write_timeout must be > 0")
	}
	if c.Socket.MaxMessageSize <= 0 {
		return fmt.Errorf("socket.max_message_size must be > 0")
	}

	if c.Presence.QueryTimeout <= 0 {
		return fmt.Errorf("presence.query_timeout must be > 0")
	}

	if c.Snowflake.WorkerID > 1023 {
		return fmt.Errorf("snowflake.worker_id must be <= 1023")
	}

	if c.Database.URL != "" {
		if c.Database.MaxConns <= 0 {
			return fmt.Errorf("database.max_conns must be > 0")
		}
		if c.Database.ConnectTimeout <= 0 {
			return fmt.Errorf("database.connect_timeout must be > 0")
		}
	}

	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	if c.RateLimiting.Enabled {
		if c.RateLimiting.RequestsPerWindow <= 0 {
			return fmt.Errorf("rate_limiting.requests_per_window must be > 0")
		}
		if c.RateLimiting.Window <= 0 {
			return fmt.Errorf("rate_limiting.window must be > 0")
		}
	}
	if c.RateLimiting.Socket.FramesPerSecond < 0 {
		return fmt.Errorf("rate_limiting.socket.frames_per_second must be >= 0")
	}

	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be in [0, 1]")
		}
	}

	return nil
}
