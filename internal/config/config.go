package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Exam      ExamConfig      `mapstructure:"exam"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

// ExamConfig tunes the session engine.
type ExamConfig struct {
	// SaveTimeoutSeconds bounds each autosave attempt.
	SaveTimeoutSeconds int `mapstructure:"save_timeout_seconds"`
	// AutosaveIntervalSeconds is the periodic save on top of reactive saves;
	// 0 disables it.
	AutosaveIntervalSeconds int `mapstructure:"autosave_interval_seconds"`
	// SessionIdleMinutes before a live session is reaped back to its snapshot.
	SessionIdleMinutes int `mapstructure:"session_idle_minutes"`
	// SnapshotTTLHours for the Redis hot snapshot.
	SnapshotTTLHours int `mapstructure:"snapshot_ttl_hours"`
}

func (e ExamConfig) SaveTimeout() time.Duration {
	if e.SaveTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(e.SaveTimeoutSeconds) * time.Second
}

func (e ExamConfig) AutosaveInterval() time.Duration {
	return time.Duration(e.AutosaveIntervalSeconds) * time.Second
}

func (e ExamConfig) SessionIdle() time.Duration {
	if e.SessionIdleMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(e.SessionIdleMinutes) * time.Minute
}

func (e ExamConfig) SnapshotTTL() time.Duration {
	if e.SnapshotTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(e.SnapshotTTLHours) * time.Hour
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("TRYOUT")
	viper.AutomaticEnv()

	// Database
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	viper.BindEnv("server.mode", "SERVER_MODE")

	// Tracing
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if cfg.Server.Mode == "release" && len(cfg.JWT.Secret) < 32 {
		return nil, fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(cfg.JWT.Secret))
	}

	return &cfg, nil
}
