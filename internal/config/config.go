package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/promptlab/workbench/internal/provider/openai"
	"github.com/promptlab/workbench/internal/provider/ratelimit"
)

// Config represents the workbench service configuration.
type Config struct {
	Server  ServerConfig
	CORS    CORSConfig
	OpenAI  openai.Config
	Run     RunConfig
	History HistoryConfig
	Rate    ratelimit.Config
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"180"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// RunConfig contains fan-out run settings.
type RunConfig struct {
	// CallTimeout is the per-model-call ceiling in seconds.
	CallTimeout int `env:"RUN_CALL_TIMEOUT" envDefault:"120"`
}

// Timeout returns the per-call ceiling as a duration.
func (c RunConfig) Timeout() time.Duration {
	return time.Duration(c.CallTimeout) * time.Second
}

// HistoryConfig selects and configures the run-history backend.
type HistoryConfig struct {
	// Backend is one of: memory, sqlite, redis.
	Backend       string `env:"HISTORY_BACKEND"        envDefault:"memory"`
	SQLitePath    string `env:"HISTORY_SQLITE_PATH"    envDefault:"workbench_history.db"`
	RedisAddr     string `env:"HISTORY_REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"HISTORY_REDIS_PASSWORD"`
	RedisDB       int    `env:"HISTORY_REDIS_DB"       envDefault:"0"`
	// MaxKeep bounds retained entries per version on the redis backend
	// (0 keeps everything).
	MaxKeep int `env:"HISTORY_MAX_KEEP" envDefault:"0"`
	// DefaultLimit is used when a read request supplies no limit.
	DefaultLimit int `env:"HISTORY_DEFAULT_LIMIT" envDefault:"20"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out

	Server  *ServerConfig
	CORS    *CORSConfig
	OpenAI  *openai.Config
	Run     *RunConfig
	History *HistoryConfig
	Rate    *ratelimit.Config
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		Server:  &cfg.Server,
		CORS:    &cfg.CORS,
		OpenAI:  &cfg.OpenAI,
		Run:     &cfg.Run,
		History: &cfg.History,
		Rate:    &cfg.Rate,
	}
}
