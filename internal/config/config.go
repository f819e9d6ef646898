package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port              string        `env:"PORT" envDefault:"8080"`
	DBURL             string        `env:"DB_URL"`
	JWTSecret         string        `env:"JWT_SECRET"`
	JWTIssuer         string        `env:"JWT_ISSUER" envDefault:"movie-reviews"`
	JWTTTL            time.Duration `env:"JWT_TTL" envDefault:"24h"`
	BcryptCost        int           `env:"BCRYPT_COST" envDefault:"10"`
	ReadTimeoutSecs   int           `env:"SERVER_READ_TIMEOUT" envDefault:"15"`
	WriteTimeoutSecs  int           `env:"SERVER_WRITE_TIMEOUT" envDefault:"15"`
	IdleTimeoutSecs   int           `env:"SERVER_IDLE_TIMEOUT" envDefault:"60"`
	DBMaxConns        int           `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns        int           `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxIdleSecs     int           `env:"DB_MAX_CONN_IDLE_SECS" envDefault:"300"`
	DBMaxLifeSecs     int           `env:"DB_MAX_CONN_LIFETIME_SECS" envDefault:"3600"`
	DBConnTimeoutSecs int           `env:"DB_CONN_TIMEOUT_SECS" envDefault:"10"`
	DBStatementCache  int           `env:"DB_STATEMENT_CACHE_CAPACITY" envDefault:"256"`
	DBAutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"false"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"LOG_FORMAT" envDefault:"json"`
	CORSOrigins       []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	AuthRateLimit     int           `env:"AUTH_RATE_LIMIT_REQUESTS" envDefault:"10"`
}

const minJWTSecretLen = 32

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	cfg, err := parse()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.validateDatabase(); err != nil {
		return Config{}, err
	}
	if err := cfg.validateServer(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadForTools reads the subset of configuration needed by operator tooling,
// which talks to the database but never issues tokens or serves HTTP.
func LoadForTools() (Config, error) {
	cfg, err := parse()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.validateDatabase(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (cfg Config) validateDatabase() error {
	if cfg.DBURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if cfg.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

func (cfg Config) validateServer() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLen)
	}
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	if cfg.RateLimitRequests < 0 || cfg.AuthRateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and AUTH_RATE_LIMIT_REQUESTS must be non-negative")
	}
	if cfg.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}
