package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"`

	JWT       JWTConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Email     EmailConfig
	Policies  PolicyConfig
	Tokens    TokenConfig
	Tracing   TracingConfig
	Admin     AdminConfig
	RateLimit RateLimitConfig
}

type JWTConfig struct {
	Secret   string        `env:"JWT_SECRET, required"`
	Issuer   string        `env:"JWT_ISSUER,   default=identity-system"`
	Audience string        `env:"JWT_AUDIENCE, default=identity-system"`
	TTL      time.Duration `env:"JWT_TTL,      default=2m"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=identity_system"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	DB       int    `env:"REDIS_DB,   default=0"`
	Password string `env:"REDIS_PASSWORD"`
}

// EmailConfig holds the SMTP relay settings. Delivery is disabled when Host is empty.
type EmailConfig struct {
	Host     string `env:"EMAIL_HOST"`
	Port     int    `env:"EMAIL_PORT,     default=587"`
	UserName string `env:"EMAIL_USERNAME"`
	Password string `env:"EMAIL_PASSWORD"`
	From     string `env:"EMAIL_FROM,     default=no-reply@identity-system.local"`
	Workers  int    `env:"EMAIL_WORKERS,  default=4"`
}

// PolicyConfig lists the assignable policies, comma separated.
type PolicyConfig struct {
	Users []string `env:"POLICIES_USERS, default=users.list,users.register"`
	Roles []string `env:"POLICIES_ROLES, default=roles.listRoles,roles.listPolicies,roles.create,roles.update,roles.addClaimsToRole,roles.removeRoleFromUser"`
}

type TokenConfig struct {
	EmailConfirmationTTL time.Duration `env:"TOKEN_EMAIL_CONFIRMATION_TTL, default=24h"`
	PasswordResetTTL     time.Duration `env:"TOKEN_PASSWORD_RESET_TTL,     default=1h"`
}

type TracingConfig struct {
	Endpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// AdminConfig describes the administrator seeded into an empty store.
// Seeding is skipped when Email is empty.
type AdminConfig struct {
	Role     string `env:"ADMIN_ROLE,     default=Admin"`
	UserName string `env:"ADMIN_USERNAME, default=admin"`
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
}

// RateLimitConfig throttles POST /api/users/authenticate per client IP.
type RateLimitConfig struct {
	AuthenticateRate  float64 `env:"AUTH_RATE_LIMIT, default=5"`
	AuthenticateBurst int     `env:"AUTH_RATE_BURST, default=10"`
}

// IsDevelopment reports whether the process runs with developer defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Email.Workers <= 0 {
		return nil, fmt.Errorf("config: EMAIL_WORKERS must be positive, got %d", cfg.Email.Workers)
	}
	return &cfg, nil
}
