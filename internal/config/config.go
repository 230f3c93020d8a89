package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// MinJWTSecretBytes is the shortest HMAC key accepted for token signing.
const MinJWTSecretBytes = 32

// OAuthProvider holds the client registration for one identity provider.
// A provider with an empty ClientID is disabled.
type OAuthProvider struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

// Enabled reports whether the provider is configured.
func (p OAuthProvider) Enabled() bool {
	return p.ClientID != ""
}

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string `env:"SERVER_PORT" envDefault:"8080"`
	DBDriver    string `env:"DB_DRIVER" envDefault:"mysql"`
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"user:password@tcp(localhost:3306)/app?charset=utf8mb4&parseTime=True&loc=UTC"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB     int    `env:"REDIS_DB" envDefault:"0"`
	RedisPass   string `env:"REDIS_PASSWORD"`
	SwaggerHost string `env:"SWAGGER_HOST"`

	JWTSecret      string        `env:"JWT_SECRET,required"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"60m"`
	TokenLeeway    time.Duration `env:"TOKEN_LEEWAY" envDefault:"60s"`
	BcryptCost     int           `env:"BCRYPT_COST" envDefault:"10"`
	OAuthStateTTL  time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Google          OAuthProvider `envPrefix:"GOOGLE_"`
	Microsoft       OAuthProvider `envPrefix:"MICROSOFT_"`
	MicrosoftTenant string        `env:"MICROSOFT_TENANT" envDefault:"common"`
	// OAuthFrontendRedirectURL receives the browser after a provider callback.
	// Empty keeps the JSON callback response.
	OAuthFrontendRedirectURL string `env:"OAUTH_FRONTEND_REDIRECT_URL"`
}

// Load builds Config from the environment. A .env file in the working
// directory is read first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q: want mysql, postgres or sqlite", c.DBDriver))
	}
	if len(c.JWTSecret) < MinJWTSecretBytes {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretBytes))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.TokenLeeway < 0 {
		errs = append(errs, errors.New("TOKEN_LEEWAY must not be negative"))
	}
	if c.OAuthStateTTL <= 0 {
		errs = append(errs, errors.New("OAUTH_STATE_TTL must be positive"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST %d: want 4..31", c.BcryptCost))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q: want json or text", c.LogFormat))
	}
	for name, p := range map[string]OAuthProvider{"GOOGLE": c.Google, "MICROSOFT": c.Microsoft} {
		if p.Enabled() && (p.ClientSecret == "" || p.RedirectURL == "") {
			errs = append(errs, fmt.Errorf("%s_CLIENT_SECRET and %s_REDIRECT_URL are required with %s_CLIENT_ID", name, name, name))
		}
	}
	if c.OAuthFrontendRedirectURL != "" {
		u, err := url.Parse(c.OAuthFrontendRedirectURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || u.Fragment != "" {
			errs = append(errs, fmt.Errorf("OAUTH_FRONTEND_REDIRECT_URL %q: want an absolute http(s) URL without a fragment", c.OAuthFrontendRedirectURL))
		}
	}

	return errors.Join(errs...)
}
