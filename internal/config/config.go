package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	RulesSourceFile     = "file"
	RulesSourcePostgres = "postgres"

	AuthModeDevelopment = "development"
	AuthModeJWT         = "jwt"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	RulesSource    string        `mapstructure:"RULES_SOURCE"`
	RulesPath      string        `mapstructure:"RULES_PATH"`
	RulesFormat    string        `mapstructure:"RULES_FORMAT"`
	RulesWatch     bool          `mapstructure:"RULES_WATCH"`
	NamesPath      string        `mapstructure:"NAMES_PATH"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	AuthMode       string        `mapstructure:"AUTH_MODE"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string        `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL",
	"RULES_SOURCE", "RULES_PATH", "RULES_FORMAT", "RULES_WATCH", "NAMES_PATH",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"CORS_ORIGINS", "REQUEST_TIMEOUT", "BODY_LIMIT",
	"AUTH_MODE", "AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RULES_SOURCE", RulesSourceFile)
	v.SetDefault("RULES_PATH", "rules.json")
	v.SetDefault("RULES_WATCH", false)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.RulesSource = strings.ToLower(strings.TrimSpace(cfg.RulesSource))
	cfg.RulesFormat = strings.ToLower(strings.TrimSpace(cfg.RulesFormat))
	cfg.AuthMode = strings.ToLower(strings.TrimSpace(cfg.AuthMode))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesPostgres reports whether rules are read from the diagnostic_rule table.
func (c *Config) UsesPostgres() bool {
	return c.RulesSource == RulesSourcePostgres
}

// ResolvedAuthMode returns AUTH_MODE when set. Otherwise development
// environments run without authentication and everything else verifies JWTs.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return AuthModeDevelopment
	}
	return AuthModeJWT
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.RulesSource {
	case RulesSourceFile:
		if c.RulesPath == "" {
			return fmt.Errorf("RULES_PATH is required when RULES_SOURCE is %q", RulesSourceFile)
		}
	case RulesSourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when RULES_SOURCE is %q", RulesSourcePostgres)
		}
		if c.RulesWatch {
			return fmt.Errorf("RULES_WATCH is only supported with RULES_SOURCE=%q", RulesSourceFile)
		}
	default:
		return fmt.Errorf("RULES_SOURCE must be %q or %q, got %q", RulesSourceFile, RulesSourcePostgres, c.RulesSource)
	}

	switch c.RulesFormat {
	case "", "json", "yaml", "yml":
	default:
		return fmt.Errorf("RULES_FORMAT must be \"json\" or \"yaml\", got %q", c.RulesFormat)
	}

	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1, got %d", c.DBMaxConns)
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS (%d), got %d", c.DBMaxConns, c.DBMinConns)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}

	switch c.ResolvedAuthMode() {
	case AuthModeDevelopment:
	case AuthModeJWT:
		if c.AuthJWKSURL == "" && c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_JWKS_URL or AUTH_SIGNING_KEY is required when AUTH_MODE is %q (ENV=%q)", AuthModeJWT, c.Env)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeDevelopment, AuthModeJWT, c.AuthMode)
	}
	return nil
}
