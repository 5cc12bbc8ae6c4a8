package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/astro-web3/gateway-jwt-authorizer/pkg/otel"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "AUTHORIZER"

var ErrInvalidConfig = errors.New("invalid configuration")

// Trust is the issuer, audience and key source every accepted token must
// match.
type Trust struct {
	Issuer   string
	Audience string
	JWKSURI  string
}

type Config struct {
	Server struct {
		Addr         string        `mapstructure:"addr"`
		Mode         string        `mapstructure:"mode"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`

	Redis struct {
		URL      string `mapstructure:"url"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"redis"`

	Auth struct {
		Issuer         string        `mapstructure:"issuer"`
		Audience       string        `mapstructure:"audience"`
		JWKSURI        string        `mapstructure:"jwks_uri"`
		VerifyTimeout  time.Duration `mapstructure:"verify_timeout"`
		JWKSMinRefresh time.Duration `mapstructure:"jwks_min_refresh"`
		ClaimsCacheTTL time.Duration `mapstructure:"claims_cache_ttl"`
		Basic          struct {
			ClientID     string `mapstructure:"client_id"`
			ClientSecret string `mapstructure:"client_secret"`
		} `mapstructure:"basic"`
	} `mapstructure:"auth"`

	Observability struct {
		TraceEnabled       bool    `mapstructure:"trace_enabled"`
		TracingEndpointURL string  `mapstructure:"tracing_endpoint_url"`
		TraceSampleRatio   float64 `mapstructure:"trace_sample_ratio"`
		LogLevel           string  `mapstructure:"log_level"`
		Format             string  `mapstructure:"log_format"`
		LogSource          bool    `mapstructure:"log_source"`
	} `mapstructure:"observability"`
}

func (c *Config) Trust() Trust {
	return Trust{
		Issuer:   c.Auth.Issuer,
		Audience: c.Auth.Audience,
		JWKSURI:  c.Auth.JWKSURI,
	}
}

// Tracing returns the span exporter settings for serviceName.
func (c *Config) Tracing(serviceName string) otel.Config {
	cfg := otel.DefaultConfig()
	cfg.ServiceName = serviceName
	cfg.Enabled = c.Observability.TraceEnabled
	cfg.EndpointURL = c.Observability.TracingEndpointURL
	cfg.SampleRatio = c.Observability.TraceSampleRatio
	return cfg
}

// BasicEnabled reports whether client credentials are configured.
func (c *Config) BasicEnabled() bool {
	return c.Auth.Basic.ClientID != "" && c.Auth.Basic.ClientSecret != ""
}

func (c *Config) Validate() error {
	var errs []error

	if c.Auth.Issuer == "" {
		errs = append(errs, errors.New("ISSUER is required"))
	}
	if c.Auth.Audience == "" {
		errs = append(errs, errors.New("AUDIENCE is required"))
	}
	if c.Auth.JWKSURI == "" {
		errs = append(errs, errors.New("JWKS_URI is required"))
	} else if u, err := url.Parse(c.Auth.JWKSURI); err != nil || !u.IsAbs() || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("JWKS_URI %q is not an absolute http(s) URL", c.Auth.JWKSURI))
	}
	if c.Auth.VerifyTimeout <= 0 {
		errs = append(errs, errors.New("auth.verify_timeout must be positive"))
	}
	if c.Auth.JWKSMinRefresh < 0 {
		errs = append(errs, errors.New("auth.jwks_min_refresh must not be negative"))
	}
	if c.Auth.ClaimsCacheTTL < 0 {
		errs = append(errs, errors.New("auth.claims_cache_ttl must not be negative"))
	}
	if (c.Auth.Basic.ClientID == "") != (c.Auth.Basic.ClientSecret == "") {
		errs = append(errs, errors.New("CLIENT_ID and CLIENT_SECRET must be set together"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("auth.verify_timeout", 5*time.Second)
	v.SetDefault("auth.jwks_min_refresh", time.Minute)
	v.SetDefault("auth.claims_cache_ttl", time.Duration(0))

	v.SetDefault("observability.trace_enabled", false)
	v.SetDefault("observability.tracing_endpoint_url", "")
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.log_source", false)
}

// Load reads config.yaml from paths (./config and . by default), applies
// APP_ENV overrides and environment variables, and validates the result.
// A missing config file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if len(paths) == 0 {
		paths = []string{"./config", "."}
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range map[string]string{
		"auth.issuer":              "ISSUER",
		"auth.audience":            "AUDIENCE",
		"auth.jwks_uri":            "JWKS_URI",
		"auth.basic.client_id":     "CLIENT_ID",
		"auth.basic.client_secret": "CLIENT_SECRET",
	} {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: read config: %w", ErrInvalidConfig, err)
		}
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		v.SetConfigName(fmt.Sprintf("config.%s", env))
		if err := v.MergeInConfig(); err != nil {
			slog.Info("No environment-specific config (optional)", slog.String("env", env))
		} else {
			slog.Info("Environment-specific config loaded", slog.String("env", env))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad also reads a local .env file, if present, without overriding
// variables already set in the environment.
func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg, err := Load()
	if err != nil {
		slog.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	return cfg
}
