package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/astro-web3/gateway-jwt-authorizer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setTrustEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ISSUER", "https://issuer.example.com/")
	t.Setenv("AUDIENCE", "api://gateway")
	t.Setenv("JWKS_URI", "https://issuer.example.com/.well-known/jwks.json")
}

func writeConfig(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoad_EnvOnlyWithDefaults(t *testing.T) {
	setTrustEnv(t)

	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, config.Trust{
		Issuer:   "https://issuer.example.com/",
		Audience: "api://gateway",
		JWKSURI:  "https://issuer.example.com/.well-known/jwks.json",
	}, cfg.Trust())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.Auth.VerifyTimeout)
	assert.Equal(t, time.Minute, cfg.Auth.JWKSMinRefresh)
	assert.Zero(t, cfg.Auth.ClaimsCacheTTL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.False(t, cfg.BasicEnabled())
}

func TestLoad_FileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
server:
  addr: ":9090"
auth:
  issuer: https://file-issuer.example.com/
  audience: file-audience
  jwks_uri: http://localhost:8081/jwks.json
  verify_timeout: 2s
  basic:
    client_id: client-a
    client_secret: s3cr3t
observability:
  log_level: debug
  trace_enabled: true
  tracing_endpoint_url: grpc://collector:4317
  trace_sample_ratio: 0.25
`)
	writeConfig(t, dir, "config.staging.yaml", `
server:
  mode: debug
`)
	t.Setenv("APP_ENV", "staging")
	t.Setenv("AUDIENCE", "env-audience")
	t.Setenv("AUTHORIZER_AUTH_CLAIMS_CACHE_TTL", "30s")

	cfg, err := config.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "https://file-issuer.example.com/", cfg.Auth.Issuer)
	assert.Equal(t, "env-audience", cfg.Auth.Audience)
	assert.Equal(t, 2*time.Second, cfg.Auth.VerifyTimeout)
	assert.Equal(t, 30*time.Second, cfg.Auth.ClaimsCacheTTL)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.True(t, cfg.BasicEnabled())

	tracing := cfg.Tracing("authorizer-test")
	assert.Equal(t, "authorizer-test", tracing.ServiceName)
	assert.True(t, tracing.Enabled)
	assert.Equal(t, "grpc://collector:4317", tracing.EndpointURL)
	assert.InDelta(t, 0.25, tracing.SampleRatio, 1e-9)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing issuer", env: map[string]string{"ISSUER": ""}},
		{name: "missing audience", env: map[string]string{"AUDIENCE": ""}},
		{name: "missing jwks uri", env: map[string]string{"JWKS_URI": ""}},
		{name: "relative jwks uri", env: map[string]string{"JWKS_URI": "/jwks.json"}},
		{name: "non-http jwks uri", env: map[string]string{"JWKS_URI": "file:///etc/jwks.json"}},
		{name: "zero verify timeout", env: map[string]string{"AUTHORIZER_AUTH_VERIFY_TIMEOUT": "0s"}},
		{name: "client id without secret", env: map[string]string{"CLIENT_ID": "client-a"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setTrustEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := config.Load(t.TempDir())

			require.ErrorIs(t, err, config.ErrInvalidConfig)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	setTrustEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "server: [unclosed")

	_, err := config.Load(dir)

	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
