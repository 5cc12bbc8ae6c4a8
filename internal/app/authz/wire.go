package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/astro-web3/gateway-jwt-authorizer/internal/config"
	"github.com/astro-web3/gateway-jwt-authorizer/internal/domain/authz"
	"github.com/astro-web3/gateway-jwt-authorizer/internal/infra/basic"
	"github.com/astro-web3/gateway-jwt-authorizer/internal/infra/cache"
	"github.com/astro-web3/gateway-jwt-authorizer/internal/infra/jwks"
	"github.com/astro-web3/gateway-jwt-authorizer/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Services holds the authorizers built from configuration. Basic is nil
// unless client credentials are configured.
type Services struct {
	JWT   Service
	Basic Service

	redis *redis.Client
}

// Close releases the Redis connection pool, if any.
func (s *Services) Close() error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Close()
}

// Build constructs the process-wide authorizers. The JWKS is loaded eagerly;
// a failed load is logged and retried by the first request after a short backoff.
func Build(ctx context.Context, cfg *config.Config) (*Services, error) {
	trust := cfg.Trust()

	keys := jwks.NewKeySet(trust.JWKSURI, jwks.WithMinRefreshInterval(cfg.Auth.JWKSMinRefresh))
	if err := jwks.Warm(ctx, keys, cfg.Auth.VerifyTimeout); err != nil {
		logger.WarnContext(ctx, "initial JWKS load failed, will retry on demand",
			slog.String("jwks_uri", trust.JWKSURI),
			slog.String("error", err.Error()),
		)
	}

	opts := []authz.Option{authz.WithVerifyTimeout(cfg.Auth.VerifyTimeout)}

	services := &Services{}

	if cfg.Redis.URL != "" && cfg.Auth.ClaimsCacheTTL > 0 {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL, cfg.Redis.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		services.redis = client
		opts = append(opts, authz.WithClaimsCache(cache.NewClaimsCache(client, trust.Issuer, trust.Audience), cfg.Auth.ClaimsCacheTTL))
		logger.InfoContext(ctx, "claims cache enabled", slog.Duration("ttl", cfg.Auth.ClaimsCacheTTL))
	}

	verifier := jwks.NewVerifier(trust.Issuer, trust.Audience, keys)
	services.JWT = NewService(authz.NewService(verifier, opts...))

	if cfg.BasicEnabled() {
		services.Basic = NewBasicService(authz.NewService(
			basic.NewVerifier(cfg.Auth.Basic.ClientID, cfg.Auth.Basic.ClientSecret),
			authz.WithVerifyTimeout(cfg.Auth.VerifyTimeout),
		))
	}

	return services, nil
}
