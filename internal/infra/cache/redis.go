package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/astro-web3/gateway-jwt-authorizer/internal/domain/authz"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const claimsKeyPrefix = "authz:claims:"

type cachedClaims struct {
	Subject   string         `msgpack:"sub"`
	Issuer    string         `msgpack:"iss,omitempty"`
	Audience  []string       `msgpack:"aud,omitempty"`
	ExpiresAt time.Time      `msgpack:"exp"`
	IssuedAt  time.Time      `msgpack:"iat"`
	Raw       map[string]any `msgpack:"raw,omitempty"`
}

type redisCache struct {
	client *redis.Client
	prefix string
}

var _ authz.ClaimsCache = (*redisCache)(nil)

func NewRedisClient(ctx context.Context, url string, poolSize int) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	if poolSize > 0 {
		opt.PoolSize = poolSize
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// NewClaimsCache stores verified claims under their token hash, scoped to
// the issuer and audience they were verified against.
func NewClaimsCache(client *redis.Client, issuer, audience string) authz.ClaimsCache {
	return &redisCache{client: client, prefix: claimsKeyPrefix + trustScope(issuer, audience) + ":"}
}

func trustScope(issuer, audience string) string {
	sum := sha256.Sum256([]byte(issuer + "\x00" + audience))
	return hex.EncodeToString(sum[:8])
}

func (r *redisCache) Get(ctx context.Context, tokenHash string) (*authz.Claims, error) {
	val, err := r.client.Get(ctx, r.prefix+tokenHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var c cachedClaims
	if err := msgpack.Unmarshal(val, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached claims: %w", err)
	}

	return &authz.Claims{
		Subject:   c.Subject,
		Issuer:    c.Issuer,
		Audience:  c.Audience,
		ExpiresAt: c.ExpiresAt,
		IssuedAt:  c.IssuedAt,
		Raw:       c.Raw,
	}, nil
}

func (r *redisCache) Set(ctx context.Context, tokenHash string, claims *authz.Claims, ttl time.Duration) error {
	data, err := msgpack.Marshal(cachedClaims{
		Subject:   claims.Subject,
		Issuer:    claims.Issuer,
		Audience:  claims.Audience,
		ExpiresAt: claims.ExpiresAt,
		IssuedAt:  claims.IssuedAt,
		Raw:       claims.Raw,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cached claims: %w", err)
	}

	if err := r.client.Set(ctx, r.prefix+tokenHash, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set redis cache: %w", err)
	}

	return nil
}
