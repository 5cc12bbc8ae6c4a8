package jwks

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/astro-web3/gateway-jwt-authorizer/internal/domain/authz"
	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingKeyID = errors.New("kid header not found")

// KeyResolver looks up a verification key by key id.
type KeyResolver interface {
	Key(ctx context.Context, kid string) (crypto.PublicKey, error)
}

var signingMethods = []string{
	jwt.SigningMethodRS256.Alg(), jwt.SigningMethodRS384.Alg(), jwt.SigningMethodRS512.Alg(),
	jwt.SigningMethodPS256.Alg(), jwt.SigningMethodPS384.Alg(), jwt.SigningMethodPS512.Alg(),
	jwt.SigningMethodES256.Alg(), jwt.SigningMethodES384.Alg(), jwt.SigningMethodES512.Alg(),
}

// Verifier validates JWTs signed by a key from a JWKS, issued by issuer
// for audience, and currently within their validity window.
type Verifier struct {
	keys   KeyResolver
	parser *jwt.Parser
}

var _ authz.Verifier = (*Verifier)(nil)

func NewVerifier(issuer, audience string, keys KeyResolver) *Verifier {
	return &Verifier{
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods(signingMethods),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
}

func (v *Verifier) Verify(ctx context.Context, tokenString string) (*authz.Claims, error) {
	claims := jwt.MapClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, ErrMissingKeyID
		}
		return v.keys.Key(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token not valid")
	}

	return toClaims(claims)
}

func toClaims(mc jwt.MapClaims) (*authz.Claims, error) {
	sub, err := mc.GetSubject()
	if err != nil {
		return nil, err
	}
	iss, err := mc.GetIssuer()
	if err != nil {
		return nil, err
	}
	aud, err := mc.GetAudience()
	if err != nil {
		return nil, err
	}

	claims := &authz.Claims{
		Subject:  sub,
		Issuer:   iss,
		Audience: aud,
		Raw:      maps.Clone(map[string]any(mc)),
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time.UTC()
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time.UTC()
	}
	return claims, nil
}

// Warm loads the key set ahead of the first request. Failure is not fatal:
// the first request after the retry backoff fetches again.
func Warm(ctx context.Context, keys *KeySet, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return keys.Refresh(ctx)
}
