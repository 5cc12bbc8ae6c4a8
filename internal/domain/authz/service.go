package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/astro-web3/gateway-jwt-authorizer/pkg/logger"
)

const DefaultVerifyTimeout = 5 * time.Second

// Verifier checks a credential and returns its claims. Any error means the
// credential must not be trusted.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// ClaimsCache stores verified claims keyed by token hash. Get returns
// (nil, nil) on a miss.
type ClaimsCache interface {
	Get(ctx context.Context, tokenHash string) (*Claims, error)
	Set(ctx context.Context, tokenHash string, claims *Claims, ttl time.Duration) error
}

// Service turns a gateway request into an access decision. It never fails:
// every error path yields a Deny decision.
type Service interface {
	Authorize(ctx context.Context, req *Request) *Decision
}

type Option func(*service)

// WithClaimsCache enables caching of verified claims for at most ttl, and
// never beyond the token's expiry.
func WithClaimsCache(cache ClaimsCache, ttl time.Duration) Option {
	return func(s *service) {
		if cache != nil && ttl > 0 {
			s.cache = cache
			s.cacheTTL = ttl
		}
	}
}

func WithVerifyTimeout(timeout time.Duration) Option {
	return func(s *service) {
		if timeout > 0 {
			s.verifyTimeout = timeout
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

type service struct {
	verifier      Verifier
	verifyTimeout time.Duration
	cache         ClaimsCache
	cacheTTL      time.Duration
	now           func() time.Time
}

func NewService(verifier Verifier, opts ...Option) Service {
	s := &service{
		verifier:      verifier,
		verifyTimeout: DefaultVerifyTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Authorize(ctx context.Context, req *Request) (decision *Decision) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "authorizer panicked, denying", slog.Any("panic", r))
			decision = NewDenyDecision()
		}
	}()

	token, err := ExtractToken(req)
	if err != nil {
		s.logDenied(ctx, "", err)
		return NewDenyDecision()
	}

	fingerprint := Fingerprint(token)

	claims, err := s.verify(ctx, token)
	if err != nil {
		s.logDenied(ctx, fingerprint, err)
		return NewDenyDecision()
	}
	if claims.Subject == "" {
		s.logDenied(ctx, fingerprint, ErrEmptySubject)
		return NewDenyDecision()
	}

	logger.InfoContext(ctx, "token verified",
		slog.String("token_fingerprint", fingerprint),
		slog.String("principal", claims.Subject),
	)
	return NewAllowDecision(claims)
}

func (s *service) verify(ctx context.Context, token string) (*Claims, error) {
	tokenHash := hashToken(token)

	if claims := s.cached(ctx, tokenHash); claims != nil {
		return claims, nil
	}

	claims, err := s.verifyWithTimeout(ctx, token)
	if err != nil {
		return nil, err
	}

	s.store(ctx, tokenHash, claims)
	return claims, nil
}

type verifyResult struct {
	claims *Claims
	err    error
}

// verifyWithTimeout bounds the verifier call even when the verifier ignores
// its context.
func (s *service) verifyWithTimeout(ctx context.Context, token string) (*Claims, error) {
	ctx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	done := make(chan verifyResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- verifyResult{err: fmt.Errorf("verifier panicked: %v", r)}
			}
		}()
		claims, err := s.verifier.Verify(ctx, token)
		done <- verifyResult{claims: claims, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("verify token: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if res.claims == nil {
			return nil, errors.New("verifier returned no claims")
		}
		return res.claims, nil
	}
}

func (s *service) cached(ctx context.Context, tokenHash string) *Claims {
	if s.cache == nil {
		return nil
	}

	claims, err := s.cache.Get(ctx, tokenHash)
	if err != nil {
		logger.WarnContext(ctx, "failed to read claims cache, verifying token", slog.String("error", err.Error()))
		return nil
	}
	if claims == nil || claims.ExpiresAt.IsZero() || !s.now().Before(claims.ExpiresAt) {
		return nil
	}
	return claims
}

func (s *service) store(ctx context.Context, tokenHash string, claims *Claims) {
	if s.cache == nil || claims.ExpiresAt.IsZero() {
		return
	}

	ttl := s.cacheTTL
	if remaining := claims.ExpiresAt.Sub(s.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}

	if err := s.cache.Set(ctx, tokenHash, claims, ttl); err != nil {
		logger.WarnContext(ctx, "failed to write claims cache", slog.String("error", err.Error()))
	}
}

func (s *service) logDenied(ctx context.Context, fingerprint string, err error) {
	attrs := []slog.Attr{
		slog.String("reason", denyReason(err)),
		slog.String("error", err.Error()),
	}
	if fingerprint != "" {
		attrs = append(attrs, slog.String("token_fingerprint", fingerprint))
	}
	logger.WarnContext(ctx, "token not valid, denying", attrs...)
}

func denyReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return "missing_token"
	case errors.Is(err, ErrEmptySubject):
		return "empty_subject"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "verification_failed"
	}
}
