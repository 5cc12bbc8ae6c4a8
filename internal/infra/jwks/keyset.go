package jwks

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/astro-web3/gateway-jwt-authorizer/pkg/httpclient"
	"github.com/astro-web3/gateway-jwt-authorizer/pkg/logger"
	"github.com/go-resty/resty/v2"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMinRefreshInterval = time.Minute
	DefaultRetryBackoff       = time.Second
	DefaultFetchTimeout       = 10 * time.Second
)

var (
	ErrKeyNotFound = errors.New("signing key not found in JWKS")
	ErrJWKSFetch   = errors.New("failed to fetch JWKS")
)

// KeySet resolves signing keys by key id from a remote JWKS document.
// An unknown kid triggers a refetch at most once per minRefresh after a
// successful load, or once per retryBackoff after a failed one. Concurrent
// refetches share one request, which is not bound to any caller's context.
type KeySet struct {
	uri          string
	client       *resty.Client
	minRefresh   time.Duration
	retryBackoff time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	mu          sync.RWMutex
	set         jwk.Set
	nextRefresh time.Time

	group singleflight.Group
}

type KeySetOption func(*KeySet)

func WithHTTPClient(client *resty.Client) KeySetOption {
	return func(k *KeySet) {
		if client != nil {
			k.client = client
		}
	}
}

func WithMinRefreshInterval(d time.Duration) KeySetOption {
	return func(k *KeySet) {
		if d >= 0 {
			k.minRefresh = d
		}
	}
}

// WithRetryBackoff sets how long a failed fetch suppresses the next one.
// It never exceeds the minimum refresh interval.
func WithRetryBackoff(d time.Duration) KeySetOption {
	return func(k *KeySet) {
		if d >= 0 {
			k.retryBackoff = d
		}
	}
}

func WithFetchTimeout(d time.Duration) KeySetOption {
	return func(k *KeySet) {
		if d > 0 {
			k.fetchTimeout = d
		}
	}
}

func withClock(now func() time.Time) KeySetOption {
	return func(k *KeySet) {
		k.now = now
	}
}

func NewKeySet(uri string, opts ...KeySetOption) *KeySet {
	k := &KeySet{
		uri:          uri,
		client:       httpclient.Client(),
		minRefresh:   DefaultMinRefreshInterval,
		retryBackoff: DefaultRetryBackoff,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	k.retryBackoff = min(k.retryBackoff, k.minRefresh)
	return k
}

// Key returns the public key published under kid.
func (k *KeySet) Key(ctx context.Context, kid string) (crypto.PublicKey, error) {
	if key, ok := k.lookup(ctx, kid); ok {
		return key, nil
	}

	if k.refreshDue() {
		if err := k.refresh(ctx, false); err != nil {
			return nil, err
		}
	}

	// A refresh started by another caller may have landed in the meantime.
	if key, ok := k.lookup(ctx, kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
}

// Refresh replaces the cached keys with the current JWKS document. The
// caller's context only bounds how long it waits for the shared fetch.
func (k *KeySet) Refresh(ctx context.Context) error {
	return k.refresh(ctx, true)
}

func (k *KeySet) refresh(ctx context.Context, force bool) error {
	ch := k.group.DoChan(k.uri, func() (any, error) {
		// A fetch that finished just before this one started already served the miss.
		if !force && !k.refreshDue() {
			return nil, nil
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.fetchTimeout)
		defer cancel()

		set, err := k.fetch(fetchCtx)

		k.mu.Lock()
		if err != nil {
			k.nextRefresh = k.now().Add(k.retryBackoff)
		} else {
			k.set = set
			k.nextRefresh = k.now().Add(k.minRefresh)
		}
		k.mu.Unlock()

		if err != nil {
			logger.WarnContext(fetchCtx, "failed to load JWKS",
				slog.String("jwks_uri", k.uri),
				slog.String("error", err.Error()),
			)
			return nil, err
		}

		logger.InfoContext(fetchCtx, "loaded JWKS", slog.String("jwks_uri", k.uri), slog.Int("keys", set.Len()))
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait for JWKS: %w", ctx.Err())
	case res := <-ch:
		return res.Err
	}
}

// Len reports how many keys the last loaded document held.
func (k *KeySet) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.set == nil {
		return 0
	}
	return k.set.Len()
}

func (k *KeySet) lookup(ctx context.Context, kid string) (crypto.PublicKey, bool) {
	k.mu.RLock()
	set := k.set
	k.mu.RUnlock()

	if set == nil {
		return nil, false
	}
	key, ok := set.LookupKeyID(kid)
	if !ok {
		return nil, false
	}

	pub, err := verificationKey(key)
	if err != nil {
		logger.DebugContext(ctx, "ignoring JWK", slog.String("kid", kid), slog.String("error", err.Error()))
		return nil, false
	}
	return pub, true
}

func (k *KeySet) refreshDue() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return !k.now().Before(k.nextRefresh)
}

func (k *KeySet) fetch(ctx context.Context) (jwk.Set, error) {
	resp, err := httpclient.Request(ctx, k.client, http.MethodGet, k.uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJWKSFetch, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d", ErrJWKSFetch, resp.StatusCode())
	}

	set, err := jwk.Parse(resp.Body(), jwk.WithIgnoreParseError(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrJWKSFetch, err)
	}
	return set, nil
}

// verificationKey returns the RSA or EC public key of a signature JWK.
func verificationKey(key jwk.Key) (crypto.PublicKey, error) {
	if use := key.KeyUsage(); use != "" && use != string(jwk.ForSignature) {
		return nil, fmt.Errorf("key use %q is not %q", use, jwk.ForSignature)
	}

	pub, err := key.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	var raw any
	if err := pub.Raw(&raw); err != nil {
		return nil, fmt.Errorf("export key: %w", err)
	}

	switch raw.(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported key type %s", key.KeyType())
	}
}
