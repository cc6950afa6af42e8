package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/absentia/absentia/internal/pkg/metrics"
)

// KeyCache caches RSA public keys fetched from the identity provider's JWKS
// endpoint. Fetches are rate limited so key rotation is tolerated without
// hammering the provider.
type KeyCache struct {
	url        string
	ttl        time.Duration
	maxKeys    int
	httpClient *http.Client
	limiter    *rate.Limiter

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	lastFetch time.Time
}

// KeyCacheOptions configures a KeyCache
type KeyCacheOptions struct {
	URL          string
	TTL          time.Duration
	MaxKeys      int
	FetchTimeout time.Duration
}

// NewKeyCache creates a new JWKS key cache
func NewKeyCache(opts KeyCacheOptions) *KeyCache {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.MaxKeys <= 0 {
		opts.MaxKeys = 16
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	return &KeyCache{
		url:     opts.URL,
		ttl:     opts.TTL,
		maxKeys: opts.MaxKeys,
		keys:    make(map[string]*rsa.PublicKey),
		httpClient: &http.Client{
			Timeout: opts.FetchTimeout,
		},
		// One refresh per 10 seconds sustained, small burst for startup
		// and rotation
		limiter: rate.NewLimiter(rate.Every(10*time.Second), 3),
	}
}

// GetKey retrieves a public key by key ID, refreshing the cached set when it
// is stale or the key id is unknown (key rotation)
func (k *KeyCache) GetKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if time.Since(k.lastFetch) > k.ttl || len(k.keys) == 0 {
		if err := k.refresh(ctx); err != nil {
			// Serve a still-cached key if one exists; the provider being
			// briefly unreachable must not invalidate known-good keys
			if key, ok := k.keys[kid]; ok {
				return key, nil
			}
			return nil, err
		}
	}

	key, ok := k.keys[kid]
	if !ok {
		// Try refreshing once more in case the key was just rotated
		if err := k.refresh(ctx); err != nil {
			return nil, err
		}
		key, ok = k.keys[kid]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
		}
	}

	return key, nil
}

// refresh fetches the latest JWKS from the provider. Caller holds k.mu.
func (k *KeyCache) refresh(ctx context.Context) error {
	if !k.limiter.Allow() {
		// Refusing to fetch is not an upstream failure; the caller simply
		// does not get new keys this time
		return fmt.Errorf("%w: refresh rate limited", ErrKeyNotFound)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		metrics.JWKSFetches.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.JWKSFetches.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: unexpected status code %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var jwks struct {
		Keys []json.RawMessage `json:"keys"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		metrics.JWKSFetches.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: decoding key set: %v", ErrUpstreamUnavailable, err)
	}

	newKeys := make(map[string]*rsa.PublicKey)
	for _, keyData := range jwks.Keys {
		if len(newKeys) >= k.maxKeys {
			break
		}

		var keyInfo struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Alg string `json:"alg"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		}

		if err := json.Unmarshal(keyData, &keyInfo); err != nil {
			continue
		}

		// Only RSA signing keys are honored
		if keyInfo.Kty != "RSA" || keyInfo.Kid == "" {
			continue
		}
		if keyInfo.Use != "" && keyInfo.Use != "sig" {
			continue
		}

		pubKey, err := parseRSAKey(keyInfo.N, keyInfo.E)
		if err != nil {
			continue
		}

		newKeys[keyInfo.Kid] = pubKey
	}

	if len(newKeys) == 0 {
		metrics.JWKSFetches.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: no usable RSA keys in key set", ErrUpstreamUnavailable)
	}

	k.keys = newKeys
	k.lastFetch = time.Now()
	metrics.JWKSFetches.WithLabelValues("success").Inc()

	return nil
}

// parseRSAKey builds an RSA public key from base64url modulus and exponent
func parseRSAKey(n, e string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	var eInt int
	for _, b := range eBytes {
		eInt = eInt<<8 + int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: eInt,
	}, nil
}
