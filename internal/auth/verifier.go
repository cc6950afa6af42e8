package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/absentia/absentia/internal/pkg/metrics"
)

// TokenVerifier validates a bearer token string and produces claims
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Verifier validates bearer tokens against the identity provider's published
// signing keys and the configured issuer/audience
type Verifier struct {
	issuer   string
	audience string
	keys     *KeyCache
	log      *slog.Logger
}

// NewVerifier creates a verifier for the given issuer and audience
func NewVerifier(issuer, audience string, keys *KeyCache) *Verifier {
	return &Verifier{
		issuer:   issuer,
		audience: audience,
		keys:     keys,
		log:      slog.Default().With(slog.String("component", "token_verifier")),
	}
}

// ParseBearer extracts the token from an Authorization header value.
// The header must be exactly two space-separated parts with a scheme
// case-insensitively equal to "bearer".
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", ErrMissingHeader
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMalformedHeader
	}

	return parts[1], nil
}

// Verify validates the token signature and standard claims, returning the
// extracted claims on success
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// RS256 only; any other algorithm is rejected outright to guard
		// against algorithm confusion
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrClaimInvalid, token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("%w: missing kid in token header", ErrKeyNotFound)
		}

		return v.keys.GetKey(ctx, kid)
	})
	if err != nil {
		mapped := v.mapParseError(err)
		metrics.AuthVerifyFailures.WithLabelValues(FailureKind(mapped)).Inc()
		v.log.Debug("token verification failed", slog.String("kind", FailureKind(mapped)), slog.Any("error", err))
		return nil, mapped
	}

	if !token.Valid {
		metrics.AuthVerifyFailures.WithLabelValues(FailureKind(ErrSignatureInvalid)).Inc()
		return nil, ErrSignatureInvalid
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims format", ErrClaimInvalid)
	}

	claims, err := v.validateClaims(mapClaims)
	if err != nil {
		metrics.AuthVerifyFailures.WithLabelValues(FailureKind(err)).Inc()
		v.log.Debug("claim validation failed", slog.Any("error", err))
		return nil, err
	}

	return claims, nil
}

// validateClaims checks issuer, audience, expiry, and subject against the
// verifier's configuration
func (v *Verifier) validateClaims(mapClaims jwt.MapClaims) (*Claims, error) {
	iss, _ := mapClaims["iss"].(string)
	if iss != v.issuer {
		return nil, fmt.Errorf("%w: issuer %q", ErrClaimInvalid, iss)
	}

	// The aud claim can be a string or an array of strings
	aud := ""
	switch val := mapClaims["aud"].(type) {
	case string:
		aud = val
	case []interface{}:
		for _, item := range val {
			if s, ok := item.(string); ok && s == v.audience {
				aud = s
				break
			}
		}
	}
	if aud != v.audience {
		return nil, fmt.Errorf("%w: audience mismatch", ErrClaimInvalid)
	}

	exp, _ := mapClaims["exp"].(float64)
	expiresAt := time.Unix(int64(exp), 0)
	if exp == 0 || time.Now().After(expiresAt) {
		return nil, fmt.Errorf("%w: token expired", ErrClaimInvalid)
	}

	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrClaimInvalid)
	}

	email, _ := mapClaims["email"].(string)
	name, _ := mapClaims["name"].(string)
	iat, _ := mapClaims["iat"].(float64)

	return &Claims{
		Subject:   sub,
		Email:     email,
		Name:      name,
		Issuer:    iss,
		Audience:  aud,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: expiresAt,
	}, nil
}

// mapParseError normalizes golang-jwt parse errors onto the verifier's
// failure kinds, keeping our own sentinels when the keyfunc produced them
func (v *Verifier) mapParseError(err error) error {
	switch {
	case errors.Is(err, ErrKeyNotFound),
		errors.Is(err, ErrClaimInvalid),
		errors.Is(err, ErrUpstreamUnavailable):
		return err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %v", ErrClaimInvalid, err)
	default:
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
}
