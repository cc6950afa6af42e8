package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testIssuer   = "https://idp.example.com"
	testAudience = "absentia-api"
)

// testKeySet bundles a signing key with a JWKS server publishing its public half
type testKeySet struct {
	key    *rsa.PrivateKey
	kid    string
	server *httptest.Server
}

func newTestKeySet(t *testing.T, kid string) *testKeySet {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating rsa key: %v", err)
	}

	ks := &testKeySet{key: key, kid: kid}
	ks.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{
				{
					"kty": "RSA",
					"kid": ks.kid,
					"use": "sig",
					"alg": "RS256",
					"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
					"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
				},
			},
		})
	}))
	t.Cleanup(ks.server.Close)
	return ks
}

func (ks *testKeySet) verifier() *Verifier {
	keys := NewKeyCache(KeyCacheOptions{URL: ks.server.URL})
	return NewVerifier(testIssuer, testAudience, keys)
}

// sign mints an RS256 token with the given claims, defaulting the standard
// claims to valid values
func (ks *testKeySet) sign(t *testing.T, overrides jwt.MapClaims) string {
	t.Helper()

	claims := jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   testAudience,
		"sub":   "abc123",
		"email": "a@x.com",
		"name":  "Test Person",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range overrides {
		claims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = ks.kid
	signed, err := token.SignedString(ks.key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		wantErr error
	}{
		{"missing header", "", ErrMissingHeader},
		{"wrong scheme", "Basic xyz", ErrMalformedHeader},
		{"no token", "Bearer", ErrMalformedHeader},
		{"too many parts", "Bearer a b", ErrMalformedHeader},
		{"valid", "Bearer sometoken", nil},
		{"case-insensitive scheme", "bearer sometoken", nil},
		{"uppercase scheme", "BEARER sometoken", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := ParseBearer(tt.header)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && token != "sometoken" {
				t.Errorf("expected token 'sometoken', got %q", token)
			}
		})
	}
}

func TestVerifier_ValidToken(t *testing.T) {
	ks := newTestKeySet(t, "key-1")
	v := ks.verifier()

	claims, err := v.Verify(context.Background(), ks.sign(t, nil))
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}

	if claims.Subject != "abc123" {
		t.Errorf("expected subject abc123, got %s", claims.Subject)
	}
	if claims.Email != "a@x.com" {
		t.Errorf("expected email a@x.com, got %s", claims.Email)
	}
	if claims.Issuer != testIssuer {
		t.Errorf("expected issuer %s, got %s", testIssuer, claims.Issuer)
	}
}

func TestVerifier_AudienceArray(t *testing.T) {
	ks := newTestKeySet(t, "key-1")
	v := ks.verifier()

	token := ks.sign(t, jwt.MapClaims{"aud": []string{"other", testAudience}})
	if _, err := v.Verify(context.Background(), token); err != nil {
		t.Fatalf("expected audience array to validate, got %v", err)
	}
}

func TestVerifier_RejectsWrongAlgorithm(t *testing.T) {
	ks := newTestKeySet(t, "key-1")
	v := ks.verifier()

	// HS256 token signed with a shared secret; must be rejected on
	// algorithm alone, before any signature consideration
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"sub": "abc123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "key-1"
	signed, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("signing hs256 token: %v", err)
	}

	_, err = v.Verify(context.Background(), signed)
	if err == nil {
		t.Fatal("expected rejection of HS256 token")
	}
	if !IsAuthFailure(err) {
		t.Errorf("expected an authentication failure, got %v", err)
	}
}

func TestVerifier_UnknownKeyID(t *testing.T) {
	ks := newTestKeySet(t, "key-1")
	v := ks.verifier()

	signer := newTestKeySet(t, "rogue-kid")
	token := signer.sign(t, nil)

	_, err := v.Verify(context.Background(), token)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestVerifier_MissingKeyID(t *testing.T) {
	ks := newTestKeySet(t, "key-1")
	v := ks.verifier()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"sub": "abc123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	// No kid header
	signed, err := token.SignedString(ks.key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	_, err = v.Verify(context.Background(), signed)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestVerifier_WrongIssuer(t *testing.T) {
	ks := newTestKeySet(t, "key-1")
	v := ks.verifier()

	token := ks.sign(t, jwt.MapClaims{"iss": "https://evil.example.com"})
	_, err := v.Verify(context.Background(), token)
	if !errors.Is(err, ErrClaimInvalid) {
		t.Fatalf("expected ErrClaimInvalid, got %v", err)
	}
}

func TestVerifier_WrongAudience(t *testing.T) {
	ks := newTestKeySet(t, "key-1")
	v := ks.verifier()

	token := ks.sign(t, jwt.MapClaims{"aud": "someone-else"})
	_, err := v.Verify(context.Background(), token)
	if !errors.Is(err, ErrClaimInvalid) {
		t.Fatalf("expected ErrClaimInvalid, got %v", err)
	}
}

func TestVerifier_ExpiredToken(t *testing.T) {
	ks := newTestKeySet(t, "key-1")
	v := ks.verifier()

	token := ks.sign(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	_, err := v.Verify(context.Background(), token)
	if !errors.Is(err, ErrClaimInvalid) {
		t.Fatalf("expected ErrClaimInvalid, got %v", err)
	}
}

func TestVerifier_MissingSubject(t *testing.T) {
	ks := newTestKeySet(t, "key-1")
	v := ks.verifier()

	token := ks.sign(t, jwt.MapClaims{"sub": ""})
	_, err := v.Verify(context.Background(), token)
	if !errors.Is(err, ErrClaimInvalid) {
		t.Fatalf("expected ErrClaimInvalid, got %v", err)
	}
}

func TestVerifier_GarbageToken(t *testing.T) {
	ks := newTestKeySet(t, "key-1")
	v := ks.verifier()

	_, err := v.Verify(context.Background(), "not.a.jwt")
	if err == nil {
		t.Fatal("expected rejection of malformed token")
	}
	if !IsAuthFailure(err) {
		t.Errorf("expected an authentication failure, got %v", err)
	}
}

func TestVerifier_TamperedSignature(t *testing.T) {
	ks := newTestKeySet(t, "key-1")
	v := ks.verifier()

	// Sign with a different key but reuse the published kid
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating rsa key: %v", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"sub": "abc123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "key-1"
	signed, err := token.SignedString(other)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	_, err = v.Verify(context.Background(), signed)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}
