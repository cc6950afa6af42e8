package auth

import "time"

// Claims represents the validated claims extracted from a bearer token.
// Produced by the verifier, consumed immediately to drive the identity
// upsert, never persisted.
type Claims struct {
	// Subject - unique identifier for the user at the provider
	Subject string

	// Email address of the user, if the provider includes it
	Email string

	// Name is the user's display name, if the provider includes it
	Name string

	// Issuer is the provider that issued the token
	Issuer string

	// Audience is the client ID the token was issued for
	Audience string

	// IssuedAt is when the token was issued
	IssuedAt time.Time

	// ExpiresAt is when the token expires
	ExpiresAt time.Time
}

// IsExpired checks if the token has expired
func (c *Claims) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}
