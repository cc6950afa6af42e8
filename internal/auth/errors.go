package auth

import "errors"

// Verification and resolution failure kinds. Everything except
// ErrPersistence is an authentication failure and is normalized to a 401
// at the API boundary; ErrPersistence is a system fault and maps to a 500.
var (
	// ErrMissingHeader is returned when no Authorization header is present
	ErrMissingHeader = errors.New("missing authorization header")

	// ErrMalformedHeader is returned when the Authorization header is not
	// exactly "Bearer <token>"
	ErrMalformedHeader = errors.New("malformed authorization header")

	// ErrMalformedToken is returned when the token is not a parseable JWT
	ErrMalformedToken = errors.New("malformed token")

	// ErrKeyNotFound is returned when no signing key matches the token's key id
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrSignatureInvalid is returned when the token signature does not verify
	ErrSignatureInvalid = errors.New("token signature invalid")

	// ErrClaimInvalid is returned when a required claim is missing, expired,
	// or does not match the configured issuer/audience
	ErrClaimInvalid = errors.New("token claim invalid")

	// ErrUpstreamUnavailable is returned when the key-set endpoint cannot be
	// reached; callers surface it as an authentication failure but it is
	// logged distinctly server-side
	ErrUpstreamUnavailable = errors.New("key-set endpoint unavailable")

	// ErrPersistence is returned when the identity upsert fails. It is a
	// system fault, not a credential problem; the request fails closed.
	ErrPersistence = errors.New("identity persistence failure")

	// ErrNoIdentity is returned when no resolved identity is attached to a context
	ErrNoIdentity = errors.New("no authenticated identity in context")
)

// IsAuthFailure reports whether the error is a credential problem rather
// than a system fault
func IsAuthFailure(err error) bool {
	switch {
	case errors.Is(err, ErrMissingHeader),
		errors.Is(err, ErrMalformedHeader),
		errors.Is(err, ErrMalformedToken),
		errors.Is(err, ErrKeyNotFound),
		errors.Is(err, ErrSignatureInvalid),
		errors.Is(err, ErrClaimInvalid),
		errors.Is(err, ErrUpstreamUnavailable):
		return true
	}
	return false
}

// IsInvalidArgument reports whether the error is a malformed-request problem
// (header shape) as opposed to a failed credential
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrMalformedHeader)
}

// FailureKind returns a short label for a verification failure, used for
// logging and metrics; it never reaches API clients
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrMissingHeader):
		return "missing_header"
	case errors.Is(err, ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, ErrKeyNotFound):
		return "key_not_found"
	case errors.Is(err, ErrSignatureInvalid):
		return "signature_invalid"
	case errors.Is(err, ErrClaimInvalid):
		return "claim_invalid"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	default:
		return "other"
	}
}
