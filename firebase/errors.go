package firebase

import "errors"

// Every error returned by Gate.Authorize wraps exactly one of these.
// Callers map all of them to the same denial; the distinction is for logs and tests.
var (
	// ErrNoCredentials is returned when the Authorization header is absent or not a bearer token
	ErrNoCredentials = errors.New("missing bearer token")

	// ErrMalformedToken is returned when the header or payload cannot be decoded
	ErrMalformedToken = errors.New("malformed token")

	// ErrKeySource is returned when signing keys cannot be obtained
	ErrKeySource = errors.New("signing keys unavailable")

	// ErrUnsupportedAlgorithm is returned when the header alg is not RS256
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

	// ErrUnknownKey is returned when the header kid is not in the key set
	ErrUnknownKey = errors.New("unknown signing key")

	// ErrSignature is returned when the signature does not verify
	ErrSignature = errors.New("invalid signature")

	// ErrClaimRejected is returned when a claim check fails
	ErrClaimRejected = errors.New("claim rejected")

	// ErrPredicateRejected is returned when the caller-supplied predicate returns false
	ErrPredicateRejected = errors.New("predicate rejected")

	// ErrInternalFault is returned when verification panics
	ErrInternalFault = errors.New("internal verification fault")
)

// Reason returns a short, stable label for err suitable for metrics
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNoCredentials):
		return "no_credentials"
	case errors.Is(err, ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, ErrKeySource):
		return "key_source"
	case errors.Is(err, ErrUnsupportedAlgorithm):
		return "unsupported_algorithm"
	case errors.Is(err, ErrUnknownKey):
		return "unknown_key"
	case errors.Is(err, ErrSignature):
		return "signature"
	case errors.Is(err, ErrClaimRejected):
		return "claim_rejected"
	case errors.Is(err, ErrPredicateRejected):
		return "predicate_rejected"
	default:
		return "internal"
	}
}
