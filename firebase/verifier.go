package firebase

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// AlgorithmRS256 is the only accepted signing algorithm
const AlgorithmRS256 = "RS256"

// SignatureVerifier checks RS256 signatures against an already located key.
// Claims are not validated here.
type SignatureVerifier struct {
	parser *jwt.Parser
}

// NewSignatureVerifier creates a SignatureVerifier
func NewSignatureVerifier() *SignatureVerifier {
	return &SignatureVerifier{
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{AlgorithmRS256}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

// Verify returns the verified payload of token, or ErrSignature
func (v *SignatureVerifier) Verify(token string, key *rsa.PublicKey) (*ClaimSet, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: no key", ErrSignature)
	}

	claims := &ClaimSet{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}
	if !parsed.Valid {
		return nil, ErrSignature
	}

	return claims, nil
}
