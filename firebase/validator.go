package firebase

import (
	"fmt"
	"time"
)

const issuerPrefix = "https://securetoken.google.com/"

// IssuerFor returns the issuer Firebase stamps on ID tokens for projectID
func IssuerFor(projectID string) string {
	return issuerPrefix + projectID
}

// Policy is the expected audience and issuer for a project
type Policy struct {
	Audience string
	Issuer   string
}

// NewPolicy builds the Policy for a Firebase project
func NewPolicy(projectID string) Policy {
	return Policy{
		Audience: projectID,
		Issuer:   IssuerFor(projectID),
	}
}

// ClaimValidator checks the temporal and identity claims of a ClaimSet
type ClaimValidator struct {
	policy Policy
	now    func() time.Time
}

// NewClaimValidator creates a validator; now defaults to time.Now
func NewClaimValidator(policy Policy, now func() time.Time) *ClaimValidator {
	if now == nil {
		now = time.Now
	}
	return &ClaimValidator{policy: policy, now: now}
}

// Validate reports whether every claim rule holds
func (v *ClaimValidator) Validate(claims *ClaimSet) bool {
	return v.Check(claims) == nil
}

// Check returns ErrClaimRejected wrapped with the first rule that failed
func (v *ClaimValidator) Check(claims *ClaimSet) error {
	if claims == nil {
		return fmt.Errorf("%w: no claims", ErrClaimRejected)
	}

	now := v.now().UnixMilli()

	exp, ok := claims.Expiry.Millis()
	if !ok || !IsFuture(exp, now) {
		return fmt.Errorf("%w: exp", ErrClaimRejected)
	}

	iat, ok := claims.IssuedAt.Millis()
	if !ok || !IsPast(iat, now) {
		return fmt.Errorf("%w: iat", ErrClaimRejected)
	}

	authTime, ok := claims.AuthTime.Millis()
	if !ok || !IsPast(authTime, now) {
		return fmt.Errorf("%w: auth_time", ErrClaimRejected)
	}

	if claims.Audience != v.policy.Audience {
		return fmt.Errorf("%w: aud", ErrClaimRejected)
	}

	if claims.Issuer != v.policy.Issuer {
		return fmt.Errorf("%w: iss", ErrClaimRejected)
	}

	if claims.Subject == "" {
		return fmt.Errorf("%w: sub", ErrClaimRejected)
	}

	return nil
}
