// Package firebase verifies Firebase ID tokens and decides whether a request
// may proceed. Verification is stateless apart from the shared key cache.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Predicate is an authorization rule evaluated on verified claims
type Predicate func(claims *ClaimSet) bool

// RequireAdmin admits only tokens carrying the custom claim admin=true
func RequireAdmin(claims *ClaimSet) bool {
	return claims.IsAdmin()
}

// Recorder receives verification telemetry
type Recorder interface {
	RecordKeyFetch(result string)
	RecordDecision(outcome, reason string)
}

// NopRecorder discards all telemetry
type NopRecorder struct{}

func (NopRecorder) RecordKeyFetch(string)         {}
func (NopRecorder) RecordDecision(string, string) {}

// GateConfig holds configuration for Gate
type GateConfig struct {
	ProjectID string

	// EmulatorMode skips key lookup and signature verification entirely.
	// Only the claim rules and the predicate are applied.
	EmulatorMode bool

	Now      func() time.Time
	Recorder Recorder
}

// Gate runs the full verification pipeline for a single request
type Gate struct {
	keys      KeyProvider
	validator *ClaimValidator
	verifier  *SignatureVerifier
	emulator  bool
	recorder  Recorder
}

// NewGate creates a Gate. keys may be nil only in emulator mode.
func NewGate(cfg GateConfig, keys KeyProvider) *Gate {
	if cfg.Recorder == nil {
		cfg.Recorder = NopRecorder{}
	}
	return &Gate{
		keys:      keys,
		validator: NewClaimValidator(NewPolicy(cfg.ProjectID), cfg.Now),
		verifier:  NewSignatureVerifier(),
		emulator:  cfg.EmulatorMode,
		recorder:  cfg.Recorder,
	}
}

// Authorize verifies the bearer token in authHeader and applies predicate.
// A nil predicate admits any authenticated caller. On success the verified
// claims are returned; on any failure claims is nil and err wraps one of the
// package sentinels.
func (g *Gate) Authorize(ctx context.Context, authHeader string, predicate Predicate) (claims *ClaimSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims = nil
			err = fmt.Errorf("%w: %v", ErrInternalFault, r)
		}
		if err != nil {
			g.recorder.RecordDecision("deny", Reason(err))
		} else {
			g.recorder.RecordDecision("allow", Reason(nil))
		}
	}()

	token, ok := ExtractBearer(authHeader)
	if !ok {
		return nil, ErrNoCredentials
	}

	header, err := ParseHeader(token)
	if err != nil {
		return nil, err
	}
	claims, err = ParseClaims(token)
	if err != nil {
		return nil, err
	}

	if g.emulator {
		if err := g.validator.Check(claims); err != nil {
			return nil, err
		}
	} else {
		claims, err = g.verify(ctx, token, header, claims)
		if err != nil {
			return nil, err
		}
	}

	if predicate != nil && !predicate(claims) {
		return nil, ErrPredicateRejected
	}

	return claims, nil
}

func (g *Gate) verify(ctx context.Context, token string, header *Header, claims *ClaimSet) (*ClaimSet, error) {
	if g.keys == nil {
		return nil, fmt.Errorf("%w: no key provider configured", ErrKeySource)
	}

	keys, err := g.keys.Keys(ctx)
	if err != nil {
		if !errors.Is(err, ErrKeySource) {
			err = fmt.Errorf("%w: %v", ErrKeySource, err)
		}
		return nil, err
	}

	if header.Algorithm != AlgorithmRS256 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, header.Algorithm)
	}

	key, ok := keys[header.KeyID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, header.KeyID)
	}

	if err := g.validator.Check(claims); err != nil {
		return nil, err
	}

	return g.verifier.Verify(token, key)
}
