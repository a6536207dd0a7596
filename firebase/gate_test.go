package firebase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vocabustudy/admin-portal/cache"
)

type staticKeys struct {
	keys KeySet
	err  error
}

func (s staticKeys) Keys(context.Context) (KeySet, error) {
	return s.keys, s.err
}

type panickingKeys struct{}

func (panickingKeys) Keys(context.Context) (KeySet, error) {
	panic("cache exploded")
}

func newTestGate(t *testing.T, now time.Time, keys KeyProvider, recorder Recorder) *Gate {
	t.Helper()
	return NewGate(GateConfig{
		ProjectID: testProjectID,
		Now:       func() time.Time { return now },
		Recorder:  recorder,
	}, keys)
}

func bearer(token string) string {
	return "Bearer " + token
}

func TestGate_Authorize(t *testing.T) {
	key, other := testKeys(t)
	now := time.Now()
	keys := staticKeys{keys: KeySet{"kid-1": &key.PublicKey}}

	tests := []struct {
		name      string
		header    func() string
		predicate Predicate
		wantErr   error
	}{
		{
			name:      "valid admin token",
			header:    func() string { return bearer(signToken(t, key, "kid-1", basePayload(now))) },
			predicate: RequireAdmin,
		},
		{
			name: "valid token without predicate",
			header: func() string {
				p := basePayload(now)
				delete(p, "admin")
				return bearer(signToken(t, key, "kid-1", p))
			},
		},
		{
			name:    "no header",
			header:  func() string { return "" },
			wantErr: ErrNoCredentials,
		},
		{
			name:    "not bearer",
			header:  func() string { return "Token " + signToken(t, key, "kid-1", basePayload(now)) },
			wantErr: ErrNoCredentials,
		},
		{
			name:    "undecodable header segment",
			header:  func() string { return "Bearer abc.def.ghi" },
			wantErr: ErrMalformedToken,
		},
		{
			name:    "unknown kid",
			header:  func() string { return bearer(signToken(t, key, "kid-404", basePayload(now))) },
			wantErr: ErrUnknownKey,
		},
		{
			name:    "missing kid",
			header:  func() string { return bearer(signToken(t, key, "", basePayload(now))) },
			wantErr: ErrUnknownKey,
		},
		{
			name: "hs256 token",
			header: func() string {
				tok := jwt.NewWithClaims(jwt.SigningMethodHS256, basePayload(now))
				tok.Header["kid"] = "kid-1"
				s, err := tok.SignedString([]byte("secret"))
				require.NoError(t, err)
				return bearer(s)
			},
			wantErr: ErrUnsupportedAlgorithm,
		},
		{
			name: "expired",
			header: func() string {
				p := basePayload(now)
				p["exp"] = now.Unix() - 100
				return bearer(signToken(t, key, "kid-1", p))
			},
			wantErr: ErrClaimRejected,
		},
		{
			name: "issued in the future",
			header: func() string {
				p := basePayload(now)
				p["iat"] = now.Unix() + 100
				return bearer(signToken(t, key, "kid-1", p))
			},
			wantErr: ErrClaimRejected,
		},
		{
			name: "authenticated in the future",
			header: func() string {
				p := basePayload(now)
				p["auth_time"] = now.Unix() + 100
				return bearer(signToken(t, key, "kid-1", p))
			},
			wantErr: ErrClaimRejected,
		},
		{
			name: "wrong audience",
			header: func() string {
				p := basePayload(now)
				p["aud"] = "hi"
				return bearer(signToken(t, key, "kid-1", p))
			},
			wantErr: ErrClaimRejected,
		},
		{
			name: "wrong issuer",
			header: func() string {
				p := basePayload(now)
				p["iss"] = "https://securetoken.google.com/hi"
				return bearer(signToken(t, key, "kid-1", p))
			},
			wantErr: ErrClaimRejected,
		},
		{
			name: "no subject",
			header: func() string {
				p := basePayload(now)
				delete(p, "sub")
				return bearer(signToken(t, key, "kid-1", p))
			},
			wantErr: ErrClaimRejected,
		},
		{
			name:    "signed by another key",
			header:  func() string { return bearer(signToken(t, other, "kid-1", basePayload(now))) },
			wantErr: ErrSignature,
		},
		{
			name: "not an admin",
			header: func() string {
				p := basePayload(now)
				p["admin"] = false
				return bearer(signToken(t, key, "kid-1", p))
			},
			predicate: RequireAdmin,
			wantErr:   ErrPredicateRejected,
		},
		{
			name: "admin claim as string",
			header: func() string {
				p := basePayload(now)
				p["admin"] = "true"
				return bearer(signToken(t, key, "kid-1", p))
			},
			predicate: RequireAdmin,
			wantErr:   ErrPredicateRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := newCountingRecorder()
			gate := newTestGate(t, now, keys, recorder)

			claims, err := gate.Authorize(context.Background(), tt.header(), tt.predicate)
			if tt.wantErr == nil {
				require.NoError(t, err)
				require.NotNil(t, claims)
				assert.Equal(t, "my-user-id", claims.Subject)
				assert.Equal(t, 1, recorder.decisions["allow:none"])
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, claims)
			assert.Equal(t, 1, recorder.decisions["deny:"+Reason(tt.wantErr)])
		})
	}
}

func TestGate_KeySourceFailureDenies(t *testing.T) {
	key, _ := testKeys(t)
	now := time.Now()
	token := bearer(signToken(t, key, "kid-1", basePayload(now)))

	t.Run("wrapped sentinel", func(t *testing.T) {
		gate := newTestGate(t, now, staticKeys{err: ErrKeySource}, nil)
		_, err := gate.Authorize(context.Background(), token, RequireAdmin)
		assert.ErrorIs(t, err, ErrKeySource)
	})

	t.Run("foreign error", func(t *testing.T) {
		gate := newTestGate(t, now, staticKeys{err: errors.New("boom")}, nil)
		_, err := gate.Authorize(context.Background(), token, RequireAdmin)
		assert.ErrorIs(t, err, ErrKeySource)
	})

	t.Run("no provider", func(t *testing.T) {
		gate := newTestGate(t, now, nil, nil)
		_, err := gate.Authorize(context.Background(), token, RequireAdmin)
		assert.ErrorIs(t, err, ErrKeySource)
	})
}

func TestGate_PanicIsDenied(t *testing.T) {
	key, _ := testKeys(t)
	now := time.Now()
	recorder := newCountingRecorder()
	gate := newTestGate(t, now, panickingKeys{}, recorder)

	claims, err := gate.Authorize(context.Background(), bearer(signToken(t, key, "kid-1", basePayload(now))), RequireAdmin)
	assert.ErrorIs(t, err, ErrInternalFault)
	assert.Nil(t, claims)
	assert.Equal(t, 1, recorder.decisions["deny:internal"])
}

func TestGate_EmulatorMode(t *testing.T) {
	key, _ := testKeys(t)
	now := time.Now()
	gate := NewGate(GateConfig{
		ProjectID:    testProjectID,
		EmulatorMode: true,
		Now:          func() time.Time { return now },
	}, panickingKeys{})

	t.Run("unsigned token passes claim checks", func(t *testing.T) {
		token := signToken(t, key, "", basePayload(now))
		parts := strings.Split(token, ".")
		unsigned := parts[0] + "." + parts[1] + "."

		claims, err := gate.Authorize(context.Background(), bearer(unsigned), RequireAdmin)
		require.NoError(t, err)
		assert.Equal(t, "my-user-id", claims.Subject)
	})

	t.Run("claims still enforced", func(t *testing.T) {
		p := basePayload(now)
		p["aud"] = "other"
		_, err := gate.Authorize(context.Background(), bearer(signToken(t, key, "", p)), RequireAdmin)
		assert.ErrorIs(t, err, ErrClaimRejected)
	})

	t.Run("predicate still enforced", func(t *testing.T) {
		p := basePayload(now)
		delete(p, "admin")
		_, err := gate.Authorize(context.Background(), bearer(signToken(t, key, "", p)), RequireAdmin)
		assert.ErrorIs(t, err, ErrPredicateRejected)
	})
}

func TestGate_EndToEndWithKeySource(t *testing.T) {
	key, _ := testKeys(t)
	now := time.Now()
	server := newKeyServer(t, map[string]string{"kid-1": certificatePEM(t, key)}, nil)

	source, err := NewKeySource(KeySourceConfig{URL: server.URL}, cache.NewMemoryCache(10), zap.NewNop())
	require.NoError(t, err)
	gate := newTestGate(t, now, source, nil)

	for i := 0; i < 3; i++ {
		claims, err := gate.Authorize(context.Background(), bearer(signToken(t, key, "kid-1", basePayload(now))), RequireAdmin)
		require.NoError(t, err)
		assert.True(t, claims.IsAdmin())
	}
	assert.Equal(t, int32(1), server.hits.Load())
}

func TestGate_CustomKeyNeedsNoNetwork(t *testing.T) {
	key, _ := testKeys(t)
	now := time.Now()
	server := newKeyServer(t, map[string]string{}, nil)

	source, err := NewKeySource(KeySourceConfig{URL: server.URL, CustomKey: publicKeyPEM(t, key)}, nil, zap.NewNop())
	require.NoError(t, err)
	gate := newTestGate(t, now, source, nil)

	_, err = gate.Authorize(context.Background(), bearer(signToken(t, key, CustomKeyID, basePayload(now))), RequireAdmin)
	require.NoError(t, err)
	assert.Equal(t, int32(0), server.hits.Load())
}

func TestReason(t *testing.T) {
	assert.Equal(t, "none", Reason(nil))
	assert.Equal(t, "unknown_key", Reason(ErrUnknownKey))
	assert.Equal(t, "claim_rejected", Reason(errors.Join(errors.New("x"), ErrClaimRejected)))
	assert.Equal(t, "internal", Reason(errors.New("other")))
}
