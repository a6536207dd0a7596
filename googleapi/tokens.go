// Package googleapi calls Google Cloud REST APIs on behalf of the portal's
// service account.
package googleapi

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// OAuth scopes used by the portal
const (
	ScopeIdentityToolkit   = "https://www.googleapis.com/auth/identitytoolkit"
	ScopeMonitoringRead    = "https://www.googleapis.com/auth/monitoring.read"
	ScopeDatastore         = "https://www.googleapis.com/auth/datastore"
	ScopeHosting           = "https://www.googleapis.com/auth/firebase.hosting"
	ScopeHostingReadOnly   = "https://www.googleapis.com/auth/firebase.hosting.readonly"
	DefaultTokenURL        = "https://www.googleapis.com/oauth2/v4/token"
	jwtBearerGrantType     = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	assertionLifetime      = time.Hour
	tokenExpiryLeeway      = time.Minute
	maxTokenResponseBytes  = 1 << 16
	defaultExchangeTimeout = 30 * time.Second
)

// ErrTokenUnavailable is returned when no access token could be obtained
var ErrTokenUnavailable = errors.New("access token unavailable")

// TokenSource produces OAuth2 access tokens for a set of scopes
type TokenSource interface {
	Token(ctx context.Context, scopes ...string) (string, error)
}

// StaticTokenSource always returns the same token. The Firebase emulators accept "owner".
type StaticTokenSource string

// Token implements TokenSource
func (s StaticTokenSource) Token(context.Context, ...string) (string, error) {
	return string(s), nil
}

// TokenResponse represents the OAuth2 token endpoint response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// ServiceAccountTokenSource exchanges a self-signed RS256 assertion for an
// access token and caches the result per scope set until shortly before expiry.
type ServiceAccountTokenSource struct {
	email      string
	key        *rsa.PrivateKey
	tokenURL   string
	httpClient *http.Client
	timeout    time.Duration
	now        func() time.Time

	mu     sync.Mutex
	tokens map[string]cachedToken
	group  singleflight.Group
}

// NewServiceAccountTokenSource creates a token source for the given service account
func NewServiceAccountTokenSource(email string, key *rsa.PrivateKey, tokenURL string, httpClient *http.Client) *ServiceAccountTokenSource {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultExchangeTimeout}
	}
	timeout := httpClient.Timeout
	if timeout <= 0 {
		timeout = defaultExchangeTimeout
	}
	return &ServiceAccountTokenSource{
		email:      email,
		key:        key,
		tokenURL:   tokenURL,
		httpClient: httpClient,
		timeout:    timeout,
		now:        time.Now,
		tokens:     make(map[string]cachedToken),
	}
}

// ParsePrivateKey parses a PEM private key as stored in environment
// variables, where newlines are commonly escaped as \n.
func ParsePrivateKey(raw string) (*rsa.PrivateKey, error) {
	if raw == "" {
		return nil, errors.New("private key not found")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(strings.ReplaceAll(raw, `\n`, "\n")))
	if err != nil {
		return nil, fmt.Errorf("invalid service account key: %w", err)
	}
	return key, nil
}

// Token returns an access token valid for scopes
func (s *ServiceAccountTokenSource) Token(ctx context.Context, scopes ...string) (string, error) {
	scope := scopeKey(scopes)

	s.mu.Lock()
	if tok, ok := s.tokens[scope]; ok && s.now().Before(tok.expiresAt) {
		s.mu.Unlock()
		return tok.value, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(scope, func() (interface{}, error) {
		return s.exchange(ctx, scope)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// exchange runs once per flight on behalf of every waiting caller, so it
// must not inherit the first caller's cancellation.
func (s *ServiceAccountTokenSource) exchange(ctx context.Context, scope string) (string, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	now := s.now()
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"scope": scope,
		"iss":   s.email,
		"sub":   s.email,
		"aud":   s.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("%w: sign assertion: %v", ErrTokenUnavailable, err)
	}

	data := url.Values{
		"grant_type": {jwtBearerGrantType},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d, body: %s", ErrTokenUnavailable, resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: no access_token in response", ErrTokenUnavailable)
	}

	lifetime := time.Duration(tokenResp.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = assertionLifetime
	}

	s.mu.Lock()
	s.tokens[scope] = cachedToken{
		value:     tokenResp.AccessToken,
		expiresAt: now.Add(lifetime - tokenExpiryLeeway),
	}
	s.mu.Unlock()

	return tokenResp.AccessToken, nil
}

// scopeKey normalizes scopes into the space-separated form sent to Google
func scopeKey(scopes []string) string {
	sorted := append([]string(nil), scopes...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}
