package firebase

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/vocabustudy/admin-portal/cache"
)

const (
	// DefaultKeysURL publishes the X.509 certificates that sign Firebase ID tokens
	DefaultKeysURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

	// CustomKeyID is the kid under which an override key is served
	CustomKeyID = "custom-key"

	minKeyTTL           = 10 * time.Second
	maxKeyResponseBytes = 1 << 20
)

// KeySet maps key ids to RSA public keys
type KeySet map[string]*rsa.PublicKey

// KeyProvider supplies the current signing keys
type KeyProvider interface {
	Keys(ctx context.Context) (KeySet, error)
}

// KeySourceConfig holds configuration for KeySource
type KeySourceConfig struct {
	URL          string
	CustomKey    string
	FetchTimeout time.Duration
	DefaultTTL   time.Duration
	HTTPClient   *http.Client
	Recorder     Recorder
}

// KeySource resolves the signing key set, either from a pinned override or
// from the shared response cache, fetching from the provider on a miss.
type KeySource struct {
	url          string
	cache        cache.ResponseCache
	httpClient   *http.Client
	fetchTimeout time.Duration
	defaultTTL   time.Duration
	override     KeySet
	recorder     Recorder
	logger       *zap.Logger
	group        singleflight.Group
}

// NewKeySource creates a KeySource. An unparseable override key is a configuration error.
func NewKeySource(cfg KeySourceConfig, responseCache cache.ResponseCache, logger *zap.Logger) (*KeySource, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultKeysURL
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = time.Hour
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.FetchTimeout}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = NopRecorder{}
	}
	if responseCache == nil {
		responseCache = cache.NewMemoryCache(16)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &KeySource{
		url:          cfg.URL,
		cache:        responseCache,
		httpClient:   cfg.HTTPClient,
		fetchTimeout: cfg.FetchTimeout,
		defaultTTL:   cfg.DefaultTTL,
		recorder:     cfg.Recorder,
		logger:       logger,
	}

	if cfg.CustomKey != "" {
		key, err := ParseCustomKey(cfg.CustomKey)
		if err != nil {
			return nil, err
		}
		s.override = KeySet{CustomKeyID: key}
	}

	return s, nil
}

// ParseCustomKey parses a PEM public key or certificate supplied through the
// environment. Single quotes are stripped and literal \n sequences expanded.
func ParseCustomKey(raw string) (*rsa.PublicKey, error) {
	pem := strings.ReplaceAll(raw, "'", "")
	pem = strings.ReplaceAll(pem, `\n`, "\n")
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, fmt.Errorf("invalid custom key: %w", err)
	}
	return key, nil
}

// HasOverride reports whether a pinned key is in use
func (s *KeySource) HasOverride() bool {
	return s.override != nil
}

// Keys returns the current key set
func (s *KeySource) Keys(ctx context.Context) (KeySet, error) {
	if s.override != nil {
		return s.override, nil
	}

	body, ok, err := s.cache.Get(ctx, s.url)
	if err != nil {
		s.logger.Warn("key cache read failed, fetching", zap.Error(err))
	}
	if ok {
		keys, err := parseKeySet(body)
		if err == nil {
			s.recorder.RecordKeyFetch("cache_hit")
			return keys, nil
		}
		s.logger.Warn("cached key set unreadable, fetching", zap.Error(err))
	}

	v, err, _ := s.group.Do(s.url, func() (interface{}, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		s.recorder.RecordKeyFetch("error")
		return nil, err
	}
	s.recorder.RecordKeyFetch("fetched")
	return v.(KeySet), nil
}

// fetch downloads, parses and stores the key set. It runs detached from the
// caller's cancellation so that callers sharing the flight are not failed by one another.
func (s *KeySource) fetch(ctx context.Context) (KeySet, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySource, err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrKeySource, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeyResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySource, err)
	}

	keys, err := parseKeySet(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySource, err)
	}

	ttl := keyCacheTTL(resp.Header, s.defaultTTL)
	if err := s.cache.Set(ctx, s.url, body, ttl); err != nil {
		s.logger.Warn("key cache write failed", zap.Error(err))
	}

	s.logger.Debug("signing keys fetched",
		zap.Int("keys", len(keys)),
		zap.Duration("ttl", ttl),
	)

	return keys, nil
}

// parseKeySet decodes a {kid: PEM certificate} document
func parseKeySet(body []byte) (KeySet, error) {
	var certs map[string]string
	if err := json.Unmarshal(body, &certs); err != nil {
		return nil, fmt.Errorf("failed to decode key set: %w", err)
	}
	if len(certs) == 0 {
		return nil, errors.New("key set is empty")
	}

	keys := make(KeySet, len(certs))
	for kid, cert := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cert))
		if err != nil {
			return nil, fmt.Errorf("failed to parse key %s: %w", kid, err)
		}
		keys[kid] = key
	}
	return keys, nil
}

// keyCacheTTL derives how long a key response may be cached from its
// Cache-Control max-age less its Age, falling back to def.
func keyCacheTTL(h http.Header, def time.Duration) time.Duration {
	maxAge, ok := cacheControlMaxAge(h.Get("Cache-Control"))
	if !ok {
		return def
	}

	age, _ := strconv.Atoi(strings.TrimSpace(h.Get("Age")))
	ttl := time.Duration(maxAge-age) * time.Second
	if ttl < minKeyTTL {
		return minKeyTTL
	}
	return ttl
}

func cacheControlMaxAge(value string) (int, bool) {
	for _, directive := range strings.Split(value, ",") {
		name, arg, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(name, "max-age") {
			continue
		}
		n, err := strconv.Atoi(strings.Trim(arg, `"`))
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
