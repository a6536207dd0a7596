package firebase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// bearerPattern accepts exactly "Bearer " followed by three dot-separated base64url segments
var bearerPattern = regexp.MustCompile(`^Bearer ((?:[\w-]*\.){2}[\w-]*)$`)

// segmentParser is only used for its base64url segment decoding
var segmentParser = jwt.NewParser()

// Header is the decoded JOSE header of an ID token
type Header struct {
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid"`
	Type      string `json:"typ,omitempty"`
}

// NumericClaim holds a temporal claim exactly as it appeared in the payload.
// Firebase emits numbers, but auth_time has been observed as a numeric string.
type NumericClaim struct {
	raw json.RawMessage
}

// NewNumericClaim returns a claim holding seconds as a JSON number
func NewNumericClaim(seconds int64) NumericClaim {
	return NumericClaim{raw: json.RawMessage(strconv.FormatInt(seconds, 10))}
}

// UnmarshalJSON keeps the raw value; interpretation is deferred to Millis
func (n *NumericClaim) UnmarshalJSON(data []byte) error {
	n.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes the raw value back
func (n NumericClaim) MarshalJSON() ([]byte, error) {
	if len(n.raw) == 0 {
		return []byte("null"), nil
	}
	return n.raw, nil
}

// Millis converts the claim from seconds to milliseconds since the epoch.
// ok is false when the value is missing or not a number.
func (n NumericClaim) Millis() (ms int64, ok bool) {
	s := bytes.TrimSpace(n.raw)
	if len(s) == 0 {
		return 0, false
	}

	switch c := s[0]; {
	case c == '"':
		var str string
		if err := json.Unmarshal(s, &str); err != nil {
			return 0, false
		}
		secs, ok := leadingInt(str)
		if !ok || secs > math.MaxInt64/1000 || secs < math.MinInt64/1000 {
			return 0, false
		}
		return secs * 1000, true
	case c == '-' || (c >= '0' && c <= '9'):
		f, err := strconv.ParseFloat(string(s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		ms := f * 1000
		if ms >= math.MaxInt64 || ms <= math.MinInt64 {
			return 0, false
		}
		return int64(ms), true
	default:
		return 0, false
	}
}

func (n NumericClaim) numericDate() *jwt.NumericDate {
	ms, ok := n.Millis()
	if !ok {
		return nil
	}
	return jwt.NewNumericDate(time.UnixMilli(ms))
}

// leadingInt parses an optional sign and the leading run of decimal digits,
// ignoring leading whitespace and anything after the digits.
func leadingInt(s string) (int64, bool) {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ClaimSet is the decoded payload of a Firebase ID token
type ClaimSet struct {
	Expiry        NumericClaim    `json:"exp"`
	IssuedAt      NumericClaim    `json:"iat"`
	AuthTime      NumericClaim    `json:"auth_time"`
	Audience      string          `json:"aud"`
	Issuer        string          `json:"iss"`
	Subject       string          `json:"sub"`
	Admin         json.RawMessage `json:"admin,omitempty"`
	UserID        string          `json:"user_id,omitempty"`
	Email         string          `json:"email,omitempty"`
	EmailVerified bool            `json:"email_verified,omitempty"`
	Name          string          `json:"name,omitempty"`
	Picture       string          `json:"picture,omitempty"`
}

// IsAdmin reports whether the admin custom claim is the boolean true
func (c *ClaimSet) IsAdmin() bool {
	return string(bytes.TrimSpace(c.Admin)) == "true"
}

// GetExpirationTime implements jwt.Claims
func (c *ClaimSet) GetExpirationTime() (*jwt.NumericDate, error) {
	return c.Expiry.numericDate(), nil
}

// GetIssuedAt implements jwt.Claims
func (c *ClaimSet) GetIssuedAt() (*jwt.NumericDate, error) {
	return c.IssuedAt.numericDate(), nil
}

// GetNotBefore implements jwt.Claims
func (c *ClaimSet) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements jwt.Claims
func (c *ClaimSet) GetIssuer() (string, error) {
	return c.Issuer, nil
}

// GetSubject implements jwt.Claims
func (c *ClaimSet) GetSubject() (string, error) {
	return c.Subject, nil
}

// GetAudience implements jwt.Claims
func (c *ClaimSet) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}

// ExtractBearer returns the compact token from an Authorization header value
func ExtractBearer(authHeader string) (string, bool) {
	m := bearerPattern.FindStringSubmatch(authHeader)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseHeader decodes the first segment of token without verifying anything
func ParseHeader(token string) (*Header, error) {
	parts, err := splitToken(token)
	if err != nil {
		return nil, err
	}
	var header Header
	if err := decodeSegment(parts[0], &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedToken, err)
	}
	return &header, nil
}

// ParseClaims decodes the second segment of token without verifying anything
func ParseClaims(token string) (*ClaimSet, error) {
	parts, err := splitToken(token)
	if err != nil {
		return nil, err
	}
	var claims ClaimSet
	if err := decodeSegment(parts[1], &claims); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformedToken, err)
	}
	return &claims, nil
}

func splitToken(token string) ([]string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}
	return parts, nil
}

func decodeSegment(segment string, v any) error {
	raw, err := segmentParser.DecodeSegment(segment)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
