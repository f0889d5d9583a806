// Package auth implements the Token Verifier (spec.md §4.1): RSA-SHA256
// JWT verification against a cached, cooldown-limited, remote JSON key
// set, with claim-set enforcement matching the arena's access-token
// contract.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"usion-arena/server/internal/telemetry"
)

// Config tunes the verifier's expected claims and JWKS cache behavior.
type Config struct {
	JWKSURL        string
	ExpectedIssuer string
	AudiencePrefix string
	CacheMaxAge    time.Duration
	CacheCooldown  time.Duration
	RequestTimeout time.Duration
}

// ClockSkew is the tolerance applied to exp/iat checks, per spec.md §4.1.
const ClockSkew = 60 * time.Second

// RequiredPermission is the permission every valid access token must carry.
const RequiredPermission = "play"

// Claims is the decoded, validated claim set returned on success.
type Claims struct {
	Subject     string
	RoomID      string
	SessionID   string
	ServiceID   string
	Expiration  time.Time
	IssuedAt    time.Time
	Permissions []string
}

// InvalidTokenError carries a diagnostic reason for a failed verification,
// per the InvalidToken error kind in spec.md §7.
type InvalidTokenError struct {
	Reason string
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("invalid token: %s", e.Reason)
}

// Options parameterizes one Verify call.
type Options struct {
	ExpectedServiceID string
	ExpectedRoomID    string
}

type rawClaims struct {
	Subject     string   `json:"sub"`
	RoomID      string   `json:"room_id"`
	SessionID   string   `json:"session_id"`
	ServiceID   string   `json:"service_id"`
	Issuer      string   `json:"iss"`
	Audience    any      `json:"aud"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Verifier validates access tokens against a live JWKS cache.
type Verifier struct {
	cfg    Config
	logger telemetry.Logger
	jwks   *keyfunc.JWKS
}

// NewVerifier starts the JWKS cache (background refresh + cooldown) and
// returns a ready Verifier.
func NewVerifier(cfg Config, logger telemetry.Logger) (*Verifier, error) {
	if cfg.JWKSURL == "" {
		return nil, errors.New("auth: JWKS_URL is required")
	}
	if cfg.CacheMaxAge <= 0 {
		cfg.CacheMaxAge = 5 * time.Minute
	}
	if cfg.CacheCooldown <= 0 {
		cfg.CacheCooldown = time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}

	client := &http.Client{Timeout: cfg.RequestTimeout}
	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		Client:              client,
		RefreshInterval:     cfg.CacheMaxAge,
		RefreshRateLimit:    cfg.CacheCooldown,
		RefreshUnknownKID:   true,
		RefreshErrorHandler: func(err error) { logger.Printf("jwks refresh failed: %v", err) },
	})
	if err != nil {
		return nil, fmt.Errorf("auth: fetching initial key set: %w", err)
	}

	return &Verifier{cfg: cfg, logger: logger, jwks: jwks}, nil
}

// Verify parses and validates tokenString against the configured issuer,
// audience prefix, and any per-call expectations. On a key-set miss or
// signature failure it force-refreshes the cache once and retries before
// giving up, per spec.md §4.1's key-rotation handling.
func (v *Verifier) Verify(ctx context.Context, tokenString string, opts Options) (Claims, error) {
	claims, err := v.parse(tokenString)
	if err != nil && isKeyRotationSignal(err) {
		v.jwks.Refresh(ctx, keyfunc.RefreshOptions{})
		claims, err = v.parse(tokenString)
	}
	if err != nil {
		return Claims{}, &InvalidTokenError{Reason: err.Error()}
	}

	return v.validateClaims(claims, opts)
}

func (v *Verifier) parse(tokenString string) (*rawClaims, error) {
	claims := &rawClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithLeeway(ClockSkew),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token not valid")
	}
	return claims, nil
}

// validateClaims checks everything jwt.ParseWithClaims doesn't already
// enforce. exp/iat/nbf are validated by the library itself during parse,
// within the ±ClockSkew leeway passed to ParseWithClaims, so they are not
// re-checked here.
func (v *Verifier) validateClaims(claims *rawClaims, opts Options) (Claims, error) {
	if claims.Issuer != v.cfg.ExpectedIssuer {
		return Claims{}, &InvalidTokenError{Reason: "issuer mismatch"}
	}

	serviceID := opts.ExpectedServiceID
	if serviceID == "" {
		serviceID = claims.ServiceID
	}
	expectedAud := v.cfg.AudiencePrefix + serviceID
	if !audienceContains(claims.Audience, expectedAud) {
		return Claims{}, &InvalidTokenError{Reason: "audience mismatch"}
	}

	if !containsPermission(claims.Permissions, RequiredPermission) {
		return Claims{}, &InvalidTokenError{Reason: "missing play permission"}
	}
	if claims.SessionID == "" {
		return Claims{}, &InvalidTokenError{Reason: "missing session_id"}
	}
	if opts.ExpectedRoomID != "" && claims.RoomID != opts.ExpectedRoomID {
		return Claims{}, &InvalidTokenError{Reason: "room_id mismatch"}
	}

	out := Claims{
		Subject:     claims.Subject,
		RoomID:      claims.RoomID,
		SessionID:   claims.SessionID,
		ServiceID:   claims.ServiceID,
		Permissions: claims.Permissions,
	}
	if claims.ExpiresAt != nil {
		out.Expiration = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

func audienceContains(aud any, expected string) bool {
	switch v := aud.(type) {
	case string:
		return v == expected
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == expected {
				return true
			}
		}
	case []string:
		for _, s := range v {
			if s == expected {
				return true
			}
		}
	}
	return false
}

func containsPermission(perms []string, want string) bool {
	for _, p := range perms {
		if p == want {
			return true
		}
	}
	return false
}

func isKeyRotationSignal(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "kid") ||
		errors.Is(err, jwt.ErrTokenSignatureInvalid) ||
		strings.Contains(msg, "signature is invalid") ||
		strings.Contains(msg, "unable to find key")
}
