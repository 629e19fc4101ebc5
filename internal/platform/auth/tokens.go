package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrTokenInvalid covers malformed, expired, wrongly typed and revoked tokens.
var ErrTokenInvalid = errors.New("token is invalid or expired")

type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
	UserID    int64  `json:"user_id"`
	// IssuedAtMicro refines iat so a cutoff recorded in the same second as
	// issuance still orders correctly.
	IssuedAtMicro int64 `json:"iat_us"`
}

// Issued returns the most precise issue time available.
func (c *Claims) Issued() time.Time {
	if c.IssuedAtMicro > 0 {
		return time.UnixMicro(c.IssuedAtMicro)
	}
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

type TokenConfig struct {
	SigningKey []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Rotate makes a refresh return a new refresh token and revoke the
	// one that was presented.
	Rotate bool
}

// TokenPair is the response of a successful login.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RefreshResult is the response of a refresh. Refresh is empty unless
// rotation is enabled.
type RefreshResult struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// TokenIssuer signs and verifies HS256 access/refresh tokens and consults
// the revocation store on every verification.
type TokenIssuer struct {
	cfg   TokenConfig
	store RevocationStore
	now   func() time.Time
}

func NewTokenIssuer(cfg TokenConfig, store RevocationStore) *TokenIssuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 5 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 24 * time.Hour
	}
	return &TokenIssuer{cfg: cfg, store: store, now: time.Now}
}

// Issue creates a fresh access/refresh pair for userID.
func (t *TokenIssuer) Issue(userID int64) (*TokenPair, error) {
	access, err := t.sign(userID, TokenTypeAccess, t.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := t.sign(userID, TokenTypeRefresh, t.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func (t *TokenIssuer) sign(userID int64, tokenType string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    t.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenType:     tokenType,
		UserID:        userID,
		IssuedAtMicro: now.UnixMicro(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// Parse verifies raw and returns its claims. wantType restricts the token
// type; an empty wantType accepts both. Store failures are returned as-is;
// every other failure is ErrTokenInvalid.
func (t *TokenIssuer) Parse(ctx context.Context, raw, wantType string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return t.cfg.SigningKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.ID == "" || claims.UserID <= 0 || claims.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}
	if wantType != "" && claims.TokenType != wantType {
		return nil, ErrTokenInvalid
	}

	revoked, err := t.store.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenInvalid
	}

	cutoff, ok, err := t.store.UserCutoff(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if ok && claims.Issued().Before(cutoff) {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Rotate issues a new access token for a verified refresh token. With
// rotation enabled the presented refresh token is revoked and replaced.
func (t *TokenIssuer) Rotate(ctx context.Context, refresh *Claims) (*RefreshResult, error) {
	access, err := t.sign(refresh.UserID, TokenTypeAccess, t.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	res := &RefreshResult{Access: access}
	if !t.cfg.Rotate {
		return res, nil
	}

	if err := t.Revoke(ctx, refresh); err != nil {
		return nil, err
	}
	res.Refresh, err = t.sign(refresh.UserID, TokenTypeRefresh, t.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Revoke blacklists a single token until its natural expiry.
func (t *TokenIssuer) Revoke(ctx context.Context, claims *Claims) error {
	expiresAt := t.now().Add(t.cfg.RefreshTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return t.store.Revoke(ctx, claims.ID, expiresAt)
}

// RevokeUser invalidates every token issued to userID so far.
func (t *TokenIssuer) RevokeUser(ctx context.Context, userID int64) error {
	retain := t.cfg.RefreshTTL
	if t.cfg.AccessTTL > retain {
		retain = t.cfg.AccessTTL
	}
	return t.store.RevokeAllForUser(ctx, userID, t.now(), retain)
}
