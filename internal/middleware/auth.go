// Package middleware provides the HTTP middleware shared by every route: structured logging,
// caller identity, rate limiting, tracing and metrics.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"penfeed/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	TokenIssuer   = "penfeed-api"
	TokenAudience = "penfeed-client"
	TokenTTL      = 7 * 24 * time.Hour

	// TokenCookie carries the token for browser form flows.
	TokenCookie = "penfeed_token"
	// LoginPath is where anonymous callers are sent.
	LoginPath = "/auth/login/"

	blacklistPrefix = "blacklist:"
)

var jwtSecret []byte

// InitMiddleware configures the signing secret used to issue and verify tokens.
func InitMiddleware(cfg *config.Config) {
	jwtSecret = []byte(cfg.JWTSecret)
}

// TokenClaims is the verified content of an access token.
type TokenClaims struct {
	UserID    uint
	Username  string
	JTI       string
	ExpiresAt time.Time
}

// IssueToken signs an access token for the given user.
func IssueToken(userID uint, username string) (string, error) {
	if len(jwtSecret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      now.Add(TokenTTL).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseToken verifies signature, issuer, audience and expiry.
func ParseToken(raw string) (*TokenClaims, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || id == 0 {
		return nil, errors.New("invalid subject")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("invalid expiry")
	}

	username, _ := claims["username"].(string)
	jti, _ := claims["jti"].(string)

	return &TokenClaims{
		UserID:    uint(id),
		Username:  username,
		JTI:       jti,
		ExpiresAt: exp.Time,
	}, nil
}

// RevokeToken blacklists the token id until the token would have expired anyway.
func RevokeToken(ctx context.Context, rdb *redis.Client, claims *TokenClaims) error {
	if rdb == nil || claims == nil || claims.JTI == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return rdb.Set(ctx, blacklistPrefix+claims.JTI, "1", ttl).Err()
}

func isRevoked(ctx context.Context, rdb *redis.Client, jti string) bool {
	if rdb == nil || jti == "" {
		return false
	}
	n, err := rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		Logger.WarnContext(ctx, "token blacklist lookup failed", "error", err)
		return false
	}
	return n > 0
}

func tokenFromRequest(c *fiber.Ctx) string {
	if h := c.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Cookies(TokenCookie)
}

// Identity resolves the caller from the request token. It never rejects: a missing,
// invalid, expired or revoked token leaves the request anonymous.
func Identity(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := tokenFromRequest(c)
		if raw == "" {
			return c.Next()
		}

		claims, err := ParseToken(raw)
		if err != nil {
			return c.Next()
		}
		if isRevoked(c.UserContext(), rdb, claims.JTI) {
			return c.Next()
		}

		c.Locals("userID", claims.UserID)
		c.Locals("claims", claims)
		c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, claims.UserID))
		return c.Next()
	}
}

// UserID returns the authenticated caller, or 0 for anonymous requests.
func UserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals("userID").(uint); ok {
		return id
	}
	return 0
}

// Claims returns the verified token of the caller, if any.
func Claims(c *fiber.Ctx) *TokenClaims {
	claims, _ := c.Locals("claims").(*TokenClaims)
	return claims
}

// LoginURL builds the login redirect target that returns to next after signing in.
func LoginURL(next string) string {
	if next == "" {
		return LoginPath
	}
	return LoginPath + "?next=" + strings.ReplaceAll(url.QueryEscape(next), "%2F", "/")
}

// RedirectToLogin sends the caller to the login page, preserving the requested URL.
func RedirectToLogin(c *fiber.Ctx) error {
	return c.Redirect(LoginURL(c.OriginalURL()), fiber.StatusFound)
}

// LoginRequired redirects anonymous callers to the login page.
func LoginRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) == 0 {
			return RedirectToLogin(c)
		}
		return c.Next()
	}
}
