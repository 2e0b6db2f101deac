package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"penfeed/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func signClaims(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func whoAmIApp(rdb *redis.Client) *fiber.App {
	app := fiber.New()
	app.Use(Identity(rdb))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": UserID(c)})
	})
	return app
}

func whoAmI(t *testing.T, app *fiber.App, req *http.Request) uint {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		UserID uint `json:"userID"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.UserID
}

func TestIdentity(t *testing.T) {
	InitMiddleware(&config.Config{JWTSecret: testSecret})
	app := whoAmIApp(nil)

	valid, err := IssueToken(123, "leo")
	require.NoError(t, err)

	claimsFor := func(sub string, exp time.Duration, iss string) jwt.MapClaims {
		return jwt.MapClaims{
			"sub": sub,
			"iss": iss,
			"aud": TokenAudience,
			"exp": time.Now().Add(exp).Unix(),
		}
	}

	tests := []struct {
		name       string
		authHeader string
		expectedID uint
	}{
		{"Happy Path", "Bearer " + valid, 123},
		{"Missing Header", "", 0},
		{"Invalid Format", "Token " + valid, 0},
		{"Malformed Token", "Bearer not-a-jwt", 0},
		{"Expired Token", "Bearer " + signClaims(t, claimsFor("123", -time.Hour, TokenIssuer)), 0},
		{"Wrong Issuer", "Bearer " + signClaims(t, claimsFor("123", time.Hour, "someone-else")), 0},
		{"Non Numeric Subject", "Bearer " + signClaims(t, claimsFor("abc", time.Hour, TokenIssuer)), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			assert.Equal(t, tt.expectedID, whoAmI(t, app, req))
		})
	}
}

func TestIdentity_Cookie(t *testing.T) {
	InitMiddleware(&config.Config{JWTSecret: testSecret})
	app := whoAmIApp(nil)

	token, err := IssueToken(7, "ann")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
	assert.Equal(t, uint(7), whoAmI(t, app, req))
}

func TestIdentity_RevokedToken(t *testing.T) {
	InitMiddleware(&config.Config{JWTSecret: testSecret})
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := whoAmIApp(rdb)

	token, err := IssueToken(42, "kim")
	require.NoError(t, err)

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		return r
	}
	require.Equal(t, uint(42), whoAmI(t, app, req()))

	claims, err := ParseToken(token)
	require.NoError(t, err)
	require.NoError(t, RevokeToken(context.Background(), rdb, claims))

	assert.Equal(t, uint(0), whoAmI(t, app, req()))
	ttl := mr.TTL(blacklistPrefix + claims.JTI)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestParseToken_Claims(t *testing.T) {
	InitMiddleware(&config.Config{JWTSecret: testSecret})

	token, err := IssueToken(9, "zoe")
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(9), claims.UserID)
	assert.Equal(t, "zoe", claims.Username)
	assert.NotEmpty(t, claims.JTI)
	assert.WithinDuration(t, time.Now().Add(TokenTTL), claims.ExpiresAt, time.Minute)
}

func TestLoginRequired_RedirectsWithNext(t *testing.T) {
	app := fiber.New()
	app.Get("/create/", LoginRequired(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/create/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth/login/?next=/create/", resp.Header.Get("Location"))
}

func TestLoginURL(t *testing.T) {
	assert.Equal(t, LoginPath, LoginURL(""))
	assert.Equal(t, "/auth/login/?next=/posts/3/edit/", LoginURL("/posts/3/edit/"))
	assert.Equal(t, "/auth/login/?next=/follow/%3Fpage%3D2", LoginURL("/follow/?page=2"))
}
