// Package middleware provides authentication, logging, rate limiting and
// metrics middleware for the HTTP server.
package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token claims checked on every request. Verification links carry their own
// audience so they never pass as access tokens.
const (
	TokenIssuer    = "campusfeed-api"
	TokenAudience  = "campusfeed-client"
	VerifyAudience = "campusfeed-email-verify"
)

// LocalUserID is the fiber.Ctx Locals key holding the authenticated user id.
const LocalUserID = "userID"

var (
	// ErrInvalidToken is returned for any token that fails verification.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrTokenExpired is returned by ParseVerificationToken for a well-formed
	// link past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// IssueToken signs an HS256 access token for userID.
func IssueToken(secret string, userID uint, ttl time.Duration) (string, error) {
	return issue(secret, userID, ttl, TokenAudience)
}

// IssueVerificationToken signs the email verification link token for userID.
func IssueVerificationToken(secret string, userID uint, ttl time.Duration) (string, error) {
	return issue(secret, userID, ttl, VerifyAudience)
}

func issue(secret string, userID uint, ttl time.Duration, audience string) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": TokenIssuer,
		"aud": audience,
		"exp": now.Add(ttl).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"jti": uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies tokenString and returns the user id in its subject.
func ParseToken(secret, tokenString string) (uint, error) {
	id, err := parse(secret, tokenString, TokenAudience)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// ParseVerificationToken verifies an email verification token. It returns
// ErrTokenExpired when only the expiry failed and ErrInvalidToken otherwise.
func ParseVerificationToken(secret, tokenString string) (uint, error) {
	return parse(secret, tokenString, VerifyAudience)
}

func parse(secret, tokenString, audience string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) &&
			!errors.Is(err, jwt.ErrTokenSignatureInvalid) &&
			!errors.Is(err, jwt.ErrTokenInvalidAudience) {
			return 0, ErrTokenExpired
		}
		return 0, ErrInvalidToken
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return 0, ErrInvalidToken
	}
	id, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", false
	}
	return token, true
}

func setUser(c *fiber.Ctx, userID uint) {
	c.Locals(LocalUserID, userID)
	c.SetUserContext(WithUserID(c.UserContext(), userID))
}

// AuthRequired rejects requests without a valid bearer token. When
// allowQueryToken is set, a ?token= parameter is accepted too, since browsers
// cannot set headers on websocket upgrades.
func AuthRequired(secret string, allowQueryToken bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok && allowQueryToken {
			token = c.Query("token")
			ok = token != ""
		}
		if !ok {
			if c.Get("Authorization") != "" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid authorization header format",
					"code":  "UNAUTHORIZED",
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authorization header required",
				"code":  "UNAUTHORIZED",
			})
		}

		userID, err := ParseToken(secret, token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
				"code":  "UNAUTHORIZED",
			})
		}

		setUser(c, userID)
		return c.Next()
	}
}

// OptionalAuth records the caller when a valid token is present and lets
// anonymous requests through unchanged.
func OptionalAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token, ok := bearerToken(c); ok {
			if userID, err := ParseToken(secret, token); err == nil {
				setUser(c, userID)
			}
		}
		return c.Next()
	}
}

// UserID returns the authenticated user id stored by AuthRequired or OptionalAuth.
func UserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(LocalUserID).(uint)
	return id, ok && id != 0
}
