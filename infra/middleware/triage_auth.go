package middleware

import (
	"fmt"
	"strings"
	"time"

	"triage_server/pkg/apperr"
	"triage_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	LocalUserID    = "user_id"
	LocalUserEmail = "user_email"

	jwtLeeway = time.Minute
)

// JWTAuth validates HS256 bearer tokens and stores the "sub" claim as a
// uuid.UUID under LocalUserID. An empty secret disables authentication.
func JWTAuth(secret string) fiber.Handler {
	if secret == "" {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(jwtLeeway),
	)
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		raw := bearerToken(c.Get(fiber.HeaderAuthorization))
		if raw == "" {
			return response.FromError(c, apperr.Unauthorized("missing authorization"))
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(raw, claims, keyFunc)
		if err != nil || !token.Valid {
			return response.FromError(c, apperr.InvalidToken("invalid token"))
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			return response.FromError(c, apperr.InvalidToken("missing user id in token"))
		}
		userID, err := uuid.Parse(sub)
		if err != nil {
			return response.FromError(c, apperr.InvalidToken("invalid user id format"))
		}

		c.Locals(LocalUserID, userID)
		if email, ok := claims["email"].(string); ok {
			c.Locals(LocalUserEmail, email)
		}
		return c.Next()
	}
}

// UserID returns the authenticated user, if any.
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(LocalUserID).(uuid.UUID)
	return id, ok
}

// SignToken issues an HS256 token for userID. Used by tooling and tests.
func SignToken(secret string, userID uuid.UUID, claims jwt.MapClaims) (string, error) {
	if claims == nil {
		claims = jwt.MapClaims{}
	}
	claims["sub"] = userID.String()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
