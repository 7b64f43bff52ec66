// Package middleware contains the HTTP middleware for the tournament server:
// authentication (binding a request to a seeded event user) and role gating.
package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/robogatedev/tournament-server/internal/config"
	"github.com/robogatedev/tournament-server/internal/models"
)

// Claims is the payload of a login token. Subject holds the user's internal
// UUID; the role claim is informational — the authoritative role is always
// re-read from the user row, so a role change takes effect on the next
// request without reissuing tokens.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenTTL is how long a login token stays valid. Credentials are seeded per
// event day, so a day-scale lifetime is enough.
const TokenTTL = 18 * time.Hour

// IssueToken signs a login token for the given user.
func IssueToken(cfg *config.Config, user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
		Role: string(user.Role),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseToken verifies a login token and returns its claims.
func ParseToken(cfg *config.Config, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// LookupUser resolves a verified token subject to its user row.
func LookupUser(db *gorm.DB, subject string) (*models.User, error) {
	userID, err := uuid.Parse(subject)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Auth returns a Fiber middleware that validates the bearer token, loads the
// seeded user it names, and stores the user in the request context under
// "user" for downstream handlers.
func Auth(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing or invalid authorization header",
			})
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := ParseToken(cfg, tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}

		user, err := LookupUser(db, claims.Subject)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unknown user",
			})
		}

		c.Locals("user", user)
		return c.Next()
	}
}

// CurrentUser reads the authenticated user set by Auth. The second return is
// false when Auth did not run on this route.
func CurrentUser(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals("user").(*models.User)
	return user, ok && user != nil
}
