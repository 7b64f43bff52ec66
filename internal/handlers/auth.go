package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/robogatedev/tournament-server/internal/config"
	"github.com/robogatedev/tournament-server/internal/middleware"
	"github.com/robogatedev/tournament-server/internal/models"
	"github.com/robogatedev/tournament-server/internal/roles"
)

// LoginRequest identifies a seeded event credential: the event, the role,
// and — for scoped roles — the association the volunteer works. There are no
// usernames; the (event, role, association) tuple is the identity.
type LoginRequest struct {
	EventID          string  `json:"eventId"`
	Role             string  `json:"role"`
	AssociationType  *string `json:"associationType"`
	AssociationValue *string `json:"associationValue"`
	Password         string  `json:"password"`
}

// LoginResponse carries the signed token plus the identity it was issued to.
type LoginResponse struct {
	Token            string  `json:"token"`
	Role             string  `json:"role"`
	AssociationType  *string `json:"associationType,omitempty"`
	AssociationValue *string `json:"associationValue,omitempty"`
}

// Login handles POST /auth/login: exchanges a seeded credential for a JWT.
// Responses for a wrong password and an unknown tuple are identical on
// purpose.
func Login(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad event id"})
		}
		if !roles.Role(req.Role).IsValid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown role"})
		}

		query := db.Where("event_id = ? AND role = ?", eventID, req.Role)
		if req.AssociationType != nil && req.AssociationValue != nil {
			query = query.Where("association_type = ? AND association_value = ?",
				*req.AssociationType, *req.AssociationValue)
		} else {
			query = query.Where("association_type IS NULL")
		}

		var user models.User
		if err := query.First(&user).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
		}

		token, err := middleware.IssueToken(cfg, &user)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to issue token"})
		}

		return c.JSON(LoginResponse{
			Token:            token,
			Role:             string(user.Role),
			AssociationType:  (*string)(user.AssociationType),
			AssociationValue: user.AssociationValue,
		})
	}
}
