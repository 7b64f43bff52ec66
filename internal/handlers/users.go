// users.go — event user seeding and listing (admin only). Seeding is the
// routine that enumerates every (role × association) tuple for an event; the
// interesting part lives in internal/schedule.
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/robogatedev/tournament-server/internal/models"
	"github.com/robogatedev/tournament-server/internal/schedule"
)

// SeedEventUsers handles POST /api/v1/events/:eventId/users. The response is
// the only place the plaintext passwords ever appear — print the slips from
// it.
func SeedEventUsers(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		eventID, err := paramUUID(c, "eventId")
		if err != nil {
			return fail(c, err)
		}

		var event models.Event
		if err := db.First(&event, "id = ?", eventID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "error": "not-found"})
		}

		credentials, err := schedule.SeedEventUsers(c.Context(), db, eventID)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"ok":          true,
			"credentials": credentials,
		})
	}
}

// UserResponse is the JSON shape of a seeded user, without its hash.
type UserResponse struct {
	ID               string  `json:"id"`
	Role             string  `json:"role"`
	AssociationType  *string `json:"associationType,omitempty"`
	AssociationValue *string `json:"associationValue,omitempty"`
	IsAdmin          bool    `json:"isAdmin"`
}

// ListEventUsers handles GET /api/v1/events/:eventId/users.
func ListEventUsers(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		eventID, err := paramUUID(c, "eventId")
		if err != nil {
			return fail(c, err)
		}

		var users []models.User
		if err := db.Where("event_id = ?", eventID).Order("role").Find(&users).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "failed to fetch users"})
		}

		resp := make([]UserResponse, 0, len(users))
		for _, u := range users {
			resp = append(resp, UserResponse{
				ID:               u.ID.String(),
				Role:             string(u.Role),
				AssociationType:  (*string)(u.AssociationType),
				AssociationValue: u.AssociationValue,
				IsAdmin:          u.IsAdmin,
			})
		}
		return c.JSON(resp)
	}
}
