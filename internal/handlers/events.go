// events.go — the /api/v1/events routes. Events and their divisions are
// administrative CRUD at the boundary of the coordination engine: the state
// machines read them, but the interesting lifecycle logic lives in
// internal/field and internal/judging.
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/robogatedev/tournament-server/internal/models"
)

// EventResponse is the JSON shape returned for an event. A dedicated
// response struct keeps serialization independent of the GORM model.
type EventResponse struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	StartDate string             `json:"startDate"`
	EndDate   string             `json:"endDate"`
	Status    string             `json:"status"`
	Divisions []DivisionResponse `json:"divisions,omitempty"`
}

// DivisionResponse is the JSON shape for a division.
type DivisionResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func eventResponse(event models.Event) EventResponse {
	resp := EventResponse{
		ID:        event.ID.String(),
		Name:      event.Name,
		StartDate: event.StartDate.UTC().Format(time.RFC3339),
		EndDate:   event.EndDate.UTC().Format(time.RFC3339),
		Status:    string(event.Status),
	}
	for _, d := range event.Divisions {
		resp.Divisions = append(resp.Divisions, DivisionResponse{
			ID:    d.ID.String(),
			Name:  d.Name,
			Color: d.Color,
		})
	}
	return resp
}

// CreateEventRequest is the body of POST /api/v1/events.
type CreateEventRequest struct {
	Name      string   `json:"name"`
	StartDate string   `json:"startDate"` // RFC 3339
	EndDate   string   `json:"endDate"`
	Divisions []string `json:"divisions"` // division names; at least one
}

// CreateEvent handles POST /api/v1/events (admin only). The event and its
// divisions are created in one transaction so a failed division insert never
// leaves an orphaned event.
func CreateEvent(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req CreateEventRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid request body"})
		}
		if req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "name is required"})
		}
		start, err := time.Parse(time.RFC3339, req.StartDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "startDate must be RFC 3339"})
		}
		end, err := time.Parse(time.RFC3339, req.EndDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "endDate must be RFC 3339"})
		}
		if len(req.Divisions) == 0 {
			req.Divisions = []string{"Default"}
		}

		var created models.Event
		txErr := db.Transaction(func(tx *gorm.DB) error {
			event := models.Event{
				Name:      req.Name,
				StartDate: start,
				EndDate:   end,
				Status:    models.EventStatusUpcoming,
			}
			if err := tx.Create(&event).Error; err != nil {
				return err
			}
			for _, name := range req.Divisions {
				division := models.Division{EventID: event.ID, Name: name}
				if err := tx.Create(&division).Error; err != nil {
					return err
				}
				// Each division starts with a blank phase state row.
				state := models.DivisionState{
					DivisionID:            division.ID,
					CurrentStage:          models.MatchStagePractice,
					CurrentRound:          1,
					AudienceDisplayScreen: models.AudienceScreenBlank,
				}
				if err := tx.Create(&state).Error; err != nil {
					return err
				}
				event.Divisions = append(event.Divisions, division)
			}
			created = event
			return nil
		})
		if txErr != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "failed to create event"})
		}

		return c.Status(fiber.StatusCreated).JSON(eventResponse(created))
	}
}

// GetEvent handles GET /api/v1/events/:eventId.
func GetEvent(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		eventID, err := paramUUID(c, "eventId")
		if err != nil {
			return fail(c, err)
		}

		var event models.Event
		if err := db.Preload("Divisions").First(&event, "id = ?", eventID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "error": "not-found"})
		}
		return c.JSON(eventResponse(event))
	}
}

// UpdateEventRequest is the body of PUT /api/v1/events/:eventId.
type UpdateEventRequest struct {
	Name      *string `json:"name"`
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
	Status    *string `json:"status"`
}

// UpdateEvent handles PUT /api/v1/events/:eventId (admin only).
func UpdateEvent(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		eventID, err := paramUUID(c, "eventId")
		if err != nil {
			return fail(c, err)
		}

		var event models.Event
		if err := db.First(&event, "id = ?", eventID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "error": "not-found"})
		}

		var req UpdateEventRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid request body"})
		}
		if req.Name != nil {
			event.Name = *req.Name
		}
		if req.StartDate != nil {
			start, err := time.Parse(time.RFC3339, *req.StartDate)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "startDate must be RFC 3339"})
			}
			event.StartDate = start
		}
		if req.EndDate != nil {
			end, err := time.Parse(time.RFC3339, *req.EndDate)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "endDate must be RFC 3339"})
			}
			event.EndDate = end
		}
		if req.Status != nil {
			switch models.EventStatus(*req.Status) {
			case models.EventStatusUpcoming, models.EventStatusActive, models.EventStatusCompleted:
				event.Status = models.EventStatus(*req.Status)
			default:
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "unknown status"})
			}
		}

		if err := db.Save(&event).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "failed to update event"})
		}
		return ok(c, event.ID)
	}
}

// GetEventState handles GET /api/v1/events/:eventId/state — the phase state
// of every division in the event, in one response, for clients that span
// divisions (audience display, tournament manager).
func GetEventState(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		eventID, err := paramUUID(c, "eventId")
		if err != nil {
			return fail(c, err)
		}

		var states []models.DivisionState
		err = db.
			Joins("JOIN divisions ON divisions.id = division_states.division_id").
			Where("divisions.event_id = ?", eventID).
			Find(&states).Error
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "failed to fetch event state"})
		}

		resp := make([]DivisionStateResponse, 0, len(states))
		for _, state := range states {
			resp = append(resp, divisionStateResponse(state))
		}
		return c.JSON(resp)
	}
}
