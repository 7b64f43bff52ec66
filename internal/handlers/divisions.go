// divisions.go — the /api/v1/divisions routes: division reads and the
// division-wide phase state. State mutations go through the field service so
// the HTTP path and the realtime path apply identical authorization and
// broadcast rules.
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/robogatedev/tournament-server/internal/field"
	"github.com/robogatedev/tournament-server/internal/middleware"
	"github.com/robogatedev/tournament-server/internal/models"
)

// DivisionStateResponse is the JSON shape of a division's phase state.
type DivisionStateResponse struct {
	DivisionID            string  `json:"divisionId"`
	ActiveMatchID         *string `json:"activeMatchId"`
	LoadedMatchID         *string `json:"loadedMatchId"`
	CurrentStage          string  `json:"currentStage"`
	CurrentRound          int     `json:"currentRound"`
	AudienceDisplayScreen string  `json:"audienceDisplayScreen"`
	AllowTeamExports      bool    `json:"allowTeamExports"`
	Completed             bool    `json:"completed"`
}

func divisionStateResponse(state models.DivisionState) DivisionStateResponse {
	resp := DivisionStateResponse{
		DivisionID:            state.DivisionID.String(),
		CurrentStage:          string(state.CurrentStage),
		CurrentRound:          state.CurrentRound,
		AudienceDisplayScreen: string(state.AudienceDisplayScreen),
		AllowTeamExports:      state.AllowTeamExports,
		Completed:             state.Completed,
	}
	if state.ActiveMatchID != nil {
		s := state.ActiveMatchID.String()
		resp.ActiveMatchID = &s
	}
	if state.LoadedMatchID != nil {
		s := state.LoadedMatchID.String()
		resp.LoadedMatchID = &s
	}
	return resp
}

// GetDivision handles GET /api/v1/divisions/:divisionId.
func GetDivision(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		divisionID, err := paramUUID(c, "divisionId")
		if err != nil {
			return fail(c, err)
		}

		var division models.Division
		if err := db.First(&division, "id = ?", divisionID).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "error": "not-found"})
		}
		return c.JSON(DivisionResponse{
			ID:    division.ID.String(),
			Name:  division.Name,
			Color: division.Color,
		})
	}
}

// GetDivisionState handles GET /api/v1/divisions/:divisionId/state.
func GetDivisionState(svc *field.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		divisionID, err := paramUUID(c, "divisionId")
		if err != nil {
			return fail(c, err)
		}
		state, err := svc.GetDivisionState(c.Context(), divisionID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(divisionStateResponse(state))
	}
}

// UpdateDivisionStateRequest is the body of PUT /divisions/:divisionId/state.
// Absent fields are left unchanged.
type UpdateDivisionStateRequest struct {
	LoadedMatchID         *string `json:"loadedMatchId"`
	CurrentStage          *string `json:"currentStage"`
	CurrentRound          *int    `json:"currentRound"`
	AudienceDisplayScreen *string `json:"audienceDisplayScreen"`
	AllowTeamExports      *bool   `json:"allowTeamExports"`
	Completed             *bool   `json:"completed"`
}

// UpdateDivisionState handles PUT /api/v1/divisions/:divisionId/state.
func UpdateDivisionState(svc *field.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, found := middleware.CurrentUser(c)
		if !found {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"ok": false, "error": "forbidden"})
		}
		divisionID, err := paramUUID(c, "divisionId")
		if err != nil {
			return fail(c, err)
		}

		var req UpdateDivisionStateRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid request body"})
		}

		patch := field.DivisionStatePatch{
			CurrentRound:     req.CurrentRound,
			AllowTeamExports: req.AllowTeamExports,
			Completed:        req.Completed,
		}
		if req.LoadedMatchID != nil {
			loaded, err := uuid.Parse(*req.LoadedMatchID)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "bad loadedMatchId"})
			}
			patch.LoadedMatchID = &loaded
		}
		if req.CurrentStage != nil {
			stage := models.MatchStage(*req.CurrentStage)
			patch.CurrentStage = &stage
		}
		if req.AudienceDisplayScreen != nil {
			screen := models.AudienceScreen(*req.AudienceDisplayScreen)
			patch.AudienceDisplayScreen = &screen
		}

		state, err := svc.UpdateDivisionState(c.Context(), user.Identity(), divisionID, patch)
		if err != nil {
			return fail(c, err)
		}
		return ok(c, state.DivisionID)
	}
}
