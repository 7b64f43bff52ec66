// judging.go — deliberation and award routes. The deliberation engine is the
// sole writer of disqualifications, the finalizer the sole writer of award
// winners; handlers only translate.
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/robogatedev/tournament-server/internal/judging"
	"github.com/robogatedev/tournament-server/internal/middleware"
	"github.com/robogatedev/tournament-server/internal/models"
)

// DeliberationResponse is the JSON shape of one deliberation.
type DeliberationResponse struct {
	ID                string   `json:"id"`
	DivisionID        string   `json:"divisionId"`
	Category          *string  `json:"category"`
	IsFinal           bool     `json:"isFinal"`
	Status            string   `json:"status"`
	Disqualifications []string `json:"disqualifications"`
}

func deliberationResponse(d models.JudgingDeliberation, disqualified []uuid.UUID) DeliberationResponse {
	resp := DeliberationResponse{
		ID:                d.ID.String(),
		DivisionID:        d.DivisionID.String(),
		IsFinal:           d.IsFinal,
		Status:            string(d.Status),
		Disqualifications: make([]string, 0, len(disqualified)),
	}
	if d.Category != nil {
		s := string(*d.Category)
		resp.Category = &s
	}
	for _, id := range disqualified {
		resp.Disqualifications = append(resp.Disqualifications, id.String())
	}
	return resp
}

// AwardResponse is the JSON shape of one award slot.
type AwardResponse struct {
	ID           string  `json:"id"`
	DivisionID   string  `json:"divisionId"`
	Name         string  `json:"name"`
	Index        int     `json:"index"`
	Place        int     `json:"place"`
	WinnerTeamID *string `json:"winnerTeamId"`
	WinnerText   *string `json:"winnerText"`
}

func awardResponse(a models.Award) AwardResponse {
	resp := AwardResponse{
		ID:         a.ID.String(),
		DivisionID: a.DivisionID.String(),
		Name:       a.Name,
		Index:      a.Index,
		Place:      a.Place,
		WinnerText: a.WinnerText,
	}
	if a.WinnerTeamID != nil {
		s := a.WinnerTeamID.String()
		resp.WinnerTeamID = &s
	}
	return resp
}

// ListDeliberations handles GET /divisions/:divisionId/deliberations.
func ListDeliberations(svc *judging.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		divisionID, err := paramUUID(c, "divisionId")
		if err != nil {
			return fail(c, err)
		}
		ds, err := svc.ListDeliberations(c.Context(), divisionID)
		if err != nil {
			return fail(c, err)
		}
		resp := make([]DeliberationResponse, 0, len(ds))
		for _, d := range ds {
			_, disqualified, err := svc.GetDeliberation(c.Context(), d.ID)
			if err != nil {
				return fail(c, err)
			}
			resp = append(resp, deliberationResponse(d, disqualified))
		}
		return c.JSON(resp)
	}
}

// GetDeliberation handles GET /divisions/:divisionId/deliberations/:deliberationId.
func GetDeliberation(svc *judging.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deliberationID, err := paramUUID(c, "deliberationId")
		if err != nil {
			return fail(c, err)
		}
		d, disqualified, err := svc.GetDeliberation(c.Context(), deliberationID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(deliberationResponse(d, disqualified))
	}
}

// deliberationTransition builds the begin/lock handlers.
func deliberationTransition(svc *judging.Service, lock bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, found := middleware.CurrentUser(c)
		if !found {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"ok": false, "error": "forbidden"})
		}
		deliberationID, err := paramUUID(c, "deliberationId")
		if err != nil {
			return fail(c, err)
		}

		var d models.JudgingDeliberation
		if lock {
			d, err = svc.LockDeliberation(c.Context(), user.Identity(), deliberationID)
		} else {
			d, err = svc.BeginDeliberation(c.Context(), user.Identity(), deliberationID)
		}
		if err != nil {
			return fail(c, err)
		}
		return ok(c, d.ID)
	}
}

// BeginDeliberation handles POST .../deliberations/:deliberationId/begin.
func BeginDeliberation(svc *judging.Service) fiber.Handler { return deliberationTransition(svc, false) }

// LockDeliberation handles POST .../deliberations/:deliberationId/lock.
func LockDeliberation(svc *judging.Service) fiber.Handler { return deliberationTransition(svc, true) }

// EnsureDeliberations handles POST /divisions/:divisionId/deliberations
// (admin only): creates the division's deliberation set — one per category
// plus the final one — if any are missing. Idempotent.
func EnsureDeliberations(svc *judging.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		divisionID, err := paramUUID(c, "divisionId")
		if err != nil {
			return fail(c, err)
		}
		if err := svc.EnsureDeliberations(c.Context(), divisionID); err != nil {
			return fail(c, err)
		}
		return ok(c, divisionID)
	}
}

// DisqualifyTeamRequest is the body of POST /divisions/:divisionId/disqualifications.
type DisqualifyTeamRequest struct {
	TeamID string `json:"teamId"`
}

// DisqualifyTeam handles POST /divisions/:divisionId/disqualifications.
// Idempotent: re-disqualifying an already-disqualified team succeeds and
// changes nothing.
func DisqualifyTeam(svc *judging.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, found := middleware.CurrentUser(c)
		if !found {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"ok": false, "error": "forbidden"})
		}
		divisionID, err := paramUUID(c, "divisionId")
		if err != nil {
			return fail(c, err)
		}

		var req DisqualifyTeamRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid request body"})
		}
		teamID, err := uuid.Parse(req.TeamID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "bad teamId"})
		}

		if err := svc.DisqualifyTeam(c.Context(), user.Identity(), divisionID, teamID); err != nil {
			return fail(c, err)
		}
		return ok(c, teamID)
	}
}

// ListAwards handles GET /divisions/:divisionId/awards.
func ListAwards(svc *judging.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		divisionID, err := paramUUID(c, "divisionId")
		if err != nil {
			return fail(c, err)
		}
		awards, err := svc.ListAwards(c.Context(), divisionID)
		if err != nil {
			return fail(c, err)
		}
		resp := make([]AwardResponse, 0, len(awards))
		for _, a := range awards {
			resp = append(resp, awardResponse(a))
		}
		return c.JSON(resp)
	}
}

// CreateAwardRequest is the body of POST /divisions/:divisionId/awards.
type CreateAwardRequest struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
	Place int    `json:"place"`
}

// CreateAward handles POST /divisions/:divisionId/awards.
func CreateAward(svc *judging.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, found := middleware.CurrentUser(c)
		if !found {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"ok": false, "error": "forbidden"})
		}
		divisionID, err := paramUUID(c, "divisionId")
		if err != nil {
			return fail(c, err)
		}

		var req CreateAwardRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid request body"})
		}

		award, err := svc.CreateAward(c.Context(), user.Identity(), models.Award{
			DivisionID: divisionID,
			Name:       req.Name,
			Index:      req.Index,
			Place:      req.Place,
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(awardResponse(award))
	}
}

// FinalizeAwardRequest is the body of POST .../awards/:awardId/finalize.
// Exactly one of teamId / text names the winner.
type FinalizeAwardRequest struct {
	TeamID *string `json:"teamId"`
	Text   *string `json:"text"`
}

// FinalizeAward handles POST /divisions/:divisionId/awards/:awardId/finalize.
func FinalizeAward(svc *judging.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, found := middleware.CurrentUser(c)
		if !found {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"ok": false, "error": "forbidden"})
		}
		awardID, err := paramUUID(c, "awardId")
		if err != nil {
			return fail(c, err)
		}

		var req FinalizeAwardRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid request body"})
		}

		sel := judging.AwardSelection{AwardID: awardID, Text: req.Text}
		if req.TeamID != nil {
			teamID, err := uuid.Parse(*req.TeamID)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "bad teamId"})
			}
			sel.TeamID = &teamID
		}

		award, err := svc.FinalizeAward(c.Context(), user.Identity(), sel)
		if err != nil {
			return fail(c, err)
		}
		return ok(c, award.ID)
	}
}
