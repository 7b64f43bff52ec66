// field.go — match and scoresheet routes. Every mutation goes through the
// field service; handlers only translate between HTTP and the engine.
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/robogatedev/tournament-server/internal/field"
	"github.com/robogatedev/tournament-server/internal/middleware"
	"github.com/robogatedev/tournament-server/internal/models"
)

// MatchResponse is the JSON shape of one scheduled match slot.
type MatchResponse struct {
	ID            string  `json:"id"`
	DivisionID    string  `json:"divisionId"`
	Stage         string  `json:"stage"`
	Round         int     `json:"round"`
	TableID       string  `json:"tableId"`
	TeamID        string  `json:"teamId"`
	ScheduledTime string  `json:"scheduledTime"`
	StartTime     *string `json:"startTime"`
	Status        string  `json:"status"`
}

func matchResponse(m models.RobotGameMatch) MatchResponse {
	resp := MatchResponse{
		ID:            m.ID.String(),
		DivisionID:    m.DivisionID.String(),
		Stage:         string(m.Stage),
		Round:         m.Round,
		TableID:       m.TableID.String(),
		TeamID:        m.TeamID.String(),
		ScheduledTime: m.ScheduledTime.UTC().Format(time.RFC3339),
		Status:        string(m.Status),
	}
	if m.StartTime != nil {
		s := m.StartTime.UTC().Format(time.RFC3339)
		resp.StartTime = &s
	}
	return resp
}

// ScoresheetResponse is the JSON shape of one scoresheet.
type ScoresheetResponse struct {
	ID         string             `json:"id"`
	DivisionID string             `json:"divisionId"`
	TeamID     string             `json:"teamId"`
	MatchID    string             `json:"matchId"`
	Stage      string             `json:"stage"`
	Round      int                `json:"round"`
	Status     string             `json:"status"`
	Score      int                `json:"score"`
	Missions   models.MissionList `json:"missions"`
	Escalated  bool               `json:"escalated"`
}

func scoresheetResponse(s models.Scoresheet) ScoresheetResponse {
	return ScoresheetResponse{
		ID:         s.ID.String(),
		DivisionID: s.DivisionID.String(),
		TeamID:     s.TeamID.String(),
		MatchID:    s.MatchID.String(),
		Stage:      string(s.Stage),
		Round:      s.Round,
		Status:     string(s.Status),
		Score:      s.Score,
		Missions:   s.Missions,
		Escalated:  s.Escalated,
	}
}

// ListDivisionMatches handles GET /divisions/:divisionId/matches.
func ListDivisionMatches(svc *field.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		divisionID, err := paramUUID(c, "divisionId")
		if err != nil {
			return fail(c, err)
		}
		matches, err := svc.ListDivisionMatches(c.Context(), divisionID)
		if err != nil {
			return fail(c, err)
		}
		resp := make([]MatchResponse, 0, len(matches))
		for _, m := range matches {
			resp = append(resp, matchResponse(m))
		}
		return c.JSON(resp)
	}
}

// ScheduleMatchRequest is the body of POST /divisions/:divisionId/matches.
type ScheduleMatchRequest struct {
	Stage         string `json:"stage"`
	Round         int    `json:"round"`
	TableID       string `json:"tableId"`
	TeamID        string `json:"teamId"`
	ScheduledTime string `json:"scheduledTime"` // RFC 3339
}

// ScheduleMatch handles POST /divisions/:divisionId/matches. Creating the
// match also creates its empty scoresheet.
func ScheduleMatch(svc *field.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, found := middleware.CurrentUser(c)
		if !found {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"ok": false, "error": "forbidden"})
		}
		divisionID, err := paramUUID(c, "divisionId")
		if err != nil {
			return fail(c, err)
		}

		var req ScheduleMatchRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid request body"})
		}
		tableID, err := uuid.Parse(req.TableID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "bad tableId"})
		}
		teamID, err := uuid.Parse(req.TeamID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "bad teamId"})
		}
		scheduled, err := time.Parse(time.RFC3339, req.ScheduledTime)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "scheduledTime must be RFC 3339"})
		}

		match, err := svc.ScheduleMatch(c.Context(), user.Identity(), field.MatchSchedule{
			DivisionID:    divisionID,
			Stage:         models.MatchStage(req.Stage),
			Round:         req.Round,
			TableID:       tableID,
			TeamID:        teamID,
			ScheduledTime: scheduled,
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(matchResponse(match))
	}
}

// matchTransition builds the handler shared by the start/complete routes.
func matchTransition(svc *field.Service, complete bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, found := middleware.CurrentUser(c)
		if !found {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"ok": false, "error": "forbidden"})
		}
		matchID, err := paramUUID(c, "matchId")
		if err != nil {
			return fail(c, err)
		}

		var match models.RobotGameMatch
		if complete {
			match, err = svc.CompleteMatch(c.Context(), user.Identity(), matchID)
		} else {
			match, err = svc.StartMatch(c.Context(), user.Identity(), matchID)
		}
		if err != nil {
			return fail(c, err)
		}
		return ok(c, match.ID)
	}
}

// LoadMatch handles POST /divisions/:divisionId/matches/:matchId/load,
// staging the match on the field.
func LoadMatch(svc *field.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, found := middleware.CurrentUser(c)
		if !found {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"ok": false, "error": "forbidden"})
		}
		matchID, err := paramUUID(c, "matchId")
		if err != nil {
			return fail(c, err)
		}
		if _, err := svc.LoadMatch(c.Context(), user.Identity(), matchID); err != nil {
			return fail(c, err)
		}
		return ok(c, matchID)
	}
}

// StartMatch handles POST /divisions/:divisionId/matches/:matchId/start.
func StartMatch(svc *field.Service) fiber.Handler { return matchTransition(svc, false) }

// CompleteMatch handles POST /divisions/:divisionId/matches/:matchId/complete.
func CompleteMatch(svc *field.Service) fiber.Handler { return matchTransition(svc, true) }

// GetScoresheet handles GET /divisions/:divisionId/scoresheets/:scoresheetId —
// the read clients perform after a scoresheetUpdated notification.
func GetScoresheet(svc *field.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scoresheetID, err := paramUUID(c, "scoresheetId")
		if err != nil {
			return fail(c, err)
		}
		sheet, err := svc.GetScoresheet(c.Context(), scoresheetID)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(scoresheetResponse(sheet))
	}
}

// ListTeamScoresheets handles GET /divisions/:divisionId/teams/:teamId/scoresheets.
func ListTeamScoresheets(svc *field.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		divisionID, err := paramUUID(c, "divisionId")
		if err != nil {
			return fail(c, err)
		}
		teamID, err := paramUUID(c, "teamId")
		if err != nil {
			return fail(c, err)
		}
		sheets, err := svc.ListTeamScoresheets(c.Context(), divisionID, teamID)
		if err != nil {
			return fail(c, err)
		}
		resp := make([]ScoresheetResponse, 0, len(sheets))
		for _, s := range sheets {
			resp = append(resp, scoresheetResponse(s))
		}
		return c.JSON(resp)
	}
}

// UpdateScoresheetRequest is the body of PUT .../scoresheet — a full-document
// write keyed by the match and team in the path.
type UpdateScoresheetRequest struct {
	Score     int                `json:"score"`
	Missions  models.MissionList `json:"missions"`
	Escalated bool               `json:"escalated"`
	Submit    bool               `json:"submit"`
}

// UpdateScoresheet handles PUT /divisions/:divisionId/matches/:matchId/teams/:teamId/scoresheet.
func UpdateScoresheet(svc *field.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, found := middleware.CurrentUser(c)
		if !found {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"ok": false, "error": "forbidden"})
		}
		matchID, err := paramUUID(c, "matchId")
		if err != nil {
			return fail(c, err)
		}
		teamID, err := paramUUID(c, "teamId")
		if err != nil {
			return fail(c, err)
		}

		var req UpdateScoresheetRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "invalid request body"})
		}

		sheet, err := svc.UpdateScoresheet(c.Context(), user.Identity(), field.ScoresheetWrite{
			MatchID:   matchID,
			TeamID:    teamID,
			Score:     req.Score,
			Missions:  req.Missions,
			Escalated: req.Escalated,
			Submit:    req.Submit,
		})
		if err != nil {
			return fail(c, err)
		}
		return ok(c, sheet.ID)
	}
}

// scoresheetTransition builds the approve/reopen handlers.
func scoresheetTransition(svc *field.Service, reopen bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, found := middleware.CurrentUser(c)
		if !found {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"ok": false, "error": "forbidden"})
		}
		scoresheetID, err := paramUUID(c, "scoresheetId")
		if err != nil {
			return fail(c, err)
		}

		var sheet models.Scoresheet
		if reopen {
			sheet, err = svc.ReopenScoresheet(c.Context(), user.Identity(), scoresheetID)
		} else {
			sheet, err = svc.ApproveScoresheet(c.Context(), user.Identity(), scoresheetID)
		}
		if err != nil {
			return fail(c, err)
		}
		return ok(c, sheet.ID)
	}
}

// ApproveScoresheet handles POST .../scoresheets/:scoresheetId/approve.
func ApproveScoresheet(svc *field.Service) fiber.Handler { return scoresheetTransition(svc, false) }

// ReopenScoresheet handles POST .../scoresheets/:scoresheetId/reopen.
func ReopenScoresheet(svc *field.Service) fiber.Handler { return scoresheetTransition(svc, true) }
