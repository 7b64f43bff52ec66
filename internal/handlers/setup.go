// setup.go — division setup resources (teams, tables, rooms). Administrative
// boundary CRUD: the engines read these records but never write them.
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/robogatedev/tournament-server/internal/models"
)

type namedCreateRequest struct {
	Name string `json:"name"`
}

// CreateTable handles POST /divisions/:divisionId/tables (admin only).
func CreateTable(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		divisionID, err := paramUUID(c, "divisionId")
		if err != nil {
			return fail(c, err)
		}
		var req namedCreateRequest
		if err := c.BodyParser(&req); err != nil || req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "name is required"})
		}
		table := models.RobotGameTable{DivisionID: divisionID, Name: req.Name}
		if err := db.Create(&table).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "failed to create table"})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "id": table.ID.String()})
	}
}

// CreateRoom handles POST /divisions/:divisionId/rooms (admin only).
func CreateRoom(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		divisionID, err := paramUUID(c, "divisionId")
		if err != nil {
			return fail(c, err)
		}
		var req namedCreateRequest
		if err := c.BodyParser(&req); err != nil || req.Name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "name is required"})
		}
		room := models.JudgingRoom{DivisionID: divisionID, Name: req.Name}
		if err := db.Create(&room).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "failed to create room"})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "id": room.ID.String()})
	}
}

// CreateTeamRequest is the body of POST /divisions/:divisionId/teams.
type CreateTeamRequest struct {
	Number      int    `json:"number"`
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
	City        string `json:"city"`
}

// CreateTeam handles POST /divisions/:divisionId/teams (admin only).
func CreateTeam(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		divisionID, err := paramUUID(c, "divisionId")
		if err != nil {
			return fail(c, err)
		}
		var req CreateTeamRequest
		if err := c.BodyParser(&req); err != nil || req.Name == "" || req.Number < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"ok": false, "error": "name and a positive number are required"})
		}
		team := models.Team{
			DivisionID:  divisionID,
			Number:      req.Number,
			Name:        req.Name,
			Affiliation: req.Affiliation,
			City:        req.City,
		}
		if err := db.Create(&team).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "failed to create team"})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "id": team.ID.String()})
	}
}

// TeamResponse is the JSON shape of one team.
type TeamResponse struct {
	ID          string `json:"id"`
	Number      int    `json:"number"`
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
	City        string `json:"city"`
	Registered  bool   `json:"registered"`
}

// ListTeams handles GET /divisions/:divisionId/teams.
func ListTeams(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		divisionID, err := paramUUID(c, "divisionId")
		if err != nil {
			return fail(c, err)
		}
		var teams []models.Team
		if err := db.Where("division_id = ?", divisionID).Order("number").Find(&teams).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "failed to fetch teams"})
		}
		resp := make([]TeamResponse, 0, len(teams))
		for _, t := range teams {
			resp = append(resp, TeamResponse{
				ID:          t.ID.String(),
				Number:      t.Number,
				Name:        t.Name,
				Affiliation: t.Affiliation,
				City:        t.City,
				Registered:  t.Registered,
			})
		}
		return c.JSON(resp)
	}
}

// RegisterTeam handles POST /divisions/:divisionId/teams/:teamId/register —
// pit check-in on event morning.
func RegisterTeam(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		teamID, err := paramUUID(c, "teamId")
		if err != nil {
			return fail(c, err)
		}
		res := db.Model(&models.Team{}).Where("id = ?", teamID).Update("registered", true)
		if res.Error != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "failed to register team"})
		}
		if res.RowsAffected == 0 {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"ok": false, "error": "not-found"})
		}
		return ok(c, teamID)
	}
}
