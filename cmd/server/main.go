// cmd/server/main.go
// Entry point for the tournament coordination server. Wiring order matters:
// config → database → migrations → hub → engines → realtime gateway → routes.
// Everything downstream of a route shares the same engines, so the HTTP
// surface and the realtime channel apply identical authorization and
// state-machine rules.
package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/robogatedev/tournament-server/internal/config"
	"github.com/robogatedev/tournament-server/internal/database"
	"github.com/robogatedev/tournament-server/internal/field"
	"github.com/robogatedev/tournament-server/internal/handlers"
	"github.com/robogatedev/tournament-server/internal/judging"
	"github.com/robogatedev/tournament-server/internal/middleware"
	"github.com/robogatedev/tournament-server/internal/roles"
	"github.com/robogatedev/tournament-server/internal/websocket"
)

func main() {
	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Running pending migrations on startup keeps the schema in sync with
	// the binary.
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// The hub is the realtime fan-out: one room per event, created on first
	// subscriber, torn down with the last.
	hub := websocket.NewHub()
	go hub.Run()

	// The engines own all core mutation: field (matches, scoresheets,
	// division state) and judging (deliberations, awards). Both broadcast
	// through the hub only after their store writes are acknowledged.
	fieldSvc := field.NewService(field.NewStore(db), hub)
	judgingSvc := judging.NewService(judging.NewStore(db), hub)
	gateway := websocket.NewGateway(cfg, db, hub, fieldSvc, judgingSvc)

	app := fiber.New(fiber.Config{
		AppName: "Tournament Server",
	})

	app.Use(logger.New())
	app.Use(cors.New())

	// --- Public routes ---
	app.Get("/health", handlers.HealthCheck)
	app.Post("/auth/login", handlers.Login(cfg, db))

	// --- Realtime channel ---
	// One room per event; the upgrade handler authenticates before the
	// socket opens.
	app.Get("/ws/:eventId", gateway.Upgrade(), gateway.Serve())

	// --- Authenticated API routes ---
	api := app.Group("/api/v1", middleware.Auth(cfg, db))

	// Events (admin-managed boundary CRUD) and user seeding.
	api.Post("/events", middleware.RequireAdmin(), handlers.CreateEvent(db))
	api.Get("/events/:eventId", handlers.GetEvent(db))
	api.Put("/events/:eventId", middleware.RequireAdmin(), handlers.UpdateEvent(db))
	api.Get("/events/:eventId/state", handlers.GetEventState(db))
	api.Post("/events/:eventId/users", middleware.RequireAdmin(), handlers.SeedEventUsers(db))
	api.Get("/events/:eventId/users", middleware.RequireAdmin(), handlers.ListEventUsers(db))

	// Divisions and division-wide phase state. Reads are open to any
	// authenticated role; the state write is role-gated here and
	// association-gated in the engine.
	divisions := api.Group("/divisions/:divisionId")
	divisions.Get("/", handlers.GetDivision(db))
	divisions.Get("/state", handlers.GetDivisionState(fieldSvc))
	divisions.Put("/state",
		middleware.RequireRole(roles.RoleScorekeeper, roles.RoleTournamentManager, roles.RoleAudienceDisplay, roles.RoleHeadReferee),
		handlers.UpdateDivisionState(fieldSvc))

	// Division setup (admin only).
	divisions.Post("/tables", middleware.RequireAdmin(), handlers.CreateTable(db))
	divisions.Post("/rooms", middleware.RequireAdmin(), handlers.CreateRoom(db))
	divisions.Post("/teams", middleware.RequireAdmin(), handlers.CreateTeam(db))
	divisions.Get("/teams", handlers.ListTeams(db))
	divisions.Post("/teams/:teamId/register",
		middleware.RequireRole(roles.RolePitAdmin, roles.RoleTournamentManager),
		handlers.RegisterTeam(db))

	// Matches.
	divisions.Get("/matches", handlers.ListDivisionMatches(fieldSvc))
	divisions.Post("/matches",
		middleware.RequireRole(roles.RoleScorekeeper, roles.RoleTournamentManager),
		handlers.ScheduleMatch(fieldSvc))
	divisions.Post("/matches/:matchId/load",
		middleware.RequireRole(roles.RoleScorekeeper, roles.RoleTournamentManager, roles.RoleHeadReferee),
		handlers.LoadMatch(fieldSvc))
	divisions.Post("/matches/:matchId/start",
		middleware.RequireRole(roles.RoleScorekeeper, roles.RoleTournamentManager, roles.RoleHeadReferee),
		handlers.StartMatch(fieldSvc))
	divisions.Post("/matches/:matchId/complete",
		middleware.RequireRole(roles.RoleScorekeeper, roles.RoleTournamentManager, roles.RoleHeadReferee),
		handlers.CompleteMatch(fieldSvc))

	// Scoresheets. The read set mirrors who watches the field; writes are
	// referee/head-referee and the engine enforces table scope.
	divisions.Get("/scoresheets/:scoresheetId",
		middleware.RequireRole(roles.RoleReferee, roles.RoleHeadReferee, roles.RoleScorekeeper, roles.RoleAudienceDisplay, roles.RoleReports),
		handlers.GetScoresheet(fieldSvc))
	divisions.Get("/teams/:teamId/scoresheets", handlers.ListTeamScoresheets(fieldSvc))
	divisions.Put("/matches/:matchId/teams/:teamId/scoresheet",
		middleware.RequireRole(roles.RoleReferee, roles.RoleHeadReferee),
		handlers.UpdateScoresheet(fieldSvc))
	divisions.Post("/scoresheets/:scoresheetId/approve",
		middleware.RequireRole(roles.RoleHeadReferee),
		handlers.ApproveScoresheet(fieldSvc))
	divisions.Post("/scoresheets/:scoresheetId/reopen",
		middleware.RequireRole(roles.RoleHeadReferee),
		handlers.ReopenScoresheet(fieldSvc))

	// Deliberations and disqualifications.
	deliberationRoles := middleware.RequireRole(roles.RoleLeadJudge, roles.RoleJudgeAdvisor, roles.RoleTournamentManager)
	divisions.Get("/deliberations", deliberationRoles, handlers.ListDeliberations(judgingSvc))
	divisions.Post("/deliberations", middleware.RequireAdmin(), handlers.EnsureDeliberations(judgingSvc))
	divisions.Get("/deliberations/:deliberationId", deliberationRoles, handlers.GetDeliberation(judgingSvc))
	divisions.Post("/deliberations/:deliberationId/begin", deliberationRoles, handlers.BeginDeliberation(judgingSvc))
	divisions.Post("/deliberations/:deliberationId/lock", deliberationRoles, handlers.LockDeliberation(judgingSvc))
	divisions.Post("/disqualifications", deliberationRoles, handlers.DisqualifyTeam(judgingSvc))

	// Awards.
	divisions.Get("/awards",
		middleware.RequireRole(roles.RoleJudgeAdvisor, roles.RoleTournamentManager, roles.RoleAudienceDisplay),
		handlers.ListAwards(judgingSvc))
	divisions.Post("/awards",
		middleware.RequireRole(roles.RoleJudgeAdvisor),
		handlers.CreateAward(judgingSvc))
	divisions.Post("/awards/:awardId/finalize",
		middleware.RequireRole(roles.RoleJudgeAdvisor, roles.RoleTournamentManager),
		handlers.FinalizeAward(judgingSvc))

	log.Printf("Starting server on port %s", cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
