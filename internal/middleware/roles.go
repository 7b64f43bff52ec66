package middleware

// roles.go — role gating for HTTP routes. Each nested resource route declares
// the set of roles allowed to reach it; the association-level checks happen
// later, inside the owning engine, where the target resource's scope is known.

import (
	"github.com/gofiber/fiber/v2"

	"github.com/robogatedev/tournament-server/internal/roles"
)

// RequireAdmin returns a middleware that allows only admin users, used for
// the administrative surfaces (event creation, user seeding).
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok || !user.IsAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin only",
			})
		}
		return c.Next()
	}
}

// RequireRole returns a middleware that allows only users whose role is in
// the given set. An empty set admits any authenticated role — the route is
// merely login-gated. Admins always pass.
//
// RequireRole must run after Auth, which populates the user in the request
// context:
//
//	api.Put("/divisions/:divisionId/state",
//		middleware.RequireRole(roles.RoleScorekeeper, roles.RoleTournamentManager),
//		handlers.UpdateDivisionState(svc))
func RequireRole(allowed ...roles.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := CurrentUser(c)
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "forbidden",
			})
		}

		if err := roles.Authorize(user.Identity(), allowed, nil); err != nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient permissions",
			})
		}
		return c.Next()
	}
}
