// Package handlers contains the HTTP route handler functions for the
// tournament server. Each exported function follows the handler factory
// pattern: it takes its dependencies and returns a fiber.Handler, so nothing
// here touches global state.
package handlers

import "github.com/gofiber/fiber/v2"

// HealthCheck handles GET /health. Intentionally lightweight — no database
// queries, no authentication — so load balancers and liveness probes can hit
// it cheaply.
func HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
