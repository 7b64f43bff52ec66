package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/robogatedev/tournament-server/internal/apperr"
)

// fail writes the uniform failure body for a mutation attempt. Every error
// carries its kind so callers can tell business-rule failures (never retried)
// from the retryable store-unavailable class.
func fail(c *fiber.Ctx, err error) error {
	return c.Status(apperr.HTTPStatus(err)).JSON(fiber.Map{
		"ok":        false,
		"error":     apperr.Kind(err),
		"retryable": apperr.Retryable(err),
	})
}

// ok writes the uniform success acknowledgement, optionally carrying the id
// of the document the mutation touched.
func ok(c *fiber.Ctx, id uuid.UUID) error {
	return c.JSON(fiber.Map{"ok": true, "id": id.String()})
}

// paramUUID parses a UUID route parameter.
func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.Validationf("bad %s", name)
	}
	return id, nil
}
