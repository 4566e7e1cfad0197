package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"osint-market/apperr"
)

var validate = validator.New()

// fail maps a service error onto the wire: {error, kind} with the
// taxonomy status code. Internal causes are logged, never exposed.
func fail(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInternal || kind == apperr.KindSettlementInvariant {
		zap.S().Errorf("❌ [%s %s] %v", c.Method(), c.Path(), err)
	}
	return c.Status(apperr.HTTPStatus(err)).JSON(fiber.Map{
		"error": apperr.Message(err),
		"kind":  string(kind),
	})
}

// parseBody decodes and validates a JSON request body.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return apperr.Validation("invalid field %s (%s)", verrs[0].Field(), verrs[0].Tag())
		}
		return apperr.Validation("invalid request body")
	}
	return nil
}
