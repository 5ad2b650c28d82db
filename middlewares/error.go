package middlewares

import (
	"errors"

	"invoicepay-backend/apperrors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler centralizes error responses and keeps messages sanitized.
func ErrorHandler(c *fiber.Ctx, err error) error {
	log := RequestLog(c)

	// 1) Fiber errors (use their status code + message)
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}

	// 2) Validation errors (400 + per-field info)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		out := make(map[string]string, len(ve))
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "validation failed",
			"errors":  out,
		})
	}

	// 3) Domain errors carry their own status
	var ae *apperrors.Error
	if errors.As(err, &ae) {
		status := ae.Kind.HTTPStatus()
		switch {
		case ae.Kind == apperrors.KindUpstream:
			log.Warn().Err(err).Msg("payment provider failure")
		case status >= fiber.StatusInternalServerError:
			log.Error().Err(err).Str("kind", ae.Kind.String()).Msg("request failed")
		default:
			log.Debug().Err(err).Str("kind", ae.Kind.String()).Msg("request rejected")
		}
		return c.Status(status).JSON(fiber.Map{
			"message": ae.PublicMessage(),
			"code":    ae.Kind.String(),
		})
	}

	// 4) Unknown errors (500)
	log.Error().Err(err).Msg("internal error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": "internal server error",
	})
}
