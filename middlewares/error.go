package middlewares

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"ledger-backend/apperrors"
)

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindNotFound:          fiber.StatusNotFound,
	apperrors.KindValidation:        fiber.StatusUnprocessableEntity,
	apperrors.KindInvalidState:      fiber.StatusConflict,
	apperrors.KindInvalidTransition: fiber.StatusConflict,
	apperrors.KindConflict:          fiber.StatusConflict,
	apperrors.KindOverpayment:       fiber.StatusConflict,
	apperrors.KindTransient:         fiber.StatusServiceUnavailable,
}

// StatusOf returns the HTTP status for a ledger error kind.
func StatusOf(kind apperrors.Kind) int {
	if code, ok := kindStatus[kind]; ok {
		return code
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler centralizes error responses and keeps messages sanitized.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		// 1) Fiber errors (use their status code + message)
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
		}

		// 2) Validation errors (422 + per-field info)
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			out := make(map[string]string, len(ve))
			for _, fe := range ve {
				out[fieldPath(fe.Namespace())] = fe.Tag()
			}
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"message": "validation failed",
				"kind":    apperrors.KindValidation,
				"errors":  out,
			})
		}

		// 3) Ledger errors
		kind := apperrors.KindOf(err)
		status := StatusOf(kind)
		if status >= fiber.StatusInternalServerError {
			log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).
				Interface("request_id", c.Locals(LocalRequestID)).Msg("request failed")
		}
		return c.Status(status).JSON(fiber.Map{
			"message": apperrors.ReasonOf(err),
			"kind":    kind,
		})
	}
}

// fieldPath drops the struct name from a validator namespace ("req.items[0].quantity" -> "items[0].quantity").
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
