package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/fathima-sithara/chaty/internal/apperr"
	"github.com/fathima-sithara/chaty/internal/utils"
)

func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.Unauthenticated, apperr.InvalidCredential:
		return fiber.StatusUnauthorized
	case apperr.Forbidden:
		return fiber.StatusForbidden
	case apperr.NotFound:
		return fiber.StatusNotFound
	case apperr.Validation:
		return fiber.StatusBadRequest
	case apperr.Conflict, apperr.DeleteFailed:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, err error) error {
	k := apperr.KindOf(err)
	return utils.JSONError(c, statusOf(k), k.String(), apperr.Message(err))
}

// errorHandler renders errors that escape handlers, including fiber's own.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return utils.JSONError(c, fe.Code, "http", fe.Message)
	}
	return writeError(c, err)
}
