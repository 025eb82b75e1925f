package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/domain"
)

// writeError traduce errores del dominio a respuestas HTTP.
func writeError(c *fiber.Ctx, err error) error {
	status, body := mapError(err)
	return c.Status(status).JSON(body)
}

func mapError(err error) (int, dto.ErrorResponse) {
	var se *domain.StockError
	message := err.Error()
	if errors.As(err, &se) {
		message = se.Error()
	}
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION", Message: message}
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso no encontrado"}
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"}
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"}
	case errors.Is(err, domain.ErrInsufficientStock):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: message}
	case errors.Is(err, domain.ErrCapacityExceeded):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "CAPACITY_EXCEEDED", Message: message}
	case errors.Is(err, domain.ErrNegativeStock):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "NEGATIVE_STOCK", Message: message}
	case errors.Is(err, domain.ErrTimeout):
		return fiber.StatusServiceUnavailable, dto.ErrorResponse{Code: "TIMEOUT", Message: "tiempo de transacción agotado", Retryable: true}
	case errors.Is(err, domain.ErrConcurrentModification):
		return fiber.StatusServiceUnavailable, dto.ErrorResponse{Code: "CONCURRENT_MODIFICATION", Message: "conflicto de concurrencia", Retryable: true}
	default:
		return fiber.StatusInternalServerError, dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"}
	}
}
