package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
)

// ReservationHandler reservas y liberaciones por pedido (protegido).
type ReservationHandler struct {
	engine *inventory.ReservationEngine
}

// NewReservationHandler construye el handler.
func NewReservationHandler(engine *inventory.ReservationEngine) *ReservationHandler {
	return &ReservationHandler{engine: engine}
}

// Reserve godoc
// @Summary      Reservar stock para todas las líneas de un pedido
// @Description  Todo o nada. Repetir la llamada devuelve las reservas activas existentes.
// @Tags         reservations
// @Security     Bearer
// @Produce      json
// @Param        orderID  path  string  true  "ID del pedido"
// @Success      201  {array}   dto.ReservationDTO
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/orders/{orderID}/reservations [post]
func (h *ReservationHandler) Reserve(c *fiber.Ctx) error {
	list, err := h.engine.Reserve(c.UserContext(), GetOrganizationID(c), c.Params("orderID"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromReservations(list))
}

// Release godoc
// @Summary      Liberar las reservas activas de un pedido
// @Tags         reservations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        orderID  path  string              true  "ID del pedido"
// @Param        body     body  dto.ReleaseRequest  true  "reason: cancellation | return | system_recovery"
// @Success      200  {array}   dto.ReservationDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/orders/{orderID}/release [post]
func (h *ReservationHandler) Release(c *fiber.Ctx) error {
	var in dto.ReleaseRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	list, err := h.engine.Release(c.UserContext(), GetOrganizationID(c), c.Params("orderID"), in.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromReservations(list))
}

func (h *ReservationHandler) List(c *fiber.Ctx) error {
	list, err := h.engine.ListReservations(c.UserContext(), GetOrganizationID(c), c.Params("orderID"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromReservations(list))
}
