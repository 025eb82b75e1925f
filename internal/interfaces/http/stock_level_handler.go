package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
)

// StockLevelHandler niveles de stock: ingresos, ajustes, consultas y conciliación.
type StockLevelHandler struct {
	engine *inventory.ReservationEngine
}

// NewStockLevelHandler construye el handler.
func NewStockLevelHandler(engine *inventory.ReservationEngine) *StockLevelHandler {
	return &StockLevelHandler{engine: engine}
}

// Intake godoc
// @Summary      Registrar ingreso de stock
// @Tags         stock-levels
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.IntakeRequest  true  "sku_id, warehouse_id, quantity, unit_cost opcional"
// @Success      201  {object}  dto.StockLevelDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/stock-levels/intake [post]
func (h *StockLevelHandler) Intake(c *fiber.Ctx) error {
	var in dto.IntakeRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	level, err := h.engine.ReceiveStock(c.UserContext(), inventory.IntakeInput{
		OrganizationID: GetOrganizationID(c),
		SKUID:          in.SKUID,
		WarehouseID:    in.WarehouseID,
		Quantity:       in.Quantity,
		UnitCost:       in.UnitCost,
		Actor:          GetUserID(c),
		ReferenceID:    in.ReferenceID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromStockLevel(level))
}

// Adjust godoc
// @Summary      Ajuste manual de available
// @Description  Rechaza con 409 NEGATIVE_STOCK si el resultado fuera negativo.
// @Tags         stock-levels
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        levelID  path  string                 true  "ID del nivel"
// @Param        body     body  dto.AdjustmentRequest  true  "delta con signo, reason obligatorio"
// @Success      200  {object}  dto.StockLevelDTO
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/stock-levels/{levelID}/adjustments [post]
func (h *StockLevelHandler) Adjust(c *fiber.Ctx) error {
	var in dto.AdjustmentRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	level, err := h.engine.Adjust(c.UserContext(), inventory.AdjustInput{
		OrganizationID: GetOrganizationID(c),
		LevelID:        c.Params("levelID"),
		Delta:          in.Delta,
		Reason:         in.Reason,
		Actor:          GetUserID(c),
		ReferenceID:    in.ReferenceID,
		Notes:          in.Notes,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromStockLevel(level))
}

func (h *StockLevelHandler) List(c *fiber.Ctx) error {
	levels, err := h.engine.ListLevels(c.UserContext(), GetOrganizationID(c), c.Query("sku_id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromStockLevels(levels))
}

func (h *StockLevelHandler) Get(c *fiber.Ctx) error {
	level, err := h.engine.GetLevel(c.UserContext(), GetOrganizationID(c), c.Params("levelID"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromStockLevel(level))
}

// Audit rastro del nivel, más recientes primero.
func (h *StockLevelHandler) Audit(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "paginación inválida"})
	}
	page.DefaultPage()
	list, err := h.engine.AuditTrail(c.UserContext(), GetOrganizationID(c), c.Params("levelID"), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"items": dto.FromAuditAdjustments(list),
		"page":  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

func (h *StockLevelHandler) Reconcile(c *fiber.Ctx) error {
	rec, err := h.engine.Reconcile(c.UserContext(), GetOrganizationID(c), c.Params("levelID"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toReconciliationDTO(*rec))
}

// ReconcileAll concilia todos los niveles de la organización.
func (h *StockLevelHandler) ReconcileAll(c *fiber.Ctx) error {
	recs, err := h.engine.ReconcileAll(c.UserContext(), GetOrganizationID(c))
	if err != nil {
		return writeError(c, err)
	}
	out := make([]dto.ReconciliationDTO, 0, len(recs))
	drifted := 0
	for _, r := range recs {
		if !r.Consistent() {
			drifted++
		}
		out = append(out, toReconciliationDTO(r))
	}
	return c.JSON(fiber.Map{"levels": out, "drifted": drifted})
}

func (h *StockLevelHandler) Valuation(c *fiber.Ctx) error {
	val, err := h.engine.Valuation(c.UserContext(), GetOrganizationID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.FromValuation(val))
}

func toReconciliationDTO(r inventory.Reconciliation) dto.ReconciliationDTO {
	return dto.ReconciliationDTO{
		LevelID:     r.LevelID,
		SKUID:       r.SKUID,
		WarehouseID: r.WarehouseID,
		Available:   r.Available,
		LedgerSum:   r.LedgerSum,
		Drift:       r.Drift,
		Consistent:  r.Consistent(),
	}
}
