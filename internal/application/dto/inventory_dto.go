package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// ReleaseRequest body para POST /api/orders/:orderID/release.
type ReleaseRequest struct {
	Reason string `json:"reason"` // cancellation | return | system_recovery
}

// IntakeRequest body para POST /api/stock-levels/intake.
type IntakeRequest struct {
	SKUID       string           `json:"sku_id"`
	WarehouseID string           `json:"warehouse_id"`
	Quantity    int64            `json:"quantity"`
	UnitCost    *decimal.Decimal `json:"unit_cost,omitempty"`
	ReferenceID string           `json:"reference_id,omitempty"`
}

// AdjustmentRequest body para POST /api/stock-levels/:levelID/adjustments.
type AdjustmentRequest struct {
	Delta       int64  `json:"delta"`
	Reason      string `json:"reason"`
	ReferenceID string `json:"reference_id,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// StockLevelDTO representación pública de un nivel de stock.
type StockLevelDTO struct {
	ID          string          `json:"id"`
	SKUID       string          `json:"sku_id"`
	WarehouseID string          `json:"warehouse_id"`
	Available   int64           `json:"available"`
	Reserved    int64           `json:"reserved"`
	Damaged     int64           `json:"damaged"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ReservationDTO representación pública de una reserva.
type ReservationDTO struct {
	ID               string     `json:"id"`
	OrderID          string     `json:"order_id"`
	SKUID            string     `json:"sku_id"`
	WarehouseID      string     `json:"warehouse_id"`
	QuantityReserved int64      `json:"quantity_reserved"`
	Status           string     `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
	ReleasedAt       *time.Time `json:"released_at,omitempty"`
	ReleaseReason    string     `json:"release_reason,omitempty"`
}

// AuditAdjustmentDTO registro del rastro de auditoría.
type AuditAdjustmentDTO struct {
	ID            string    `json:"id"`
	QuantityDelta int64     `json:"quantity_delta"`
	Reason        string    `json:"reason"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// ReconciliationDTO resultado de conciliación de un nivel.
type ReconciliationDTO struct {
	LevelID     string `json:"level_id"`
	SKUID       string `json:"sku_id"`
	WarehouseID string `json:"warehouse_id"`
	Available   int64  `json:"available"`
	LedgerSum   int64  `json:"ledger_sum"`
	Drift       int64  `json:"drift"`
	Consistent  bool   `json:"consistent"`
}

// WarehouseValuationDTO valor del inventario de una bodega.
type WarehouseValuationDTO struct {
	WarehouseID string          `json:"warehouse_id"`
	Units       int64           `json:"units"`
	Value       decimal.Decimal `json:"value"`
}

func FromStockLevel(l *entity.StockLevel) StockLevelDTO {
	return StockLevelDTO{
		ID:          l.ID,
		SKUID:       l.SKUID,
		WarehouseID: l.WarehouseID,
		Available:   l.Available,
		Reserved:    l.Reserved,
		Damaged:     l.Damaged,
		UnitCost:    l.UnitCost,
		UpdatedAt:   l.UpdatedAt,
	}
}

func FromStockLevels(list []*entity.StockLevel) []StockLevelDTO {
	out := make([]StockLevelDTO, 0, len(list))
	for _, l := range list {
		out = append(out, FromStockLevel(l))
	}
	return out
}

func FromReservations(list []*entity.Reservation) []ReservationDTO {
	out := make([]ReservationDTO, 0, len(list))
	for _, r := range list {
		out = append(out, ReservationDTO{
			ID:               r.ID,
			OrderID:          r.OrderID,
			SKUID:            r.SKUID,
			WarehouseID:      r.WarehouseID,
			QuantityReserved: r.QuantityReserved,
			Status:           r.Status(),
			CreatedAt:        r.CreatedAt,
			ReleasedAt:       r.ReleasedAt,
			ReleaseReason:    r.ReleaseReason,
		})
	}
	return out
}

func FromAuditAdjustments(list []*entity.AuditAdjustment) []AuditAdjustmentDTO {
	out := make([]AuditAdjustmentDTO, 0, len(list))
	for _, a := range list {
		out = append(out, AuditAdjustmentDTO{
			ID:            a.ID,
			QuantityDelta: a.QuantityDelta,
			Reason:        a.Reason,
			ReferenceID:   a.ReferenceID,
			Notes:         a.Notes,
			CreatedBy:     a.CreatedBy,
			CreatedAt:     a.CreatedAt,
		})
	}
	return out
}

func FromValuation(list []entity.WarehouseValuation) []WarehouseValuationDTO {
	out := make([]WarehouseValuationDTO, 0, len(list))
	for _, v := range list {
		out = append(out, WarehouseValuationDTO{WarehouseID: v.WarehouseID, Units: v.Units, Value: v.Value})
	}
	return out
}
