package entity

import "time"

// Motivos que escribe el propio motor en el rastro de auditoría.
const (
	AuditReasonReservation = "reservation"
	AuditReasonIntake      = "intake"
)

// AuditAdjustment registro inmutable de un cambio de cantidad sobre available.
// La suma de QuantityDelta por (sku, bodega) debe coincidir con StockLevel.Available.
type AuditAdjustment struct {
	ID             string
	OrganizationID string
	SKUID          string
	WarehouseID    string
	QuantityDelta  int64
	Reason         string
	ReferenceID    string // pedido, reserva o documento externo
	Notes          string
	CreatedBy      string
	CreatedAt      time.Time
}
