package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockLevel representa los contadores de un SKU en una bodega, únicos por (organización, sku, bodega).
// Invariante: Available >= 0 y Reserved >= 0 en todo estado confirmado. Damaged no se valida aquí.
type StockLevel struct {
	ID             string
	OrganizationID string
	SKUID          string
	WarehouseID    string
	Available      int64
	Reserved       int64
	Damaged        int64
	UnitCost       decimal.Decimal // costo unitario registrado en el último ingreso
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OnHand unidades vendibles o retenidas (available + reserved).
func (l *StockLevel) OnHand() int64 {
	return l.Available + l.Reserved
}

// Clone copia el nivel para que el llamador pueda mutarlo sin afectar el original.
func (l *StockLevel) Clone() *StockLevel {
	c := *l
	return &c
}
