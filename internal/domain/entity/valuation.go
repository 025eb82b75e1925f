package entity

import "github.com/shopspring/decimal"

// WarehouseValuation valor del inventario en mano de una bodega.
type WarehouseValuation struct {
	WarehouseID string
	Units       int64
	Value       decimal.Decimal
}
