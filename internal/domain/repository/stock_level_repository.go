package repository

import (
	"context"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// StockLevelRepository puerto de los contadores por (sku, bodega).
// Los métodos *ForUpdate y LockBySKU solo tienen sentido dentro de una transacción:
// bloquean las filas hasta Commit/Rollback.
type StockLevelRepository interface {
	GetByID(ctx context.Context, organizationID, levelID string) (*entity.StockLevel, error)
	ListBySKU(ctx context.Context, organizationID, skuID string) ([]*entity.StockLevel, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*entity.StockLevel, error)

	// LockBySKU bloquea en exclusiva todas las filas del SKU, ordenadas por bodega ascendente.
	LockBySKU(ctx context.Context, organizationID, skuID string) ([]*entity.StockLevel, error)
	GetForUpdate(ctx context.Context, organizationID, levelID string) (*entity.StockLevel, error)
	GetBySKUWarehouseForUpdate(ctx context.Context, organizationID, skuID, warehouseID string) (*entity.StockLevel, error)

	Create(ctx context.Context, level *entity.StockLevel) error
	UpdateQuantities(ctx context.Context, level *entity.StockLevel) error

	Valuation(ctx context.Context, organizationID string) ([]entity.WarehouseValuation, error)
}
