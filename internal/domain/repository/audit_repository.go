package repository

import (
	"context"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// AuditRepository puerto del rastro de auditoría (append-only).
type AuditRepository interface {
	Append(ctx context.Context, a *entity.AuditAdjustment) error
	SumDeltas(ctx context.Context, organizationID, skuID, warehouseID string) (int64, error)
	ListByLevel(ctx context.Context, organizationID, skuID, warehouseID string, limit, offset int) ([]*entity.AuditAdjustment, error)
}
