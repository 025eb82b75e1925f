package inventory

import (
	"context"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// GetLevel obtiene un nivel de stock de la organización.
func (e *ReservationEngine) GetLevel(ctx context.Context, organizationID, levelID string) (*entity.StockLevel, error) {
	if organizationID == "" || levelID == "" {
		return nil, domain.ErrInvalidInput
	}
	var level *entity.StockLevel
	err := e.txRunner.Run(ctx, func(ctx context.Context, repos TxRepos) error {
		var err error
		level, err = repos.Levels.GetByID(ctx, organizationID, levelID)
		return err
	})
	return level, err
}

// ListLevels lista los niveles de la organización; skuID vacío = todos.
func (e *ReservationEngine) ListLevels(ctx context.Context, organizationID, skuID string) ([]*entity.StockLevel, error) {
	if organizationID == "" {
		return nil, domain.ErrInvalidInput
	}
	var levels []*entity.StockLevel
	err := e.txRunner.Run(ctx, func(ctx context.Context, repos TxRepos) error {
		var err error
		if skuID != "" {
			levels, err = repos.Levels.ListBySKU(ctx, organizationID, skuID)
		} else {
			levels, err = repos.Levels.ListByOrganization(ctx, organizationID)
		}
		return err
	})
	return levels, err
}

// ListReservations historial de reservas del pedido (activas y liberadas).
func (e *ReservationEngine) ListReservations(ctx context.Context, organizationID, orderID string) ([]*entity.Reservation, error) {
	if organizationID == "" || orderID == "" {
		return nil, domain.ErrInvalidInput
	}
	var list []*entity.Reservation
	err := e.txRunner.Run(ctx, func(ctx context.Context, repos TxRepos) error {
		var err error
		list, err = repos.Reservations.ListByOrder(ctx, organizationID, orderID)
		return err
	})
	return list, err
}

// AuditTrail registros de auditoría del nivel, más recientes primero.
func (e *ReservationEngine) AuditTrail(ctx context.Context, organizationID, levelID string, limit, offset int) ([]*entity.AuditAdjustment, error) {
	if organizationID == "" || levelID == "" {
		return nil, domain.ErrInvalidInput
	}
	switch {
	case limit <= 0:
		limit = 50
	case limit > 500:
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	var list []*entity.AuditAdjustment
	err := e.txRunner.Run(ctx, func(ctx context.Context, repos TxRepos) error {
		level, err := repos.Levels.GetByID(ctx, organizationID, levelID)
		if err != nil {
			return err
		}
		list, err = repos.Audit.ListByLevel(ctx, organizationID, level.SKUID, level.WarehouseID, limit, offset)
		return err
	})
	return list, err
}

// Valuation valor del inventario en mano por bodega.
func (e *ReservationEngine) Valuation(ctx context.Context, organizationID string) ([]entity.WarehouseValuation, error) {
	if organizationID == "" {
		return nil, domain.ErrInvalidInput
	}
	var out []entity.WarehouseValuation
	err := e.txRunner.Run(ctx, func(ctx context.Context, repos TxRepos) error {
		var err error
		out, err = repos.Levels.Valuation(ctx, organizationID)
		return err
	})
	return out, err
}
