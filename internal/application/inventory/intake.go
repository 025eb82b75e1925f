package inventory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	domaininv "github.com/jhoicas/inventario-reservas/internal/domain/inventory"
)

// IntakeInput ingreso de stock a una bodega. UnitCost es opcional.
type IntakeInput struct {
	OrganizationID string
	SKUID          string
	WarehouseID    string
	Quantity       int64
	UnitCost       *decimal.Decimal
	Actor          string
	ReferenceID    string
}

func (in IntakeInput) validate() error {
	if in.OrganizationID == "" || in.SKUID == "" || in.WarehouseID == "" || in.Quantity <= 0 ||
		strings.TrimSpace(in.Actor) == "" {
		return domain.ErrInvalidInput
	}
	if in.UnitCost != nil && in.UnitCost.IsNegative() {
		return fmt.Errorf("%w: costo unitario negativo", domain.ErrInvalidInput)
	}
	return nil
}

// ReceiveStock suma unidades a available. Crea el nivel si no existe; si existe lo bloquea.
// El primer registro de auditoría de cada nivel nace aquí, así la conciliación cuadra desde el inicio.
func (e *ReservationEngine) ReceiveStock(ctx context.Context, in IntakeInput) (*entity.StockLevel, error) {
	start := time.Now()
	if err := in.validate(); err != nil {
		e.observe(OpIntake, start, OutcomeInvalidInput)
		return nil, err
	}

	var result *entity.StockLevel
	err := e.txRunner.Run(ctx, func(ctx context.Context, repos TxRepos) error {
		now := e.now()
		level, err := repos.Levels.GetBySKUWarehouseForUpdate(ctx, in.OrganizationID, in.SKUID, in.WarehouseID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			level = &entity.StockLevel{
				ID:             uuid.New().String(),
				OrganizationID: in.OrganizationID,
				SKUID:          in.SKUID,
				WarehouseID:    in.WarehouseID,
				Available:      in.Quantity,
				UnitCost:       decimal.Zero,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if in.UnitCost != nil {
				level.UnitCost = *in.UnitCost
			}
			if err := repos.Levels.Create(ctx, level); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if in.Quantity > math.MaxInt64-level.OnHand() {
				return fmt.Errorf("%w: ingreso de %d desborda el nivel %s (en mano %d)", domain.ErrInvalidInput, in.Quantity, level.ID, level.OnHand())
			}
			if in.UnitCost != nil {
				level.UnitCost = domaininv.WeightedAverageCost(level.OnHand(), level.UnitCost, in.Quantity, *in.UnitCost)
			}
			level.Available += in.Quantity
			level.UpdatedAt = now
			if err := repos.Levels.UpdateQuantities(ctx, level); err != nil {
				return err
			}
		}

		if err := repos.Audit.Append(ctx, &entity.AuditAdjustment{
			ID:             uuid.New().String(),
			OrganizationID: in.OrganizationID,
			SKUID:          in.SKUID,
			WarehouseID:    in.WarehouseID,
			QuantityDelta:  in.Quantity,
			Reason:         entity.AuditReasonIntake,
			ReferenceID:    in.ReferenceID,
			CreatedBy:      in.Actor,
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		result = level
		return nil
	})
	e.observe(OpIntake, start, outcomeOf(err))
	if err != nil {
		e.logFailure(OpIntake, err, map[string]any{"sku_id": in.SKUID, "warehouse_id": in.WarehouseID})
		return nil, err
	}
	return result, nil
}
