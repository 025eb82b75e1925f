package inventory

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// AdjustInput corrección manual de available, independiente de pedidos.
type AdjustInput struct {
	OrganizationID string
	LevelID        string
	Delta          int64 // con signo, distinto de cero
	Reason         string
	Actor          string
	ReferenceID    string
	Notes          string
}

func (in AdjustInput) validate() error {
	if in.OrganizationID == "" || in.LevelID == "" || in.Delta == 0 ||
		strings.TrimSpace(in.Reason) == "" || strings.TrimSpace(in.Actor) == "" {
		return domain.ErrInvalidInput
	}
	return nil
}

// Adjust aplica delta sobre available del nivel bloqueado. Falla con ErrNegativeStock
// antes de escribir si el resultado fuera negativo. No es idempotente: no se reintenta.
func (e *ReservationEngine) Adjust(ctx context.Context, in AdjustInput) (*entity.StockLevel, error) {
	start := time.Now()
	if err := in.validate(); err != nil {
		e.observe(OpAdjust, start, OutcomeInvalidInput)
		return nil, err
	}

	var updated *entity.StockLevel
	err := e.txRunner.Run(ctx, func(ctx context.Context, repos TxRepos) error {
		level, err := repos.Levels.GetForUpdate(ctx, in.OrganizationID, in.LevelID)
		if err != nil {
			return err
		}
		if in.Delta > 0 && in.Delta > math.MaxInt64-level.OnHand() {
			return fmt.Errorf("%w: ajuste de %d desborda el nivel %s (en mano %d)", domain.ErrInvalidInput, in.Delta, level.ID, level.OnHand())
		}
		newAvailable := level.Available + in.Delta
		if newAvailable < 0 {
			return &domain.StockError{
				Kind:        domain.ErrNegativeStock,
				SKUID:       level.SKUID,
				WarehouseID: level.WarehouseID,
				Requested:   -in.Delta,
				Available:   level.Available,
			}
		}

		now := e.now()
		level.Available = newAvailable
		level.UpdatedAt = now
		if err := repos.Levels.UpdateQuantities(ctx, level); err != nil {
			return err
		}
		if err := repos.Audit.Append(ctx, &entity.AuditAdjustment{
			ID:             uuid.New().String(),
			OrganizationID: in.OrganizationID,
			SKUID:          level.SKUID,
			WarehouseID:    level.WarehouseID,
			QuantityDelta:  in.Delta,
			Reason:         in.Reason,
			ReferenceID:    in.ReferenceID,
			Notes:          in.Notes,
			CreatedBy:      in.Actor,
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		updated = level
		return nil
	})
	e.observe(OpAdjust, start, outcomeOf(err))
	if err != nil {
		e.logFailure(OpAdjust, err, map[string]any{"level_id": in.LevelID, "delta": in.Delta, "actor": in.Actor})
		return nil, err
	}
	e.log.Info().
		Str("level_id", updated.ID).
		Int64("delta", in.Delta).
		Int64("available", updated.Available).
		Str("reason", in.Reason).
		Str("actor", in.Actor).
		Msg("ajuste manual aplicado")
	return updated, nil
}
