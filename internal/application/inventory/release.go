package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// Release revierte todas las reservas activas del pedido y devuelve las liberadas.
// Sin reservas activas es un no-op (resultado vacío); si el pedido no existe, ErrNotFound.
func (e *ReservationEngine) Release(ctx context.Context, organizationID, orderID, reason string) ([]*entity.Reservation, error) {
	start := time.Now()
	if organizationID == "" || orderID == "" || !entity.IsValidReleaseReason(reason) {
		e.observe(OpRelease, start, OutcomeInvalidInput)
		return nil, fmt.Errorf("%w: motivo de liberación %q", domain.ErrInvalidInput, reason)
	}

	var released []*entity.Reservation
	err := e.withRetry(ctx, OpRelease, func() error {
		var err error
		released, err = e.releaseTx(ctx, organizationID, orderID, reason)
		return err
	})
	if err != nil {
		e.observe(OpRelease, start, outcomeOf(err))
		e.logFailure(OpRelease, err, map[string]any{"organization_id": organizationID, "order_id": orderID, "reason": reason})
		return nil, err
	}

	outcome := OutcomeOK
	if len(released) == 0 {
		outcome = OutcomeNoop
	}
	e.observe(OpRelease, start, outcome)
	e.log.Debug().
		Str("order_id", orderID).
		Str("reason", reason).
		Int("released", len(released)).
		Dur("elapsed", time.Since(start)).
		Msg("reservas liberadas")
	return released, nil
}

func (e *ReservationEngine) releaseTx(ctx context.Context, organizationID, orderID, reason string) ([]*entity.Reservation, error) {
	var released []*entity.Reservation
	err := e.txRunner.Run(ctx, func(ctx context.Context, repos TxRepos) error {
		released = nil

		if err := repos.Locks.LockOrder(ctx, organizationID, orderID); err != nil {
			return err
		}
		active, err := repos.Reservations.ListActiveByOrder(ctx, organizationID, orderID)
		if err != nil {
			return err
		}
		if len(active) == 0 {
			// Distingue pedido inexistente de pedido ya liberado.
			_, err := repos.Orders.GetWithLines(ctx, organizationID, orderID)
			return err
		}

		// Mismo orden total (sku, bodega) que Reserve.
		sort.SliceStable(active, func(i, j int) bool {
			a, b := active[i], active[j]
			if a.SKUID != b.SKUID {
				return a.SKUID < b.SKUID
			}
			if a.WarehouseID != b.WarehouseID {
				return a.WarehouseID < b.WarehouseID
			}
			return a.ID < b.ID
		})

		now := e.now()
		for _, r := range active {
			if err := e.releaseOne(ctx, repos, r, reason, now); err != nil {
				return err
			}
			released = append(released, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

func (e *ReservationEngine) releaseOne(ctx context.Context, repos TxRepos, r *entity.Reservation, reason string, now time.Time) error {
	level, err := repos.Levels.GetBySKUWarehouseForUpdate(ctx, r.OrganizationID, r.SKUID, r.WarehouseID)
	if err != nil {
		return fmt.Errorf("nivel de la reserva %s: %w", r.ID, err)
	}
	if level.Reserved < r.QuantityReserved {
		return fmt.Errorf("reserva %s: reserved=%d menor que la cantidad reservada %d en sku %s bodega %s",
			r.ID, level.Reserved, r.QuantityReserved, r.SKUID, r.WarehouseID)
	}

	if err := repos.Reservations.MarkReleased(ctx, r.OrganizationID, r.ID, reason, now); err != nil {
		return err
	}
	level.Available += r.QuantityReserved
	level.Reserved -= r.QuantityReserved
	level.UpdatedAt = now
	if err := repos.Levels.UpdateQuantities(ctx, level); err != nil {
		return err
	}
	if err := repos.Audit.Append(ctx, &entity.AuditAdjustment{
		ID:             uuid.New().String(),
		OrganizationID: r.OrganizationID,
		SKUID:          r.SKUID,
		WarehouseID:    r.WarehouseID,
		QuantityDelta:  r.QuantityReserved,
		Reason:         reason,
		ReferenceID:    r.OrderID,
		Notes:          "liberación de reserva " + r.ID,
		CreatedBy:      ActorSystem,
		CreatedAt:      now,
	}); err != nil {
		return err
	}

	releasedAt := now
	r.ReleasedAt = &releasedAt
	r.ReleaseReason = reason
	return nil
}
