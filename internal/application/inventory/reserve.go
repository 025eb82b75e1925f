package inventory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// Reserve reserva todas las líneas del pedido o ninguna. Si el pedido ya tiene reservas
// activas las devuelve sin tocar el libro (idempotente).
//
// Las líneas se procesan en orden ascendente de SKU: todos los llamadores adquieren los
// bloqueos por SKU en el mismo orden total, así no hay espera circular entre transacciones.
func (e *ReservationEngine) Reserve(ctx context.Context, organizationID, orderID string) ([]*entity.Reservation, error) {
	start := time.Now()
	if organizationID == "" || orderID == "" {
		e.observe(OpReserve, start, OutcomeInvalidInput)
		return nil, domain.ErrInvalidInput
	}

	var (
		result  []*entity.Reservation
		existed bool
	)
	err := e.withRetry(ctx, OpReserve, func() error {
		var err error
		result, existed, err = e.reserveTx(ctx, organizationID, orderID)
		return err
	})
	if err != nil {
		e.observe(OpReserve, start, outcomeOf(err))
		e.logFailure(OpReserve, err, map[string]any{"organization_id": organizationID, "order_id": orderID})
		return nil, err
	}

	outcome := OutcomeOK
	if existed {
		outcome = OutcomeNoop
	}
	e.observe(OpReserve, start, outcome)
	e.log.Debug().
		Str("order_id", orderID).
		Int("reservations", len(result)).
		Bool("idempotent", existed).
		Dur("elapsed", time.Since(start)).
		Msg("pedido reservado")
	return result, nil
}

func (e *ReservationEngine) reserveTx(ctx context.Context, organizationID, orderID string) ([]*entity.Reservation, bool, error) {
	var (
		created []*entity.Reservation
		existed bool
	)
	err := e.txRunner.Run(ctx, func(ctx context.Context, repos TxRepos) error {
		created, existed = nil, false

		if err := repos.Locks.LockOrder(ctx, organizationID, orderID); err != nil {
			return err
		}
		active, err := repos.Reservations.ListActiveByOrder(ctx, organizationID, orderID)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			created, existed = active, true
			return nil
		}

		order, err := repos.Orders.GetWithLines(ctx, organizationID, orderID)
		if err != nil {
			return err
		}
		lines, err := sortedLines(order)
		if err != nil {
			return err
		}

		for _, line := range lines {
			r, err := e.reserveLine(ctx, repos, organizationID, orderID, line)
			if err != nil {
				return err
			}
			created = append(created, r)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return created, existed, nil
}

// reserveLine bloquea las filas del SKU, elige la primera bodega con stock suficiente
// y mueve la cantidad de available a reserved con su registro de auditoría.
func (e *ReservationEngine) reserveLine(ctx context.Context, repos TxRepos, organizationID, orderID string, line entity.OrderLine) (*entity.Reservation, error) {
	levels, err := repos.Levels.LockBySKU(ctx, organizationID, line.SKUID)
	if err != nil {
		return nil, err
	}

	level := pickWarehouse(levels, line.Quantity)
	if level == nil {
		return nil, &domain.StockError{
			Kind:      domain.ErrInsufficientStock,
			SKUID:     line.SKUID,
			Requested: line.Quantity,
			Available: totalAvailable(levels),
		}
	}
	if limit := e.cfg.MaxReservedPerLevel; limit > 0 && line.Quantity > limit-level.Reserved {
		return nil, &domain.StockError{
			Kind:        domain.ErrCapacityExceeded,
			SKUID:       line.SKUID,
			WarehouseID: level.WarehouseID,
			Requested:   line.Quantity,
			Available:   limit - level.Reserved,
		}
	}

	now := e.now()
	r := &entity.Reservation{
		ID:               uuid.New().String(),
		OrganizationID:   organizationID,
		OrderID:          orderID,
		SKUID:            line.SKUID,
		WarehouseID:      level.WarehouseID,
		QuantityReserved: line.Quantity,
		CreatedAt:        now,
	}
	if err := repos.Reservations.Create(ctx, r); err != nil {
		return nil, err
	}

	level.Available -= line.Quantity
	level.Reserved += line.Quantity
	level.UpdatedAt = now
	if err := repos.Levels.UpdateQuantities(ctx, level); err != nil {
		return nil, err
	}

	if err := repos.Audit.Append(ctx, &entity.AuditAdjustment{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		SKUID:          line.SKUID,
		WarehouseID:    level.WarehouseID,
		QuantityDelta:  -line.Quantity,
		Reason:         entity.AuditReasonReservation,
		ReferenceID:    orderID,
		Notes:          "reserva " + r.ID,
		CreatedBy:      ActorSystem,
		CreatedAt:      now,
	}); err != nil {
		return nil, err
	}
	return r, nil
}

// sortedLines valida las líneas y las ordena por SKU (orden global de bloqueo).
func sortedLines(order *entity.Order) ([]entity.OrderLine, error) {
	if order == nil || len(order.Lines) == 0 {
		return nil, fmt.Errorf("%w: pedido sin líneas", domain.ErrInvalidInput)
	}
	lines := make([]entity.OrderLine, len(order.Lines))
	copy(lines, order.Lines)
	for _, l := range lines {
		if l.SKUID == "" || l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: línea %q con sku o cantidad inválidos", domain.ErrInvalidInput, l.ID)
		}
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].SKUID != lines[j].SKUID {
			return lines[i].SKUID < lines[j].SKUID
		}
		return lines[i].ID < lines[j].ID
	})
	return lines, nil
}

// pickWarehouse primera bodega (orden del bloqueo) con available suficiente; no divide líneas.
func pickWarehouse(levels []*entity.StockLevel, quantity int64) *entity.StockLevel {
	for _, l := range levels {
		if l.Available >= quantity {
			return l
		}
	}
	return nil
}

func totalAvailable(levels []*entity.StockLevel) int64 {
	var total int64
	for _, l := range levels {
		if l.Available > math.MaxInt64-total {
			return math.MaxInt64
		}
		total += l.Available
	}
	return total
}
