package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

var _ repository.ReservationRepository = (*ReservationRepo)(nil)

// ReservationRepo libro de reservas sobre PostgreSQL.
type ReservationRepo struct {
	q Querier
}

// NewReservationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewReservationRepository(q Querier) *ReservationRepo {
	return &ReservationRepo{q: q}
}

func (r *ReservationRepo) Create(ctx context.Context, res *entity.Reservation) error {
	query := `
		INSERT INTO reservations (id, organization_id, order_id, sku_id, warehouse_id, quantity_reserved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		res.ID, res.OrganizationID, res.OrderID, res.SKUID, res.WarehouseID, res.QuantityReserved, res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepo) ListActiveByOrder(ctx context.Context, organizationID, orderID string) ([]*entity.Reservation, error) {
	return r.list(ctx, `AND released_at IS NULL`, organizationID, orderID)
}

func (r *ReservationRepo) ListByOrder(ctx context.Context, organizationID, orderID string) ([]*entity.Reservation, error) {
	return r.list(ctx, "", organizationID, orderID)
}

func (r *ReservationRepo) list(ctx context.Context, filter, organizationID, orderID string) ([]*entity.Reservation, error) {
	query := `
		SELECT id, organization_id, order_id, sku_id, warehouse_id, quantity_reserved, created_at, released_at, release_reason
		FROM reservations
		WHERE organization_id = $1 AND order_id = $2 ` + filter + `
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, organizationID, orderID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()
	var list []*entity.Reservation
	for rows.Next() {
		var res entity.Reservation
		var reason *string
		if err := rows.Scan(&res.ID, &res.OrganizationID, &res.OrderID, &res.SKUID, &res.WarehouseID,
			&res.QuantityReserved, &res.CreatedAt, &res.ReleasedAt, &reason); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		if reason != nil {
			res.ReleaseReason = *reason
		}
		list = append(list, &res)
	}
	return list, rows.Err()
}

// MarkReleased marca la reserva como liberada. Solo afecta reservas activas: si ya fue
// liberada devuelve ErrNotFound.
func (r *ReservationRepo) MarkReleased(ctx context.Context, organizationID, reservationID, reason string, at time.Time) error {
	query := `
		UPDATE reservations SET released_at = $3, release_reason = $4
		WHERE organization_id = $1 AND id = $2 AND released_at IS NULL`
	tag, err := r.q.Exec(ctx, query, organizationID, reservationID, at, reason)
	if err != nil {
		return fmt.Errorf("release reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
