package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

var (
	_ repository.OrderRepository = (*OrderRepo)(nil)
	_ repository.LockRepository  = (*LockRepo)(nil)
)

// OrderRepo lectura de pedidos. Los pedidos los escribe otro sistema.
type OrderRepo struct {
	q Querier
}

// NewOrderRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOrderRepository(q Querier) *OrderRepo {
	return &OrderRepo{q: q}
}

func (r *OrderRepo) GetWithLines(ctx context.Context, organizationID, orderID string) (*entity.Order, error) {
	var o entity.Order
	err := r.q.QueryRow(ctx,
		`SELECT id, organization_id FROM orders WHERE organization_id = $1 AND id = $2`,
		organizationID, orderID,
	).Scan(&o.ID, &o.OrganizationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := r.q.Query(ctx,
		`SELECT id, sku_id, quantity FROM order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l entity.OrderLine
		if err := rows.Scan(&l.ID, &l.SKUID, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	return &o, nil
}

// LockRepo candados consultivos de transacción.
type LockRepo struct {
	q Querier
}

// NewLockRepository construye el adaptador. Solo tiene efecto dentro de una tx.
func NewLockRepository(q Querier) *LockRepo {
	return &LockRepo{q: q}
}

// LockOrder toma pg_advisory_xact_lock sobre (organización, pedido); se suelta en Commit/Rollback.
func (r *LockRepo) LockOrder(ctx context.Context, organizationID, orderID string) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`, organizationID, orderID); err != nil {
		return fmt.Errorf("lock order %s: %w", orderID, err)
	}
	return nil
}
