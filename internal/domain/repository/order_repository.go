package repository

import (
	"context"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// OrderRepository lectura del pedido y sus líneas, siempre acotada a la organización.
type OrderRepository interface {
	GetWithLines(ctx context.Context, organizationID, orderID string) (*entity.Order, error)
}
