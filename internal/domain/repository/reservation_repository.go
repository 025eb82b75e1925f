package repository

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// ReservationRepository puerto del libro de reservas. Solo inserta y marca liberación.
type ReservationRepository interface {
	Create(ctx context.Context, r *entity.Reservation) error
	ListActiveByOrder(ctx context.Context, organizationID, orderID string) ([]*entity.Reservation, error)
	ListByOrder(ctx context.Context, organizationID, orderID string) ([]*entity.Reservation, error)
	MarkReleased(ctx context.Context, organizationID, reservationID, reason string, at time.Time) error
}
