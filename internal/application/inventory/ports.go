package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

// TxRepos repositorios atados a una misma transacción.
type TxRepos struct {
	Levels       repository.StockLevelRepository
	Reservations repository.ReservationRepository
	Audit        repository.AuditRepository
	Orders       repository.OrderRepository
	Locks        repository.LockRepository
}

// TxRunner ejecuta fn dentro de una transacción con presupuesto de tiempo acotado.
// Commit si fn devuelve nil, Rollback en cualquier otro caso. Los errores del almacén
// salen clasificados como domain.ErrTimeout o domain.ErrConcurrentModification cuando aplica.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, repos TxRepos) error) error
}

// Metrics puerto de métricas del motor.
type Metrics interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
	IncRetry(op string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, string, time.Duration) {}
func (nopMetrics) IncRetry(string)                                {}
