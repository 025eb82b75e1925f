package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

// TxOptions presupuesto de cada transacción.
type TxOptions struct {
	Timeout     time.Duration // tope total de la tx, incluida la espera por bloqueos
	LockTimeout time.Duration // lock_timeout local; 0 = sin tope propio
}

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL en READ COMMITTED.
// La exclusión entre escritores la dan los SELECT ... FOR UPDATE de los repositorios.
type TxRunner struct {
	pool *pgxpool.Pool
	opts TxOptions
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool, opts TxOptions) *TxRunner {
	return &TxRunner{pool: pool, opts: opts}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(ctx context.Context, repos inventory.TxRepos) error) error {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classifyError(fmt.Errorf("begin transaction: %w", err))
	}
	// Rollback con contexto propio: el de la tx puede estar vencido.
	defer func() { _ = tx.Rollback(context.Background()) }()

	if r.opts.LockTimeout > 0 {
		ms := r.opts.LockTimeout.Milliseconds()
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)); err != nil {
			return classifyError(fmt.Errorf("set lock_timeout: %w", err))
		}
	}

	if err := fn(ctx, Repos(tx)); err != nil {
		return classifyError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// Repos arma el conjunto de repositorios sobre q (pool o tx).
func Repos(q Querier) inventory.TxRepos {
	return inventory.TxRepos{
		Levels:       NewStockLevelRepository(q),
		Reservations: NewReservationRepository(q),
		Audit:        NewAuditRepository(q),
		Orders:       NewOrderRepository(q),
		Locks:        NewLockRepository(q),
	}
}
