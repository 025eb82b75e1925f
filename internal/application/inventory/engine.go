package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/pkg/logger"
)

// Operaciones instrumentadas.
const (
	OpReserve   = "reserve"
	OpRelease   = "release"
	OpAdjust    = "adjust"
	OpIntake    = "intake"
	OpReconcile = "reconcile"
)

// Resultados para métricas.
const (
	OutcomeOK                = "ok"
	OutcomeNoop              = "noop"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeCapacityExceeded  = "capacity_exceeded"
	OutcomeNegativeStock     = "negative_stock"
	OutcomeNotFound          = "not_found"
	OutcomeInvalidInput      = "invalid_input"
	OutcomeTimeout           = "timeout"
	OutcomeConflict          = "conflict"
	OutcomeError             = "error"
)

// ActorSystem autor de los registros de auditoría que no provienen de una persona.
const ActorSystem = "system"

// EngineConfig límites del motor. TxTimeout vive en el TxRunner.
type EngineConfig struct {
	MaxReservedPerLevel  int64 // 0 = sin tope
	MaxRetries           int
	RetryBackoff         time.Duration
	ReconcileConcurrency int
}

// ReservationEngine reserva, libera y ajusta stock. No mantiene candados en memoria:
// toda la coordinación son bloqueos de fila dentro de transacciones por llamada.
type ReservationEngine struct {
	txRunner TxRunner
	cfg      EngineConfig
	log      *logger.Logger
	metrics  Metrics
	now      func() time.Time
}

// NewReservationEngine construye el motor. log y metrics pueden ser nil.
func NewReservationEngine(txRunner TxRunner, cfg EngineConfig, log *logger.Logger, metrics Metrics) *ReservationEngine {
	if log == nil {
		log = logger.Nop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if cfg.ReconcileConcurrency <= 0 {
		cfg.ReconcileConcurrency = 1
	}
	return &ReservationEngine{
		txRunner: txRunner,
		cfg:      cfg,
		log:      log.Component("reservation_engine"),
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// linearBackOff espera step, 2*step, 3*step... entre intentos.
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.step * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }

// withRetry reintenta fn solo ante ErrConcurrentModification; cada intento abre su propia transacción.
// Si ctx vence durante la espera se devuelve el último error del motor, no el de ctx.
func (e *ReservationEngine) withRetry(ctx context.Context, op string, fn func() error) error {
	maxRetries := e.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: e.cfg.RetryBackoff}, uint64(maxRetries)),
		ctx,
	)

	var lastErr error
	attempt := 0
	err := backoff.RetryNotify(func() error {
		lastErr = fn()
		if lastErr != nil && !errors.Is(lastErr, domain.ErrConcurrentModification) {
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}, policy, func(err error, wait time.Duration) {
		attempt++
		e.metrics.IncRetry(op)
		e.log.Info().Err(err).Str("op", op).Int("attempt", attempt).Dur("wait", wait).
			Msg("conflicto de serialización, reintentando")
	})
	if err != nil && lastErr != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return lastErr
	}
	return err
}

func (e *ReservationEngine) observe(op string, start time.Time, outcome string) {
	e.metrics.ObserveOperation(op, outcome, time.Since(start))
}

// outcomeOf clasifica un error para métricas y logs.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrInsufficientStock):
		return OutcomeInsufficientStock
	case errors.Is(err, domain.ErrCapacityExceeded):
		return OutcomeCapacityExceeded
	case errors.Is(err, domain.ErrNegativeStock):
		return OutcomeNegativeStock
	case errors.Is(err, domain.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return OutcomeInvalidInput
	case errors.Is(err, domain.ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, domain.ErrConcurrentModification):
		return OutcomeConflict
	default:
		return OutcomeError
	}
}

// logFailure registra rechazos de negocio en warn y fallas de infraestructura en error.
func (e *ReservationEngine) logFailure(op string, err error, fields map[string]any) {
	ev := e.log.Warn()
	switch outcomeOf(err) {
	case OutcomeError, OutcomeTimeout, OutcomeConflict:
		ev = e.log.Error()
	}
	ev.Err(err).Str("op", op).Fields(fields).Msg("operación rechazada")
}
