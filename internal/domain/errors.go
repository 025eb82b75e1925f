package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound               = errors.New("recurso no encontrado")
	ErrInvalidInput           = errors.New("entrada inválida")
	ErrUnauthorized           = errors.New("no autorizado")
	ErrForbidden              = errors.New("acceso denegado")
	ErrInsufficientStock      = errors.New("stock insuficiente")
	ErrCapacityExceeded       = errors.New("capacidad de reserva excedida")
	ErrNegativeStock          = errors.New("el stock disponible no puede ser negativo")
	ErrTimeout                = errors.New("tiempo de transacción agotado")
	ErrConcurrentModification = errors.New("modificación concurrente")
)

// StockError detalla un rechazo de negocio sobre cantidades.
// Envuelve uno de ErrInsufficientStock, ErrCapacityExceeded o ErrNegativeStock.
type StockError struct {
	Kind        error
	SKUID       string
	WarehouseID string // vacío cuando el rechazo abarca todas las bodegas
	Requested   int64
	Available   int64
}

func (e *StockError) Error() string {
	if e.WarehouseID == "" {
		return fmt.Sprintf("%s: sku %s solicitado %d, disponible %d", e.Kind, e.SKUID, e.Requested, e.Available)
	}
	return fmt.Sprintf("%s: sku %s bodega %s solicitado %d, disponible %d",
		e.Kind, e.SKUID, e.WarehouseID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return e.Kind }

// IsRetryable indica si el llamador puede reintentar con seguridad (Reserve/Release son idempotentes).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrConcurrentModification)
}
