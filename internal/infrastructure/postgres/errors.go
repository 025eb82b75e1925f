package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/inventario-reservas/internal/domain"
)

// Códigos SQLSTATE que el motor distingue.
const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// classifyError traduce fallas del almacén a la taxonomía del dominio sin perder la causa.
// Los errores que ya son del dominio pasan intactos.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrTimeout) || errors.Is(err, domain.ErrConcurrentModification) {
		return err
	}
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
		return fmt.Errorf("%w: %w", domain.ErrConcurrentModification, err)
	case codeLockNotAvailable, codeQueryCanceled:
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	case codeCheckViolation:
		// El CHECK de la tabla es la última red: el motor valida antes de escribir.
		return fmt.Errorf("violación de invariante de stock: %w", err)
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) ||
		strings.Contains(err.Error(), "context deadline exceeded") {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return err
}
