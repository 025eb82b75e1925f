package repository

import "context"

// LockRepository candados lógicos de transacción (liberados en Commit/Rollback).
type LockRepository interface {
	// LockOrder serializa Reserve/Release del mismo pedido para que el chequeo de idempotencia no compita.
	LockOrder(ctx context.Context, organizationID, orderID string) error
}
