package entity

import "time"

// Reservation compromete unidades de available a reserved para una línea de pedido.
// Activa mientras ReleasedAt es nil; el paso a liberada es terminal.
type Reservation struct {
	ID               string
	OrganizationID   string
	OrderID          string
	SKUID            string
	WarehouseID      string
	QuantityReserved int64
	CreatedAt        time.Time
	ReleasedAt       *time.Time
	ReleaseReason    string
}

// Estados derivados de ReleasedAt.
const (
	ReservationStatusActive   = "ACTIVE"
	ReservationStatusReleased = "RELEASED"
)

// IsActive indica si la reserva no ha sido liberada.
func (r *Reservation) IsActive() bool {
	return r.ReleasedAt == nil
}

// Status devuelve ACTIVE o RELEASED.
func (r *Reservation) Status() string {
	if r.IsActive() {
		return ReservationStatusActive
	}
	return ReservationStatusReleased
}

// ReleaseReason motivos admitidos para liberar reservas.
const (
	ReleaseReasonCancellation   = "cancellation"
	ReleaseReasonReturn         = "return"
	ReleaseReasonSystemRecovery = "system_recovery"
)

// IsValidReleaseReason valida contra el conjunto cerrado de motivos.
func IsValidReleaseReason(reason string) bool {
	switch reason {
	case ReleaseReasonCancellation, ReleaseReasonReturn, ReleaseReasonSystemRecovery:
		return true
	}
	return false
}
