package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo rastro de auditoría append-only sobre PostgreSQL.
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

// Append persiste un registro de auditoría.
func (r *AuditRepo) Append(ctx context.Context, a *entity.AuditAdjustment) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	query := `
		INSERT INTO audit_adjustments (id, organization_id, sku_id, warehouse_id, quantity_delta, reason, reference_id, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	referenceID := (*string)(nil)
	if a.ReferenceID != "" {
		referenceID = &a.ReferenceID
	}
	_, err := r.q.Exec(ctx, query,
		a.ID, a.OrganizationID, a.SKUID, a.WarehouseID, a.QuantityDelta,
		a.Reason, referenceID, a.Notes, a.CreatedBy, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit adjustment: %w", err)
	}
	return nil
}

func (r *AuditRepo) SumDeltas(ctx context.Context, organizationID, skuID, warehouseID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(quantity_delta), 0)::bigint
		FROM audit_adjustments
		WHERE organization_id = $1 AND sku_id = $2 AND warehouse_id = $3`
	var sum int64
	if err := r.q.QueryRow(ctx, query, organizationID, skuID, warehouseID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum audit deltas: %w", err)
	}
	return sum, nil
}

// ListByLevel más recientes primero.
func (r *AuditRepo) ListByLevel(ctx context.Context, organizationID, skuID, warehouseID string, limit, offset int) ([]*entity.AuditAdjustment, error) {
	query := `
		SELECT id, organization_id, sku_id, warehouse_id, quantity_delta, reason, reference_id, notes, created_by, created_at
		FROM audit_adjustments
		WHERE organization_id = $1 AND sku_id = $2 AND warehouse_id = $3
		ORDER BY created_at DESC, seq DESC
		LIMIT $4 OFFSET $5`
	rows, err := r.q.Query(ctx, query, organizationID, skuID, warehouseID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit adjustments: %w", err)
	}
	defer rows.Close()
	var list []*entity.AuditAdjustment
	for rows.Next() {
		var a entity.AuditAdjustment
		var referenceID *string
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.SKUID, &a.WarehouseID, &a.QuantityDelta,
			&a.Reason, &referenceID, &a.Notes, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit adjustment: %w", err)
		}
		if referenceID != nil {
			a.ReferenceID = *referenceID
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}
