package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

var _ repository.StockLevelRepository = (*StockLevelRepo)(nil)

const stockLevelColumns = `id, organization_id, sku_id, warehouse_id, available, reserved, damaged, unit_cost, created_at, updated_at`

// StockLevelRepo implementación de StockLevelRepository sobre PostgreSQL (usable con pool o tx).
type StockLevelRepo struct {
	q Querier
}

// NewStockLevelRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockLevelRepository(q Querier) *StockLevelRepo {
	return &StockLevelRepo{q: q}
}

func scanStockLevel(row pgx.Row) (*entity.StockLevel, error) {
	var l entity.StockLevel
	err := row.Scan(&l.ID, &l.OrganizationID, &l.SKUID, &l.WarehouseID,
		&l.Available, &l.Reserved, &l.Damaged, &l.UnitCost, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *StockLevelRepo) getOne(ctx context.Context, op, query string, args ...any) (*entity.StockLevel, error) {
	l, err := scanStockLevel(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return l, nil
}

func (r *StockLevelRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.StockLevel, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var list []*entity.StockLevel
	for rows.Next() {
		l, err := scanStockLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		list = append(list, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

func (r *StockLevelRepo) GetByID(ctx context.Context, organizationID, levelID string) (*entity.StockLevel, error) {
	query := `SELECT ` + stockLevelColumns + ` FROM stock_levels WHERE organization_id = $1 AND id = $2`
	return r.getOne(ctx, "get stock level", query, organizationID, levelID)
}

func (r *StockLevelRepo) ListBySKU(ctx context.Context, organizationID, skuID string) ([]*entity.StockLevel, error) {
	query := `SELECT ` + stockLevelColumns + ` FROM stock_levels
		WHERE organization_id = $1 AND sku_id = $2
		ORDER BY warehouse_id`
	return r.list(ctx, "list stock levels by sku", query, organizationID, skuID)
}

func (r *StockLevelRepo) ListByOrganization(ctx context.Context, organizationID string) ([]*entity.StockLevel, error) {
	query := `SELECT ` + stockLevelColumns + ` FROM stock_levels
		WHERE organization_id = $1
		ORDER BY sku_id, warehouse_id`
	return r.list(ctx, "list stock levels", query, organizationID)
}

// LockBySKU bloquea todas las filas del SKU (SELECT FOR UPDATE). El ORDER BY fija el
// orden de adquisición dentro del SKU.
func (r *StockLevelRepo) LockBySKU(ctx context.Context, organizationID, skuID string) ([]*entity.StockLevel, error) {
	query := `SELECT ` + stockLevelColumns + ` FROM stock_levels
		WHERE organization_id = $1 AND sku_id = $2
		ORDER BY warehouse_id
		FOR UPDATE`
	return r.list(ctx, "lock stock levels by sku", query, organizationID, skuID)
}

// GetForUpdate obtiene el nivel y bloquea la fila para update (SELECT FOR UPDATE).
func (r *StockLevelRepo) GetForUpdate(ctx context.Context, organizationID, levelID string) (*entity.StockLevel, error) {
	query := `SELECT ` + stockLevelColumns + ` FROM stock_levels
		WHERE organization_id = $1 AND id = $2
		FOR UPDATE`
	return r.getOne(ctx, "get stock level for update", query, organizationID, levelID)
}

func (r *StockLevelRepo) GetBySKUWarehouseForUpdate(ctx context.Context, organizationID, skuID, warehouseID string) (*entity.StockLevel, error) {
	query := `SELECT ` + stockLevelColumns + ` FROM stock_levels
		WHERE organization_id = $1 AND sku_id = $2 AND warehouse_id = $3
		FOR UPDATE`
	return r.getOne(ctx, "get stock level by sku/warehouse for update", query, organizationID, skuID, warehouseID)
}

// Create inserta el nivel. Una carrera con otro ingreso del mismo (sku, bodega) choca con la
// clave única y sale como ErrConcurrentModification.
func (r *StockLevelRepo) Create(ctx context.Context, level *entity.StockLevel) error {
	query := `
		INSERT INTO stock_levels (` + stockLevelColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		level.ID, level.OrganizationID, level.SKUID, level.WarehouseID,
		level.Available, level.Reserved, level.Damaged, level.UnitCost,
		level.CreatedAt, level.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: nivel %s/%s ya existe: %w", domain.ErrConcurrentModification, level.SKUID, level.WarehouseID, err)
		}
		return fmt.Errorf("create stock level: %w", err)
	}
	return nil
}

// UpdateQuantities persiste contadores y costo. El llamador ya tiene la fila bloqueada.
func (r *StockLevelRepo) UpdateQuantities(ctx context.Context, level *entity.StockLevel) error {
	query := `
		UPDATE stock_levels
		SET available = $3, reserved = $4, damaged = $5, unit_cost = $6, updated_at = $7
		WHERE organization_id = $1 AND id = $2`
	tag, err := r.q.Exec(ctx, query,
		level.OrganizationID, level.ID,
		level.Available, level.Reserved, level.Damaged, level.UnitCost, level.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update stock level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Valuation unidades en mano (available + reserved) y su valor a costo por bodega.
func (r *StockLevelRepo) Valuation(ctx context.Context, organizationID string) ([]entity.WarehouseValuation, error) {
	query := `
		SELECT warehouse_id,
		       COALESCE(SUM(available + reserved), 0)::bigint,
		       COALESCE(SUM((available + reserved) * unit_cost), 0)
		FROM stock_levels
		WHERE organization_id = $1
		GROUP BY warehouse_id
		ORDER BY warehouse_id`
	rows, err := r.q.Query(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("valuation: %w", err)
	}
	defer rows.Close()
	var out []entity.WarehouseValuation
	for rows.Next() {
		var v entity.WarehouseValuation
		if err := rows.Scan(&v.WarehouseID, &v.Units, &v.Value); err != nil {
			return nil, fmt.Errorf("scan valuation: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
