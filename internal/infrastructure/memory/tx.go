package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

var (
	_ repository.StockLevelRepository  = levelRepo{}
	_ repository.ReservationRepository = reservationRepo{}
	_ repository.AuditRepository       = auditRepo{}
	_ repository.OrderRepository       = orderRepo{}
	_ repository.LockRepository        = lockRepo{}
)

// tx estado privado de una transacción: candados retenidos y escrituras pendientes.
type tx struct {
	s    *Store
	held map[string]*keyLock

	levels       map[string]*entity.StockLevel // escrituras pendientes por id
	created      map[levelKey]string
	reservations []*entity.Reservation
	releases     map[string]releaseMark
	audits       []*entity.AuditAdjustment
}

func newTx(s *Store) *tx {
	return &tx{
		s:        s,
		held:     make(map[string]*keyLock),
		levels:   make(map[string]*entity.StockLevel),
		created:  make(map[levelKey]string),
		releases: make(map[string]releaseMark),
	}
}

func (t *tx) repos() inventory.TxRepos {
	return inventory.TxRepos{
		Levels:       levelRepo{t},
		Reservations: reservationRepo{t},
		Audit:        auditRepo{t},
		Orders:       orderRepo{t},
		Locks:        lockRepo{t},
	}
}

// lock adquiere el candado exclusivo de key (reentrante dentro de la tx) o falla al vencer ctx.
func (t *tx) lock(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	l := t.s.acquireRef(key)
	select {
	case l.ch <- struct{}{}:
		t.held[key] = l
		return nil
	case <-ctx.Done():
		t.s.dropRef(key, l)
		return fmt.Errorf("%w: esperando bloqueo %s: %w", domain.ErrTimeout, key, ctx.Err())
	}
}

func (t *tx) unlockAll() {
	for key, l := range t.held {
		<-l.ch
		t.s.dropRef(key, l)
		delete(t.held, key)
	}
}

func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, l := range t.levels {
		s.levels[id] = l
	}
	for k, id := range t.created {
		s.levelIndex[k] = id
	}
	s.reservations = append(s.reservations, t.reservations...)
	for _, r := range s.reservations {
		if m, ok := t.releases[r.ID]; ok {
			at := m.at
			r.ReleasedAt = &at
			r.ReleaseReason = m.reason
		}
	}
	s.audits = append(s.audits, t.audits...)
}

// readLevel copia del nivel visible para la tx: pendiente propio o confirmado.
// Llamar sin s.mu retenido.
func (t *tx) readLevel(id string) (*entity.StockLevel, bool) {
	if l, ok := t.levels[id]; ok {
		return l.Clone(), true
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	l, ok := t.s.levels[id]
	if !ok {
		return nil, false
	}
	return l.Clone(), true
}

func (t *tx) levelID(k levelKey) (string, bool) {
	if id, ok := t.created[k]; ok {
		return id, true
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	id, ok := t.s.levelIndex[k]
	return id, ok
}

// visibleLevels niveles de la organización visibles para la tx (sin bloquear).
func (t *tx) visibleLevels(org string, match func(*entity.StockLevel) bool) []*entity.StockLevel {
	t.s.mu.Lock()
	byID := make(map[string]*entity.StockLevel, len(t.s.levels))
	for id, l := range t.s.levels {
		if l.OrganizationID == org {
			byID[id] = l.Clone()
		}
	}
	t.s.mu.Unlock()
	for id, l := range t.levels {
		if l.OrganizationID == org {
			byID[id] = l.Clone()
		}
	}
	var out []*entity.StockLevel
	for _, l := range byID {
		if match(l) {
			out = append(out, l)
		}
	}
	sortLevels(out)
	return out
}

func levelLockKey(id string) string { return "level:" + id }

// ── StockLevelRepository ────────────────────────────────────────────────────

type levelRepo struct{ t *tx }

func (r levelRepo) GetByID(_ context.Context, org, id string) (*entity.StockLevel, error) {
	l, ok := r.t.readLevel(id)
	if !ok || l.OrganizationID != org {
		return nil, domain.ErrNotFound
	}
	return l, nil
}

func (r levelRepo) ListBySKU(_ context.Context, org, sku string) ([]*entity.StockLevel, error) {
	return r.t.visibleLevels(org, func(l *entity.StockLevel) bool { return l.SKUID == sku }), nil
}

func (r levelRepo) ListByOrganization(_ context.Context, org string) ([]*entity.StockLevel, error) {
	return r.t.visibleLevels(org, func(*entity.StockLevel) bool { return true }), nil
}

func (r levelRepo) LockBySKU(ctx context.Context, org, sku string) ([]*entity.StockLevel, error) {
	candidates := r.t.visibleLevels(org, func(l *entity.StockLevel) bool { return l.SKUID == sku })
	out := make([]*entity.StockLevel, 0, len(candidates))
	for _, c := range candidates {
		if err := r.t.lock(ctx, levelLockKey(c.ID)); err != nil {
			return nil, err
		}
		// Releer tras obtener el candado: última versión confirmada.
		l, ok := r.t.readLevel(c.ID)
		if ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r levelRepo) GetForUpdate(ctx context.Context, org, id string) (*entity.StockLevel, error) {
	if l, ok := r.t.readLevel(id); !ok || l.OrganizationID != org {
		return nil, domain.ErrNotFound
	}
	if err := r.t.lock(ctx, levelLockKey(id)); err != nil {
		return nil, err
	}
	l, _ := r.t.readLevel(id)
	return l, nil
}

func (r levelRepo) GetBySKUWarehouseForUpdate(ctx context.Context, org, sku, warehouse string) (*entity.StockLevel, error) {
	id, ok := r.t.levelID(levelKey{org, sku, warehouse})
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.GetForUpdate(ctx, org, id)
}

// Create inserta un nivel nuevo. La clave (org, sku, bodega) se bloquea hasta el fin de la tx;
// si otra tx ya la confirmó se reporta como conflicto, igual que una violación de unicidad.
func (r levelRepo) Create(ctx context.Context, l *entity.StockLevel) error {
	k := levelKey{l.OrganizationID, l.SKUID, l.WarehouseID}
	if err := r.t.lock(ctx, fmt.Sprintf("levelkey:%s/%s/%s", k.org, k.sku, k.warehouse)); err != nil {
		return err
	}
	if _, exists := r.t.levelID(k); exists {
		return fmt.Errorf("%w: nivel %s/%s ya existe", domain.ErrConcurrentModification, l.SKUID, l.WarehouseID)
	}
	if err := r.t.lock(ctx, levelLockKey(l.ID)); err != nil {
		return err
	}
	r.t.levels[l.ID] = l.Clone()
	r.t.created[k] = l.ID
	return nil
}

func (r levelRepo) UpdateQuantities(_ context.Context, l *entity.StockLevel) error {
	if _, ok := r.t.held[levelLockKey(l.ID)]; !ok {
		return fmt.Errorf("update stock level %s: fila no bloqueada en la transacción", l.ID)
	}
	r.t.levels[l.ID] = l.Clone()
	return nil
}

func (r levelRepo) Valuation(_ context.Context, org string) ([]entity.WarehouseValuation, error) {
	levels := r.t.visibleLevels(org, func(*entity.StockLevel) bool { return true })
	byWarehouse := make(map[string]*entity.WarehouseValuation)
	for _, l := range levels {
		v, ok := byWarehouse[l.WarehouseID]
		if !ok {
			v = &entity.WarehouseValuation{WarehouseID: l.WarehouseID}
			byWarehouse[l.WarehouseID] = v
		}
		units := l.OnHand()
		v.Units += units
		v.Value = v.Value.Add(l.UnitCost.Mul(decimal.NewFromInt(units)))
	}
	out := make([]entity.WarehouseValuation, 0, len(byWarehouse))
	for _, v := range byWarehouse {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WarehouseID < out[j].WarehouseID })
	return out, nil
}

// ── ReservationRepository ───────────────────────────────────────────────────

type reservationRepo struct{ t *tx }

func (r reservationRepo) Create(_ context.Context, res *entity.Reservation) error {
	if res.QuantityReserved <= 0 {
		return fmt.Errorf("create reservation: cantidad %d inválida", res.QuantityReserved)
	}
	r.t.reservations = append(r.t.reservations, cloneReservation(res))
	return nil
}

// visible reservas del pedido con las liberaciones pendientes aplicadas.
func (r reservationRepo) visible(org, order string) []*entity.Reservation {
	r.t.s.mu.Lock()
	var out []*entity.Reservation
	for _, res := range r.t.s.reservations {
		if res.OrganizationID == org && res.OrderID == order {
			out = append(out, cloneReservation(res))
		}
	}
	r.t.s.mu.Unlock()
	for _, res := range r.t.reservations {
		if res.OrganizationID == org && res.OrderID == order {
			out = append(out, cloneReservation(res))
		}
	}
	for _, res := range out {
		if m, ok := r.t.releases[res.ID]; ok {
			at := m.at
			res.ReleasedAt = &at
			res.ReleaseReason = m.reason
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r reservationRepo) ListActiveByOrder(_ context.Context, org, order string) ([]*entity.Reservation, error) {
	var active []*entity.Reservation
	for _, res := range r.visible(org, order) {
		if res.IsActive() {
			active = append(active, res)
		}
	}
	return active, nil
}

func (r reservationRepo) ListByOrder(_ context.Context, org, order string) ([]*entity.Reservation, error) {
	return r.visible(org, order), nil
}

func (r reservationRepo) MarkReleased(_ context.Context, org, id, reason string, at time.Time) error {
	for _, res := range r.t.reservations {
		if res.ID == id && res.OrganizationID == org {
			if _, done := r.t.releases[id]; done {
				return domain.ErrNotFound
			}
			r.t.releases[id] = releaseMark{reason: reason, at: at}
			return nil
		}
	}
	r.t.s.mu.Lock()
	defer r.t.s.mu.Unlock()
	for _, res := range r.t.s.reservations {
		if res.ID == id && res.OrganizationID == org {
			if _, done := r.t.releases[id]; done || !res.IsActive() {
				return domain.ErrNotFound
			}
			r.t.releases[id] = releaseMark{reason: reason, at: at}
			return nil
		}
	}
	return domain.ErrNotFound
}

// ── AuditRepository ─────────────────────────────────────────────────────────

type auditRepo struct{ t *tx }

func (r auditRepo) Append(_ context.Context, a *entity.AuditAdjustment) error {
	c := *a
	r.t.audits = append(r.t.audits, &c)
	return nil
}

func (r auditRepo) matching(org, sku, warehouse string) []*entity.AuditAdjustment {
	r.t.s.mu.Lock()
	var out []*entity.AuditAdjustment
	for _, a := range r.t.s.audits {
		if a.OrganizationID == org && a.SKUID == sku && a.WarehouseID == warehouse {
			c := *a
			out = append(out, &c)
		}
	}
	r.t.s.mu.Unlock()
	for _, a := range r.t.audits {
		if a.OrganizationID == org && a.SKUID == sku && a.WarehouseID == warehouse {
			c := *a
			out = append(out, &c)
		}
	}
	return out
}

func (r auditRepo) SumDeltas(_ context.Context, org, sku, warehouse string) (int64, error) {
	var sum int64
	for _, a := range r.matching(org, sku, warehouse) {
		sum += a.QuantityDelta
	}
	return sum, nil
}

func (r auditRepo) ListByLevel(_ context.Context, org, sku, warehouse string, limit, offset int) ([]*entity.AuditAdjustment, error) {
	all := r.matching(org, sku, warehouse)
	// Más recientes primero; a igual instante, el último insertado primero.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// ── OrderRepository / LockRepository ────────────────────────────────────────

type orderRepo struct{ t *tx }

func (r orderRepo) GetWithLines(_ context.Context, org, order string) (*entity.Order, error) {
	r.t.s.mu.Lock()
	defer r.t.s.mu.Unlock()
	o, ok := r.t.s.orders[orderKey{org, order}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *o
	c.Lines = append([]entity.OrderLine(nil), o.Lines...)
	return &c, nil
}

type lockRepo struct{ t *tx }

func (r lockRepo) LockOrder(ctx context.Context, org, order string) error {
	return r.t.lock(ctx, "order:"+org+"/"+order)
}
