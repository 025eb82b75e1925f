// Package memory implementa el contrato TxRunner en proceso: filas con bloqueo exclusivo
// retenido hasta el fin de la transacción y escrituras aplicadas solo en Commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

var _ inventory.TxRunner = (*Store)(nil)

type levelKey struct {
	org, sku, warehouse string
}

type orderKey struct {
	org, order string
}

type releaseMark struct {
	reason string
	at     time.Time
}

// Store almacén en memoria. Seguro para uso concurrente.
type Store struct {
	mu           sync.Mutex
	levels       map[string]*entity.StockLevel
	levelIndex   map[levelKey]string
	reservations []*entity.Reservation
	audits       []*entity.AuditAdjustment
	orders       map[orderKey]*entity.Order
	locks        map[string]*keyLock

	txTimeout time.Duration
}

// NewStore crea el almacén. txTimeout acota cada transacción (0 = sin límite propio).
func NewStore(txTimeout time.Duration) *Store {
	return &Store{
		levels:     make(map[string]*entity.StockLevel),
		levelIndex: make(map[levelKey]string),
		orders:     make(map[orderKey]*entity.Order),
		locks:      make(map[string]*keyLock),
		txTimeout:  txTimeout,
	}
}

// Run ejecuta fn en una transacción en memoria.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, repos inventory.TxRepos) error) error {
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	tx := newTx(s)
	defer tx.unlockAll()

	if err := fn(ctx, tx.repos()); err != nil {
		return classify(err)
	}
	// El commit falla si el presupuesto se agotó dentro de fn.
	if err := ctx.Err(); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	tx.commit()
	return nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return err
}

// PutOrder registra un pedido en el modelo de lectura.
func (s *Store) PutOrder(o *entity.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *o
	c.Lines = append([]entity.OrderLine(nil), o.Lines...)
	s.orders[orderKey{o.OrganizationID, o.ID}] = &c
}

// PutLevel siembra un nivel con un registro de auditoría de ingreso por su available.
func (s *Store) PutLevel(l *entity.StockLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := l.Clone()
	s.levels[c.ID] = c
	s.levelIndex[levelKey{c.OrganizationID, c.SKUID, c.WarehouseID}] = c.ID
	if c.Available != 0 {
		s.audits = append(s.audits, &entity.AuditAdjustment{
			ID:             "seed-" + c.ID,
			OrganizationID: c.OrganizationID,
			SKUID:          c.SKUID,
			WarehouseID:    c.WarehouseID,
			QuantityDelta:  c.Available,
			Reason:         entity.AuditReasonIntake,
			CreatedBy:      inventory.ActorSystem,
			CreatedAt:      c.CreatedAt,
		})
	}
}

// ForceAvailable sobrescribe available sin auditoría (simula escrituras externas al motor).
func (s *Store) ForceAvailable(levelID string, available int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.levels[levelID]; ok {
		l.Available = available
	}
}

// Level copia confirmada del nivel, nil si no existe.
func (s *Store) Level(levelID string) *entity.StockLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.levels[levelID]
	if !ok {
		return nil
	}
	return l.Clone()
}

// Reservations copias confirmadas de las reservas del pedido.
func (s *Store) Reservations(organizationID, orderID string) []*entity.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Reservation
	for _, r := range s.reservations {
		if r.OrganizationID == organizationID && r.OrderID == orderID {
			out = append(out, cloneReservation(r))
		}
	}
	return out
}

// Audits copias confirmadas del rastro del (sku, bodega) en orden de inserción.
func (s *Store) Audits(organizationID, skuID, warehouseID string) []*entity.AuditAdjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.AuditAdjustment
	for _, a := range s.audits {
		if a.OrganizationID == organizationID && a.SKUID == skuID && a.WarehouseID == warehouseID {
			c := *a
			out = append(out, &c)
		}
	}
	return out
}

// keyLock candado exclusivo de una clave. refs cuenta la tx que lo retiene y las que esperan;
// la entrada se borra del mapa cuando llega a cero.
type keyLock struct {
	ch   chan struct{}
	refs int
}

func (s *Store) acquireRef(key string) *keyLock {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	return l
}

func (s *Store) dropRef(key string, l *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}

func cloneReservation(r *entity.Reservation) *entity.Reservation {
	c := *r
	if r.ReleasedAt != nil {
		at := *r.ReleasedAt
		c.ReleasedAt = &at
	}
	return &c
}

func sortLevels(levels []*entity.StockLevel) {
	sort.Slice(levels, func(i, j int) bool {
		if levels[i].SKUID != levels[j].SKUID {
			return levels[i].SKUID < levels[j].SKUID
		}
		return levels[i].WarehouseID < levels[j].WarehouseID
	})
}
