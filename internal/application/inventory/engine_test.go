package inventory_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/infrastructure/memory"
)

const org = "org-1"

func newEngine(t *testing.T, s inventory.TxRunner, cfg inventory.EngineConfig) *inventory.ReservationEngine {
	t.Helper()
	return inventory.NewReservationEngine(s, cfg, nil, nil)
}

func putOrder(s *memory.Store, id string, lines ...entity.OrderLine) {
	s.PutOrder(&entity.Order{ID: id, OrganizationID: org, Lines: lines})
}

func line(sku string, qty int64) entity.OrderLine {
	return entity.OrderLine{ID: "line-" + sku, SKUID: sku, Quantity: qty}
}

func putLevel(s *memory.Store, id, sku, wh string, available int64) {
	s.PutLevel(&entity.StockLevel{ID: id, OrganizationID: org, SKUID: sku, WarehouseID: wh, Available: available, UnitCost: decimal.Zero})
}

func TestReserve_MueveDeAvailableAReserved(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 10)
	putOrder(s, "o-1", line("sku-a", 3))
	eng := newEngine(t, s, inventory.EngineConfig{})

	got, err := eng.Reserve(context.Background(), org, "o-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "wh-1", got[0].WarehouseID)
	assert.Equal(t, int64(3), got[0].QuantityReserved)
	assert.True(t, got[0].IsActive())

	l := s.Level("lvl-a")
	assert.Equal(t, int64(7), l.Available)
	assert.Equal(t, int64(3), l.Reserved)

	audits := s.Audits(org, "sku-a", "wh-1")
	require.Len(t, audits, 2)
	assert.Equal(t, int64(-3), audits[1].QuantityDelta)
	assert.Equal(t, entity.AuditReasonReservation, audits[1].Reason)
	assert.Equal(t, "o-1", audits[1].ReferenceID)
}

func TestReserve_EligePrimeraBodegaConStockSuficiente(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-1", "sku-a", "wh-1", 2)
	putLevel(s, "lvl-2", "sku-a", "wh-2", 5)
	putLevel(s, "lvl-3", "sku-a", "wh-3", 9)
	putOrder(s, "o-1", line("sku-a", 4))
	eng := newEngine(t, s, inventory.EngineConfig{})

	got, err := eng.Reserve(context.Background(), org, "o-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "wh-2", got[0].WarehouseID)
	assert.Equal(t, int64(2), s.Level("lvl-1").Available, "no divide la línea entre bodegas")
	assert.Equal(t, int64(1), s.Level("lvl-2").Available)
	assert.Equal(t, int64(9), s.Level("lvl-3").Available)
}

func TestReserve_StockInsuficiente(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-1", "sku-a", "wh-1", 2)
	putLevel(s, "lvl-2", "sku-a", "wh-2", 2)
	putOrder(s, "o-1", line("sku-a", 3))
	eng := newEngine(t, s, inventory.EngineConfig{})

	_, err := eng.Reserve(context.Background(), org, "o-1")
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var se *domain.StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "sku-a", se.SKUID)
	assert.Equal(t, int64(3), se.Requested)
	assert.Equal(t, int64(4), se.Available)
	assert.Empty(t, s.Reservations(org, "o-1"))
}

func TestReserve_SkuSinNivelesEsStockInsuficiente(t *testing.T) {
	s := memory.NewStore(time.Second)
	putOrder(s, "o-1", line("sku-x", 1))
	eng := newEngine(t, s, inventory.EngineConfig{})

	_, err := eng.Reserve(context.Background(), org, "o-1")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestReserve_FallaParcialNoDejaRastro(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 10)
	putLevel(s, "lvl-b", "sku-b", "wh-1", 10)
	putLevel(s, "lvl-c", "sku-c", "wh-1", 1)
	putOrder(s, "o-1", line("sku-a", 2), line("sku-b", 2), line("sku-c", 5))
	eng := newEngine(t, s, inventory.EngineConfig{})

	_, err := eng.Reserve(context.Background(), org, "o-1")
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	for _, id := range []string{"lvl-a", "lvl-b"} {
		l := s.Level(id)
		assert.Equal(t, int64(10), l.Available, id)
		assert.Zero(t, l.Reserved, id)
	}
	assert.Empty(t, s.Reservations(org, "o-1"))
	assert.Len(t, s.Audits(org, "sku-a", "wh-1"), 1, "solo el ingreso sembrado")
	assert.Len(t, s.Audits(org, "sku-b", "wh-1"), 1)
}

func TestReserve_Idempotente(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 10)
	putOrder(s, "o-1", line("sku-a", 4))
	eng := newEngine(t, s, inventory.EngineConfig{})
	ctx := context.Background()

	first, err := eng.Reserve(ctx, org, "o-1")
	require.NoError(t, err)
	second, err := eng.Reserve(ctx, org, "o-1")
	require.NoError(t, err)

	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, int64(6), s.Level("lvl-a").Available)
	assert.Len(t, s.Reservations(org, "o-1"), 1)
}

func TestReserve_IdempotenteBajoConcurrencia(t *testing.T) {
	s := memory.NewStore(5 * time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 100)
	putOrder(s, "o-1", line("sku-a", 4))
	eng := newEngine(t, s, inventory.EngineConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Reserve(context.Background(), org, "o-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, s.Reservations(org, "o-1"), 1)
	assert.Equal(t, int64(96), s.Level("lvl-a").Available)
}

func TestReserve_PedidoInexistente(t *testing.T) {
	s := memory.NewStore(time.Second)
	eng := newEngine(t, s, inventory.EngineConfig{})

	_, err := eng.Reserve(context.Background(), org, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReserve_EntradaInvalida(t *testing.T) {
	s := memory.NewStore(time.Second)
	putOrder(s, "vacio")
	putOrder(s, "cero", line("sku-a", 0))
	eng := newEngine(t, s, inventory.EngineConfig{})
	ctx := context.Background()

	_, err := eng.Reserve(ctx, "", "o-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = eng.Reserve(ctx, org, "vacio")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = eng.Reserve(ctx, org, "cero")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReserve_TopeDeReservado(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 100)
	putOrder(s, "o-1", line("sku-a", 8))
	putOrder(s, "o-2", line("sku-a", 3))
	eng := newEngine(t, s, inventory.EngineConfig{MaxReservedPerLevel: 10})
	ctx := context.Background()

	_, err := eng.Reserve(ctx, org, "o-1")
	require.NoError(t, err)

	_, err = eng.Reserve(ctx, org, "o-2")
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)
	var se *domain.StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "wh-1", se.WarehouseID)
	assert.Equal(t, int64(2), se.Available)
	assert.Equal(t, int64(8), s.Level("lvl-a").Reserved)
}

// Cien pedidos de una unidad contra cincuenta unidades: exactamente cincuenta ganan.
func TestReserve_ConcurrenciaNoSobrevende(t *testing.T) {
	s := memory.NewStore(10 * time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 50)
	const n = 100
	for i := 0; i < n; i++ {
		putOrder(s, fmt.Sprintf("o-%d", i), line("sku-a", 1))
	}
	eng := newEngine(t, s, inventory.EngineConfig{})

	var ok, insufficient, other atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Reserve(context.Background(), org, fmt.Sprintf("o-%d", i))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficient.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), ok.Load())
	assert.Equal(t, int64(50), insufficient.Load())
	assert.Zero(t, other.Load())

	l := s.Level("lvl-a")
	assert.Zero(t, l.Available)
	assert.Equal(t, int64(50), l.Reserved)
}

// Pedidos con los mismos SKUs en orden inverso no se bloquean entre sí.
func TestReserve_SinInterbloqueoConOrdenInverso(t *testing.T) {
	s := memory.NewStore(5 * time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 1000)
	putLevel(s, "lvl-b", "sku-b", "wh-1", 1000)
	const n = 40
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			putOrder(s, fmt.Sprintf("o-%d", i), line("sku-a", 1), line("sku-b", 1))
		} else {
			putOrder(s, fmt.Sprintf("o-%d", i), line("sku-b", 1), line("sku-a", 1))
		}
	}
	eng := newEngine(t, s, inventory.EngineConfig{})

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Reserve(context.Background(), org, fmt.Sprintf("o-%d", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(n), s.Level("lvl-a").Reserved)
	assert.Equal(t, int64(n), s.Level("lvl-b").Reserved)
}

func TestRelease_RevierteYConserva(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 10)
	putLevel(s, "lvl-b", "sku-b", "wh-1", 10)
	putOrder(s, "o-1", line("sku-a", 3), line("sku-b", 7))
	eng := newEngine(t, s, inventory.EngineConfig{})
	ctx := context.Background()

	_, err := eng.Reserve(ctx, org, "o-1")
	require.NoError(t, err)

	released, err := eng.Release(ctx, org, "o-1", entity.ReleaseReasonCancellation)
	require.NoError(t, err)
	require.Len(t, released, 2)
	for _, r := range released {
		assert.Equal(t, entity.ReservationStatusReleased, r.Status())
		assert.Equal(t, entity.ReleaseReasonCancellation, r.ReleaseReason)
		assert.NotNil(t, r.ReleasedAt)
	}

	for _, id := range []string{"lvl-a", "lvl-b"} {
		l := s.Level(id)
		assert.Equal(t, int64(10), l.Available, id)
		assert.Zero(t, l.Reserved, id)
	}

	audits := s.Audits(org, "sku-b", "wh-1")
	require.Len(t, audits, 3)
	assert.Equal(t, int64(7), audits[2].QuantityDelta)
	assert.Equal(t, entity.ReleaseReasonCancellation, audits[2].Reason)
}

func TestRelease_SegundaLlamadaEsNoop(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 10)
	putOrder(s, "o-1", line("sku-a", 3))
	eng := newEngine(t, s, inventory.EngineConfig{})
	ctx := context.Background()

	_, err := eng.Reserve(ctx, org, "o-1")
	require.NoError(t, err)
	_, err = eng.Release(ctx, org, "o-1", entity.ReleaseReasonReturn)
	require.NoError(t, err)

	again, err := eng.Release(ctx, org, "o-1", entity.ReleaseReasonReturn)
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Equal(t, int64(10), s.Level("lvl-a").Available)
	assert.Len(t, s.Audits(org, "sku-a", "wh-1"), 3)
}

func TestRelease_PedidoInexistenteYMotivoInvalido(t *testing.T) {
	s := memory.NewStore(time.Second)
	eng := newEngine(t, s, inventory.EngineConfig{})
	ctx := context.Background()

	_, err := eng.Release(ctx, org, "no-existe", entity.ReleaseReasonCancellation)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = eng.Release(ctx, org, "o-1", "capricho")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRelease_PermiteReservarDeNuevo(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 5)
	putOrder(s, "o-1", line("sku-a", 5))
	eng := newEngine(t, s, inventory.EngineConfig{})
	ctx := context.Background()

	first, err := eng.Reserve(ctx, org, "o-1")
	require.NoError(t, err)
	_, err = eng.Release(ctx, org, "o-1", entity.ReleaseReasonSystemRecovery)
	require.NoError(t, err)

	second, err := eng.Reserve(ctx, org, "o-1")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)

	history, err := eng.ListReservations(ctx, org, "o-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestAdjust_RechazaStockNegativo(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 3)
	eng := newEngine(t, s, inventory.EngineConfig{})

	_, err := eng.Adjust(context.Background(), inventory.AdjustInput{
		OrganizationID: org, LevelID: "lvl-a", Delta: -5, Reason: "merma", Actor: "ana",
	})
	require.ErrorIs(t, err, domain.ErrNegativeStock)
	var se *domain.StockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, int64(3), se.Available)

	assert.Equal(t, int64(3), s.Level("lvl-a").Available)
	assert.Len(t, s.Audits(org, "sku-a", "wh-1"), 1)
}

func TestAdjust_AplicaYAudita(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 3)
	eng := newEngine(t, s, inventory.EngineConfig{})

	l, err := eng.Adjust(context.Background(), inventory.AdjustInput{
		OrganizationID: org, LevelID: "lvl-a", Delta: -3, Reason: "conteo físico", Actor: "ana", Notes: "inventario anual",
	})
	require.NoError(t, err)
	assert.Zero(t, l.Available)

	audits := s.Audits(org, "sku-a", "wh-1")
	require.Len(t, audits, 2)
	assert.Equal(t, int64(-3), audits[1].QuantityDelta)
	assert.Equal(t, "conteo físico", audits[1].Reason)
	assert.Equal(t, "ana", audits[1].CreatedBy)
	assert.Equal(t, "inventario anual", audits[1].Notes)
}

func TestAdjust_Validaciones(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 3)
	eng := newEngine(t, s, inventory.EngineConfig{})
	ctx := context.Background()

	tests := []struct {
		name string
		in   inventory.AdjustInput
		want error
	}{
		{"delta cero", inventory.AdjustInput{OrganizationID: org, LevelID: "lvl-a", Reason: "x", Actor: "a"}, domain.ErrInvalidInput},
		{"sin motivo", inventory.AdjustInput{OrganizationID: org, LevelID: "lvl-a", Delta: 1, Actor: "a"}, domain.ErrInvalidInput},
		{"sin actor", inventory.AdjustInput{OrganizationID: org, LevelID: "lvl-a", Delta: 1, Reason: "x"}, domain.ErrInvalidInput},
		{"nivel inexistente", inventory.AdjustInput{OrganizationID: org, LevelID: "nope", Delta: 1, Reason: "x", Actor: "a"}, domain.ErrNotFound},
		{"otra organización", inventory.AdjustInput{OrganizationID: "org-2", LevelID: "lvl-a", Delta: 1, Reason: "x", Actor: "a"}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Adjust(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReceiveStock_CreaNivelYPromediaCosto(t *testing.T) {
	s := memory.NewStore(time.Second)
	eng := newEngine(t, s, inventory.EngineConfig{})
	ctx := context.Background()

	c1 := decimal.NewFromInt(10)
	l, err := eng.ReceiveStock(ctx, inventory.IntakeInput{
		OrganizationID: org, SKUID: "sku-a", WarehouseID: "wh-1", Quantity: 10, UnitCost: &c1, Actor: "ana",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), l.Available)
	assert.True(t, c1.Equal(l.UnitCost))

	c2 := decimal.NewFromInt(20)
	l, err = eng.ReceiveStock(ctx, inventory.IntakeInput{
		OrganizationID: org, SKUID: "sku-a", WarehouseID: "wh-1", Quantity: 10, UnitCost: &c2, Actor: "ana",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20), l.Available)
	assert.True(t, decimal.NewFromInt(15).Equal(l.UnitCost), "costo promedio ponderado, got %s", l.UnitCost)

	rec, err := eng.Reconcile(ctx, org, l.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent())
	assert.Equal(t, int64(20), rec.LedgerSum)
}

func TestReceiveStock_Validaciones(t *testing.T) {
	eng := newEngine(t, memory.NewStore(time.Second), inventory.EngineConfig{})
	neg := decimal.NewFromInt(-1)

	_, err := eng.ReceiveStock(context.Background(), inventory.IntakeInput{OrganizationID: org, SKUID: "s", WarehouseID: "w", Quantity: 0, Actor: "a"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = eng.ReceiveStock(context.Background(), inventory.IntakeInput{OrganizationID: org, SKUID: "s", WarehouseID: "w", Quantity: 1, UnitCost: &neg, Actor: "a"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReconcile_CuadraTrasOperacionesYDetectaDescuadre(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 10)
	putLevel(s, "lvl-b", "sku-b", "wh-1", 10)
	putOrder(s, "o-1", line("sku-a", 4), line("sku-b", 1))
	eng := newEngine(t, s, inventory.EngineConfig{ReconcileConcurrency: 2})
	ctx := context.Background()

	_, err := eng.Reserve(ctx, org, "o-1")
	require.NoError(t, err)
	_, err = eng.Adjust(ctx, inventory.AdjustInput{OrganizationID: org, LevelID: "lvl-a", Delta: 2, Reason: "hallazgo", Actor: "ana"})
	require.NoError(t, err)

	all, err := eng.ReconcileAll(ctx, org)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, rec := range all {
		assert.True(t, rec.Consistent(), rec.LevelID)
	}

	s.ForceAvailable("lvl-a", 99)
	rec, err := eng.Reconcile(ctx, org, "lvl-a")
	require.NoError(t, err)
	assert.False(t, rec.Consistent())
	assert.Equal(t, int64(8), rec.LedgerSum)
	assert.Equal(t, int64(91), rec.Drift)
}

func TestQueries(t *testing.T) {
	s := memory.NewStore(time.Second)
	s.PutLevel(&entity.StockLevel{ID: "lvl-a", OrganizationID: org, SKUID: "sku-a", WarehouseID: "wh-1", Available: 4, Damaged: 1, UnitCost: decimal.NewFromInt(2)})
	s.PutLevel(&entity.StockLevel{ID: "lvl-b", OrganizationID: org, SKUID: "sku-b", WarehouseID: "wh-1", Available: 1, UnitCost: decimal.NewFromInt(10)})
	s.PutLevel(&entity.StockLevel{ID: "lvl-c", OrganizationID: org, SKUID: "sku-a", WarehouseID: "wh-2", Available: 3, UnitCost: decimal.NewFromInt(1)})
	eng := newEngine(t, s, inventory.EngineConfig{})
	ctx := context.Background()

	levels, err := eng.ListLevels(ctx, org, "sku-a")
	require.NoError(t, err)
	assert.Len(t, levels, 2)

	levels, err = eng.ListLevels(ctx, org, "")
	require.NoError(t, err)
	assert.Len(t, levels, 3)

	l, err := eng.GetLevel(ctx, org, "lvl-b")
	require.NoError(t, err)
	assert.Equal(t, "sku-b", l.SKUID)

	trail, err := eng.AuditTrail(ctx, org, "lvl-a", 0, 0)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, entity.AuditReasonIntake, trail[0].Reason)

	val, err := eng.Valuation(ctx, org)
	require.NoError(t, err)
	require.Len(t, val, 2)
	assert.Equal(t, "wh-1", val[0].WarehouseID)
	assert.Equal(t, int64(5), val[0].Units, "damaged no cuenta como en mano")
	assert.True(t, decimal.NewFromInt(18).Equal(val[0].Value), "got %s", val[0].Value)
	assert.Equal(t, int64(3), val[1].Units)
}

type flakyRunner struct {
	inner    inventory.TxRunner
	failures atomic.Int32
	calls    atomic.Int32
}

func (f *flakyRunner) Run(ctx context.Context, fn func(ctx context.Context, repos inventory.TxRepos) error) error {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return fmt.Errorf("%w: serialization failure", domain.ErrConcurrentModification)
	}
	return f.inner.Run(ctx, fn)
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	retries  int
}

func (m *recordingMetrics) ObserveOperation(op, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]int{}
	}
	m.outcomes[op+"/"+outcome]++
}

func (m *recordingMetrics) IncRetry(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func TestReserve_ReintentaConflictos(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 10)
	putOrder(s, "o-1", line("sku-a", 1))

	runner := &flakyRunner{inner: s}
	runner.failures.Store(2)
	metrics := &recordingMetrics{}
	eng := inventory.NewReservationEngine(runner, inventory.EngineConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}, nil, metrics)

	_, err := eng.Reserve(context.Background(), org, "o-1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), runner.calls.Load())
	assert.Equal(t, 2, metrics.retries)
	assert.Equal(t, 1, metrics.outcomes["reserve/ok"])
	assert.Equal(t, int64(9), s.Level("lvl-a").Available)
}

func TestReserve_AgotaReintentos(t *testing.T) {
	s := memory.NewStore(time.Second)
	putOrder(s, "o-1", line("sku-a", 1))

	runner := &flakyRunner{inner: s}
	runner.failures.Store(100)
	eng := inventory.NewReservationEngine(runner, inventory.EngineConfig{MaxRetries: 2, RetryBackoff: time.Millisecond}, nil, nil)

	_, err := eng.Reserve(context.Background(), org, "o-1")
	require.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, int32(3), runner.calls.Load())
}

func TestAdjust_NoSeReintenta(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 3)

	runner := &flakyRunner{inner: s}
	runner.failures.Store(1)
	eng := inventory.NewReservationEngine(runner, inventory.EngineConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}, nil, nil)

	_, err := eng.Adjust(context.Background(), inventory.AdjustInput{OrganizationID: org, LevelID: "lvl-a", Delta: 1, Reason: "x", Actor: "a"})
	require.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestReserve_NoReintentaErroresDeNegocio(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 1)
	putOrder(s, "o-1", line("sku-a", 5))

	runner := &flakyRunner{inner: s}
	metrics := &recordingMetrics{}
	eng := inventory.NewReservationEngine(runner, inventory.EngineConfig{MaxRetries: 3, RetryBackoff: time.Millisecond}, nil, metrics)

	_, err := eng.Reserve(context.Background(), org, "o-1")
	var stockErr *domain.StockError
	require.ErrorAs(t, err, &stockErr, "el error de negocio sale sin envolver por el reintento")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, 0, metrics.retries)
}

func TestReserve_ContextoVenceDuranteEspera(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 10)
	putOrder(s, "o-1", line("sku-a", 1))

	runner := &flakyRunner{inner: s}
	runner.failures.Store(100)
	eng := inventory.NewReservationEngine(runner, inventory.EngineConfig{MaxRetries: 5, RetryBackoff: time.Second}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := eng.Reserve(ctx, org, "o-1")
	require.ErrorIs(t, err, domain.ErrConcurrentModification, "devuelve el último conflicto, no el error de ctx")
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Less(t, time.Since(start), 900*time.Millisecond)
	assert.Equal(t, int64(10), s.Level("lvl-a").Available)
}

func TestReceiveStock_DesbordeRechazado(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", math.MaxInt64-1)
	eng := newEngine(t, s, inventory.EngineConfig{})

	_, err := eng.ReceiveStock(context.Background(), inventory.IntakeInput{
		OrganizationID: org, SKUID: "sku-a", WarehouseID: "wh-1", Quantity: 10, Actor: "ana",
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, int64(math.MaxInt64-1), s.Level("lvl-a").Available)
	assert.Len(t, s.Audits(org, "sku-a", "wh-1"), 1, "sin registro de auditoría")

	// El máximo exacto todavía cabe.
	_, err = eng.ReceiveStock(context.Background(), inventory.IntakeInput{
		OrganizationID: org, SKUID: "sku-a", WarehouseID: "wh-1", Quantity: 1, Actor: "ana",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), s.Level("lvl-a").Available)
}

func TestReceiveStock_DesbordeCuentaReservado(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", math.MaxInt64-5)
	putOrder(s, "o-1", line("sku-a", math.MaxInt64-5))
	eng := newEngine(t, s, inventory.EngineConfig{})
	_, err := eng.Reserve(context.Background(), org, "o-1")
	require.NoError(t, err)

	_, err = eng.ReceiveStock(context.Background(), inventory.IntakeInput{
		OrganizationID: org, SKUID: "sku-a", WarehouseID: "wh-1", Quantity: 6, Actor: "ana",
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput, "available + reserved no puede pasar de MaxInt64")
	assert.Equal(t, int64(0), s.Level("lvl-a").Available)
}

func TestAdjust_DesbordeRechazado(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 1)
	eng := newEngine(t, s, inventory.EngineConfig{})

	_, err := eng.Adjust(context.Background(), inventory.AdjustInput{
		OrganizationID: org, LevelID: "lvl-a", Delta: math.MaxInt64, Reason: "conteo", Actor: "ana",
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.NotErrorIs(t, err, domain.ErrNegativeStock)
	assert.Equal(t, int64(1), s.Level("lvl-a").Available)

	_, err = eng.Adjust(context.Background(), inventory.AdjustInput{
		OrganizationID: org, LevelID: "lvl-a", Delta: math.MinInt64, Reason: "conteo", Actor: "ana",
	})
	require.ErrorIs(t, err, domain.ErrNegativeStock)
	assert.Equal(t, int64(1), s.Level("lvl-a").Available)
}

func TestReserve_TopeSinDesborde(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", math.MaxInt64)
	putOrder(s, "o-1", line("sku-a", math.MaxInt64))
	eng := newEngine(t, s, inventory.EngineConfig{MaxReservedPerLevel: 10})

	_, err := eng.Reserve(context.Background(), org, "o-1")
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)
	assert.Equal(t, int64(0), s.Level("lvl-a").Reserved)
}

func TestAuditTrail_LimiteAcotado(t *testing.T) {
	s := memory.NewStore(time.Second)
	putLevel(s, "lvl-a", "sku-a", "wh-1", 1000)
	eng := newEngine(t, s, inventory.EngineConfig{})
	for i := 0; i < 520; i++ {
		_, err := eng.Adjust(context.Background(), inventory.AdjustInput{
			OrganizationID: org, LevelID: "lvl-a", Delta: -1, Reason: "merma", Actor: "ana",
		})
		require.NoError(t, err)
	}

	got, err := eng.AuditTrail(context.Background(), org, "lvl-a", 1000, 0)
	require.NoError(t, err)
	assert.Len(t, got, 500, "un límite mayor se acota a 500")

	got, err = eng.AuditTrail(context.Background(), org, "lvl-a", 120, 0)
	require.NoError(t, err)
	assert.Len(t, got, 120)

	got, err = eng.AuditTrail(context.Background(), org, "lvl-a", 0, 0)
	require.NoError(t, err)
	assert.Len(t, got, 50)
}
