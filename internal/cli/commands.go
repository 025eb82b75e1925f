package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica el esquema de base de datos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(cmd, false, func(ctx context.Context, s *Session) (any, error) {
				if s.Migrate == nil {
					return message("el backend no requiere migraciones"), nil
				}
				if err := s.Migrate(ctx); err != nil {
					return nil, err
				}
				return message("esquema aplicado"), nil
			})
		},
	}
}

// IntakeOptions flags de intake.
type IntakeOptions struct {
	*RootOptions
	SKU       string
	Warehouse string
	Quantity  int64
	UnitCost  string
	Reference string
}

func NewIntakeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IntakeOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "intake",
		Short: "Registra un ingreso de stock",
		Long: `Registra un ingreso de stock en una bodega. Crea el nivel si no existe.

Ejemplo:
  inventoryctl --org acme intake --sku SKU-1 --warehouse BOG --qty 20 --cost 12.50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withSession(cmd, true, func(ctx context.Context, s *Session) (any, error) {
				in := inventory.IntakeInput{
					OrganizationID: opts.Organization,
					SKUID:          opts.SKU,
					WarehouseID:    opts.Warehouse,
					Quantity:       opts.Quantity,
					Actor:          opts.Actor,
					ReferenceID:    opts.Reference,
				}
				if opts.UnitCost != "" {
					cost, err := decimal.NewFromString(opts.UnitCost)
					if err != nil {
						return nil, fmt.Errorf("%w: --cost %q", errInvalidFlag, opts.UnitCost)
					}
					in.UnitCost = &cost
				}
				level, err := s.Engine.ReceiveStock(ctx, in)
				if err != nil {
					return nil, err
				}
				return levelOutput(dto.FromStockLevel(level)), nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.SKU, "sku", "", "SKU")
	cmd.Flags().StringVar(&opts.Warehouse, "warehouse", "", "bodega")
	cmd.Flags().Int64Var(&opts.Quantity, "qty", 0, "unidades que ingresan")
	cmd.Flags().StringVar(&opts.UnitCost, "cost", "", "costo unitario (decimal, opcional)")
	cmd.Flags().StringVar(&opts.Reference, "ref", "", "documento de referencia")
	return cmd
}

func NewReserveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reserve <order-id>",
		Short: "Reserva stock para todas las líneas de un pedido",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, true, func(ctx context.Context, s *Session) (any, error) {
				list, err := s.Engine.Reserve(ctx, opts.Organization, args[0])
				if err != nil {
					return nil, err
				}
				return reservationsOutput(dto.FromReservations(list)), nil
			})
		},
	}
}

func NewReleaseCommand(opts *RootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "release <order-id>",
		Short: "Libera las reservas activas de un pedido",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, true, func(ctx context.Context, s *Session) (any, error) {
				list, err := s.Engine.Release(ctx, opts.Organization, args[0], reason)
				if err != nil {
					return nil, err
				}
				return reservationsOutput(dto.FromReservations(list)), nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "cancellation", "motivo: cancellation | return | system_recovery")
	return cmd
}

// AdjustOptions flags de adjust.
type AdjustOptions struct {
	*RootOptions
	Delta     int64
	Reason    string
	Reference string
	Notes     string
}

func NewAdjustCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AdjustOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "adjust <level-id>",
		Short: "Ajuste manual de available (delta con signo)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd, true, func(ctx context.Context, s *Session) (any, error) {
				level, err := s.Engine.Adjust(ctx, inventory.AdjustInput{
					OrganizationID: opts.Organization,
					LevelID:        args[0],
					Delta:          opts.Delta,
					Reason:         opts.Reason,
					Actor:          opts.Actor,
					ReferenceID:    opts.Reference,
					Notes:          opts.Notes,
				})
				if err != nil {
					return nil, err
				}
				return levelOutput(dto.FromStockLevel(level)), nil
			})
		},
	}
	cmd.Flags().Int64Var(&opts.Delta, "delta", 0, "cambio en available, p.ej. -3")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "motivo del ajuste (obligatorio)")
	cmd.Flags().StringVar(&opts.Reference, "ref", "", "documento de referencia")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notas libres")
	return cmd
}

func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [level-id]",
		Short: "Concilia stock contra auditoría (un nivel o toda la organización)",
		Long: `Compara available con la suma de deltas auditados. Sin argumento concilia
todos los niveles de la organización. Sale con código 1 si hay descuadres.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var drifted int
			err := opts.withSession(cmd, true, func(ctx context.Context, s *Session) (any, error) {
				var recs []inventory.Reconciliation
				if len(args) == 1 {
					rec, err := s.Engine.Reconcile(ctx, opts.Organization, args[0])
					if err != nil {
						return nil, err
					}
					recs = []inventory.Reconciliation{*rec}
				} else {
					var err error
					if recs, err = s.Engine.ReconcileAll(ctx, opts.Organization); err != nil {
						return nil, err
					}
				}
				out := make(reconcileOutput, 0, len(recs))
				for _, r := range recs {
					if !r.Consistent() {
						drifted++
					}
					out = append(out, dto.ReconciliationDTO{
						LevelID: r.LevelID, SKUID: r.SKUID, WarehouseID: r.WarehouseID,
						Available: r.Available, LedgerSum: r.LedgerSum, Drift: r.Drift, Consistent: r.Consistent(),
					})
				}
				return out, nil
			})
			if err != nil {
				return err
			}
			if drifted > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d nivel(es) descuadrados", drifted))
			}
			return nil
		},
	}
}

// Salidas en texto.

type message string

func (m message) Text() string { return string(m) }

type levelOutput dto.StockLevelDTO

func (l levelOutput) Text() string {
	return fmt.Sprintf("%s  sku=%s bodega=%s available=%d reserved=%d costo=%s",
		l.ID, l.SKUID, l.WarehouseID, l.Available, l.Reserved, l.UnitCost.StringFixed(4))
}

type reservationsOutput []dto.ReservationDTO

func (rs reservationsOutput) Text() string {
	if len(rs) == 0 {
		return "sin reservas activas"
	}
	var b strings.Builder
	for i, r := range rs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %s sku=%s bodega=%s cantidad=%d", r.ID, r.Status, r.SKUID, r.WarehouseID, r.QuantityReserved)
	}
	return b.String()
}

type reconcileOutput []dto.ReconciliationDTO

func (rs reconcileOutput) Text() string {
	if len(rs) == 0 {
		return "sin niveles"
	}
	var b strings.Builder
	for i, r := range rs {
		if i > 0 {
			b.WriteByte('\n')
		}
		status := "OK"
		if !r.Consistent {
			status = "DESCUADRE"
		}
		fmt.Fprintf(&b, "%-9s %s sku=%s bodega=%s available=%d auditoría=%d drift=%d",
			status, r.LevelID, r.SKUID, r.WarehouseID, r.Available, r.LedgerSum, r.Drift)
	}
	return b.String()
}
