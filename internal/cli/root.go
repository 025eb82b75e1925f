// Package cli implementa inventoryctl, la herramienta de operación del motor de reservas.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
)

// Session motor listo para usar y sus recursos.
type Session struct {
	Engine  *inventory.ReservationEngine
	Migrate func(ctx context.Context) error // nil si el backend no tiene esquema
	Close   func()
}

// OpenFunc abre una sesión contra el backend configurado.
type OpenFunc func(ctx context.Context) (*Session, error)

// RootOptions flags globales de todos los comandos.
type RootOptions struct {
	Format       string // "json" | "text"
	Organization string
	Actor        string

	open OpenFunc
}

// ValidFormats formatos de salida permitidos.
var ValidFormats = []string{"text", "json"}

// NewRootCommand crea el comando raíz. open se invoca una vez por comando ejecutado.
func NewRootCommand(open OpenFunc) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "inventoryctl",
		Short: "Operación del motor de reservas de inventario",
		Long: `Operación del motor de reservas de inventario.

Reserva y libera pedidos, registra ingresos y ajustes manuales y concilia
los contadores de stock contra el rastro de auditoría.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("formato %q inválido: debe ser uno de %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "formato de salida (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Organization, "org", "", "organización sobre la que se opera")
	cmd.PersistentFlags().StringVar(&opts.Actor, "actor", "inventoryctl", "autor registrado en la auditoría")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewIntakeCommand(opts))
	cmd.AddCommand(NewReserveCommand(opts))
	cmd.AddCommand(NewReleaseCommand(opts))
	cmd.AddCommand(NewAdjustCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withSession abre la sesión, ejecuta fn y reporta el resultado en el formato elegido.
func (o *RootOptions) withSession(cmd *cobra.Command, needsOrg bool, fn func(ctx context.Context, s *Session) (any, error)) error {
	out := &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
	if needsOrg && o.Organization == "" {
		_ = out.Error("VALIDATION", "--org es obligatorio", nil)
		return NewExitError(ExitCommandError, "--org es obligatorio")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := o.open(ctx)
	if err != nil {
		_ = out.Error("BACKEND", err.Error(), nil)
		return WrapExitError(ExitCommandError, "abrir backend", err)
	}
	if s.Close != nil {
		defer s.Close()
	}

	data, err := fn(ctx, s)
	if err != nil {
		_ = out.Error(ErrorCode(err), err.Error(), nil)
		return WrapExitError(ExitFailure, ErrorCode(err), err)
	}
	return out.Success(data)
}
