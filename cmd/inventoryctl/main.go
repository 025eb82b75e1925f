package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
	"github.com/jhoicas/inventario-reservas/internal/cli"
	"github.com/jhoicas/inventario-reservas/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-reservas/pkg/config"
	"github.com/jhoicas/inventario-reservas/pkg/logger"
)

func main() {
	cmd := cli.NewRootCommand(open)
	if err := cmd.Execute(); err != nil {
		// Los comandos ya reportaron el error en el formato pedido; aquí solo
		// quedan los errores de cobra (flags o argumentos).
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}

func open(ctx context.Context) (*cli.Session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cargar configuración: %w", err)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Output: os.Stderr})

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	txRunner := postgres.NewTxRunner(pool, postgres.TxOptions{
		Timeout:     cfg.Engine.TxTimeout,
		LockTimeout: cfg.Engine.LockTimeout,
	})
	engine := inventory.NewReservationEngine(txRunner, inventory.EngineConfig{
		MaxReservedPerLevel:  cfg.Engine.MaxReservedPerLevel,
		MaxRetries:           cfg.Engine.MaxRetries,
		RetryBackoff:         cfg.Engine.RetryBackoff,
		ReconcileConcurrency: cfg.Engine.ReconcileConcurrency,
	}, log.Component("inventoryctl"), nil)

	return &cli.Session{
		Engine:  engine,
		Migrate: func(ctx context.Context) error { return postgres.Migrate(ctx, pool) },
		Close:   pool.Close,
	}, nil
}
