package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
	"github.com/jhoicas/inventario-reservas/internal/infrastructure/metrics"
	"github.com/jhoicas/inventario-reservas/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/inventario-reservas/internal/interfaces/http"
	"github.com/jhoicas/inventario-reservas/pkg/config"
	"github.com/jhoicas/inventario-reservas/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("aplicar esquema")
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
	}, log.Component("engine"), metrics.NewEngineMetrics(nil))

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Engine:      engine,
		JWTSecret:   cfg.JWT.Secret,
		ServiceName: cfg.App.Name,
		Logger:      log.Component("http"),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
