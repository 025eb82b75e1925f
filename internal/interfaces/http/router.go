package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
	"github.com/jhoicas/inventario-reservas/pkg/jwt"
	"github.com/jhoicas/inventario-reservas/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Engine      *inventory.ReservationEngine
	JWTSecret   string
	ServiceName string
	Gatherer    prometheus.Gatherer // nil = registro por defecto
	Logger      *logger.Logger      // nil = sin log de accesos
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	if deps.Logger != nil {
		app.Use(accessLog(deps.Logger))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.ServiceName})
	})
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))
	anyRole := RequireRole(jwt.RoleAdmin, jwt.RoleBodeguero, jwt.RoleVendedor)
	stockRoles := RequireRole(jwt.RoleAdmin, jwt.RoleBodeguero)
	adminOnly := RequireRole(jwt.RoleAdmin)

	reservations := NewReservationHandler(deps.Engine)
	orders := api.Group("/orders")
	orders.Post("/:orderID/reservations", anyRole, reservations.Reserve)
	orders.Get("/:orderID/reservations", anyRole, reservations.List)
	orders.Post("/:orderID/release", anyRole, reservations.Release)

	levels := NewStockLevelHandler(deps.Engine)
	stock := api.Group("/stock-levels", anyRole)
	stock.Get("/", levels.List)
	// Rutas estáticas antes de /:levelID.
	stock.Post("/intake", stockRoles, levels.Intake)
	stock.Get("/valuation", adminOnly, levels.Valuation)
	stock.Get("/:levelID", levels.Get)
	stock.Get("/:levelID/audit", levels.Audit)
	stock.Post("/:levelID/adjustments", stockRoles, levels.Adjust)
	stock.Get("/:levelID/reconciliation", adminOnly, levels.Reconcile)

	api.Get("/reconciliation", adminOnly, levels.ReconcileAll)
}

func accessLog(log *logger.Logger) fiber.Handler {
	log = log.Component("http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Debug().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
		return err
	}
}
