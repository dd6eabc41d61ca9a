// Package server assembles the fiber application: middleware, services and
// routes.
package server

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"phonestore-backend/internal/aftersales"
	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/audit"
	"phonestore-backend/internal/auth"
	"phonestore-backend/internal/cart"
	"phonestore-backend/internal/catalog"
	"phonestore-backend/internal/config"
	"phonestore-backend/internal/dashboard"
	"phonestore-backend/internal/database"
	"phonestore-backend/internal/logger"
	"phonestore-backend/internal/metrics"
	"phonestore-backend/internal/order"
	"phonestore-backend/internal/promotion"
	"phonestore-backend/internal/purchasing"
	"phonestore-backend/internal/users"
)

// Server holds the fiber app and the services background jobs need.
type Server struct {
	App        *fiber.App
	Auth       *auth.Service
	Blacklist  auth.Store
	AfterSales *aftersales.Service
}

type services struct {
	auth       *auth.Service
	users      *users.Service
	catalog    *catalog.Service
	purchasing *purchasing.Service
	promotion  *promotion.Service
	cart       *cart.Service
	order      *order.Service
	aftersales *aftersales.Service
	dashboard  *dashboard.Service
	audit      *audit.Recorder
}

// New wires every service over db. blacklist may be nil, in which case the
// database store is used. m may be nil to disable metrics.
func New(cfg *config.Config, db *gorm.DB, blacklist auth.Store, m *metrics.Metrics, log *zap.Logger) *Server {
	if blacklist == nil {
		blacklist = auth.NewDBStore(db)
	}
	svc := services{
		auth:       auth.NewService(db, auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL), blacklist, m, log),
		users:      users.NewService(db, log),
		catalog:    catalog.NewService(db, catalog.NewImageStore(cfg.ProductImagePath), cfg.DefaultWarrantyMonths, log),
		purchasing: purchasing.NewService(db, log),
		promotion:  promotion.NewService(db, log),
		cart:       cart.NewService(db, log),
		order:      order.NewService(db, m, cfg.DefaultWarrantyMonths, log),
		aftersales: aftersales.NewService(db, cfg.ReturnWindowDays, log),
		dashboard:  dashboard.NewService(db, log),
		audit:      audit.NewRecorder(db, log),
	}

	app := fiber.New(fiber.Config{
		AppName:      "phonestore",
		ErrorHandler: apperr.Handler(log),
		BodyLimit:    catalog.MaxImageBytes + 1<<20,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: !cfg.IsProduction()}))
	app.Use(requestid.New())
	if cfg.MetricsEnabled {
		app.Use(m.Middleware())
	}
	app.Use(logger.AccessLog(log))
	app.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/healthz", healthHandler(db))
	if cfg.MetricsEnabled {
		app.Get("/metrics", m.Handler())
	}
	app.Static(strings.TrimSuffix(catalog.ImageURLPrefix, "/"), cfg.ProductImagePath, fiber.Static{MaxAge: 86400})

	registerRoutes(app, cfg, svc)

	return &Server{App: app, Auth: svc.auth, Blacklist: blacklist, AfterSales: svc.aftersales}
}

func normalizeOrigins(raw string) string {
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}

// GET /healthz
func healthHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := database.Ping(ctx, db); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

func loginLimiter(perMinute int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many login attempts, try again later")
		},
	})
}
