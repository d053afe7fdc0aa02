package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pantrylink/foodbank-api/internal/api/handler"
	"github.com/pantrylink/foodbank-api/internal/api/middleware"
	"github.com/pantrylink/foodbank-api/internal/core/domain"
	"github.com/pantrylink/foodbank-api/internal/core/ports"
	"github.com/pantrylink/foodbank-api/internal/core/service"
	mongostore "github.com/pantrylink/foodbank-api/internal/infrastructure/db/mongo"
	redisstore "github.com/pantrylink/foodbank-api/internal/infrastructure/db/redis"
	healthhandlers "github.com/pantrylink/foodbank-api/internal/infrastructure/http/handlers"
	"github.com/pantrylink/foodbank-api/internal/pkg/config"
)

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, flag *redisstore.MaintenanceFlag, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)
	e.Validator = handler.NewValidator()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("foodbank"))

	// --- Dependencies ---
	stores := ports.IdentityStores{
		Staff:      mongostore.NewStaffRepository(db),
		Clients:    mongostore.NewClientRepository(db),
		Volunteers: mongostore.NewVolunteerRepository(db),
		Agencies:   mongostore.NewAgencyRepository(db),
	}
	authenticator := service.NewAuthenticator(cfg.JWTSecret, stores)
	sessions := service.NewSessionService(
		stores.Staff,
		redisstore.NewRotationStore(rdb),
		cfg.JWTSecret,
		cfg.SessionTTL,
		cfg.RefreshTTL,
	)
	cookies := middleware.DefaultCookieConfig(cfg.CookieSecure)

	sessionHandler := handler.NewSessionHandler(sessions, cookies)
	opsHandler := handler.NewOpsHandler(flag.Enabled)

	optionalAuth := middleware.OptionalAuth(authenticator, cookies)
	requireAuth := middleware.RequireAuth(authenticator, cookies)
	maintenance := middleware.Maintenance(flag.Enabled)
	csrf := middleware.CSRF()

	// --- Auth routes (open during maintenance so staff can still sign in) ---
	e.GET("/auth/csrf", sessionHandler.CSRFToken)
	e.POST("/auth/login", sessionHandler.Login, csrf)
	e.POST(handler.RefreshRoute, sessionHandler.Refresh, csrf)
	e.POST("/auth/logout", sessionHandler.Logout, csrf)

	// The maintenance gate sits between optional and required auth: an
	// anonymous caller still gets the 503, not a 401. RequireAuth reuses the
	// result OptionalAuth already resolved.
	e.GET("/auth/me", sessionHandler.Me, optionalAuth, maintenance, requireAuth)

	// --- Operational routes ---
	ops := e.Group("/ops", csrf, optionalAuth, maintenance, requireAuth)
	ops.GET("/maintenance", opsHandler.MaintenanceStatus,
		middleware.RequireRole(domain.RoleStaff),
		middleware.RequireCapability(domain.CapabilityAdmin),
	)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := healthhandlers.NewHealthHandler()
	healthDepsHandler := healthhandlers.NewHealthDependenciesHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
