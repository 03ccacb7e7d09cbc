package main

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/diagnose/diagnose/internal/config"
	"github.com/diagnose/diagnose/internal/domain/diagnosis"
	"github.com/diagnose/diagnose/internal/platform/auth"
	"github.com/diagnose/diagnose/internal/platform/cdshooks"
	"github.com/diagnose/diagnose/internal/platform/db"
	"github.com/diagnose/diagnose/internal/platform/middleware"
	"github.com/diagnose/diagnose/internal/platform/telemetry"
)

// newServer wires routes and middleware. pool may be nil.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *diagnosis.Service, pool *pgxpool.Pool, metrics *telemetry.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/health", "/metrics"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))

	e.GET("/health", healthHandler(svc, pool))
	e.GET("/metrics", metrics.Handler())

	authn := authMiddleware(cfg, logger)

	api := e.Group("/api/v1")
	diagnosis.NewHandler(svc).RegisterRoutes(api, authn, auth.RequireRole(auth.RoleRulesReload))

	hooks := cdshooks.NewHandler()
	svc.RegisterHooks(hooks)
	hooks.RegisterRoutes(e, authn)

	return e
}

func authMiddleware(cfg *config.Config, logger zerolog.Logger) echo.MiddlewareFunc {
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		logger.Warn().Msg("authentication disabled: unauthenticated requests run as " + auth.DevSubject)
		return auth.DevAuthMiddleware()
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	})
}

type rulesHealth struct {
	Source   string    `json:"source"`
	Version  uint64    `json:"version"`
	Count    int       `json:"count"`
	LoadedAt time.Time `json:"loaded_at"`
}

type healthReport struct {
	Status   string        `json:"status"`
	Rules    rulesHealth   `json:"rules"`
	Database *db.PoolStats `json:"database,omitempty"`
}

func healthHandler(svc *diagnosis.Service, pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		snap := svc.Snapshot()
		report := healthReport{
			Status: "ok",
			Rules: rulesHealth{
				Source:   snap.Source,
				Version:  snap.Version,
				Count:    len(snap.Rules),
				LoadedAt: snap.LoadedAt,
			},
		}
		if pool != nil {
			report.Database = db.Check(c.Request().Context(), pool)
			if !report.Database.Healthy {
				report.Status = "degraded"
				return c.JSON(http.StatusServiceUnavailable, report)
			}
		}
		return c.JSON(http.StatusOK, report)
	}
}
