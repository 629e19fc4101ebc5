package main

import (
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medrec/medrec/internal/config"
	"github.com/medrec/medrec/internal/domain/materials"
	"github.com/medrec/medrec/internal/domain/patients"
	"github.com/medrec/medrec/internal/domain/profiles"
	"github.com/medrec/medrec/internal/domain/users"
	"github.com/medrec/medrec/internal/platform/apierr"
	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/blobstore"
	"github.com/medrec/medrec/internal/platform/db"
	"github.com/medrec/medrec/internal/platform/middleware"
	"github.com/medrec/medrec/internal/platform/validation"
)

type services struct {
	tokens    *auth.TokenIssuer
	userRepo  users.Repository
	users     *users.Service
	profiles  *profiles.Service
	patients  *patients.Service
	materials *materials.Service
}

// newServices wires repositories and services over one pool. blobs may be
// nil for commands that never touch materials.
func newServices(pool *pgxpool.Pool, tokens *auth.TokenIssuer, blobs blobstore.BlobStore) *services {
	tx := db.NewTransactor(pool)
	v := validation.New()

	userRepo := users.NewRepo(pool)
	profileRepo := profiles.NewRepo(pool)
	profileSvc := profiles.NewService(profileRepo, tx, v)
	patientSvc := patients.NewService(patients.NewRepo(pool), profileRepo, blobs, tx, v)

	return &services{
		tokens:    tokens,
		userRepo:  userRepo,
		users:     users.NewService(userRepo, profileSvc, tx, auth.NewPasswordHasher(0), tokens, v),
		profiles:  profileSvc,
		patients:  patientSvc,
		materials: materials.NewService(materials.NewRepo(pool), patientSvc, blobs, tx),
	}
}

// newServer builds the Echo instance with global middleware and every route.
func newServer(cfg *config.Config, logger zerolog.Logger, pinger db.Pinger, svc *services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apierr.Handler(logger)

	e.Pre(echomw.RemoveTrailingSlash())

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(middleware.BodyLimit(cfg.MaxBodySize, cfg.MaxUploadSize))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pinger))

	// Uploaded files are served by the app only in development.
	if cfg.IsDev() && strings.HasPrefix(cfg.MediaURL, "/") {
		e.Static(cfg.MediaURL, cfg.MediaRoot)
	}

	jwt := auth.JWTMiddleware(auth.JWTConfig{
		Tokens: svc.tokens,
		Loader: svc.userRepo,
	})

	limits := middleware.DefaultRateLimitConfig()
	limits.RequestsPerSecond = cfg.RateLimitRPS
	limits.BurstSize = cfg.RateLimitBurst
	throttle := middleware.RateLimit(limits)

	authGroup := e.Group("/auth", jwt)
	users.NewHandler(svc.users, throttle).RegisterRoutes(authGroup)

	api := e.Group("/api", jwt)
	profiles.NewHandler(svc.profiles, cfg.PageSize).RegisterRoutes(api)
	patients.NewHandler(svc.patients, cfg.PageSize).RegisterRoutes(api)
	materials.NewHandler(svc.materials, cfg.PageSize).RegisterRoutes(api)

	return e
}
