// Package server exposes the Campus Hub screens over HTTP and the live
// channel over websocket.
package server

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/brayobiz/campus-hub-sub000/docs" // swagger docs
	"github.com/brayobiz/campus-hub-sub000/internal/app"
	"github.com/brayobiz/campus-hub-sub000/internal/backend"
	"github.com/brayobiz/campus-hub-sub000/internal/backend/platform"
	"github.com/brayobiz/campus-hub-sub000/internal/bootstrap"
	"github.com/brayobiz/campus-hub-sub000/internal/config"
	"github.com/brayobiz/campus-hub-sub000/internal/featureflags"
	"github.com/brayobiz/campus-hub-sub000/internal/guard"
	"github.com/brayobiz/campus-hub-sub000/internal/middleware"
	"github.com/brayobiz/campus-hub-sub000/internal/models"
	"github.com/brayobiz/campus-hub-sub000/internal/notifications"
	"github.com/brayobiz/campus-hub-sub000/internal/observability"
	"github.com/brayobiz/campus-hub-sub000/internal/store"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var serverLog = observability.NewComponentLogger("server")

// The HTTP collectors live on the default registry, so every server in the
// process shares one instance.
var (
	promOnce sync.Once
	promHTTP *fiberprometheus.FiberPrometheus
)

func httpMetrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promHTTP = fiberprometheus.New("campus-hub")
	})
	return promHTTP
}

// Server holds all dependencies and provides handlers
type Server struct {
	config       *config.Config
	db           *gorm.DB
	redis        *redis.Client
	app          *fiber.App
	prom         *fiberprometheus.FiberPrometheus
	shutdownCtx  context.Context
	shutdownFn   context.CancelFunc
	provider     backend.Provider
	platform     *platform.Platform
	storageDir   string
	registry     *app.Registry
	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager

	buildOnce sync.Once
}

// NewServer creates a new server instance with all dependencies. Without
// BACKEND_URL and BACKEND_KEY it serves the stub backend.
func NewServer(cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{
		SeedBuiltIns: !cfg.IsProduction(),
	})
	if err != nil {
		return nil, err
	}

	s := newServer(cfg, rt.Provider, rt.Redis)
	s.db = rt.DB
	s.platform = rt.Platform
	s.storageDir = rt.StorageDir
	return s, nil
}

// NewServerWithDeps creates a Server using an already-built backend provider.
// Use this in tests or when a bootstrap layer owns the database and Redis.
func NewServerWithDeps(cfg *config.Config, provider backend.Provider, redisClient *redis.Client) (*Server, error) {
	if provider == nil {
		return nil, errors.New("server: backend provider is required")
	}
	s := newServer(cfg, provider, redisClient)
	if p, ok := provider.(*platform.Platform); ok {
		s.platform = p
	}
	return s, nil
}

func newServer(cfg *config.Config, provider backend.Provider, redisClient *redis.Client) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:       cfg,
		redis:        redisClient,
		prom:         httpMetrics(),
		shutdownCtx:  ctx,
		shutdownFn:   cancel,
		provider:     provider,
		notifier:     notifications.NewNotifier(redisClient),
		hub:          notifications.NewHub(redisClient),
		featureFlags: featureflags.NewManager(cfg.FeatureFlags),
	}

	var kv store.KV = store.NewMemoryKV()
	if redisClient != nil {
		kv = store.NewRedisKV(redisClient, 0)
	}
	s.registry = app.NewRegistry(app.Options{
		Provider: provider,
		KV:       kv,
		Notifier: s.notifier,
		Presence: s.hub.Presence(),
		Flags:    s.featureFlags,
		Settings: app.Settings{
			SignupTimeout:   cfg.SignupTimeout(),
			ConfirmRedirect: strings.TrimRight(cfg.PublicBaseURL, "/") + guard.LoginPath,
			FeedLimit:       cfg.FeedPageSize(),
			SuccessDelay:    cfg.SuccessMessageDelay(),
			IdleTimeout:     cfg.DeviceIdleTimeout(),
		},
	})
	return s
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Device identity before the context middleware so logs carry it.
	app.Use(middleware.Device(middleware.DeviceOptions{Secure: s.config.IsProduction()}))
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.prom != nil {
		app.Use(s.prom.Middleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins(s.config),
		AllowHeaders:     "Origin, Content-Type, Accept, X-Requested-With, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// corsOrigins is ALLOWED_ORIGINS plus the origin of PUBLIC_BASE_URL, which
// serves the app's own pages.
func corsOrigins(cfg *config.Config) string {
	origins := cfg.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	if origins == "*" {
		return origins
	}
	u, err := url.Parse(cfg.PublicBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return origins
	}
	public := u.Scheme + "://" + u.Host
	for _, o := range strings.Split(origins, ",") {
		if strings.EqualFold(strings.TrimSpace(o), public) {
			return origins
		}
	}
	return origins + "," + public
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.prom != nil {
		s.prom.RegisterAt(app, "/metrics")
	}
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Campus Hub Metrics Dashboard",
	}))
	app.Get("/swagger/*", swagger.HandlerDefault)

	if s.storageDir != "" {
		app.Static("/storage", s.storageDir, fiber.Static{Browse: false})
	}

	app.Get("/", s.Landing)

	auth := app.Group("/auth")
	auth.Get("/login", s.LoginScreen)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Get("/signup", s.SignupScreen)
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/resend", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "resend_confirmation"), s.ResendConfirmation)
	auth.Get("/confirm", s.ConfirmEmail)
	auth.Post("/logout", s.Logout)
	auth.Get("/campuspicker", s.signedIn(), s.CampusPicker)
	auth.Post("/campuspicker", s.signedIn(), s.SelectCampus)

	app.Get("/live", s.LiveUpgrade, s.LiveHandler())

	guarded := guard.New(guard.Config{
		Stores:           s.deviceStores,
		HydrationTimeout: s.config.HydrationTimeout(),
	})

	app.Get("/home", guarded, s.Home)
	app.Get("/explore", guarded, s.Explore)
	app.Get("/alerts", guarded, s.Alerts)
	app.Post("/alerts/:alertId/read", guarded, s.MarkAlertRead)
	app.Get("/profile", guarded, s.Profile)
	app.Get("/settings", guarded, s.Settings)
	app.Post("/settings", guarded, s.SaveSettings)
	app.Get("/flags", guarded, s.GetFeatureFlags)

	app.Get("/feeds/:domain", guarded, s.Feed)
	app.Get("/post/:domain", guarded, s.PostForm)
	app.Post("/post/:domain", guarded, middleware.RateLimit(
		s.redis, 10, time.Minute, "create_post"), s.SubmitPost)

	confessions := app.Group("/confessions/:id")
	confessions.Post("/like", guarded, s.LikeConfession)
	confessions.Delete("/like", guarded, s.UnlikeConfession)
	confessions.Get("/comments", guarded, s.ConfessionComments)
	confessions.Post("/comments", guarded, middleware.RateLimit(
		s.redis, 5, time.Minute, "create_comment"), s.AddConfessionComment)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. The stub backend is
// reported as degraded but still ready: every screen renders its empty state.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "stub"
	if s.db != nil {
		dbStatus = "healthy"
		sqlDB, err := s.db.DB()
		if err != nil {
			dbStatus = "unhealthy"
		} else if err := sqlDB.PingContext(ctx); err != nil {
			dbStatus = "unhealthy"
		}
	} else if s.platform != nil {
		dbStatus = "external"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	switch {
	case dbStatus == "unhealthy" || redisStatus == "unhealthy":
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	case dbStatus == "stub" || redisStatus == "unavailable":
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"devices": s.registry.Len(),
		"time":    time.Now(),
	})
}

// App builds the Fiber app and starts the background workers on first
// call.
func (s *Server) App() *fiber.App {
	s.buildOnce.Do(func() {
		app := fiber.New(fiber.Config{
			AppName:      "Campus Hub",
			BodyLimit:    25 * 1024 * 1024,
			ErrorHandler: s.handleError,
		})
		s.SetupMiddleware(app)
		s.SetupRoutes(app)
		s.app = app

		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			serverLog.Error(s.shutdownCtx, "failed to start live hub wiring", err, map[string]any{"hub": s.hub.Name()})
		}
		s.registry.Start()
	})
	return s.app
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	serverLog.Error(c.UserContext(), "unhandled request error", err, map[string]any{"path": c.Path()})
	return models.RespondWithError(c, fiber.StatusInternalServerError,
		models.NewInternalError(err))
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
	serverLog.Info(s.shutdownCtx, "server starting", map[string]any{
		"port":     s.config.Port,
		"degraded": s.platform == nil,
	})
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop all wiring goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			serverLog.Error(ctx, "error shutting down HTTP server", err, nil)
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		serverLog.Error(ctx, "error shutting down live hub", err, nil)
	}
	s.registry.Close()

	if err := s.provider.Close(); err != nil {
		serverLog.Error(ctx, "error closing backend", err, nil)
	}

	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			if cerr := sqlDB.Close(); cerr != nil {
				serverLog.Error(ctx, "error closing sql DB", cerr, nil)
			}
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			serverLog.Error(ctx, "error closing redis", rerr, nil)
		}
	}

	serverLog.Info(ctx, "server shutdown complete", nil)
	return nil
}
