// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "campusfeed/docs" // swagger docs
	"campusfeed/internal/cache"
	"campusfeed/internal/config"
	"campusfeed/internal/events"
	"campusfeed/internal/featureflags"
	"campusfeed/internal/middleware"
	"campusfeed/internal/models"
	"campusfeed/internal/notifications"
	"campusfeed/internal/repository"
	"campusfeed/internal/service"
	"campusfeed/internal/storage"

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

const (
	nameCacheSize = 1024
	nameCacheTTL  = 10 * time.Minute
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	publisher      events.Publisher
	store          storage.Store
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager

	userService         *service.UserService
	postService         *service.PostService
	commentService      *service.CommentService
	reactionService     *service.ReactionService
	notificationService *service.NotificationService
	mediaService        *service.MediaService
}

// Deps are the optional collaborators a caller may inject. Zero values fall
// back to a no-op event publisher and a local media store under MEDIA_DIR.
type Deps struct {
	Publisher events.Publisher
	Store     storage.Store
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching, distributed rate limits and live
// notification delivery are then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, deps Deps) (*Server, error) {
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	if deps.Store == nil {
		local, err := storage.NewLocalStore(cfg.MediaDir, cfg.MediaBaseURL)
		if err != nil {
			return nil, fmt.Errorf("media store: %w", err)
		}
		deps.Store = local
	}

	flags := featureflags.NewManager(cfg.FeatureFlags)
	repos := service.NewRepositories(db)
	tx := repository.NewTransactor(db)
	names := cache.NewNameCache(nameCacheSize, nameCacheTTL)
	notifier := notifications.NewNotifier(redisClient)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("campusfeed-api"),
		publisher:      deps.Publisher,
		store:          deps.Store,
		notifier:       notifier,
		hub:            notifications.NewHub(),
		featureFlags:   flags,
	}

	var realtime service.RealtimePublisher
	if notifier.Enabled() {
		realtime = notifier
	}
	fanout := service.NewFanout(repos.Notifications, repos.Users, names, realtime, flags)

	server.reactionService = service.NewReactionService(tx, repos.Reactions, repos.Posts, repos.Comments,
		fanout, cache.NewStore(redisClient, "reactions"), flags, deps.Publisher)
	server.postService = service.NewPostService(tx, repos, server.reactionService, deps.Store,
		cache.NewStore(redisClient, "posts"), deps.Publisher)
	server.commentService = service.NewCommentService(tx, repos.Comments, repos.Posts, fanout,
		cache.NewStore(redisClient, "posts"), deps.Publisher)
	server.notificationService = service.NewNotificationService(repos.Notifications, repos.Users, names)
	server.mediaService = service.NewMediaService(repos.Media, repos.Posts, deps.Store,
		cache.NewStore(redisClient, "posts"), flags, cfg.MediaMaxUploadBytes())
	server.userService = service.NewUserService(repos.Users, repos.Comments, cfg.JWTSecret,
		time.Duration(cfg.JWTTTLHours)*time.Hour, service.AccountPolicy{
			AllowedDomains: cfg.EmailDomains(),
			VerifyTTL:      time.Duration(cfg.EmailVerifyTTLHours) * time.Hour,
		})

	return server, nil
}

// NewApp builds the Fiber application with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Campus Feed API",
		BodyLimit: int(s.config.MediaMaxUploadBytes()) + 1024*1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	// Propagates request and user ids into the logger context.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(middleware.TracingMiddleware())

	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so throttled responses still carry headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
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

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	if s.config.MediaBaseURL != "" && s.config.MediaDir != "" {
		app.Static(s.config.MediaBaseURL, s.config.MediaDir, fiber.Static{
			MaxAge: 3600,
		})
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Campus Feed Metrics Dashboard",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	secret := s.config.JWTSecret
	authRequired := middleware.AuthRequired(secret, false)
	optionalAuth := middleware.OptionalAuth(secret)

	api.Get("/features", optionalAuth, s.GetFeatures)

	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(s.redis, 5, 10*time.Minute, "register"), s.Register)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Get("/verify", middleware.RateLimit(s.redis, 20, 10*time.Minute, "verify_email"), s.VerifyEmail)

	users := api.Group("/users")
	users.Get("/me", authRequired, s.GetMe)
	users.Get("/:id/posts", s.GetUserPosts)
	users.Get("/:id/comments", s.GetUserComments)
	users.Get("/:id", s.GetUserProfile)

	posts := api.Group("/posts")
	posts.Get("/", s.ListPosts)
	// Specific routes before generic /:id.
	posts.Get("/categories", s.ListCategories)
	posts.Post("/", authRequired, middleware.RateLimit(s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/:id", optionalAuth, s.GetPost)
	posts.Patch("/:id", authRequired, s.UpdatePost)
	posts.Delete("/:id", authRequired, s.DeletePost)

	media := api.Group("/media", authRequired)
	media.Post("/upload", middleware.RateLimit(s.redis, 20, 10*time.Minute, "media_upload"), s.UploadMedia)
	media.Delete("/:id", s.DeleteMedia)

	comments := api.Group("/comments")
	comments.Get("/post/:postId", s.ListComments)
	comments.Post("/post/:postId", authRequired, middleware.RateLimit(s.redis, 30, time.Minute, "create_comment"), s.CreateComment)
	comments.Get("/:id/thread", s.GetThread)
	comments.Patch("/:id", authRequired, s.UpdateComment)
	comments.Delete("/:id", authRequired, s.DeleteComment)

	reactions := api.Group("/reactions")
	reactions.Post("/", authRequired, middleware.RateLimit(s.redis, 60, time.Minute, "react"), s.AddReaction)
	reactions.Delete("/", authRequired, s.RemoveReaction)
	reactions.Get("/post/:id", optionalAuth, s.GetPostReactions)
	reactions.Get("/comment/:id", optionalAuth, s.GetCommentReactions)

	notices := api.Group("/notifications", authRequired)
	notices.Get("/", s.ListNotifications)
	notices.Get("/unread-count", s.UnreadCount)
	notices.Post("/read-all", s.MarkAllNotificationsRead)
	notices.Post("/:id/read", s.MarkNotificationRead)

	// Browsers cannot set headers on a websocket upgrade, so ?token= is accepted here.
	ws := api.Group("/ws", middleware.AuthRequired(secret, true))
	ws.Get("/notifications", s.WebsocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so only
// the database decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "disabled"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus == "unhealthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.NewApp()

	if s.notifier.Enabled() {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring",
					slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
	}

	if err := s.publisher.Close(); err != nil {
		middleware.Logger.Error("error closing event publisher", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
