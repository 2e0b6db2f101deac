// Package server contains the HTTP and WebSocket handlers for the penfeed API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "penfeed/docs" // swagger docs

	"penfeed/internal/cache"
	"penfeed/internal/config"
	"penfeed/internal/database"
	"penfeed/internal/featureflags"
	"penfeed/internal/media"
	"penfeed/internal/middleware"
	"penfeed/internal/models"
	"penfeed/internal/notifications"
	"penfeed/internal/repository"
	"penfeed/internal/service"

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

const serviceName = "penfeed-api"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo    repository.UserRepository
	groupRepo   repository.GroupRepository
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	followRepo  repository.FollowRepository

	notifier     *notifications.Notifier
	hub          *notifications.FeedHub
	publisher    *notifications.Publisher
	featureFlags *featureflags.Manager
	media        media.Store

	authService    *service.AuthService
	feedService    *service.FeedService
	postService    *service.PostService
	commentService *service.CommentService
	followService  *service.FollowService
	groupService   *service.GroupService
}

// NewServer connects to the database and Redis and builds a server on top of them.
// Redis is optional: without it the index cache never hits and live events stay local.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return NewServerWithDeps(cfg, db, cache.InitRedis(cfg.RedisURL))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("config and database are required")
	}
	middleware.InitMiddleware(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics(serviceName),
		shutdownCtx:    ctx,
		shutdownFn:     cancel,
		userRepo:       repository.NewUserRepository(db),
		groupRepo:      repository.NewGroupRepository(db),
		postRepo:       repository.NewPostRepository(db),
		commentRepo:    repository.NewCommentRepository(db),
		followRepo:     repository.NewFollowRepository(db),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewFeedHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		media:          media.NewDiskStoreFromConfig(cfg),
	}
	s.publisher = notifications.NewPublisher(s.hub, s.notifier)

	s.authService = service.NewAuthService(s.userRepo)
	s.feedService = service.NewFeedService(
		s.postRepo, s.userRepo, s.groupRepo, s.commentRepo, s.followRepo,
		cache.NewStore(redisClient),
		service.FeedOptions{PageSize: cfg.PageSize, IndexTTL: cfg.IndexCacheTTL()},
	)
	s.postService = service.NewPostService(s.postRepo, s.groupRepo)
	s.commentService = service.NewCommentService(s.commentRepo, s.postRepo)
	s.followService = service.NewFollowService(s.followRepo, s.userRepo)
	s.groupService = service.NewGroupService(s.groupRepo, s.userRepo)

	return s, nil
}

// NewApp builds the fiber application with middleware and routes attached.
func (s *Server) NewApp() *fiber.App {
	bodyLimit := 4 * 1024 * 1024
	if upload := int(s.config.MediaMaxUploadBytes()); upload > 0 {
		bodyLimit = upload + 1024*1024
	}

	app := fiber.New(fiber.Config{
		AppName:      "penfeed",
		BodyLimit:    bodyLimit,
		ErrorHandler: errorHandler,
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// errorHandler renders errors that escaped the handlers, including fiber's own
// (unknown routes, body limits, disabled features).
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		appErr := &models.AppError{Message: fe.Message}
		switch fe.Code {
		case fiber.StatusNotFound:
			appErr.Code = models.CodeNotFound
		case fiber.StatusRequestEntityTooLarge, fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
			appErr.Code = models.CodeValidation
		}
		return models.RespondWithError(c, fe.Code, appErr)
	}

	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
		slog.String("path", c.Path()), slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(middleware.TracingMiddleware())

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses carry its headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
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

	app.Use(middleware.Identity(s.redis))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	app.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "penfeed metrics",
	}))
	app.Get("/swagger/*", swagger.HandlerDefault)

	login := middleware.LoginRequired()

	// Auth
	auth := app.Group("/auth")
	auth.Get("/login/", s.LoginForm)
	credentials := s.credentialLimitPolicy()
	auth.Post("/login/", middleware.RateLimitWithPolicy(s.redis, 10, 5*time.Minute, credentials, "login"), s.Login)
	auth.Post("/signup/", middleware.RateLimitWithPolicy(s.redis, 3, 10*time.Minute, credentials, "signup"), s.Signup)
	auth.Post("/logout/", s.Logout)

	// Feeds
	app.Get("/", s.Index)
	app.Get("/group/:slug/", s.GroupFeed)
	app.Get("/follow/", login, s.FollowFeed)

	// Profiles and follows
	app.Get("/profile/:username/", s.Profile)
	app.Get("/profile/:username/follow/", login, s.FollowAuthor)
	app.Get("/profile/:username/unfollow/", login, s.UnfollowAuthor)

	// Posts
	app.Get("/create/", login, s.PostForm)
	app.Post("/create/", login, middleware.RateLimit(s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)

	posts := app.Group("/posts")
	posts.Get("/:id/", s.PostDetail)
	posts.Get("/:id/edit/", login, s.EditPostForm)
	posts.Post("/:id/edit/", login, s.EditPost)
	posts.Post("/:id/delete/", login, s.DeletePost)
	posts.Post("/:id/comment/", login, middleware.RateLimit(s.redis, 20, 5*time.Minute, "comment"), s.AddComment)

	// Groups
	app.Get("/groups/", s.ListGroups)
	app.Get("/groups/:slug/", s.GroupDetail)
	app.Post("/groups/", login, s.CreateGroup)
	app.Post("/groups/:slug/edit/", login, s.UpdateGroup)

	app.Post("/cache/flush/", login, s.FlushCache)

	app.Get("/features/", s.Features)

	app.Post("/media/", login, s.featureFlags.Gate(featureflags.ImageUploads, middleware.UserID), s.UploadMedia)

	app.Get("/ws/feed", login, s.featureFlags.Gate(featureflags.LiveFeed, middleware.UserID), s.requireUpgrade, s.LiveFeedHandler())
}

// credentialLimitPolicy fails closed on login and signup when Redis is configured but
// unreachable. Without Redis there is no store to wait for.
func (s *Server) credentialLimitPolicy() middleware.FailPolicy {
	if s.redis == nil {
		return middleware.FailOpen
	}
	return middleware.FailClosed
}

// LivenessCheck reports that the process is serving requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck pings the database and Redis. A missing Redis is reported but not fatal.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := fiber.Map{}
	healthy := true

	if err := database.Ping(ctx, s.db); err != nil {
		checks["database"] = "down: " + err.Error()
		healthy = false
	} else {
		checks["database"] = "up"
	}

	switch {
	case s.redis == nil:
		checks["redis"] = "disabled"
	default:
		if err := s.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "down: " + err.Error()
			healthy = false
		} else {
			checks["redis"] = "up"
		}
	}

	status := "ready"
	code := fiber.StatusOK
	if !healthy {
		status = "unavailable"
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"checks": checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// startRealtime wires the live feed hub to the Redis subscription.
func (s *Server) startRealtime() {
	if !s.notifier.Enabled() {
		return
	}
	if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
		middleware.Logger.Error("failed to start live feed wiring", slog.String("error", err.Error()))
	}
}

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	app := s.NewApp()
	go s.startRealtime()

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
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
		middleware.Logger.Error("error shutting down live feed hub", slog.String("error", err.Error()))
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing database", slog.String("error", err.Error()))
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
