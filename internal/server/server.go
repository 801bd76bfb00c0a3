// Package server contains the HTTP handlers for the blog API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inkwell/internal/auth"
	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/service"
	"inkwell/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const serviceName = "inkwell-api"

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	cache          *cache.Cache
	store          storage.ObjectStore
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	stopTracing    observability.ShutdownFunc
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	likeRepo       repository.LikeRepository
	authService    *service.AuthService
	userService    *service.UserService
	likeService    *service.LikeService
	postService    *service.PostService
}

// NewServer connects the database, Redis and the object store and builds a Server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient := cache.Connect(cfg.RedisURL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := storage.New(ctx, cfg)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("object store setup failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, redisClient, store)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// A nil redisClient disables caching.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.ObjectStore) (*Server, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if store == nil {
		return nil, errors.New("object store is required")
	}

	stopTracing, err := observability.InitTracing(context.Background(), observability.TracingConfig{
		ServiceName:  serviceName,
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing setup failed: %w", err)
	}

	c := cache.New(redisClient)
	userRepo := repository.NewUserRepository(db, c)
	postRepo := repository.NewPostRepository(db, c)
	likeRepo := repository.NewLikeRepository(db, c)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		cache:          c,
		store:          store,
		promMiddleware: middleware.InitMetrics(serviceName),
		stopTracing:    stopTracing,
		userRepo:       userRepo,
		postRepo:       postRepo,
		likeRepo:       likeRepo,
	}
	server.authService = service.NewAuthService(userRepo, tokens)
	server.userService = service.NewUserService(userRepo)
	server.likeService = service.NewLikeService(likeRepo, userRepo)
	server.postService = service.NewPostService(postRepo, store)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers; images are fetched cross-origin by the frontend
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, x-access-token",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		MaxAge:       86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	users := app.Group("/users")
	users.Post("/signup", middleware.RateLimit(s.redis, 5, 10*time.Minute, "signup"), s.Signup)
	users.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	users.Get("/loggedin", s.LoggedIn)
	users.Get("/account", s.AuthRequired(), s.GetAccount)
	users.Put("/update/username", s.AuthRequired(), s.UpdateUsername)
	users.Put("/update/all", s.AuthRequired(), s.UpdateCredentials)
	users.Get("/username/:id", s.GetAuthorName)
	users.Get("/likedposts/:userId/:blogPostId", s.GetLikedPost)
	users.Post("/addlike/:userId/:blogPostId", s.AuthRequired(), s.AppendLikedPost)
	users.Put("/removelike/:userId/:blogPostId", s.AuthRequired(), s.RemoveLikedPost)
	users.Put("/deletedpost/removelike/:id", s.AuthRequired(), s.RemoveDeletedPostLikes)
	// Generic /:id route must be last
	users.Get("/:id", s.GetUser)

	posts := app.Group("/blogposts")
	posts.Get("/", s.ListPosts)
	posts.Get("/latest", s.LatestPosts)
	posts.Get("/myposts", s.AuthRequired(), s.MyPosts)
	posts.Get("/info/:id", s.GetPostInfo)
	posts.Get("/image/:id", s.GetPostImage)
	posts.Post("/create", s.AuthRequired(), s.CreatePost)
	posts.Post("/addlike/:id", s.AuthRequired(), s.IncrementLikeCount)
	posts.Put("/removelike/:id", s.AuthRequired(), s.DecrementLikeCount)
	posts.Post("/like/:id", s.AuthRequired(), s.LikePost)
	posts.Delete("/like/:id", s.AuthRequired(), s.UnlikePost)
	posts.Put("/edit/nopic/:id", s.AuthRequired(), s.EditPost)
	posts.Put("/edit/yespic/:id", s.AuthRequired(), s.EditPostWithImage)
	posts.Delete("/delete/:id", s.AuthRequired(), s.DeletePost)
}

// App builds the Fiber app with middleware and routes installed.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Inkwell API",
		BodyLimit: s.config.BodyLimit(),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, &models.AppError{
					Code:    httpErrorCode(fe.Code),
					Message: fe.Message,
				})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return s.respondError(c, models.NewInternalError(err))
		},
	})

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func httpErrorCode(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return models.CodeNotFound
	case fiber.StatusUnauthorized:
		return models.CodeUnauthorized
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge, fiber.StatusMethodNotAllowed:
		return models.CodeValidation
	}
	return models.CodeInternal
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so a
// missing client does not fail the check but an unreachable one does.
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

	redisStatus := "disabled"
	if s.cache.Enabled() {
		redisStatus = "healthy"
		if err := s.cache.Ping(ctx); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
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

// Start builds the app and listens on the configured port.
func (s *Server) Start() error {
	s.app = s.App()

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := database.Close(s.db); err != nil {
		middleware.Logger.Error("error closing sql DB", slog.String("error", err.Error()))
	}

	if err := s.cache.Close(); err != nil {
		middleware.Logger.Error("error closing redis", slog.String("error", err.Error()))
	}

	if s.stopTracing != nil {
		if err := s.stopTracing(ctx); err != nil {
			middleware.Logger.Error("error shutting down tracer", slog.String("error", err.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
