// Package server contains HTTP and WebSocket handlers for the chat API.
package server

import (
	"context"
	"fmt"
	"time"

	"lanes/internal/broadcast"
	"lanes/internal/config"
	"lanes/internal/database"
	"lanes/internal/middleware"
	"lanes/internal/moderation"
	"lanes/internal/repository"
	"lanes/internal/service"
	"lanes/internal/textproc"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	promMiddleware *fiberprometheus.FiberPrometheus

	userRepo repository.UserRepository
	postRepo repository.PostRepository
	roomRepo repository.RoomRepository
	voteRepo repository.VoteRepository
	flagRepo repository.FlagRepository
	banRepo  repository.BanRepository

	gate     *moderation.Gate
	hub      *broadcast.Hub
	notifier *broadcast.Notifier

	ingestion *service.IngestionService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	flagRepo := repository.NewFlagRepository(db)
	banRepo := repository.NewBanRepository(db)

	prom := fiberprometheus.New("lanes-api")

	hub := broadcast.NewHub()
	var notifier *broadcast.Notifier
	var bus broadcast.Broadcaster = hub
	if redisClient != nil {
		notifier = broadcast.NewNotifier(redisClient)
		bus = notifier
	}

	var limiter moderation.RateLimiter
	if redisClient != nil {
		limiter = moderation.NewRedisRateLimiter(
			redisClient, cfg.RateLimitBudget, cfg.RateLimitWindow(), moderation.FailClosed)
	}
	gate := moderation.NewGate(roomRepo, banRepo, limiter)
	proc := textproc.New(cfg.VideoHostList())

	ingestion := service.NewIngestionService(
		cfg, postRepo, voteRepo, flagRepo, roomRepo, userRepo, banRepo, gate, proc, bus)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		userRepo:       userRepo,
		postRepo:       postRepo,
		roomRepo:       roomRepo,
		voteRepo:       voteRepo,
		flagRepo:       flagRepo,
		banRepo:        banRepo,
		gate:           gate,
		hub:            hub,
		notifier:       notifier,
		ingestion:      ingestion,
	}, nil
}

// Ingestion exposes the coordinator for runtime bootstrap (rerank loop).
func (s *Server) Ingestion() *service.IngestionService {
	return s.ingestion
}

// StartWiring connects the cross-process event stream into the local hub.
func (s *Server) StartWiring(ctx context.Context) error {
	if s.notifier == nil {
		return nil
	}
	return s.notifier.StartWiring(ctx, s.hub)
}

// Shutdown closes every live subscription.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.hub.Shutdown(ctx)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(s.promMiddleware.Middleware)
	}

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Protected room actions
	rooms := api.Group("/rooms", middleware.AuthRequired)
	rooms.Get("/:id/pinned", s.GetPinnedPosts)
	rooms.Post("/:id/messages", s.PostMessage)

	posts := api.Group("/posts", middleware.AuthRequired)
	posts.Put("/:id", s.EditPost)
	posts.Delete("/:id", s.DeletePost)
	posts.Post("/:id/pin", s.PinPost)
	posts.Post("/:id/vote", s.VotePost)
	posts.Post("/:id/flag", s.FlagPost)

	orgs := api.Group("/organisations", middleware.AuthRequired)
	orgs.Put("/:id/status", s.SetStatus)

	// Websocket endpoints
	ws := api.Group("/ws", middleware.WebSocketAuthRequired)
	ws.Get("/rooms/:id", s.RoomSocketHandler())
	ws.Get("/organisations/:slug", s.OrgSocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "absent"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"database": dbStatus,
		"redis":    redisStatus,
	})
}
