package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/chunkstream/api/internal/config"
	"github.com/chunkstream/api/internal/download"
	"github.com/chunkstream/api/internal/handler"
	"github.com/chunkstream/api/internal/media"
	"github.com/chunkstream/api/internal/middleware"
	"github.com/chunkstream/api/internal/registry"
	"github.com/chunkstream/api/internal/service"
	"github.com/chunkstream/api/internal/signing"
	"github.com/chunkstream/api/internal/storage"
	"github.com/chunkstream/api/internal/stream"
	"github.com/chunkstream/api/internal/worker"
	ws "github.com/chunkstream/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Storage
	layout := storage.NewLayout(cfg.Storage.Root)
	metaStore := storage.NewMetadataStore(layout)

	// Delivery core
	resolver := stream.NewResolver(layout, metaStore, cfg.Storage.DefaultQuality)
	signer := signing.NewSigner(cfg.Auth.SigningSecret)

	// Job registry
	var jobStore registry.Store
	if cfg.Registry.Backend == "redis" {
		jobStore = registry.NewRedisStore(redisClient)
	} else {
		// Process-local: job records are lost on restart.
		jobStore = registry.NewMemoryStore()
	}
	jobRegistry := registry.New(jobStore)
	canceller := registry.NewCanceller()

	// Media tools
	runner := media.NewCommandRunner()
	prober := media.NewProber(cfg.Media.FFprobePath, runner)
	encoder := media.NewEncoder(cfg.Media.FFmpegPath, runner)
	thumbnailer := media.NewThumbnailer(cfg.Media.FFmpegPath, runner)

	// Services
	transcodeService := service.NewTranscodeService(prober, encoder, thumbnailer, layout, metaStore, cfg.Storage.ChunkDuration)
	streamService := service.NewStreamService(resolver, signer, metaStore)
	ingestService := service.NewIngestService(jobRegistry, canceller, asynqClient)
	downloader := download.NewDownloader(time.Duration(cfg.Download.TimeoutSeconds)*time.Second, cfg.Download.MaxBytes)

	// Handlers
	grantTTL := time.Duration(cfg.Auth.GrantTTL) * time.Second
	streamHandler := handler.NewStreamHandler(resolver, signer, streamService, layout, cfg.Auth.RequireGrants, grantTTL)
	ingestHandler := handler.NewIngestHandler(ingestService, validate, cfg.Storage.TempDir)
	jobHandler := handler.NewJobHandler(ingestService)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiration)
	authHandler := handler.NewAuthHandler(authMiddleware, cfg.Auth.APIKey, validate)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		BodyLimit:             cfg.Server.BodyLimit,
		StreamRequestBody:     true,
		DisableStartupMessage: cfg.Server.Env == "production",
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,Range",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Token issuance
	app.Post("/api/auth/token", authHandler.Token)

	// Delivery routes: chunk URLs stay header-auth free so intermediaries
	// can cache them; access control is the per-chunk signed grant.
	videos := app.Group("/api/videos")
	videos.Get("/:videoId", streamHandler.GetMetadata)
	videos.Get("/:videoId/thumbnail", streamHandler.GetThumbnail)
	videos.Get("/:videoId/chunks/:quality/:index", streamHandler.GetChunk)
	videos.Get("/:videoId/stream/:quality", streamHandler.GetChunkByTimestamp)
	videos.Get("/:videoId/manifest/:quality", streamHandler.GetManifest)
	videos.Get("/:videoId/prefetch/:quality", streamHandler.Prefetch)

	// Management routes
	ingest := app.Group("/api/ingest", authMiddleware.Authenticate())
	ingest.Post("/upload", ingestHandler.Upload)
	ingest.Post("/url", ingestHandler.FromURL)

	jobs := app.Group("/api/jobs", authMiddleware.Authenticate())
	jobs.Get("/", jobHandler.List)
	jobs.Get("/:jobId", jobHandler.Get)
	jobs.Delete("/:jobId", jobHandler.Delete)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))

	// Start Asynq worker server
	ingestWorker := worker.NewIngestWorker(jobRegistry, canceller, transcodeService, downloader, hub, cfg.Storage.TempDir)
	go startWorkerServer(cfg, ingestWorker)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, ingestWorker *worker.IngestWorker) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Jobs run concurrently with no cross-job coordination; tiers
			// within one job stay sequential.
			Concurrency: 4,
			Queues: map[string]int{
				"ingest": 10,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeIngest, ingestWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
