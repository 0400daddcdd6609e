package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"

	config "github.com/adcraft/postpilot/configs"
	"github.com/adcraft/postpilot/internal/api/handlers"
	"github.com/adcraft/postpilot/internal/api/middleware"
	job "github.com/adcraft/postpilot/internal/jobs"
	"github.com/adcraft/postpilot/internal/queue"
	"github.com/adcraft/postpilot/internal/repository"
	"github.com/adcraft/postpilot/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	// Configuration errors are fatal at startup, never per-post.
	if cfg.PostgresURI == "" {
		log.Fatal("POSTGRES_URI is not set")
	}
	if cfg.RedisURI == "" {
		log.Fatal("REDIS_URI is not set")
	}
	if cfg.SecretKey == "" {
		log.Fatal("SECRET_KEY is not set")
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	queueClient := queue.NewClient(redisConn)
	defer queueClient.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	publishLogRepo := repository.NewPublishLogRepository(db)
	apiKeyRepository := repository.NewApiKeyRepository(db)

	r2Service := service.NewR2Service(*cfg)
	assetService := service.NewAssetService(r2Service)
	accountService := service.NewAccountService(socialAccountRepo)
	instagramService := service.NewInstagramService(*cfg, socialAccountRepo)
	publisherService := service.NewPublisherService(postRepo, publishLogRepo, accountService, assetService, instagramService)
	postService := service.NewPostService(postRepo, publishLogRepo, socialAccountRepo, queueClient)
	platformService := service.NewPlatformService(*cfg, socialAccountRepo)
	apiKeyService := service.NewApiKeyService(apiKeyRepository)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	platform := handlers.NewPlatformHandler(platformService, instagramService, *cfg)
	app.Get("/auth/:platform", platform.AddSocialAccount)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	// cron jobs and the scan entry point
	scanJob := job.NewScanJob(postRepo, publisherService)
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, instagramService)

	scan := handlers.NewScanHandler(scanJob, *cfg)
	app.Post("/internal/scan", scan.RunScan)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	post := handlers.NewPostHandler(postService)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/status", post.PostStatus)
	api.Get("/posts/history", post.PostHistory)
	api.Post("/posts/reschedule", post.ReschedulePost)
	api.Post("/posts/cancel", post.CancelPost)
	api.Post("/posts/remove", post.RemovePost)

	// social accounts api routes
	api.Get("/accounts", platform.ListSocialAccounts)
	api.Post("/accounts/remove", platform.DisconnectSocialAccount)

	c := cron.New()
	c.AddFunc("@every 00h05m00s", scanJob.Run)
	c.AddFunc("@every 00h10m00s", refreshTokenJob.Run)
	c.Start()

	queueWorker := queue.NewWorker(publisherService)

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			// Jobs are for different posts, so a little concurrency is
			// safe; per-post serialization is the DB claim's job.
			Concurrency: 2,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishPost, queueWorker.HandlePublishPostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
