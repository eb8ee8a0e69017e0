package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"ticus/internal/config"
	"ticus/internal/database"
	"ticus/internal/focus"
	"ticus/internal/handlers"
	"ticus/internal/jobs"
	"ticus/internal/logging"
	"ticus/internal/middleware"
	"ticus/internal/services"
	"ticus/pkg/auth"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Ticus Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	loc := cfg.Location()
	log.Printf("📋 Configuration loaded (Port: %s, TZ: %s)", cfg.Port, loc)

	// SQL database (MySQL URL or SQLite file path)
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// JWT auth
	if cfg.JWTSecret == "" {
		if os.Getenv("ENVIRONMENT") == "production" {
			log.Fatal("❌ JWT_SECRET is required in production. Generate with: openssl rand -hex 32")
		}
		log.Println("⚠️  JWT_SECRET not set, using an insecure development secret")
		cfg.JWTSecret = "ticus-dev-secret-do-not-use-in-production"
	}
	jwtAuth, err := auth.NewLocalJWTAuth(cfg.JWTSecret, 15*time.Minute, 7*24*time.Hour)
	if err != nil {
		log.Fatalf("❌ Failed to initialize JWT auth: %v", err)
	}

	// Redis-backed session mirror (optional, falls back to in-memory)
	var redisService *services.RedisService
	var mirror focus.Mirror
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		defer redisService.Close()
		mirror = focus.NewRedisMirror(redisService.Client(), cfg.MirrorTTL)
	} else {
		log.Println("⚠️  REDIS_URL not set, session mirror is in-memory (sessions do not survive restarts)")
		mirror = focus.NewMemoryMirror()
	}

	// MongoDB analytics archive (optional)
	var mongoDB *database.MongoDB
	var archiveService services.SessionArchiver
	if cfg.MongoURI != "" {
		log.Println("🔗 Connecting to MongoDB...")
		mongoDB, err = database.NewMongoDB(cfg.MongoURI)
		if err != nil {
			log.Printf("⚠️ Failed to connect to MongoDB: %v (archive disabled)", err)
		} else {
			defer mongoDB.Close(context.Background())
			archiveService = services.NewArchiveService(mongoDB)
			log.Println("✅ MongoDB archive enabled")
		}
	}

	// Timetable templates with hot reload
	templateStore, err := config.NewTemplateStore(cfg.TemplatesFile)
	if err != nil {
		log.Fatalf("❌ Failed to load timetable templates: %v", err)
	}
	go startTemplatesWatcher(cfg.TemplatesFile, templateStore)

	// Services
	sessionService := services.NewSessionService(db, archiveService)
	settingsService := services.NewSettingsService(db)
	timetableService := services.NewTimetableService(db, templateStore)
	userService := services.NewUserService(db, jwtAuth)
	analyticsService := services.NewAnalyticsService(db, settingsService, loc)
	exportService := services.NewExportService(sessionService)

	connManager := services.NewConnectionManager()
	notifyService := services.NewNotifyService(connManager, cfg.NotifyWebhookURL, cfg.NotifyRatePerSecond)

	window := time.Duration(cfg.ResponseWindowSeconds) * time.Second
	registry := focus.NewRegistry(sessionService, mirror, notifyService, loc, window)

	reminderService, err := services.NewReminderService(timetableService, notifyService, loc)
	if err != nil {
		log.Fatalf("❌ Failed to create reminder service: %v", err)
	}
	if err := reminderService.Start(context.Background()); err != nil {
		log.Printf("⚠️ Failed to start reminder service: %v", err)
	}

	// Background jobs
	jobScheduler := jobs.NewJobScheduler()
	sweeper, err := jobs.NewStaleSessionSweeper(sessionService, registry,
		cfg.StaleSweepCron, time.Duration(cfg.SessionGraceMinutes)*time.Minute)
	if err != nil {
		log.Fatalf("❌ Failed to create stale session sweeper: %v", err)
	}
	jobScheduler.Register("stale_session_sweeper", sweeper)

	retention, err := jobs.NewRetentionCleanupJob(sessionService, cfg.RetentionCron, cfg.RetentionDays)
	if err != nil {
		log.Fatalf("❌ Failed to create retention cleanup job: %v", err)
	}
	jobScheduler.Register("retention_cleanup", retention)

	if err := jobScheduler.Start(); err != nil {
		log.Printf("⚠️ Failed to start job scheduler: %v", err)
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Ticus v1.0",
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("ticus")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Auth=%d/min, User=%d/min, WS=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.AuthMax,
		rateLimitConfig.AuthenticatedMax,
		rateLimitConfig.WebSocketMax,
	)

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))

	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Handlers
	healthHandler := handlers.NewHealthHandler(db, redisService, connManager, registry)
	authHandler := handlers.NewLocalAuthHandler(userService)
	sessionHandler := handlers.NewSessionHandler(sessionService, settingsService, timetableService, registry)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	timetableHandler := handlers.NewTimetableHandler(timetableService, reminderService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService, exportService, loc)
	streamHandler := handlers.NewSessionStreamHandler(connManager, registry)

	// Routes
	app.Get("/health", healthHandler.Handle)

	authGroup := app.Group("/api/auth", middleware.AuthRateLimiter(rateLimitConfig))
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.Refresh)
	authGroup.Get("/me", middleware.LocalAuthMiddleware(jwtAuth), authHandler.Me)

	api := app.Group("/api", middleware.LocalAuthMiddleware(jwtAuth), middleware.AuthenticatedRateLimiter(rateLimitConfig))

	api.Post("/sessions", sessionHandler.Create)
	api.Get("/sessions", sessionHandler.History)
	api.Get("/sessions/active", sessionHandler.Active)
	api.Post("/sessions/active/pause", sessionHandler.Pause)
	api.Post("/sessions/active/resume", sessionHandler.Resume)
	api.Post("/sessions/active/checkin", sessionHandler.Respond)
	api.Post("/sessions/active/end", sessionHandler.End)
	api.Get("/sessions/:id/checkins", sessionHandler.CheckIns)

	api.Get("/settings", settingsHandler.Get)
	api.Put("/settings", settingsHandler.Update)

	api.Get("/timetable", timetableHandler.List)
	api.Post("/timetable", timetableHandler.Create)
	api.Get("/timetable/templates", timetableHandler.Templates)
	api.Post("/timetable/templates/:name/apply", timetableHandler.ApplyTemplate)
	api.Put("/timetable/:id", timetableHandler.Update)
	api.Delete("/timetable/:id", timetableHandler.Delete)

	api.Get("/analytics/summary", analyticsHandler.Summary)
	api.Get("/analytics/today", analyticsHandler.Today)
	api.Get("/analytics/export", middleware.ExportRateLimiter(rateLimitConfig), analyticsHandler.Export)

	// WebSocket live session stream (auth via ?token=)
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	wsConfig := websocket.Config{
		Origins: strings.Split(allowedOrigins, ","),
	}
	app.Use("/ws/session", middleware.WebSocketRateLimiter(rateLimitConfig))
	app.Use("/ws/session", middleware.LocalAuthMiddleware(jwtAuth))
	app.Get("/ws/session", websocket.New(streamHandler.Handle, wsConfig))

	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("⏱️  Session stream: ws://localhost:%s/ws/session", cfg.Port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		jobScheduler.Stop()

		if err := reminderService.Stop(); err != nil {
			log.Printf("⚠️ Error stopping reminder service: %v", err)
		}

		// Halt controllers and flush the session mirror so active
		// sessions can be restored paused after restart.
		registry.Shutdown()

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// startTemplatesWatcher reloads the timetable templates when the YAML
// file changes on disk.
func startTemplatesWatcher(filePath string, store *config.TemplateStore) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create file watcher: %v", err)
		return
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		log.Printf("⚠️  Failed to get absolute path for %s: %v", filePath, err)
		watcher.Close()
		return
	}

	// Watch the directory, editors often replace the file on save.
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  Failed to watch directory %s: %v", dir, err)
		watcher.Close()
		return
	}

	log.Printf("👁️  Watching %s for changes (hot-reload enabled)", filePath)

	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := store.Reload(); err != nil {
						log.Printf("❌ Failed to reload templates: %v", err)
					} else {
						log.Printf("✅ Timetable templates reloaded from %s", filePath)
					}
				})
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}
