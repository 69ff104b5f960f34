package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"roomhub/internal/cache"
	httpHandler "roomhub/internal/handler/http"
	wsHandler "roomhub/internal/handler/websocket"
	"roomhub/internal/hub"
	gormpersistence "roomhub/internal/infra/persistence/gorm"
	"roomhub/internal/infra/setup"
	"roomhub/internal/middleware"
	"roomhub/internal/service"
	"roomhub/internal/tasks"
	"roomhub/internal/worker"
)

// Config holds everything loaded from the environment.
type Config struct {
	DBUser          string
	DBPassword      string
	DBHost          string
	DBPort          string
	DBName          string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	JWTSecret       string
	JWTExpiryHours  int
	ServerPort      string
	LogLevel        string
	AppEnv          string
	CacheBackend    string // "redis" or "local"
	KeyPrefix       string
	RoomLimit       int
	FlushInterval   time.Duration
	RateLimitMax    int
	RateLimitWindow time.Duration
}

// LoadConfig loads configuration from the environment, reading .env first if
// present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBHost:        os.Getenv("DB_HOST"),
		DBPort:        os.Getenv("DB_PORT"),
		DBName:        os.Getenv("DB_NAME"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		ServerPort:    os.Getenv("SERVER_PORT"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		AppEnv:        os.Getenv("APP_ENV"),
		CacheBackend:  os.Getenv("CACHE_BACKEND"),
		KeyPrefix:     os.Getenv("REDIS_KEY_PREFIX"),

		JWTExpiryHours:  24,
		RoomLimit:       10,
		FlushInterval:   time.Minute,
		RateLimitMax:    100,
		RateLimitWindow: 1 * time.Second,
	}

	cfg.RedisDB, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	if v, err := strconv.Atoi(os.Getenv("ROOM_LIMIT")); err == nil && v > 0 {
		cfg.RoomLimit = v
	}
	if v, err := time.ParseDuration(os.Getenv("FLUSH_INTERVAL")); err == nil && v > 0 {
		cfg.FlushInterval = v
	}

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "redis"
	}
	if cfg.CacheBackend != "redis" && cfg.CacheBackend != "local" {
		return nil, fmt.Errorf("CACHE_BACKEND must be 'redis' or 'local', got %q", cfg.CacheBackend)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rh:"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// notifierRelay lets services broadcast through the Hub even though the Hub
// is constructed after them.
type notifierRelay struct {
	target service.Notifier
}

func (n *notifierRelay) BroadcastToRoom(roomToken, event string, payload interface{}) {
	if n.target != nil {
		n.target.BroadcastToRoom(roomToken, event, payload)
	}
}

// App wires together every component of the application.
type App struct {
	Config         *Config
	Log            *logrus.Logger
	DB             *gorm.DB
	RedisClient    *redis.Client
	AsynqClient    *asynq.Client
	AsynqServer    *worker.WorkerServer
	Hub            *hub.Hub
	HttpServer     *http.Server
	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler
}

// NewApp creates and wires all application components.
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	logrus.SetLevel(logLevel)
	log.Info("Configuration loaded successfully")

	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database initialized")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	log.Info("Redis client initialized")

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)

	// The hot-path store is swappable; background jobs and rate limiting
	// always sit on Redis.
	var store cache.Store
	switch cfg.CacheBackend {
	case "local":
		store = cache.NewLocalStore()
		log.Info("Cache store: in-process")
	default:
		store = cache.NewRedisStore(redisClient, cfg.KeyPrefix)
		log.Info("Cache store: redis")
	}

	userRepo := gormpersistence.NewGormUserRepository(db)
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	discussionRepo := gormpersistence.NewGormDiscussionRepository(db)
	announcementRepo := gormpersistence.NewGormAnnouncementRepository(db)
	invitationRepo := gormpersistence.NewGormInvitationRepository(db)

	relay := &notifierRelay{}
	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	roomService := service.NewRoomService(roomRepo, userRepo, invitationRepo, announcementRepo, discussionRepo, store, cfg.RoomLimit)
	presenceService := service.NewPresenceService(store)
	discussionService := service.NewDiscussionService(roomRepo, discussionRepo, store, relay)
	announcementService := service.NewAnnouncementService(roomRepo, announcementRepo, store, relay)
	flushService := service.NewFlushService(discussionRepo, store)
	log.Info("Services initialized")

	hubInstance := hub.NewHub(discussionService)
	relay.target = hubInstance

	authHandler := httpHandler.NewAuthHandler(authService)
	roomHandler := httpHandler.NewRoomHandler(roomService, presenceService)
	discussionHandler := httpHandler.NewDiscussionHandler(discussionService, userRepo)
	announcementHandler := httpHandler.NewAnnouncementHandler(announcementService, userRepo)
	socketHandler := wsHandler.NewWebSocketHandler(hubInstance, roomService, presenceService, userRepo)

	workerServer := worker.NewWorkerServer(redisClientOpt, flushService, announcementService, log)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(func(c *gin.Context) {
		allowedOrigin := os.Getenv("CORS_ALLOWED_ORIGIN")
		if allowedOrigin == "" {
			allowedOrigin = "http://localhost:3000"
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
	router.Use(middleware.RateLimit(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow))

	api := router.Group("/api")
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}
	authed := api.Group("").Use(middleware.Auth(cfg.JWTSecret))
	{
		authed.POST("/rooms", roomHandler.CreateRoom)
		authed.GET("/rooms", roomHandler.ListRooms)
		authed.GET("/rooms/enrolled", roomHandler.ListEnrolledRooms)
		authed.GET("/invitations", roomHandler.ListInvitations)
		authed.POST("/invitations/:id", roomHandler.Enroll)
		authed.GET("/rooms/:token", roomHandler.GetRoom)
		authed.DELETE("/rooms/:token", roomHandler.DeleteRoom)
		authed.POST("/rooms/:token/invite", roomHandler.Invite)
		authed.GET("/rooms/:token/presence", roomHandler.Presence)
		authed.GET("/rooms/:token/conference", roomHandler.ConferencePresence)
		authed.GET("/rooms/:token/discussion", discussionHandler.GetPage)
		authed.POST("/rooms/:token/discussion", discussionHandler.PostMessage)
		authed.GET("/rooms/:token/announcements", announcementHandler.GetPage)
		authed.POST("/rooms/:token/announcements", announcementHandler.Create)
		authed.POST("/announcements/:id/comments", announcementHandler.AddComment)
	}
	wsRoutes := router.Group("/ws").Use(middleware.Auth(cfg.JWTSecret))
	{
		wsRoutes.GET("/rooms/:token", socketHandler.HandleRoom)
		wsRoutes.GET("/rooms/:token/conference", socketHandler.HandleConference)
	}
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("Router setup complete")

	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	return &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}, nil
}

// Start launches the background routines and the HTTP server.
func (a *App) Start() {
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// registerPeriodicTasks schedules the discussion flush and the scheduled
// announcement sweep.
func (a *App) registerPeriodicTasks() {
	a.scheduler = asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	flushSchedule := fmt.Sprintf("@every %s", a.Config.FlushInterval)
	entryID, err := a.scheduler.Register(flushSchedule, asynq.NewTask(tasks.TypeDiscussionFlush, nil), asynq.Queue("critical"))
	if err != nil {
		a.Log.Errorf("Could not register periodic discussion flush task: %v", err)
	} else {
		a.Log.Infof("Periodic discussion flush registered with schedule '%s' (EntryID: %s)", flushSchedule, entryID)
	}

	announceSchedule := "@every 1m"
	entryID, err = a.scheduler.Register(announceSchedule, asynq.NewTask(tasks.TypeAnnouncementPost, nil), asynq.Queue("default"))
	if err != nil {
		a.Log.Errorf("Could not register periodic announcement post task: %v", err)
	} else {
		a.Log.Infof("Periodic announcement post registered with schedule '%s' (EntryID: %s)", announceSchedule, entryID)
	}

	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := a.scheduler.Run(); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
		}
	}()
}

// Shutdown stops the application gracefully.
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware logs each request with latency and status.
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		if errorMessage != "" {
			entry.Error(errorMessage)
		} else if statusCode >= 500 {
			entry.Error("Server error")
		} else if statusCode >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Request handled")
		}
	}
}
