package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/rabbitctf/rabbitctf-api/internal/config"
	"github.com/rabbitctf/rabbitctf-api/internal/handler"
	"github.com/rabbitctf/rabbitctf-api/internal/middleware"
	pgRepo "github.com/rabbitctf/rabbitctf-api/internal/repository/postgres"
	redisRepo "github.com/rabbitctf/rabbitctf-api/internal/repository/redis"
	"github.com/rabbitctf/rabbitctf-api/internal/service"
	"github.com/rabbitctf/rabbitctf-api/internal/service/guard"
	"github.com/rabbitctf/rabbitctf-api/internal/service/lock"
	ws "github.com/rabbitctf/rabbitctf-api/internal/websocket"
	"github.com/rabbitctf/rabbitctf-api/pkg/auth"
	"github.com/rabbitctf/rabbitctf-api/pkg/database"
)

func main() {
	// .env необязателен, переменные окружения имеют приоритет
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL и миграции
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	migrationsURL := os.Getenv("MIGRATIONS_URL")
	if migrationsURL == "" {
		migrationsURL = database.DefaultMigrationsURL
	}
	if err := database.MigrateDB(db, migrationsURL); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := database.NewUniversalRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Println("Successfully connected to Redis")

	// Репозитории
	challengeRepo := pgRepo.NewChallengeRepo(db)
	submissionRepo := pgRepo.NewSubmissionRepo(db)
	solveRepo := pgRepo.NewSolveRepo(db)
	blockRepo := pgRepo.NewBlockRepo(db)
	eventRepo := pgRepo.NewEventRepo(db)
	teamRepo := pgRepo.NewTeamRepo(db)
	auditRepo := pgRepo.NewAuditRepo(db)
	userRepo := pgRepo.NewUserRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Лента событий
	var pubSubProvider ws.PubSubProvider = &ws.NoOpPubSub{}
	if cfg.WebSocket.Cluster.Enabled {
		redisPubSub, err := ws.NewRedisPubSub(redisClient)
		if err != nil {
			log.Printf("Failed to initialize Redis PubSub: %v", err)
			os.Exit(1)
		}
		pubSubProvider = redisPubSub
	}
	wsHub := ws.NewHub(ws.HubConfig{Channel: cfg.WebSocket.Cluster.BroadcastChannel}, pubSubProvider)
	wsManager := ws.NewManager(wsHub)
	go func() {
		if err := wsHub.Run(ctx); err != nil {
			log.Printf("WebSocket hub stopped: %v", err)
		}
	}()

	connLimiter := ws.NewConnLimiter(cfg.WebSocket.Limits.ConnectionsPerIPSec, cfg.WebSocket.Limits.ConnectionsBurst)
	go connLimiter.Run(ctx, 5*time.Minute)

	// Блокировка пары (команда, задача)
	var locker lock.Locker
	switch cfg.Lock.Backend {
	case "local":
		locker = lock.NewLocalLocker()
	default:
		locker = lock.NewRedisLocker(redisClient,
			time.Duration(cfg.Lock.TTLMillis)*time.Millisecond,
			time.Duration(cfg.Lock.WaitMs)*time.Millisecond)
	}
	log.Printf("Pair lock backend: %s", cfg.Lock.Backend)

	// Сервисы
	auditService := service.NewAuditService(auditRepo)
	abuseGuard := guard.NewGuard(submissionRepo, blockRepo, cacheRepo)
	eventService := service.NewEventService(eventRepo, auditService)
	scoreboardService := service.NewScoreboardService(teamRepo, solveRepo, cacheRepo, cfg.Scoreboard.CacheTTL())
	challengeService := service.NewChallengeService(challengeRepo, solveRepo, submissionRepo, teamRepo, abuseGuard, auditService)
	submissionService := service.NewSubmissionService(db, challengeRepo, submissionRepo, solveRepo, teamRepo,
		abuseGuard, locker, scoreboardService, wsManager)

	eventWatcher := service.NewEventWatcher(eventService, wsManager, 5*time.Second)
	go eventWatcher.Run(ctx)

	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// Обработчики и middleware
	handlers := routeHandlers{
		submissions: handler.NewSubmissionHandler(submissionService, eventService),
		challenges:  handler.NewChallengeHandler(challengeService),
		scoreboard:  handler.NewScoreboardHandler(scoreboardService, auditService),
		events:      handler.NewEventHandler(eventService, auditService),
		ws: handler.NewWSHandler(wsHub, wsManager, connLimiter,
			ws.ClientConfigFrom(cfg.WebSocket), cfg.Server.AllowedOrigins),
		auth:        middleware.NewAuthMiddleware(jwtService).WithRoleCheck(userRepo),
		rateLimiter: middleware.NewRateLimiter(redisClient),
		submitLimit: middleware.SubmitRateLimitConfig(cfg.RateLimit.SubmitPerMinute),
	}

	router := gin.Default()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		log.Printf("Warning: failed to set trusted proxies: %v", err)
	}
	setupRoutes(router, handlers, cfg.Server.AllowedOrigins)

	// HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Останавливаем хаб, лимитер и подписки
	cancel()
	if err := pubSubProvider.Close(); err != nil {
		log.Printf("Error closing PubSub provider: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
