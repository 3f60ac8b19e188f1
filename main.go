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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"mailsorter/internal/ai"
	"mailsorter/internal/browser"
	"mailsorter/internal/config"
	"mailsorter/internal/gmail"
	"mailsorter/internal/handler"
	"mailsorter/internal/lock"
	"mailsorter/internal/logger"
	"mailsorter/internal/repository"
	"mailsorter/internal/repository/memory"
	"mailsorter/internal/repository/postgres"
	"mailsorter/internal/router"
	"mailsorter/internal/service"
	"mailsorter/internal/sse"
	"mailsorter/internal/tasks"
)

const (
	lockTTL        = 10 * time.Minute
	eventsChannel  = "mailsorter:events"
	shutdownPeriod = 30 * time.Second
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatal("Config validation failed:", err)
	}

	appLogger := logger.NewForEnv(cfg.Env, cfg.LogLevel)
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Repositories: postgres when DATABASE_URL is set, in-memory otherwise
	var repos repository.Repositories
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			appLogger.Fatal("Failed to connect to database:", err)
		}
		defer db.Close()

		if err := postgres.Migrate(ctx, db); err != nil {
			appLogger.Fatal("Failed to migrate database:", err)
		}
		repos = postgres.NewRepositories(db)
		appLogger.Info("Using PostgreSQL repositories")
	} else {
		repos = memory.NewRepositories()
		appLogger.Info("Using in-memory repositories")
	}

	sseManager := sse.NewSSEManager(appLogger)
	keyed := lock.NewKeyedMutex()
	var locker service.Locker = keyed

	if cfg.RedisURL != "" {
		rdb, err := newRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis:", err)
		}
		defer rdb.Close()

		locker = lock.Chain{keyed, lock.NewRedisLocker(rdb, "mailsorter:lock:", lockTTL, appLogger)}

		relay := sse.NewRedisRelay(rdb, eventsChannel, sseManager, appLogger)
		sseManager.SetPublisher(relay)
		go func() {
			if err := relay.Run(ctx); err != nil {
				appLogger.Error("SSE relay stopped:", err)
			}
		}()
		appLogger.Info("Using Redis for sync locks and event fan-out")
	}

	runner := tasks.NewRunner(cfg.TaskConcurrency, cfg.TaskTimeout, appLogger)

	aiClient := ai.NewAssistant(ai.NewClient(ai.Options{
		Provider: cfg.AIProvider,
		Model:    cfg.AIModel,
		APIKey:   cfg.AIKey,
		Timeout:  cfg.AITimeout,
	}, appLogger), appLogger)

	oauthConfig := gmail.NewOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.BaseURL+"/auth/google/callback")
	tokens := gmail.NewTokenRefresher(oauthConfig, repos.Accounts, appLogger)
	mailbox := gmail.NewClient(cfg.GmailTimeout, appLogger)

	defaults, err := service.LoadDefaultCategories(cfg.DefaultCategories)
	if err != nil {
		appLogger.Fatal("Failed to load default categories:", err)
	}

	// Services
	authService := service.NewAuthService(repos, defaults, appLogger)
	categoryService := service.NewCategoryService(repos.Categories, repos.Emails, aiClient, appLogger)
	emailService := service.NewEmailService(repos.Emails, repos.Accounts, mailbox, tokens, appLogger)
	syncService := service.NewSyncService(repos, mailbox, tokens, aiClient, runner, locker, sseManager, cfg.MaxFetchEmails, appLogger)

	launcher := browser.NewChromeLauncher(cfg.ChromePath, cfg.Unsubscribe.NavTimeout, appLogger)
	agent := service.NewUnsubscribeAgent(launcher, aiClient, repos.Emails, service.AgentOptions{
		MaxIterations: cfg.Unsubscribe.MaxIterations,
		SettleDelay:   cfg.Unsubscribe.SettleDelay,
		Timeout:       cfg.Unsubscribe.Timeout,
	}, appLogger)
	unsubscribeService := service.NewUnsubscribeService(repos.Emails, repos.Accounts, agent, runner, sseManager, appLogger)

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	store := handler.NewSessionStore([]byte(cfg.SessionSecret), cfg.IsProduction())
	authHandler := handler.NewAuthHandler(authService, cfg, store, appLogger)
	categoryHandler := handler.NewCategoryHandler(categoryService, authHandler, appLogger)
	emailHandler := handler.NewEmailHandler(emailService, syncService, authHandler, sseManager, appLogger)
	unsubscribeHandler := handler.NewUnsubscribeHandler(unsubscribeService, authHandler, appLogger)
	webhookHandler := handler.NewWebhookHandler(syncService, cfg.PushToken, appLogger)

	router.SetupRoutes(e, authHandler, categoryHandler, emailHandler, unsubscribeHandler, webhookHandler)

	// Periodic sync for connected users
	syncJob := sse.NewEmailSyncJob(syncService, sseManager, cfg.SyncInterval, appLogger)
	go syncJob.Start(ctx)

	go func() {
		appLogger.Info("Starting server on port", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Failed to start server:", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
	defer cancel()

	// Close SSE streams first so the server does not wait on them.
	sseManager.Close()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Failed to shut down HTTP server:", err)
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("Background tasks did not finish in time:", err)
	}
}

func newRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}
