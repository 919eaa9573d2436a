package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/devforge-org/devforge-backend/internal/bucket"
	"github.com/devforge-org/devforge-backend/internal/github"
	"github.com/devforge-org/devforge-backend/internal/handlers"
	"github.com/devforge-org/devforge-backend/internal/llm"
	"github.com/devforge-org/devforge-backend/internal/middleware"
	"github.com/devforge-org/devforge-backend/internal/repos"
	"github.com/devforge-org/devforge-backend/internal/search"
	"github.com/devforge-org/devforge-backend/internal/seed"
	"github.com/devforge-org/devforge-backend/internal/server"
	"github.com/devforge-org/devforge-backend/internal/services"
	"github.com/devforge-org/devforge-backend/internal/session"
	"github.com/devforge-org/devforge-backend/internal/socket"
	"github.com/devforge-org/devforge-backend/internal/vectorstore"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB Setup
	dbService, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	defer dbService.Close()
	gdb := dbService.DB()

	// Repositories Setup
	log.Info("Setting Up Repositories from Main now...")
	userRepo := repos.NewUserRepo(gdb, log)
	prefRepo := repos.NewPreferenceRepo(gdb, log)
	llmConfigRepo := repos.NewLLMConfigRepo(gdb, log)
	searchEngineRepo := repos.NewSearchEngineRepo(gdb, log)
	conversationRepo := repos.NewConversationRepo(gdb, log)
	messageRepo := repos.NewMessageRepo(gdb, log)
	fileRepo := repos.NewFileRepo(gdb, log)
	templateRepo := repos.NewTemplateRepo(gdb, log)
	projectRepo := repos.NewProjectRepo(gdb, log)
	planVersionRepo := repos.NewPlanVersionRepo(gdb, log)
	log.Info("Repositories Set Up From Main Successful :)")

	// Seed Setup
	log.Info("Attempting to Seed Templates From Main now...")
	if err := seed.SeedAll(ctx, gdb, templateRepo, cfg.Templates, log); err != nil {
		log.Warn("Failed to seed templates :(", "error", err)
	}
	if cfg.Templates.Watch && cfg.Templates.Dir != "" {
		go func() {
			resync := func(ctx context.Context) error {
				_, err := seed.SyncTemplates(ctx, gdb, templateRepo, cfg.Templates.Dir, log)
				return err
			}
			if err := seed.Watch(ctx, cfg.Templates.Dir, seed.DefaultDebounce, resync, log); err != nil {
				log.Warn("Template watcher exited", "error", err)
			}
		}()
	}

	// Redis Setup
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		log.Info("Connecting to Redis From Main now...", "address", cfg.Redis.Address)
		redisClient, err = session.DialRedis(ctx, cfg.Redis.Address, cfg.Redis.Password)
		if err != nil {
			if cfg.Auth.SessionStore == "redis" {
				return err
			}
			log.Warn("Redis unavailable, continuing without it", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	// Websocket Setup
	log.Info("Setting Up Websocket Hub From Main Now...")
	wsHub := socket.NewHub(log)
	var redisPubSub *socket.RedisPubSub
	if redisClient != nil {
		redisPubSub = socket.NewRedisPubSub(log, redisClient, cfg.Redis.Channel)
		if err := redisPubSub.StartSubscriber(wsHub); err != nil {
			log.Warn("Failed to subscribe to Redis pub/sub", "error", err)
			redisPubSub = nil
		} else {
			wsHub.SetRedisPubSub(redisPubSub)
			defer redisPubSub.Stop()
			log.Info("Redis pubsub is active!")
		}
	}
	log.Info("Websocket Hub Set Up From Main Successful :)")

	// Storage Setup
	log.Info("Setting Up Storage From Main now...")
	objectBucket, err := bucket.New(ctx, cfg.Bucket, log)
	if err != nil {
		return err
	}
	var sessions session.Store = session.NewMemoryStore(log)
	if cfg.Auth.SessionStore == "redis" {
		sessions = session.NewRedisStore(log, redisClient)
	}
	var vectorStore vectorstore.Store
	if cfg.Vector.Enabled() {
		store, err := vectorstore.NewQdrant(cfg.Vector, log)
		if err == nil {
			err = store.EnsureCollection(ctx)
		}
		if err != nil {
			log.Warn("Vector store unavailable, file indexing disabled", "error", err)
		} else {
			vectorStore = store
			defer store.Close()
		}
	}
	log.Info("Storage Set Up From Main Successful :)")

	// Clients Setup
	llmClient := llm.NewClient(log)
	httpClient := &http.Client{Timeout: 20 * time.Second}
	githubClient, err := github.NewClient(log, cfg.GitHub.APIURL, httpClient)
	if err != nil {
		return err
	}

	// Services Setup
	log.Info("Setting up Services from Main now...")
	avatarService, err := services.NewAvatarService(log, objectBucket, cfg.Avatar, cfg.App.PublicBaseURL)
	if err != nil {
		log.Error("Fatal error: Cannot init AvatarService", "error", err)
		return err
	}
	authService := services.NewAuthService(gdb, log, userRepo, prefRepo, avatarService, sessions, cfg.Auth.JWTSecretKey, cfg.Auth.SessionTTL)
	meService := services.NewMeService(gdb, log, userRepo, prefRepo, llmConfigRepo, searchEngineRepo, avatarService, objectBucket)
	llmConfigService := services.NewLLMConfigService(gdb, log, llmConfigRepo, prefRepo, llmClient, cfg.LLM)
	searchService := services.NewSearchService(gdb, log, searchEngineRepo, search.NewAggregator(log, search.DefaultEngineTimeout), httpClient, cfg.Search)
	fileService := services.NewFileService(log, fileRepo, projectRepo, objectBucket, vectorStore, llmClient, llmConfigService, cfg.Vector, wsHub, cfg.App.MaxUploadBytes)
	defer fileService.Wait()
	conversationService := services.NewConversationService(gdb, log, conversationRepo, messageRepo, llmConfigRepo, prefRepo, llmConfigService, searchService, fileService, llmClient, wsHub)
	shareService := services.NewShareService(log, conversationService, services.NewEmailService(log, cfg.Share), services.NewTextService(log, cfg.Share), cfg.App.PublicBaseURL)
	templateService := services.NewTemplateService(log, templateRepo)
	projectService := services.NewProjectService(gdb, log, projectRepo, templateRepo, planVersionRepo, fileRepo, objectBucket, llmClient, llmConfigService, wsHub)
	githubService := services.NewGitHubService(log, githubClient, prefRepo, cfg.GitHub.Token)
	log.Info("Services Set Up From Main Successful :)")

	// Router Setup
	log.Info("Setting Up Router from Main now...")
	router := server.NewRouter(server.RouterConfig{
		Log:                 log,
		LogMode:             cfg.App.LogMode,
		CorsOrigins:         cfg.App.CorsOrigins,
		Emitter:             wsHub,
		RateLimiter:         middleware.NewRateLimiter(log, cfg.App.RateLimitRPS, cfg.App.RateLimitBurst),
		AuthMiddleware:      middleware.NewAuthMiddleware(log, authService),
		AuthHandler:         handlers.NewAuthHandler(authService),
		MeHandler:           handlers.NewMeHandler(meService),
		LLMConfigHandler:    handlers.NewLLMConfigHandler(llmConfigService),
		ConversationHandler: handlers.NewConversationHandler(log, conversationService, shareService),
		SearchHandler:       handlers.NewSearchHandler(searchService),
		FileHandler:         handlers.NewFileHandler(fileService, cfg.App.MaxUploadBytes),
		GitHubHandler:       handlers.NewGitHubHandler(log, githubService, cfg.GitHub.WebhookSecret),
		TemplateHandler:     handlers.NewTemplateHandler(templateService),
		ProjectHandler:      handlers.NewProjectHandler(projectService),
		WsHandler:           handlers.WsHandler(wsHub, log, cfg.App.CorsOrigins),
	})
	log.Info("Router Set Up From Main Successful :)")

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// On Shutdown
	log.Info("Shutting down server now...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown failed", "error", err)
		return err
	}
	log.Info("Server stopped :)")
	return nil
}
