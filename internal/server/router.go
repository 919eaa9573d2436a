package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/devforge-org/devforge-backend/internal/handlers"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/middleware"
	"github.com/devforge-org/devforge-backend/internal/services"
)

type RouterConfig struct {
	Log            *logger.Logger
	LogMode        string
	CorsOrigins    []string
	Emitter        services.Emitter
	RateLimiter    *middleware.RateLimiter
	AuthMiddleware *middleware.AuthMiddleware

	AuthHandler         *handlers.AuthHandler
	MeHandler           *handlers.MeHandler
	LLMConfigHandler    *handlers.LLMConfigHandler
	ConversationHandler *handlers.ConversationHandler
	SearchHandler       *handlers.SearchHandler
	FileHandler         *handlers.FileHandler
	GitHubHandler       *handlers.GitHubHandler
	TemplateHandler     *handlers.TemplateHandler
	ProjectHandler      *handlers.ProjectHandler
	WsHandler           gin.HandlerFunc
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery(cfg.Log))
	router.Use(middleware.AttachRequestContext(cfg.Emitter))
	router.Use(middleware.RequestLogger(cfg.Log))

	//-----------------------------------------
	// Cors Setup
	//-----------------------------------------
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CorsOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Disposition", handlers.RateLimitHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	//-----------------------------------------
	// Health Routes
	//-----------------------------------------
	router.GET("/healthz", handlers.Healthz)

	limit := cfg.RateLimiter.Middleware()

	//-----------------------------------------
	// Public Routes
	//-----------------------------------------
	api := router.Group("/api")
	{
		api.POST("/auth/login", limit, cfg.AuthHandler.Login)
		api.POST("/webhooks/github", cfg.GitHubHandler.Webhook)
	}

	//------------------------------------------
	// Protected Routes
	//------------------------------------------
	protected := api.Group("")
	protected.Use(cfg.AuthMiddleware.RequireAuth(), limit)
	protected.POST("/auth/logout", cfg.AuthHandler.Logout)
	protected.GET("/ws", cfg.WsHandler)

	//Me
	protected.GET("/me", cfg.MeHandler.GetMe)
	protected.PATCH("/me", cfg.MeHandler.UpdateMe)
	protected.GET("/me/preferences", cfg.MeHandler.GetPreferences)
	protected.PUT("/me/preferences", cfg.MeHandler.UpdatePreferences)
	protected.GET("/users/:id/avatar", cfg.MeHandler.Avatar)

	//LLM configurations
	llm := protected.Group("/llm-configs")
	llm.GET("", cfg.LLMConfigHandler.List)
	llm.POST("", cfg.LLMConfigHandler.Create)
	llm.GET("/:id", cfg.LLMConfigHandler.Get)
	llm.PATCH("/:id", cfg.LLMConfigHandler.Update)
	llm.PUT("/:id", cfg.LLMConfigHandler.Update)
	llm.DELETE("/:id", cfg.LLMConfigHandler.Delete)
	llm.POST("/:id/default", cfg.LLMConfigHandler.SetDefault)
	llm.POST("/:id/test", cfg.LLMConfigHandler.Test)
	llm.GET("/:id/models", cfg.LLMConfigHandler.Models)

	//Conversations
	conv := protected.Group("/conversations")
	conv.GET("", cfg.ConversationHandler.List)
	conv.POST("", cfg.ConversationHandler.Create)
	conv.GET("/:id", cfg.ConversationHandler.Get)
	conv.PATCH("/:id", cfg.ConversationHandler.Update)
	conv.DELETE("/:id", cfg.ConversationHandler.Delete)
	conv.GET("/:id/messages", cfg.ConversationHandler.Messages)
	conv.POST("/:id/messages", cfg.ConversationHandler.Send)
	conv.DELETE("/:id/messages", cfg.ConversationHandler.ClearMessages)
	conv.GET("/:id/export", cfg.ConversationHandler.Export)
	conv.POST("/:id/share", cfg.ConversationHandler.Share)

	//Search
	engines := protected.Group("/search-engines")
	engines.GET("", cfg.SearchHandler.ListEngines)
	engines.POST("", cfg.SearchHandler.CreateEngine)
	engines.GET("/:id", cfg.SearchHandler.GetEngine)
	engines.PATCH("/:id", cfg.SearchHandler.UpdateEngine)
	engines.PUT("/:id", cfg.SearchHandler.UpdateEngine)
	engines.DELETE("/:id", cfg.SearchHandler.DeleteEngine)
	protected.POST("/search", cfg.SearchHandler.Search)

	//Files
	files := protected.Group("/files")
	files.GET("", cfg.FileHandler.List)
	files.POST("", cfg.FileHandler.Upload)
	files.GET("/:id", cfg.FileHandler.Get)
	files.GET("/:id/content", cfg.FileHandler.Content)
	files.GET("/:id/thumbnail", cfg.FileHandler.Thumbnail)
	files.POST("/:id/analyze", cfg.FileHandler.Reanalyze)
	files.DELETE("/:id", cfg.FileHandler.Delete)
	protected.POST("/analyze", cfg.FileHandler.Analyze)

	//GitHub
	gh := protected.Group("/github")
	gh.GET("/user", cfg.GitHubHandler.User)
	gh.GET("/users/:login/repos", cfg.GitHubHandler.UserRepos)
	gh.GET("/repos/:owner/:repo", cfg.GitHubHandler.Repo)
	gh.GET("/repos/:owner/:repo/branches", cfg.GitHubHandler.Branches)
	gh.GET("/repos/:owner/:repo/contents", cfg.GitHubHandler.Contents)
	gh.GET("/repos/:owner/:repo/file", cfg.GitHubHandler.File)
	gh.POST("/repos/:owner/:repo/analyze", cfg.GitHubHandler.Analyze)
	gh.GET("/search/repositories", cfg.GitHubHandler.SearchRepos)

	//Templates
	protected.GET("/templates", cfg.TemplateHandler.List)
	protected.GET("/templates/:slug", cfg.TemplateHandler.Get)

	//Projects
	projects := protected.Group("/projects")
	projects.GET("", cfg.ProjectHandler.List)
	projects.POST("", cfg.ProjectHandler.Create)
	projects.POST("/scaffold", cfg.ProjectHandler.Scaffold)
	projects.GET("/:id", cfg.ProjectHandler.Get)
	projects.PATCH("/:id", cfg.ProjectHandler.Update)
	projects.DELETE("/:id", cfg.ProjectHandler.Delete)
	projects.POST("/:id/generate", cfg.ProjectHandler.Generate)
	projects.GET("/:id/download", cfg.ProjectHandler.Download)
	projects.GET("/:id/plans", cfg.ProjectHandler.ListPlans)
	projects.POST("/:id/plans", cfg.ProjectHandler.CreatePlan)
	projects.POST("/:id/plans/generate", cfg.ProjectHandler.GeneratePlan)
	projects.GET("/:id/plans/:version", cfg.ProjectHandler.GetPlan)

	return router
}
