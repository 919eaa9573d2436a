package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/devforge-org/devforge-backend/internal/github"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/services"
)

const (
	RateLimitHeader = "X-GitHub-RateLimit-Remaining"

	maxWebhookBytes = 5 << 20
)

type GitHubHandler struct {
	log           *logger.Logger
	githubService services.GitHubService
	webhookSecret string
}

func NewGitHubHandler(log *logger.Logger, githubService services.GitHubService, webhookSecret string) *GitHubHandler {
	return &GitHubHandler{
		log:           log.With("handler", "GitHubHandler"),
		githubService: githubService,
		webhookSecret: webhookSecret,
	}
}

// reply surfaces the rate limit and writes either the error or the payload.
func reply(c *gin.Context, rate github.Rate, payload interface{}, err error) {
	if rate.Limit > 0 {
		c.Header(RateLimitHeader, strconv.Itoa(rate.Remaining))
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (gh *GitHubHandler) User(c *gin.Context) {
	user, rate, err := gh.githubService.User(c.Request.Context())
	reply(c, rate, user, err)
}

func (gh *GitHubHandler) UserRepos(c *gin.Context) {
	repos, rate, err := gh.githubService.UserRepos(c.Request.Context(), c.Param("login"), queryInt(c, "page", 1))
	reply(c, rate, repos, err)
}

func (gh *GitHubHandler) Repo(c *gin.Context) {
	repo, rate, err := gh.githubService.Repo(c.Request.Context(), c.Param("owner"), c.Param("repo"))
	reply(c, rate, repo, err)
}

func (gh *GitHubHandler) Branches(c *gin.Context) {
	branches, rate, err := gh.githubService.Branches(c.Request.Context(), c.Param("owner"), c.Param("repo"))
	reply(c, rate, branches, err)
}

func (gh *GitHubHandler) Contents(c *gin.Context) {
	contents, rate, err := gh.githubService.Contents(c.Request.Context(), c.Param("owner"), c.Param("repo"), c.Query("path"), c.Query("ref"))
	reply(c, rate, contents, err)
}

func (gh *GitHubHandler) File(c *gin.Context) {
	file, rate, err := gh.githubService.File(c.Request.Context(), c.Param("owner"), c.Param("repo"), c.Query("path"), c.Query("ref"))
	reply(c, rate, file, err)
}

func (gh *GitHubHandler) SearchRepos(c *gin.Context) {
	res, rate, err := gh.githubService.SearchRepos(c.Request.Context(), c.Query("q"), queryInt(c, "page", 1))
	reply(c, rate, res, err)
}

func (gh *GitHubHandler) Analyze(c *gin.Context) {
	var req struct {
		Path string `json:"path"`
		Ref  string `json:"ref"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, rate, err := gh.githubService.AnalyzeFile(c.Request.Context(), c.Param("owner"), c.Param("repo"), req.Path, req.Ref)
	reply(c, rate, res, err)
}

// Webhook accepts GitHub deliveries. Nothing is processed yet beyond the
// signature check and a log line.
func (gh *GitHubHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		badRequest(c, "failed to read body")
		return
	}
	if err := github.VerifySignature(payload, c.GetHeader("X-Hub-Signature-256"), gh.webhookSecret); err != nil {
		gh.log.Warn("Rejected webhook delivery", "error", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	delivery := github.DeliveryOf(c.Request)
	gh.log.Info("Webhook delivery received :)", "event", delivery.Event, "deliveryID", delivery.ID, "bytes", len(payload))
	if delivery.Event == "ping" {
		c.JSON(http.StatusOK, gin.H{"pong": true})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"received": true, "event": delivery.Event})
}
