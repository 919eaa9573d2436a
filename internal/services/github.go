package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devforge-org/devforge-backend/internal/analysis"
	"github.com/devforge-org/devforge-backend/internal/github"
	"github.com/devforge-org/devforge-backend/internal/logger"
	"github.com/devforge-org/devforge-backend/internal/repos"
)

type GitHubService interface {
	User(ctx context.Context) (*github.User, github.Rate, error)
	UserRepos(ctx context.Context, login string, page int) ([]github.Repo, github.Rate, error)
	Repo(ctx context.Context, owner, name string) (*github.Repo, github.Rate, error)
	Branches(ctx context.Context, owner, name string) ([]github.Branch, github.Rate, error)
	Contents(ctx context.Context, owner, name, path, ref string) (*github.Contents, github.Rate, error)
	File(ctx context.Context, owner, name, path, ref string) (*github.File, github.Rate, error)
	SearchRepos(ctx context.Context, query string, page int) (*github.SearchResult, github.Rate, error)
	AnalyzeFile(ctx context.Context, owner, name, path, ref string) (*analysis.Result, github.Rate, error)
}

type gitHubService struct {
	log          *logger.Logger
	client       *github.Client
	prefRepo     repos.PreferenceRepo
	defaultToken string
}

func NewGitHubService(log *logger.Logger, client *github.Client, prefRepo repos.PreferenceRepo, defaultToken string) GitHubService {
	return &gitHubService{
		log:          log.With("service", "GitHubService"),
		client:       client,
		prefRepo:     prefRepo,
		defaultToken: defaultToken,
	}
}

// token prefers the user's own token, then the server one; "" is anonymous.
func (gs *gitHubService) token(ctx context.Context) string {
	userID, err := currentUserID(ctx)
	if err == nil {
		if pref, err := gs.prefRepo.GetByUserID(ctx, nil, userID); err == nil && pref.GitHubToken != "" {
			return pref.GitHubToken
		}
	}
	return gs.defaultToken
}

func (gs *gitHubService) mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, github.ErrNotFound) {
		return fmt.Errorf("%w: github resource", ErrNotFound)
	}
	var up *github.UpstreamError
	if errors.As(err, &up) {
		gs.log.Warn("GitHub request failed", "status", up.Status, "message", up.Message)
		return upstreamError("github: %s", up.Message)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return upstreamError("github: %v", err)
}

func requireSegment(name, value string) error {
	if strings.TrimSpace(value) == "" || strings.Contains(value, "/") {
		return invalidInput("%s is required", name)
	}
	return nil
}

func (gs *gitHubService) User(ctx context.Context) (*github.User, github.Rate, error) {
	token := gs.token(ctx)
	if token == "" {
		return nil, github.Rate{}, fmt.Errorf("%w: no GitHub token configured", ErrUpstream)
	}
	u, rate, err := gs.client.AuthenticatedUser(ctx, token)
	return u, rate, gs.mapErr(err)
}

func (gs *gitHubService) UserRepos(ctx context.Context, login string, page int) ([]github.Repo, github.Rate, error) {
	if err := requireSegment("login", login); err != nil {
		return nil, github.Rate{}, err
	}
	out, rate, err := gs.client.UserRepos(ctx, gs.token(ctx), login, page)
	return out, rate, gs.mapErr(err)
}

func (gs *gitHubService) Repo(ctx context.Context, owner, name string) (*github.Repo, github.Rate, error) {
	if err := validRepo(owner, name); err != nil {
		return nil, github.Rate{}, err
	}
	out, rate, err := gs.client.Repo(ctx, gs.token(ctx), owner, name)
	return out, rate, gs.mapErr(err)
}

func (gs *gitHubService) Branches(ctx context.Context, owner, name string) ([]github.Branch, github.Rate, error) {
	if err := validRepo(owner, name); err != nil {
		return nil, github.Rate{}, err
	}
	out, rate, err := gs.client.Branches(ctx, gs.token(ctx), owner, name)
	return out, rate, gs.mapErr(err)
}

func (gs *gitHubService) Contents(ctx context.Context, owner, name, path, ref string) (*github.Contents, github.Rate, error) {
	if err := validRepo(owner, name); err != nil {
		return nil, github.Rate{}, err
	}
	out, rate, err := gs.client.Contents(ctx, gs.token(ctx), owner, name, path, ref)
	return out, rate, gs.mapErr(err)
}

func (gs *gitHubService) File(ctx context.Context, owner, name, path, ref string) (*github.File, github.Rate, error) {
	if err := validRepo(owner, name); err != nil {
		return nil, github.Rate{}, err
	}
	if strings.Trim(path, "/") == "" {
		return nil, github.Rate{}, invalidInput("path is required")
	}
	out, rate, err := gs.client.FileContent(ctx, gs.token(ctx), owner, name, path, ref)
	return out, rate, gs.mapErr(err)
}

func (gs *gitHubService) SearchRepos(ctx context.Context, query string, page int) (*github.SearchResult, github.Rate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, github.Rate{}, invalidInput("q is required")
	}
	out, rate, err := gs.client.SearchRepos(ctx, gs.token(ctx), query, page)
	return out, rate, gs.mapErr(err)
}

func (gs *gitHubService) AnalyzeFile(ctx context.Context, owner, name, path, ref string) (*analysis.Result, github.Rate, error) {
	file, rate, err := gs.File(ctx, owner, name, path, ref)
	if err != nil {
		return nil, rate, err
	}
	return analysis.Analyze(file.Name, []byte(file.Content)), rate, nil
}

func validRepo(owner, name string) error {
	if err := requireSegment("owner", owner); err != nil {
		return err
	}
	return requireSegment("repo", name)
}
