// Package github is a thin read-only wrapper over the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"

	"github.com/devforge-org/devforge-backend/internal/logger"
)

var ErrNotFound = errors.New("github resource not found")

// UpstreamError is any non-404 failure reported by GitHub.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github HTTP %d: %s", e.Status, e.Message)
}

// Rate carries the rate-limit headers of the last response.
type Rate struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

type User struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	AvatarURL   string `json:"avatarUrl"`
	HTMLURL     string `json:"htmlUrl"`
	PublicRepos int    `json:"publicRepos"`
}

type Repo struct {
	ID            int64      `json:"id"`
	Owner         string     `json:"owner"`
	Name          string     `json:"name"`
	FullName      string     `json:"fullName"`
	Description   string     `json:"description"`
	Private       bool       `json:"private"`
	Language      string     `json:"language"`
	Stars         int        `json:"stars"`
	Forks         int        `json:"forks"`
	DefaultBranch string     `json:"defaultBranch"`
	HTMLURL       string     `json:"htmlUrl"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

type Branch struct {
	Name      string `json:"name"`
	CommitSHA string `json:"commitSha"`
	Protected bool   `json:"protected"`
}

type ContentEntry struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	Size    int    `json:"size"`
	SHA     string `json:"sha"`
	HTMLURL string `json:"htmlUrl"`
}

// Contents is either a directory listing or a single file's metadata.
type Contents struct {
	IsDir   bool           `json:"isDir"`
	File    *ContentEntry  `json:"file,omitempty"`
	Entries []ContentEntry `json:"entries,omitempty"`
}

type File struct {
	ContentEntry
	Content string `json:"content"`
}

type SearchResult struct {
	TotalCount int    `json:"totalCount"`
	Page       int    `json:"page"`
	Items      []Repo `json:"items"`
}

type Client struct {
	log        *logger.Logger
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient targets apiURL (https://api.github.com when empty).
func NewClient(log *logger.Logger, apiURL string, hc *http.Client) (*Client, error) {
	if apiURL == "" {
		apiURL = "https://api.github.com"
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{log: log.With("client", "GitHub"), baseURL: u, httpClient: hc}, nil
}

func (c *Client) api(token string) *gh.Client {
	client := gh.NewClient(c.httpClient)
	client.BaseURL = c.baseURL
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return client
}

func rateOf(resp *gh.Response) Rate {
	if resp == nil {
		return Rate{Remaining: -1}
	}
	return Rate{Limit: resp.Rate.Limit, Remaining: resp.Rate.Remaining, Reset: resp.Rate.Reset.Time}
}

// mapError turns go-github failures into ErrNotFound or *UpstreamError.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var rle *gh.RateLimitError
	if errors.As(err, &rle) {
		return &UpstreamError{Status: http.StatusForbidden, Message: rle.Message}
	}
	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return &UpstreamError{Status: http.StatusForbidden, Message: abuse.Message}
	}
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		if er.Response.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		return &UpstreamError{Status: er.Response.StatusCode, Message: er.Message}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &UpstreamError{Status: http.StatusBadGateway, Message: err.Error()}
}

func toRepo(r *gh.Repository) Repo {
	out := Repo{
		ID:            r.GetID(),
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		Private:       r.GetPrivate(),
		Language:      r.GetLanguage(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		DefaultBranch: r.GetDefaultBranch(),
		HTMLURL:       r.GetHTMLURL(),
	}
	if r.UpdatedAt != nil {
		t := r.UpdatedAt.Time
		out.UpdatedAt = &t
	}
	return out
}

func toEntry(c *gh.RepositoryContent) ContentEntry {
	return ContentEntry{
		Type:    c.GetType(),
		Name:    c.GetName(),
		Path:    c.GetPath(),
		Size:    c.GetSize(),
		SHA:     c.GetSHA(),
		HTMLURL: c.GetHTMLURL(),
	}
}

// AuthenticatedUser needs a token.
func (c *Client) AuthenticatedUser(ctx context.Context, token string) (*User, Rate, error) {
	u, resp, err := c.api(token).Users.Get(ctx, "")
	if err != nil {
		return nil, rateOf(resp), mapError(err)
	}
	return &User{
		Login:       u.GetLogin(),
		Name:        u.GetName(),
		AvatarURL:   u.GetAvatarURL(),
		HTMLURL:     u.GetHTMLURL(),
		PublicRepos: u.GetPublicRepos(),
	}, rateOf(resp), nil
}

func (c *Client) UserRepos(ctx context.Context, token, login string, page int) ([]Repo, Rate, error) {
	opts := &gh.RepositoryListByUserOptions{
		Sort:        "updated",
		ListOptions: gh.ListOptions{Page: page, PerPage: 50},
	}
	repos, resp, err := c.api(token).Repositories.ListByUser(ctx, login, opts)
	if err != nil {
		return nil, rateOf(resp), mapError(err)
	}
	out := make([]Repo, 0, len(repos))
	for _, r := range repos {
		out = append(out, toRepo(r))
	}
	return out, rateOf(resp), nil
}

func (c *Client) Repo(ctx context.Context, token, owner, name string) (*Repo, Rate, error) {
	r, resp, err := c.api(token).Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, rateOf(resp), mapError(err)
	}
	out := toRepo(r)
	return &out, rateOf(resp), nil
}

func (c *Client) Branches(ctx context.Context, token, owner, name string) ([]Branch, Rate, error) {
	branches, resp, err := c.api(token).Repositories.ListBranches(ctx, owner, name, &gh.BranchListOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	})
	if err != nil {
		return nil, rateOf(resp), mapError(err)
	}
	out := make([]Branch, 0, len(branches))
	for _, b := range branches {
		out = append(out, Branch{Name: b.GetName(), CommitSHA: b.GetCommit().GetSHA(), Protected: b.GetProtected()})
	}
	return out, rateOf(resp), nil
}

func (c *Client) Contents(ctx context.Context, token, owner, name, path, ref string) (*Contents, Rate, error) {
	file, dir, resp, err := c.api(token).Repositories.GetContents(ctx, owner, name, strings.Trim(path, "/"), &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, rateOf(resp), mapError(err)
	}
	if file != nil {
		e := toEntry(file)
		return &Contents{File: &e}, rateOf(resp), nil
	}
	out := &Contents{IsDir: true, Entries: make([]ContentEntry, 0, len(dir))}
	for _, d := range dir {
		out.Entries = append(out.Entries, toEntry(d))
	}
	return out, rateOf(resp), nil
}

// FileContent fetches and decodes a single file. Directories are not found.
func (c *Client) FileContent(ctx context.Context, token, owner, name, path, ref string) (*File, Rate, error) {
	file, _, resp, err := c.api(token).Repositories.GetContents(ctx, owner, name, strings.Trim(path, "/"), &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, rateOf(resp), mapError(err)
	}
	if file == nil {
		return nil, rateOf(resp), ErrNotFound
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, rateOf(resp), &UpstreamError{Status: http.StatusBadGateway, Message: err.Error()}
	}
	return &File{ContentEntry: toEntry(file), Content: content}, rateOf(resp), nil
}

func (c *Client) SearchRepos(ctx context.Context, token, query string, page int) (*SearchResult, Rate, error) {
	if page < 1 {
		page = 1
	}
	res, resp, err := c.api(token).Search.Repositories(ctx, query, &gh.SearchOptions{
		ListOptions: gh.ListOptions{Page: page, PerPage: 30},
	})
	if err != nil {
		return nil, rateOf(resp), mapError(err)
	}
	out := &SearchResult{TotalCount: res.GetTotal(), Page: page, Items: make([]Repo, 0, len(res.Repositories))}
	for _, r := range res.Repositories {
		out.Items = append(out.Items, toRepo(r))
	}
	c.log.Debug("GitHub repository search done", "query", query, "total", out.TotalCount)
	return out, rateOf(resp), nil
}
