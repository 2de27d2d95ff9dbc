package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/difflens/difflens/internal/patch"
	"github.com/difflens/difflens/internal/platform"
)

// ClientConfig holds the configuration for a GitHub client. One client
// serves exactly one pull request review.
type ClientConfig struct {
	// Identity of the review the client is bound to.
	Identity platform.Identity

	// Token authenticates every request. It lives only for the lifetime
	// of the client.
	Token string

	// BaseURL is empty for github.com; for Enterprise Server it is the
	// instance web root (https://github.example.com).
	BaseURL string

	Logger *slog.Logger
	Retry  platform.RetryConfig
}

// Client is a pull-request-scoped GitHub client: the REST API for
// metadata and conversation, GraphQL for review threads, and the
// canonical .diff URL for the unified diff itself.
type Client struct {
	rest       *github.Client
	graphql    *githubv4.Client
	httpClient *http.Client
	retryer    *platform.Retryer
	normalizer *patch.Normalizer
	logger     *slog.Logger

	identity platform.Identity
	webBase  string
	parsed   *ParsedPR
}

// NewClient creates a client for one review.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Identity.Organization == "" || cfg.Identity.Repository == "" || cfg.Identity.PullRequestID <= 0 {
		return nil, fmt.Errorf("incomplete review identity: %s", cfg.Identity)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: no token provided", platform.ErrAuthentication)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = platform.DefaultRetryConfig()
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = 60 * time.Second

	rest := github.NewClient(httpClient)
	graphqlClient := githubv4.NewClient(httpClient)
	webBase := "https://" + HostGitHub

	if cfg.BaseURL != "" {
		base := strings.TrimSuffix(cfg.BaseURL, "/")
		enterprise, err := rest.WithEnterpriseURLs(base, base)
		if err != nil {
			return nil, fmt.Errorf("failed to configure enterprise URLs: %w", err)
		}
		rest = enterprise
		graphqlClient = githubv4.NewEnterpriseClient(base+"/api/graphql", httpClient)
		webBase = base
	}

	return &Client{
		rest:       rest,
		graphql:    graphqlClient,
		httpClient: httpClient,
		retryer:    platform.NewRetryer(cfg.Retry, logger),
		normalizer: patch.NewNormalizer(logger),
		logger:     logger,
		identity:   cfg.Identity,
		webBase:    webBase,
		parsed: &ParsedPR{
			Owner:         cfg.Identity.Organization,
			Repository:    cfg.Identity.Repository,
			PullRequestID: cfg.Identity.PullRequestID,
		},
	}, nil
}

// Platform implements platform.Client.
func (c *Client) Platform() platform.Platform {
	return platform.PlatformGitHub
}

// Identity implements platform.Client.
func (c *Client) Identity() platform.Identity {
	return c.identity
}

// TestConnection verifies the token by fetching the authenticated user.
func (c *Client) TestConnection(ctx context.Context) error {
	user, _, err := c.rest.Users.Get(ctx, "")
	if err != nil {
		return wrapError(err, http.MethodGet, "user")
	}
	c.logger.Debug("connection test passed", "login", user.GetLogin())
	return nil
}

// FetchCodeChanges retrieves the PR metadata over REST and the unified
// diff from the canonical .diff URL, then normalizes both into a patch.
func (c *Client) FetchCodeChanges(ctx context.Context) (*patch.NormalizedPatch, error) {
	pr, err := platform.DoWithRetry(ctx, c.retryer, "get pull request",
		func(ctx context.Context) (*github.PullRequest, error) {
			pr, _, err := c.rest.PullRequests.Get(ctx, c.parsed.Owner, c.parsed.Repository, c.parsed.PullRequestID)
			return pr, wrapError(err, http.MethodGet, "pull request")
		})
	if err != nil {
		return nil, err
	}

	diffText, err := c.fetchDiff(ctx)
	if err != nil {
		return nil, err
	}

	files := patch.SplitUnifiedDiff(diffText)

	prov := patch.Provenance{
		Platform:      string(platform.PlatformGitHub),
		Organization:  c.identity.Organization,
		Repository:    c.identity.Repository,
		PullRequestID: c.identity.PullRequestID,
		Title:         pr.GetTitle(),
		Author:        pr.GetUser().GetLogin(),
		SourceBranch:  pr.GetHead().GetRef(),
		TargetBranch:  pr.GetBase().GetRef(),
		Status:        pr.GetState(),
		CreatedAt:     pr.GetCreatedAt().Time,
		CommitCount:   pr.GetCommits(),
		FetchedAt:     time.Now().UTC(),
	}

	return c.normalizer.Normalize(prov, files), nil
}

// fetchDiff retrieves the unified diff: first from the canonical
// {pr-url}.diff endpoint, then through the REST media-type fallback when
// the web endpoint is unavailable (some Enterprise setups gate it).
func (c *Client) fetchDiff(ctx context.Context) (string, error) {
	diffText, webErr := c.fetchDiffFromWeb(ctx)
	if webErr == nil {
		return diffText, nil
	}
	c.logger.Warn("canonical diff URL failed, falling back to API", "error", webErr)

	raw, _, err := c.rest.PullRequests.GetRaw(ctx, c.parsed.Owner, c.parsed.Repository,
		c.parsed.PullRequestID, github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", wrapError(err, http.MethodGet, "pull request diff")
	}
	return raw, nil
}

func (c *Client) fetchDiffFromWeb(ctx context.Context) (string, error) {
	diffURL := DiffURL(c.webBase, c.parsed)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, diffURL, nil)
	if err != nil {
		return "", err
	}

	c.logger.Debug("fetching pull request diff", "url", diffURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request to %s failed: %w", diffURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", platform.NewAPIError(platform.PlatformGitHub, http.MethodGet, diffURL,
			resp.StatusCode, "diff endpoint rejected request")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read diff from %s: %w", diffURL, err)
	}
	return string(body), nil
}

// wrapError converts a go-github error into the shared taxonomy.
func wrapError(err error, method, resource string) error {
	if err == nil {
		return nil
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		status := ghErr.Response.StatusCode
		reqURL := ""
		if ghErr.Response.Request != nil && ghErr.Response.Request.URL != nil {
			reqURL = ghErr.Response.Request.URL.String()
		}
		if status == http.StatusForbidden {
			return &platform.AuthorizationError{
				Platform:   platform.PlatformGitHub,
				StatusCode: status,
				Body:       ghErr.Message,
				URL:        reqURL,
			}
		}
		return platform.NewAPIError(platform.PlatformGitHub, method, reqURL, status, ghErr.Message)
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: %s", platform.ErrRateLimited, rateErr.Message)
	}

	return fmt.Errorf("failed to fetch %s: %w", resource, err)
}
