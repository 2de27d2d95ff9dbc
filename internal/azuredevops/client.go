package azuredevops

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/difflens/difflens/internal/patch"
	"github.com/difflens/difflens/internal/platform"
)

// ClientConfig holds the configuration for an Azure DevOps client. One
// client serves exactly one pull request review.
type ClientConfig struct {
	// Identity of the review the client is bound to. Project may be
	// empty; it is then resolved lazily from the collection.
	Identity platform.Identity

	// Token is the personal access token used for Basic auth. It lives
	// only for the lifetime of the client.
	Token string

	// Hostname and PageProtocol come from the page the review was
	// detected on and drive on-premises base URL computation.
	Hostname     string
	PageProtocol string

	// APIVersion, when set, is used as-is and no probe runs.
	APIVersion string

	// Prober supplies the server API version when APIVersion is empty.
	Prober *Prober

	Logger *slog.Logger

	// Timeout for content requests. Zero means no client-side deadline;
	// large diffs on slow on-premises servers are expected to take their
	// time.
	Timeout time.Duration
}

// Client is a pull-request-scoped Azure DevOps REST client. It carries
// the resolved base URL, the negotiated api-version, and the repository
// identifier, which starts as the repository name and is swapped for the
// GUID once background resolution lands.
type Client struct {
	baseURL    string
	token      string
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
	normalizer *patch.Normalizer

	identity platform.Identity

	mu        sync.Mutex
	repoID    string
	project   string
	resolving *projectResolution
}

// projectResolution is a single in-flight collection-level project lookup
// shared by all concurrent callers.
type projectResolution struct {
	done    chan struct{}
	project string
	err     error
}

// NewClient creates a client for one review. It consults the prober for
// the server's API version (served from cache when known) and kicks off
// repository GUID resolution in the background without blocking.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Identity.Organization == "" || cfg.Identity.Repository == "" || cfg.Identity.PullRequestID <= 0 {
		return nil, fmt.Errorf("incomplete review identity: %s", cfg.Identity)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: no token provided", platform.ErrAuthentication)
	}
	if cfg.APIVersion == "" && cfg.Prober == nil {
		return nil, fmt.Errorf("prober is required when no api version is pinned")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseURL := BaseURL(cfg.Hostname, cfg.Identity.Organization, cfg.PageProtocol)

	apiVersion := cfg.APIVersion
	serverLabel := "pinned"
	if apiVersion == "" {
		capability, err := cfg.Prober.Detect(ctx, baseURL, cfg.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to detect server version: %w", err)
		}
		apiVersion = capability.APIVersion
		serverLabel = capability.VersionLabel
	}

	c := &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		apiVersion: RequestAPIVersion(apiVersion),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		normalizer: patch.NewNormalizer(logger),
		identity:   cfg.Identity,
		repoID:     cfg.Identity.Repository,
		project:    cfg.Identity.Project,
	}

	logger.Debug("azure devops client ready",
		"base_url", baseURL,
		"api_version", c.apiVersion,
		"server", serverLabel)

	// Swap the repository name for its GUID when it arrives; every API
	// path accepts either, so nothing waits on this.
	go c.resolveRepositoryID()

	return c, nil
}

// Platform implements platform.Client.
func (c *Client) Platform() platform.Platform {
	return platform.PlatformAzureDevOps
}

// Identity implements platform.Client.
func (c *Client) Identity() platform.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.identity
	id.Project = c.project
	return id
}

// TestConnection verifies the token against the collection's project list.
func (c *Client) TestConnection(ctx context.Context) error {
	var projects listResponse[teamProjectRef]
	if err := c.getJSON(ctx, c.baseURL+"/_apis/projects", nil, &projects); err != nil {
		return err
	}
	c.logger.Debug("connection test passed", "projects", projects.Count)
	return nil
}

// repositoryID returns the current repository identifier: the GUID when
// background resolution has landed, the name otherwise.
func (c *Client) repositoryID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repoID
}

// resolveRepositoryID swaps the repository name for its GUID. Best
// effort: any failure leaves the name in place and is only logged.
func (c *Client) resolveRepositoryID() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	project, err := c.ensureProject(ctx)
	if err != nil {
		c.logger.Debug("repository id resolution skipped", "error", err)
		return
	}

	path := fmt.Sprintf("%s/%s/_apis/git/repositories/%s",
		c.baseURL, url.PathEscape(project), url.PathEscape(c.identity.Repository))
	var repo gitRepository
	if err := c.getJSON(ctx, path, nil, &repo); err != nil {
		c.logger.Debug("repository id resolution failed", "repository", c.identity.Repository, "error", err)
		return
	}
	if repo.ID == "" {
		return
	}

	c.mu.Lock()
	c.repoID = repo.ID
	c.mu.Unlock()
	c.logger.Debug("resolved repository id", "repository", c.identity.Repository, "id", repo.ID)
}

// ensureProject returns the project name, resolving it from the
// collection on first use. Concurrent callers share one in-flight
// lookup; a failed lookup is forgotten so the next caller retries.
func (c *Client) ensureProject(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.project != "" {
		project := c.project
		c.mu.Unlock()
		return project, nil
	}
	res := c.resolving
	if res == nil {
		res = &projectResolution{done: make(chan struct{})}
		c.resolving = res
		go c.resolveProject(res)
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-res.done:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolving == res {
		c.resolving = nil
	}
	if res.err != nil {
		return "", res.err
	}
	c.project = res.project
	return res.project, nil
}

// resolveProject finds which project owns the repository by listing the
// collection's repositories. Several projects may own a repository with
// the same name; the remote URL, which uses the project-less
// /{org}/_git/{repo} shape only for the true owner, disambiguates.
// Anything still ambiguous fails loud instead of guessing.
func (c *Client) resolveProject(res *projectResolution) {
	defer close(res.done)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	path := c.baseURL + "/_apis/git/repositories"
	var repos listResponse[gitRepository]
	if err := c.getJSON(ctx, path, nil, &repos); err != nil {
		res.err = fmt.Errorf("failed to list collection repositories: %w", err)
		return
	}

	var candidates []gitRepository
	for _, repo := range repos.Value {
		if strings.EqualFold(repo.Name, c.identity.Repository) {
			candidates = append(candidates, repo)
		}
	}

	switch len(candidates) {
	case 0:
		res.err = &platform.APIError{
			Platform: platform.PlatformAzureDevOps,
			Message:  fmt.Sprintf("repository %q not found in collection", c.identity.Repository),
			URL:      path,
			Method:   http.MethodGet,
			Err:      platform.ErrNotFound,
		}
	case 1:
		res.project = candidates[0].Project.Name
		c.logger.Debug("resolved project from collection", "project", res.project)
	default:
		wantSuffix := fmt.Sprintf("/%s/_git/%s",
			strings.ToLower(c.identity.Organization), strings.ToLower(c.identity.Repository))
		var matched []gitRepository
		for _, repo := range candidates {
			u, err := url.Parse(repo.RemoteURL)
			if err != nil {
				continue
			}
			if strings.ToLower(u.Path) == wantSuffix {
				matched = append(matched, repo)
			}
		}
		if len(matched) == 1 {
			res.project = matched[0].Project.Name
			c.logger.Debug("resolved project via remote url", "project", res.project)
			return
		}
		names := make([]string, 0, len(candidates))
		for _, repo := range candidates {
			names = append(names, repo.Project.Name)
		}
		res.err = &platform.AmbiguousResolutionError{
			Platform:   platform.PlatformAzureDevOps,
			Resource:   "repository",
			Name:       c.identity.Repository,
			Candidates: names,
		}
	}
}

// getJSON performs an authenticated GET and decodes the JSON response.
// The negotiated api-version is appended to every request.
func (c *Client) getJSON(ctx context.Context, rawURL string, query url.Values, out any) error {
	body, err := c.get(ctx, rawURL, query, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", rawURL, err)
	}
	return nil
}

// getText performs an authenticated GET returning the raw response body.
func (c *Client) getText(ctx context.Context, rawURL string, query url.Values) (string, error) {
	body, err := c.get(ctx, rawURL, query, "text/plain")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, rawURL string, query url.Values, accept string) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", c.apiVersion)
	fullURL := rawURL + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", basicAuthHeader(c.token))
	req.Header.Set("Accept", accept)

	c.logger.Debug("azure devops request", "url", rawURL, "api_version", c.apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.errorFromResponse(resp.StatusCode, rawURL, body)
	}

	return body, nil
}

// errorFromResponse maps a non-2xx response to the typed error taxonomy.
// 403 bodies are preserved verbatim: deployments deny access through
// proxies, conditional access policies, and license gates, and the raw
// payload is the only reliable diagnostic.
func (c *Client) errorFromResponse(statusCode int, rawURL string, body []byte) error {
	if statusCode == http.StatusForbidden {
		return &platform.AuthorizationError{
			Platform:   platform.PlatformAzureDevOps,
			StatusCode: statusCode,
			Body:       string(body),
			URL:        rawURL,
		}
	}

	return platform.NewAPIError(platform.PlatformAzureDevOps, http.MethodGet, rawURL, statusCode, apiErrorMessage(body))
}

// apiErrorMessage pulls the "message" field out of an Azure DevOps error
// payload, falling back to a trimmed raw body.
func apiErrorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}

// basicAuthHeader builds the Authorization header for a personal access
// token: Basic with an empty username.
func basicAuthHeader(token string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(":"+token))
}
