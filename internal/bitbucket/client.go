package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/difflens/difflens/internal/patch"
	"github.com/difflens/difflens/internal/platform"
)

// ClientConfig holds the configuration for a Bitbucket client. One
// client serves exactly one pull request review.
type ClientConfig struct {
	Identity platform.Identity

	// Token is an access token sent as a bearer credential.
	Token string

	// BaseURL overrides the Bitbucket Cloud API root, for tests.
	BaseURL string

	Logger  *slog.Logger
	Retry   platform.RetryConfig
	Timeout time.Duration
}

// Client is a pull-request-scoped Bitbucket Cloud REST client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	retryer    *platform.Retryer
	normalizer *patch.Normalizer
	logger     *slog.Logger

	identity platform.Identity
}

// NewClient creates a client for one review.
func NewClient(cfg ClientConfig) (*Client, error) {
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
	baseURL := APIBaseURL
	if cfg.BaseURL != "" {
		baseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		retryer:    platform.NewRetryer(cfg.Retry, logger),
		normalizer: patch.NewNormalizer(logger),
		logger:     logger,
		identity:   cfg.Identity,
	}, nil
}

// Platform implements platform.Client.
func (c *Client) Platform() platform.Platform {
	return platform.PlatformBitbucket
}

// Identity implements platform.Client.
func (c *Client) Identity() platform.Identity {
	return c.identity
}

// TestConnection verifies the token by fetching the authenticated user.
func (c *Client) TestConnection(ctx context.Context) error {
	var user struct {
		Username string `json:"username"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/user", &user); err != nil {
		return err
	}
	c.logger.Debug("connection test passed", "username", user.Username)
	return nil
}

// FetchCodeChanges retrieves the PR metadata, follows the diff link the
// PR resource advertises, and normalizes the result. The advertised link
// is authoritative: its href carries revision parameters the client
// cannot reconstruct.
func (c *Client) FetchCodeChanges(ctx context.Context) (*patch.NormalizedPatch, error) {
	pr, err := platform.DoWithRetry(ctx, c.retryer, "get pull request",
		func(ctx context.Context) (*pullRequest, error) {
			var pr pullRequest
			err := c.getJSON(ctx, c.prAPIBase(), &pr)
			return &pr, err
		})
	if err != nil {
		return nil, err
	}

	diffHref := pr.Links.Diff.Href
	if diffHref == "" {
		diffHref = c.prAPIBase() + "/diff"
	}

	diffText, err := platform.DoWithRetry(ctx, c.retryer, "get pull request diff",
		func(ctx context.Context) (string, error) {
			return c.getText(ctx, diffHref)
		})
	if err != nil {
		return nil, err
	}

	files := patch.SplitUnifiedDiff(diffText)

	commitCount, err := c.commitCount(ctx)
	if err != nil {
		c.logger.Warn("failed to count pull request commits", "error", err)
	}

	prov := patch.Provenance{
		Platform:      string(platform.PlatformBitbucket),
		Organization:  c.identity.Organization,
		Repository:    c.identity.Repository,
		PullRequestID: c.identity.PullRequestID,
		Title:         pr.Title,
		Author:        pr.Author.DisplayName,
		SourceBranch:  pr.Source.Branch.Name,
		TargetBranch:  pr.Destination.Branch.Name,
		Status:        strings.ToLower(pr.State),
		CreatedAt:     pr.CreatedOn,
		CommitCount:   commitCount,
		FetchedAt:     time.Now().UTC(),
	}

	return c.normalizer.Normalize(prov, files), nil
}

// commitCount walks the PR commit pages and counts entries. The API does
// not return a total for commit listings, so counting means paging.
// Failures are reported, not fatal; the count is metadata.
func (c *Client) commitCount(ctx context.Context) (int, error) {
	count := 0
	next := c.prAPIBase() + "/commits?pagelen=100"
	for next != "" {
		var page commitsPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return 0, err
		}
		count += len(page.Values)
		next = page.Next
	}
	return count, nil
}

// FetchConversation returns the PR comments, deleted entries dropped,
// following the API's pagination links.
func (c *Client) FetchConversation(ctx context.Context) ([]platform.Comment, error) {
	var comments []platform.Comment
	next := c.prAPIBase() + "/comments?pagelen=100"

	for next != "" {
		var page commentPage
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		for _, pc := range page.Values {
			if pc.Deleted {
				continue
			}
			comment := platform.Comment{
				ID:        fmt.Sprintf("%d", pc.ID),
				Author:    pc.User.DisplayName,
				Body:      pc.Content.Raw,
				CreatedAt: pc.CreatedOn,
			}
			if pc.Parent != nil {
				comment.ParentID = fmt.Sprintf("%d", pc.Parent.ID)
			}
			if pc.Inline != nil {
				comment.FilePath = pc.Inline.Path
				comment.Line = pc.Inline.To
			}
			comments = append(comments, comment)
		}
		next = page.Next
	}
	return comments, nil
}

func (c *Client) prAPIBase() string {
	return fmt.Sprintf("%s/repositories/%s/%s/pullrequests/%d",
		c.baseURL, c.identity.Organization, c.identity.Repository, c.identity.PullRequestID)
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	body, err := c.get(ctx, url, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

func (c *Client) getText(ctx context.Context, url string) (string, error) {
	body, err := c.get(ctx, url, "text/plain")
	return string(body), err
}

func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", accept)

	c.logger.Debug("bitbucket request", "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.errorFromResponse(resp, url, body)
	}
	return body, nil
}

func (c *Client) errorFromResponse(resp *http.Response, url string, body []byte) error {
	if resp.StatusCode == http.StatusForbidden {
		return &platform.AuthorizationError{
			Platform:   platform.PlatformBitbucket,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			URL:        url,
		}
	}

	message := http.StatusText(resp.StatusCode)
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}
	return platform.NewAPIError(platform.PlatformBitbucket, http.MethodGet, url, resp.StatusCode, message)
}

// Wire types for the 2.0 API, reduced to the fields the client reads.

type pullRequest struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	CreatedOn time.Time `json:"created_on"`
	Author    struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
	Source      prEndpoint `json:"source"`
	Destination prEndpoint `json:"destination"`
	Links       struct {
		Diff struct {
			Href string `json:"href"`
		} `json:"diff"`
	} `json:"links"`
}

type prEndpoint struct {
	Branch struct {
		Name string `json:"name"`
	} `json:"branch"`
}

type commitsPage struct {
	Values []struct {
		Hash string `json:"hash"`
	} `json:"values"`
	Next string `json:"next"`
}

type commentPage struct {
	Values []prComment `json:"values"`
	Next   string      `json:"next"`
}

type prComment struct {
	ID      int  `json:"id"`
	Deleted bool `json:"deleted"`
	Parent  *struct {
		ID int `json:"id"`
	} `json:"parent"`
	User struct {
		DisplayName string `json:"display_name"`
	} `json:"user"`
	Content struct {
		Raw string `json:"raw"`
	} `json:"content"`
	Inline *struct {
		Path string `json:"path"`
		To   int    `json:"to"`
	} `json:"inline"`
	CreatedOn time.Time `json:"created_on"`
}
