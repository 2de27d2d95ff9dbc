package gitlab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/difflens/difflens/internal/patch"
	"github.com/difflens/difflens/internal/platform"
)

// ClientConfig holds the configuration for a GitLab client. One client
// serves exactly one merge request review.
type ClientConfig struct {
	Identity platform.Identity
	Token    string

	// BaseURL is empty for gitlab.com; for self-managed instances it is
	// the instance web root.
	BaseURL string

	Logger *slog.Logger
	Retry  platform.RetryConfig
}

// Client is a merge-request-scoped GitLab client built on the official
// API client.
type Client struct {
	api        *gitlab.Client
	retryer    *platform.Retryer
	normalizer *patch.Normalizer
	logger     *slog.Logger

	identity    platform.Identity
	projectPath string
	iid         int
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

	opts := []gitlab.ClientOptionFunc{}
	if cfg.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	api, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}

	return &Client{
		api:         api,
		retryer:     platform.NewRetryer(cfg.Retry, logger),
		normalizer:  patch.NewNormalizer(logger),
		logger:      logger,
		identity:    cfg.Identity,
		projectPath: cfg.Identity.Organization + "/" + cfg.Identity.Repository,
		iid:         cfg.Identity.PullRequestID,
	}, nil
}

// Platform implements platform.Client.
func (c *Client) Platform() platform.Platform {
	return platform.PlatformGitLab
}

// Identity implements platform.Client.
func (c *Client) Identity() platform.Identity {
	return c.identity
}

// TestConnection verifies the token by fetching the authenticated user.
func (c *Client) TestConnection(ctx context.Context) error {
	user, _, err := c.api.Users.CurrentUser(gitlab.WithContext(ctx))
	if err != nil {
		return wrapError(err, "current user")
	}
	c.logger.Debug("connection test passed", "username", user.Username)
	return nil
}

// FetchCodeChanges retrieves the merge request metadata and its per-file
// diffs, then normalizes them into a patch. GitLab already serves the
// diff split per file, so no whole-patch splitting is needed.
func (c *Client) FetchCodeChanges(ctx context.Context) (*patch.NormalizedPatch, error) {
	mr, err := platform.DoWithRetry(ctx, c.retryer, "get merge request",
		func(ctx context.Context) (*gitlab.MergeRequest, error) {
			mr, _, err := c.api.MergeRequests.GetMergeRequest(c.projectPath, c.iid, nil, gitlab.WithContext(ctx))
			return mr, wrapError(err, "merge request")
		})
	if err != nil {
		return nil, err
	}

	diffs, err := c.listDiffs(ctx)
	if err != nil {
		return nil, err
	}

	files := make([]patch.RawFile, 0, len(diffs))
	for _, d := range diffs {
		files = append(files, convertDiff(d))
	}

	commitCount, err := c.commitCount(ctx)
	if err != nil {
		c.logger.Warn("failed to count merge request commits", "error", err)
	}

	prov := patch.Provenance{
		Platform:      string(platform.PlatformGitLab),
		Organization:  c.identity.Organization,
		Repository:    c.identity.Repository,
		PullRequestID: c.iid,
		Title:         mr.Title,
		SourceBranch:  mr.SourceBranch,
		TargetBranch:  mr.TargetBranch,
		Status:        mr.State,
		CommitCount:   commitCount,
		FetchedAt:     time.Now().UTC(),
	}
	if mr.Author != nil {
		prov.Author = mr.Author.Username
	}
	if mr.CreatedAt != nil {
		prov.CreatedAt = *mr.CreatedAt
	}

	return c.normalizer.Normalize(prov, files), nil
}

func (c *Client) listDiffs(ctx context.Context) ([]*gitlab.MergeRequestDiff, error) {
	var all []*gitlab.MergeRequestDiff
	opts := &gitlab.ListMergeRequestDiffsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	for {
		page, resp, err := c.api.MergeRequests.ListMergeRequestDiffs(c.projectPath, c.iid, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, wrapError(err, "merge request diffs")
		}
		all = append(all, page...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// commitCount reads the commit total from the list endpoint's pagination
// headers, one commit per page so no commit bodies travel. Failures are
// reported, not fatal; the count is metadata.
func (c *Client) commitCount(ctx context.Context) (int, error) {
	commits, resp, err := c.api.MergeRequests.GetMergeRequestCommits(c.projectPath, c.iid,
		&gitlab.GetMergeRequestCommitsOptions{PerPage: 1}, gitlab.WithContext(ctx))
	if err != nil {
		return 0, wrapError(err, "merge request commits")
	}
	if resp.TotalItems > 0 {
		return resp.TotalItems, nil
	}
	return len(commits), nil
}

// FetchConversation returns the merge request discussion, system notes
// dropped, ordered as the API returns them.
func (c *Client) FetchConversation(ctx context.Context) ([]platform.Comment, error) {
	var comments []platform.Comment
	opts := &gitlab.ListMergeRequestNotesOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
		Sort:        gitlab.Ptr("asc"),
		OrderBy:     gitlab.Ptr("created_at"),
	}

	for {
		notes, resp, err := c.api.Notes.ListMergeRequestNotes(c.projectPath, c.iid, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, wrapError(err, "merge request notes")
		}
		for _, note := range notes {
			if note.System {
				continue
			}
			comment := platform.Comment{
				ID:     fmt.Sprintf("%d", note.ID),
				Author: note.Author.Username,
				Body:   note.Body,
			}
			if note.CreatedAt != nil {
				comment.CreatedAt = *note.CreatedAt
			}
			if note.Position != nil {
				comment.FilePath = note.Position.NewPath
				comment.Line = note.Position.NewLine
			}
			comments = append(comments, comment)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return comments, nil
}

// convertDiff maps one API diff entry onto the shared raw file shape.
func convertDiff(d *gitlab.MergeRequestDiff) patch.RawFile {
	rf := patch.RawFile{
		Path:       d.NewPath,
		ChangeType: patch.ChangeEdit,
		Diff:       d.Diff,
	}
	switch {
	case d.NewFile:
		rf.ChangeType = patch.ChangeAdd
	case d.DeletedFile:
		rf.ChangeType = patch.ChangeDelete
		rf.Path = d.OldPath
	case d.RenamedFile:
		rf.ChangeType = patch.ChangeRename
		rf.PreviousPath = d.OldPath
	}
	if strings.Contains(d.Diff, "Binary files") && !strings.Contains(d.Diff, "@@") {
		rf.Binary = true
	}
	return rf
}

// wrapError converts a client-go error into the shared taxonomy.
func wrapError(err error, resource string) error {
	if err == nil {
		return nil
	}

	// client-go returns a bare sentinel for 404s instead of an
	// *ErrorResponse; translate it to the shared sentinel.
	if errors.Is(err, gitlab.ErrNotFound) {
		return fmt.Errorf("failed to fetch %s: %w", resource, platform.ErrNotFound)
	}

	var glErr *gitlab.ErrorResponse
	if errors.As(err, &glErr) && glErr.Response != nil {
		status := glErr.Response.StatusCode
		reqURL := ""
		method := http.MethodGet
		if glErr.Response.Request != nil {
			method = glErr.Response.Request.Method
			if glErr.Response.Request.URL != nil {
				reqURL = glErr.Response.Request.URL.String()
			}
		}
		if status == http.StatusForbidden {
			return &platform.AuthorizationError{
				Platform:   platform.PlatformGitLab,
				StatusCode: status,
				Body:       glErr.Message,
				URL:        reqURL,
			}
		}
		return platform.NewAPIError(platform.PlatformGitLab, method, reqURL, status, glErr.Message)
	}

	return fmt.Errorf("failed to fetch %s: %w", resource, err)
}
