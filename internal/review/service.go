// Package review orchestrates one review fetch end to end: detect the
// platform from the page, build the right client for it, pull the diff
// and conversation, and record the outcome. Tokens pass through this
// package; they are never written anywhere.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/difflens/difflens/internal/azuredevops"
	"github.com/difflens/difflens/internal/bitbucket"
	"github.com/difflens/difflens/internal/config"
	"github.com/difflens/difflens/internal/github"
	"github.com/difflens/difflens/internal/gitlab"
	"github.com/difflens/difflens/internal/patch"
	"github.com/difflens/difflens/internal/platform"
	"github.com/difflens/difflens/internal/storage"
)

// Store is the persistence the service needs: the capability cache for
// the Azure DevOps prober and the review audit trail.
type Store interface {
	azuredevops.CapabilityStore
	SaveReviewRecord(ctx context.Context, rec *storage.ReviewRecord) error
}

// PageInfo is what the caller observed in the browser tab.
type PageInfo struct {
	URL           string   `json:"url"`
	Title         string   `json:"title,omitempty"`
	MetaGenerator string   `json:"meta_generator,omitempty"`
	BodyClasses   []string `json:"body_classes,omitempty"`
}

// Request couples a page with the credential to read it.
type Request struct {
	Page  PageInfo
	Token string
}

// Result is one complete review fetch.
type Result struct {
	ReviewID     string
	Identity     platform.Identity
	Patch        *patch.NormalizedPatch
	Conversation []platform.Comment
}

// Service runs review fetches.
type Service struct {
	dispatcher *platform.Dispatcher
	store      Store
	platforms  config.PlatformsConfig
	logger     *slog.Logger
}

// NewService creates the review service with the default detector order.
func NewService(platforms config.PlatformsConfig, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		dispatcher: NewDefaultDispatcher(logger),
		store:      store,
		platforms:  platforms,
		logger:     logger,
	}
}

// NewDefaultDispatcher builds the dispatcher with detectors in priority
// order. GitLab runs last: self-managed GitLab URLs are the least
// distinctive, so every other platform gets the first claim.
func NewDefaultDispatcher(logger *slog.Logger) *platform.Dispatcher {
	return platform.NewDispatcher(logger,
		azuredevops.NewDetector(),
		github.NewDetector(),
		bitbucket.NewDetector(),
		gitlab.NewDetector(),
	)
}

// Detect classifies a page without touching any platform API.
func (s *Service) Detect(page PageInfo) (*platform.DetectionResult, error) {
	pc, err := s.pageContext(page)
	if err != nil {
		return nil, err
	}
	return s.dispatcher.Detect(pc)
}

// FetchPatch runs the full pipeline for one review page.
func (s *Service) FetchPatch(ctx context.Context, req Request) (*Result, error) {
	client, err := s.clientFor(ctx, req)
	if err != nil {
		return nil, err
	}

	normalized, err := client.FetchCodeChanges(ctx)
	if err != nil {
		return nil, err
	}

	conversation, err := client.FetchConversation(ctx)
	if err != nil {
		// The diff is the product; a broken conversation endpoint should
		// not discard it.
		s.logger.Warn("conversation fetch failed", "identity", client.Identity().String(), "error", err)
		conversation = nil
	}

	identity := client.Identity()
	result := &Result{
		ReviewID:     uuid.NewString(),
		Identity:     identity,
		Patch:        normalized,
		Conversation: conversation,
	}

	record := &storage.ReviewRecord{
		ID:            result.ReviewID,
		Platform:      string(identity.Platform),
		Organization:  identity.Organization,
		Project:       identity.Project,
		Repository:    identity.Repository,
		PullRequestID: identity.PullRequestID,
		FileCount:     len(normalized.Files),
		TotalLines:    normalized.TotalLines,
		CommentCount:  len(conversation),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.SaveReviewRecord(ctx, record); err != nil {
		s.logger.Warn("failed to record review fetch", "review_id", result.ReviewID, "error", err)
	}

	return result, nil
}

// TestConnection validates a credential against the platform the page
// belongs to, without fetching any review content.
func (s *Service) TestConnection(ctx context.Context, req Request) (platform.Identity, error) {
	client, err := s.clientFor(ctx, req)
	if err != nil {
		return platform.Identity{}, err
	}
	return client.Identity(), client.TestConnection(ctx)
}

// IsStale reports whether a previously detected identity no longer
// matches what the page shows now, e.g. after an in-tab navigation to a
// different pull request.
func (s *Service) IsStale(known platform.Identity, page PageInfo) bool {
	result, err := s.Detect(page)
	if err != nil || result.Identity == nil {
		return true
	}
	return !known.Equal(*result.Identity)
}

func (s *Service) pageContext(page PageInfo) (platform.PageContext, error) {
	pc, err := platform.NewPageContext(page.URL)
	if err != nil {
		return platform.PageContext{}, err
	}
	pc.Title = page.Title
	pc.MetaGenerator = page.MetaGenerator
	pc.BodyClasses = page.BodyClasses
	return pc, nil
}

// clientFor identifies the page and constructs the matching client. Base
// URLs for self-hosted instances come from configuration when set, and
// otherwise from the page the review lives on.
func (s *Service) clientFor(ctx context.Context, req Request) (platform.Client, error) {
	page, err := s.pageContext(req.Page)
	if err != nil {
		return nil, err
	}

	identity, err := s.dispatcher.Identify(page)
	if err != nil {
		return nil, err
	}

	switch identity.Platform {
	case platform.PlatformGitHub:
		baseURL := s.platforms.GitHub.BaseURL
		if baseURL == "" && page.Hostname != github.HostGitHub {
			baseURL = page.Protocol + "//" + page.Hostname
		}
		return github.NewClient(ctx, github.ClientConfig{
			Identity: *identity,
			Token:    req.Token,
			BaseURL:  baseURL,
			Logger:   s.logger,
		})

	case platform.PlatformGitLab:
		baseURL := s.platforms.GitLab.BaseURL
		if baseURL == "" && page.Hostname != gitlab.HostGitLab {
			baseURL = page.Protocol + "//" + page.Hostname
		}
		return gitlab.NewClient(gitlab.ClientConfig{
			Identity: *identity,
			Token:    req.Token,
			BaseURL:  baseURL,
			Logger:   s.logger,
		})

	case platform.PlatformAzureDevOps:
		return azuredevops.NewClient(ctx, azuredevops.ClientConfig{
			Identity:     *identity,
			Token:        req.Token,
			Hostname:     page.Hostname,
			PageProtocol: page.Protocol,
			Prober:       azuredevops.NewProber(s.store, s.logger),
			Logger:       s.logger,
		})

	case platform.PlatformBitbucket:
		return bitbucket.NewClient(bitbucket.ClientConfig{
			Identity: *identity,
			Token:    req.Token,
			BaseURL:  s.platforms.Bitbucket.BaseURL,
			Logger:   s.logger,
		})
	}

	return nil, fmt.Errorf("%w: no client for platform %s", platform.ErrUnsupportedPage, identity.Platform)
}
