// Package platform defines the shared vocabulary for code review hosting
// platforms: review identity, page detection, and the client contract each
// platform integration implements.
package platform

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/difflens/difflens/internal/patch"
)

// Platform identifies a code review hosting platform.
type Platform string

const (
	PlatformGitHub      Platform = "github"
	PlatformGitLab      Platform = "gitlab"
	PlatformAzureDevOps Platform = "azure-devops"
	PlatformBitbucket   Platform = "bitbucket"
)

// PageType classifies what kind of page a PageContext points at.
type PageType string

const (
	// PageTypePullRequest is a pull/merge request detail page.
	PageTypePullRequest PageType = "pull-request"
	// PageTypeOther is any page that is not a review page.
	PageTypeOther PageType = "other"
)

// Identity is the minimal set of coordinates needed to address a pull
// request on any supported platform. Project is optional; Azure DevOps
// project-less URLs leave it empty until the client resolves it.
type Identity struct {
	Platform      Platform `json:"platform"`
	Organization  string   `json:"organization"`
	Project       string   `json:"project,omitempty"`
	Repository    string   `json:"repository"`
	PullRequestID int      `json:"pull_request_id"`
}

// String renders the identity in a compact org/project/repo!id form.
func (i Identity) String() string {
	if i.Project != "" {
		return fmt.Sprintf("%s:%s/%s/%s!%d", i.Platform, i.Organization, i.Project, i.Repository, i.PullRequestID)
	}
	return fmt.Sprintf("%s:%s/%s!%d", i.Platform, i.Organization, i.Repository, i.PullRequestID)
}

// Equal reports whether two identities address the same pull request.
// An empty Project on either side matches any project: a project-less
// identity refines into a resolved one without becoming stale.
func (i Identity) Equal(other Identity) bool {
	if i.Platform != other.Platform ||
		!strings.EqualFold(i.Organization, other.Organization) ||
		!strings.EqualFold(i.Repository, other.Repository) ||
		i.PullRequestID != other.PullRequestID {
		return false
	}
	if i.Project == "" || other.Project == "" {
		return true
	}
	return strings.EqualFold(i.Project, other.Project)
}

// PageContext carries the observable facts about the page the user is
// looking at. It is the only input detectors receive; nothing in it is
// trusted beyond URL parsing and marker matching.
type PageContext struct {
	RawURL        string   `json:"url"`
	Title         string   `json:"title,omitempty"`
	MetaGenerator string   `json:"meta_generator,omitempty"`
	BodyClasses   []string `json:"body_classes,omitempty"`

	// Derived from RawURL by NewPageContext.
	Protocol string `json:"-"`
	Hostname string `json:"-"`
	Path     string `json:"-"`
}

// NewPageContext parses rawURL and returns a PageContext with the derived
// fields populated.
func NewPageContext(rawURL string) (PageContext, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return PageContext{}, fmt.Errorf("failed to parse page URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return PageContext{}, fmt.Errorf("page URL %q is not absolute", rawURL)
	}
	return PageContext{
		RawURL:   rawURL,
		Protocol: u.Scheme + ":",
		Hostname: u.Hostname(),
		Path:     u.Path,
	}, nil
}

// HasBodyClass reports whether the page body carries the given class.
func (p PageContext) HasBodyClass(class string) bool {
	for _, c := range p.BodyClasses {
		if strings.EqualFold(c, class) {
			return true
		}
	}
	return false
}

// Metadata is the lightweight review summary surfaced on detection. It is
// intentionally small; full content comes from the platform client.
type Metadata struct {
	Title        string    `json:"title,omitempty"`
	Author       string    `json:"author,omitempty"`
	SourceBranch string    `json:"source_branch,omitempty"`
	TargetBranch string    `json:"target_branch,omitempty"`
	Status       string    `json:"status,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	CommitCount  int       `json:"commit_count,omitempty"`
}

// DetectionResult is the outcome of running a page through detection.
type DetectionResult struct {
	Platform  Platform  `json:"platform,omitempty"`
	PageType  PageType  `json:"page_type"`
	Supported bool      `json:"supported"`
	Identity  *Identity `json:"identity,omitempty"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// Comment is a single conversation entry on a pull request. File-anchored
// comments carry FilePath and Line; top-level discussion leaves them zero.
type Comment struct {
	ID        string    `json:"id"`
	ParentID  string    `json:"parent_id,omitempty"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	FilePath  string    `json:"file_path,omitempty"`
	Line      int       `json:"line,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Detector recognizes review pages for one platform. Implementations must
// be side-effect free: no network, no credential use.
type Detector interface {
	// Platform returns the platform this detector recognizes.
	Platform() Platform

	// IsReviewPage reports whether the page is a pull request page on
	// this platform, from the page context alone.
	IsReviewPage(page PageContext) bool

	// Detect extracts the review identity and any metadata visible in the
	// page context. It is only called after IsReviewPage returned true.
	Detect(page PageContext) (*DetectionResult, error)
}

// Client fetches review content for exactly one pull request. A client is
// constructed per review with the credential for that review and is not
// reused across reviews.
type Client interface {
	// Platform returns the platform this client talks to.
	Platform() Platform

	// Identity returns the review this client is bound to.
	Identity() Identity

	// FetchCodeChanges retrieves the full set of code changes and returns
	// them in normalized form.
	FetchCodeChanges(ctx context.Context) (*patch.NormalizedPatch, error)

	// FetchConversation retrieves the review discussion, flattened to a
	// single chronological list.
	FetchConversation(ctx context.Context) ([]Comment, error)

	// TestConnection verifies that the credential can reach the platform
	// API. It performs the cheapest authenticated call available.
	TestConnection(ctx context.Context) error
}
