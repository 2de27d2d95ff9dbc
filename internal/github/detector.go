package github

import (
	"strings"

	"github.com/difflens/difflens/internal/platform"
)

// Detector recognizes GitHub pull request pages on github.com by hostname
// and on Enterprise Server instances by page markers.
type Detector struct{}

// NewDetector creates a GitHub page detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Platform implements platform.Detector.
func (d *Detector) Platform() platform.Platform {
	return platform.PlatformGitHub
}

// IsReviewPage implements platform.Detector.
func (d *Detector) IsReviewPage(page platform.PageContext) bool {
	if !isGitHubHost(page) {
		return false
	}
	_, err := ParsePullRequestPath(page.Path)
	return err == nil
}

func isGitHubHost(page platform.PageContext) bool {
	if page.Hostname == HostGitHub || strings.HasSuffix(page.Hostname, "."+HostGitHub) {
		return true
	}
	// Enterprise Server sits on arbitrary domains but stamps its pages.
	return strings.Contains(strings.ToLower(page.MetaGenerator), "github")
}

// Detect implements platform.Detector.
func (d *Detector) Detect(page platform.PageContext) (*platform.DetectionResult, error) {
	parsed, err := ParsePullRequestPath(page.Path)
	if err != nil {
		return nil, err
	}

	result := &platform.DetectionResult{
		Platform:  platform.PlatformGitHub,
		PageType:  platform.PageTypePullRequest,
		Supported: true,
		Identity: &platform.Identity{
			Platform:      platform.PlatformGitHub,
			Organization:  parsed.Owner,
			Repository:    parsed.Repository,
			PullRequestID: parsed.PullRequestID,
		},
	}

	// Page titles look like "Title by author · Pull Request #5 · owner/repo".
	if idx := strings.Index(page.Title, " · "); idx > 0 {
		if title := strings.TrimSpace(page.Title[:idx]); title != "" {
			result.Metadata = &platform.Metadata{Title: title}
		}
	}

	return result, nil
}
