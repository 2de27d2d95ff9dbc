package gitlab

import (
	"strings"

	"github.com/difflens/difflens/internal/platform"
)

// Detector recognizes GitLab merge request pages. Self-managed instances
// live on arbitrary hostnames and their URLs are the least distinctive of
// any platform, so this detector relies on page markers and must run
// after the others.
type Detector struct{}

// NewDetector creates a GitLab page detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Platform implements platform.Detector.
func (d *Detector) Platform() platform.Platform {
	return platform.PlatformGitLab
}

// IsReviewPage implements platform.Detector.
func (d *Detector) IsReviewPage(page platform.PageContext) bool {
	if !isGitLabHost(page) {
		return false
	}
	_, err := ParseMergeRequestPath(page.Path)
	return err == nil
}

func isGitLabHost(page platform.PageContext) bool {
	if page.Hostname == HostGitLab || strings.HasSuffix(page.Hostname, "."+HostGitLab) {
		return true
	}
	if strings.Contains(strings.ToLower(page.MetaGenerator), "gitlab") {
		return true
	}
	// Self-managed pages tag the body with the page controller.
	return page.HasBodyClass("gl-dark") || page.HasBodyClass("page-initialised") ||
		strings.Contains(strings.ToLower(page.Hostname), "gitlab")
}

// Detect implements platform.Detector.
func (d *Detector) Detect(page platform.PageContext) (*platform.DetectionResult, error) {
	parsed, err := ParseMergeRequestPath(page.Path)
	if err != nil {
		return nil, err
	}

	result := &platform.DetectionResult{
		Platform:  platform.PlatformGitLab,
		PageType:  platform.PageTypePullRequest,
		Supported: true,
		Identity: &platform.Identity{
			Platform:      platform.PlatformGitLab,
			Organization:  parsed.Namespace,
			Repository:    parsed.Repository,
			PullRequestID: parsed.MergeRequestIID,
		},
	}

	// Page titles look like "Title (!12) · Merge requests · ns/project".
	if idx := strings.Index(page.Title, " ("); idx > 0 {
		if title := strings.TrimSpace(page.Title[:idx]); title != "" {
			result.Metadata = &platform.Metadata{Title: title}
		}
	}

	return result, nil
}
