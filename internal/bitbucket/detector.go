package bitbucket

import (
	"strings"

	"github.com/difflens/difflens/internal/platform"
)

// Detector recognizes Bitbucket Cloud pull request pages by hostname.
type Detector struct{}

// NewDetector creates a Bitbucket page detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Platform implements platform.Detector.
func (d *Detector) Platform() platform.Platform {
	return platform.PlatformBitbucket
}

// IsReviewPage implements platform.Detector.
func (d *Detector) IsReviewPage(page platform.PageContext) bool {
	if page.Hostname != HostBitbucket && !strings.HasSuffix(page.Hostname, "."+HostBitbucket) {
		return false
	}
	_, err := ParsePullRequestPath(page.Path)
	return err == nil
}

// Detect implements platform.Detector.
func (d *Detector) Detect(page platform.PageContext) (*platform.DetectionResult, error) {
	parsed, err := ParsePullRequestPath(page.Path)
	if err != nil {
		return nil, err
	}

	result := &platform.DetectionResult{
		Platform:  platform.PlatformBitbucket,
		PageType:  platform.PageTypePullRequest,
		Supported: true,
		Identity: &platform.Identity{
			Platform:      platform.PlatformBitbucket,
			Organization:  parsed.Workspace,
			Project:       parsed.ProjectKey,
			Repository:    parsed.Repository,
			PullRequestID: parsed.PullRequestID,
		},
	}

	// Page titles look like "workspace/repo: Title — Bitbucket".
	if idx := strings.Index(page.Title, ": "); idx > 0 {
		title := page.Title[idx+2:]
		if cut := strings.Index(title, " — "); cut > 0 {
			title = title[:cut]
		}
		if title = strings.TrimSpace(title); title != "" {
			result.Metadata = &platform.Metadata{Title: title}
		}
	}

	return result, nil
}
