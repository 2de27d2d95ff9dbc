package azuredevops

import (
	"strings"

	"github.com/difflens/difflens/internal/platform"
)

// Detector recognizes Azure DevOps pull request pages: the known cloud
// hosts by hostname alone, and any host whose URL carries the distinctive
// /_git/{repo}/pullrequest/{id} shape, which covers on-premises servers
// behind arbitrary domains.
type Detector struct{}

// NewDetector creates an Azure DevOps page detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Platform implements platform.Detector.
func (d *Detector) Platform() platform.Platform {
	return platform.PlatformAzureDevOps
}

// IsReviewPage implements platform.Detector.
func (d *Detector) IsReviewPage(page platform.PageContext) bool {
	if !IsADOHost(page.Hostname) && !hasADOMarkers(page) {
		return false
	}
	_, err := ParsePullRequestPath(page.Hostname, page.Path)
	return err == nil
}

// hasADOMarkers reports whether a non-cloud host looks like an Azure
// DevOps server from the page itself. The URL shape is the strongest
// signal; page markers only corroborate it.
func hasADOMarkers(page platform.PageContext) bool {
	if strings.Contains(page.Path, "/"+GitPathSegment+"/") &&
		strings.Contains(strings.ToLower(page.Path), "/"+PullRequestSegment+"/") {
		return true
	}
	return strings.Contains(strings.ToLower(page.MetaGenerator), "azure devops") ||
		strings.Contains(strings.ToLower(page.MetaGenerator), "team foundation")
}

// Detect implements platform.Detector.
func (d *Detector) Detect(page platform.PageContext) (*platform.DetectionResult, error) {
	parsed, err := ParsePullRequestPath(page.Hostname, page.Path)
	if err != nil {
		return nil, err
	}

	identity := &platform.Identity{
		Platform:      platform.PlatformAzureDevOps,
		Organization:  parsed.Organization,
		Project:       parsed.Project,
		Repository:    parsed.Repository,
		PullRequestID: parsed.PullRequestID,
	}

	result := &platform.DetectionResult{
		Platform:  platform.PlatformAzureDevOps,
		PageType:  platform.PageTypePullRequest,
		Supported: true,
		Identity:  identity,
	}

	// The page title carries the PR title ahead of the repo breadcrumb.
	if title := strings.TrimSpace(strings.SplitN(page.Title, " - ", 2)[0]); title != "" {
		result.Metadata = &platform.Metadata{Title: title}
	}

	return result, nil
}
