// Package gitlab implements review page detection and content retrieval
// for gitlab.com and self-managed GitLab instances.
package gitlab

import (
	"fmt"
	"strconv"
	"strings"
)

// Host constants for GitLab
const (
	HostGitLab = "gitlab.com"

	// MergeRequestSegment is the URL path segment that precedes the MR IID
	MergeRequestSegment = "merge_requests"
)

// ParsedMR contains the review coordinates extracted from a GitLab merge
// request URL. ProjectPath is the full namespace path the API addresses
// the project by, including any subgroups.
type ParsedMR struct {
	Namespace       string
	Repository      string
	ProjectPath     string
	MergeRequestIID int
}

// ParseMergeRequestPath extracts review coordinates from a merge request
// page path. The modern shape is
// /{namespace...}/{project}/-/merge_requests/{iid}; older instances omit
// the /-/ separator. Namespaces nest arbitrarily deep, so everything
// before the separator belongs to the project path.
func ParseMergeRequestPath(path string) (*ParsedMR, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")

	mrIdx := -1
	for i, seg := range segments {
		if seg == MergeRequestSegment {
			mrIdx = i
			break
		}
	}
	if mrIdx == -1 || mrIdx+1 >= len(segments) {
		return nil, fmt.Errorf("path %q is not a merge request URL", path)
	}

	iid, err := strconv.Atoi(segments[mrIdx+1])
	if err != nil || iid <= 0 {
		return nil, fmt.Errorf("invalid merge request iid %q in path %q", segments[mrIdx+1], path)
	}

	projectSegments := segments[:mrIdx]
	if len(projectSegments) > 0 && projectSegments[len(projectSegments)-1] == "-" {
		projectSegments = projectSegments[:len(projectSegments)-1]
	}
	if len(projectSegments) < 2 {
		return nil, fmt.Errorf("path %q has no project namespace", path)
	}

	return &ParsedMR{
		Namespace:       strings.Join(projectSegments[:len(projectSegments)-1], "/"),
		Repository:      projectSegments[len(projectSegments)-1],
		ProjectPath:     strings.Join(projectSegments, "/"),
		MergeRequestIID: iid,
	}, nil
}
