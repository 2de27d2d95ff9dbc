// Package bitbucket implements review page detection and content
// retrieval for Bitbucket Cloud.
package bitbucket

import (
	"fmt"
	"strconv"
	"strings"
)

// Host constants for Bitbucket
const (
	HostBitbucket = "bitbucket.org"

	// APIBaseURL is the Bitbucket Cloud REST root
	APIBaseURL = "https://api.bitbucket.org/2.0"

	// PullRequestSegment is the URL path segment that precedes the PR id
	PullRequestSegment = "pull-requests"
)

// ParsedPR contains the review coordinates extracted from a Bitbucket
// pull request URL. ProjectKey stays empty on the plain two-segment
// shape.
type ParsedPR struct {
	Workspace     string
	ProjectKey    string
	Repository    string
	PullRequestID int
}

// ParsePullRequestPath extracts review coordinates from a pull request
// page path: /{workspace}/{repo}/pull-requests/{id} or
// /{workspace}/{projectKey}/{repo}/pull-requests/{id}, with any trailing
// sub-path (diff, commits, activity) tolerated.
func ParsePullRequestPath(path string) (*ParsedPR, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	prIndex := -1
	for i, seg := range segments {
		if seg == PullRequestSegment {
			prIndex = i
			break
		}
	}
	if prIndex < 2 || prIndex > 3 || prIndex+1 >= len(segments) {
		return nil, fmt.Errorf("path %q is not a pull request URL", path)
	}

	id, err := strconv.Atoi(segments[prIndex+1])
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid pull request id %q in path %q", segments[prIndex+1], path)
	}

	parsed := &ParsedPR{
		Workspace:     segments[0],
		Repository:    segments[prIndex-1],
		PullRequestID: id,
	}
	if prIndex == 3 {
		parsed.ProjectKey = segments[1]
	}
	return parsed, nil
}
