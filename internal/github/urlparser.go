// Package github implements review page detection and content retrieval
// for github.com and GitHub Enterprise Server.
package github

import (
	"fmt"
	"strconv"
	"strings"
)

// Host constants for GitHub
const (
	HostGitHub = "github.com"

	// PullPathSegment is the URL path segment that precedes the PR number
	PullPathSegment = "pull"
)

// ParsedPR contains the review coordinates extracted from a GitHub pull
// request URL.
type ParsedPR struct {
	Owner         string
	Repository    string
	PullRequestID int
}

// ParsePullRequestPath extracts review coordinates from a pull request
// page path: /{owner}/{repo}/pull/{number}, with any trailing sub-path
// (/files, /commits, /checks) tolerated. The identity always comes from
// the URL; nothing on the page overrides it.
func ParsePullRequestPath(path string) (*ParsedPR, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 4 || segments[2] != PullPathSegment {
		return nil, fmt.Errorf("path %q is not a pull request URL", path)
	}

	number, err := strconv.Atoi(segments[3])
	if err != nil || number <= 0 {
		return nil, fmt.Errorf("invalid pull request number %q in path %q", segments[3], path)
	}

	return &ParsedPR{
		Owner:         segments[0],
		Repository:    segments[1],
		PullRequestID: number,
	}, nil
}

// CanonicalPullRequestURL strips any sub-path suffix and rebuilds the
// canonical PR URL on the given web root.
func CanonicalPullRequestURL(webBase string, pr *ParsedPR) string {
	return fmt.Sprintf("%s/%s/%s/%s/%d",
		strings.TrimSuffix(webBase, "/"), pr.Owner, pr.Repository, PullPathSegment, pr.PullRequestID)
}

// DiffURL appends the .diff suffix to the canonical PR URL, which GitHub
// serves as a plain unified diff.
func DiffURL(webBase string, pr *ParsedPR) string {
	return CanonicalPullRequestURL(webBase, pr) + ".diff"
}
