// Package azuredevops implements review page detection and content
// retrieval for Azure DevOps Services, legacy visualstudio.com tenants,
// and on-premises Azure DevOps Server / TFS installations.
package azuredevops

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Host constants for Azure DevOps
const (
	HostDevAzure       = "dev.azure.com"
	SuffixVisualStudio = ".visualstudio.com"

	// GitPathSegment is the URL path segment that identifies a Git repository in ADO URLs
	GitPathSegment = "_git"

	// PullRequestSegment is the URL path segment that precedes the PR number
	PullRequestSegment = "pullrequest"

	// legacyCollectionSegment shows up in older visualstudio.com URLs and
	// carries no addressing information.
	legacyCollectionSegment = "defaultcollection"
)

// ParsedPR contains the review coordinates extracted from an Azure DevOps
// pull request URL. Project stays empty for project-less URL shapes; the
// client resolves it lazily against the collection.
type ParsedPR struct {
	Organization  string // organization, or collection name on-premises
	Project       string // team project, empty when the URL omits it
	Repository    string
	PullRequestID int
	Hostname      string
}

// IsADOHost checks if a host is an Azure DevOps host.
func IsADOHost(host string) bool {
	return host == HostDevAzure || strings.HasSuffix(host, SuffixVisualStudio)
}

// ParsePullRequestPath extracts review coordinates from an Azure DevOps
// pull request page URL. It supports:
//   - https://dev.azure.com/{org}/{project}/_git/{repo}/pullrequest/{id}
//   - https://dev.azure.com/{org}/_git/{repo}/pullrequest/{id}
//   - https://dev.azure.com/{org}/{project}/{team}/_git/{repo}/pullrequest/{id}
//   - https://{org}.visualstudio.com/{project}/_git/{repo}/pullrequest/{id}
//   - on-premises: https://{host}/{collection}/{project}/_git/{repo}/pullrequest/{id}
//
// Team URLs carry the team between project and _git; the project is always
// the first segment after the organization. Legacy DefaultCollection
// segments on visualstudio.com are skipped.
func ParsePullRequestPath(hostname, path string) (*ParsedPR, error) {
	segments, err := splitPathSegments(path)
	if err != nil {
		return nil, err
	}

	gitIdx := -1
	for i, s := range segments {
		if s == GitPathSegment {
			gitIdx = i
			break
		}
	}
	if gitIdx == -1 {
		return nil, fmt.Errorf("no %s segment in path %q", GitPathSegment, path)
	}
	if gitIdx+3 > len(segments)-1 {
		return nil, fmt.Errorf("path %q is not a pull request URL", path)
	}
	if !strings.EqualFold(segments[gitIdx+2], PullRequestSegment) {
		return nil, fmt.Errorf("path %q is not a pull request URL", path)
	}

	prID, err := strconv.Atoi(segments[gitIdx+3])
	if err != nil || prID <= 0 {
		return nil, fmt.Errorf("invalid pull request id %q in path %q", segments[gitIdx+3], path)
	}

	parsed := &ParsedPR{
		Repository:    segments[gitIdx+1],
		PullRequestID: prID,
		Hostname:      hostname,
	}

	// Everything before _git addresses org and project. On the legacy
	// {org}.visualstudio.com hosts the org lives in the hostname.
	prefix := segments[:gitIdx]
	if strings.HasSuffix(hostname, SuffixVisualStudio) {
		parsed.Organization = strings.TrimSuffix(hostname, SuffixVisualStudio)
		if len(prefix) > 0 && strings.EqualFold(prefix[0], legacyCollectionSegment) {
			prefix = prefix[1:]
		}
	} else {
		if len(prefix) == 0 {
			return nil, fmt.Errorf("no organization in path %q", path)
		}
		parsed.Organization = prefix[0]
		prefix = prefix[1:]
	}

	switch len(prefix) {
	case 0:
		// Project-less URL; the client resolves the project later.
	case 1:
		parsed.Project = prefix[0]
	case 2:
		// Team URL {project}/{team}: the project is the first segment,
		// the team is routing noise.
		parsed.Project = prefix[0]
	default:
		return nil, fmt.Errorf("unrecognized path shape %q", path)
	}

	return parsed, nil
}

func splitPathSegments(path string) ([]string, error) {
	raw := strings.Split(strings.Trim(path, "/"), "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			continue
		}
		decoded, err := url.PathUnescape(s)
		if err != nil {
			return nil, fmt.Errorf("invalid path segment %q: %w", s, err)
		}
		segments = append(segments, decoded)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("empty path")
	}
	return segments, nil
}

// BaseURL computes the REST API base for an organization, in precedence
// order: a visualstudio.com hostname wins outright, then an organization
// that is itself a visualstudio.com host, then any other hostname treated
// as an on-premises server keeping the page's protocol, and finally the
// dev.azure.com cloud default.
func BaseURL(hostname, organization, pageProtocol string) string {
	if pageProtocol == "" {
		pageProtocol = "https:"
	}
	switch {
	case strings.Contains(hostname, "visualstudio.com"):
		return "https://" + hostname
	case strings.Contains(organization, "visualstudio.com"):
		return "https://" + organization
	case hostname != "" && hostname != HostDevAzure:
		return fmt.Sprintf("%s//%s/%s", pageProtocol, hostname, organization)
	default:
		return "https://" + HostDevAzure + "/" + organization
	}
}
