package azuredevops

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/difflens/difflens/internal/patch"
	"github.com/difflens/difflens/internal/platform"
)

// maxChangedFiles caps how many change entries a diff request asks for.
const maxChangedFiles = 1000

// Version descriptor types the items endpoint understands.
const (
	versionTypeCommit = "commit"
	versionTypeBranch = "branch"
)

// fileVersions names the two versions a change entry is diffed between
// and how the items endpoint should interpret them. The branch-typed form
// carries ref names instead of SHAs.
type fileVersions struct {
	base        string
	target      string
	versionType string
}

// change is the version-neutral form all three retrieval tiers reduce
// their payloads to before per-file diff sourcing. previousPath is set
// for renames; base content lives at the old path there.
type change struct {
	path         string
	previousPath string
	changeType   patch.ChangeType
	inlineDiff   *inlineContent
}

// FetchCodeChanges retrieves the pull request's changed files and returns
// them as a normalized patch. Retrieval runs through three tiers tried
// strictly in order, each only after the previous one failed: commit-typed
// diffs, iteration changes, then branch-typed diffs.
func (c *Client) FetchCodeChanges(ctx context.Context) (*patch.NormalizedPatch, error) {
	pr, err := c.getPullRequest(ctx)
	if err != nil {
		return nil, err
	}

	versions := fileVersions{
		base:        pr.LastMergeTargetCommit.CommitID,
		target:      pr.LastMergeSourceCommit.CommitID,
		versionType: versionTypeCommit,
	}

	changes, err := c.diffByCommits(ctx, versions)
	if err != nil {
		c.logger.Warn("commit diff retrieval failed, trying iteration changes", "error", err)
		var iterVersions fileVersions
		changes, iterVersions, err = c.iterationChanges(ctx, pr.PullRequestID)
		if err == nil && iterVersions.base != "" && iterVersions.target != "" {
			versions = iterVersions
		}
	}
	if err != nil {
		c.logger.Warn("iteration change retrieval failed, trying branch diff", "error", err)
		changes, err = c.diffByBranches(ctx, pr)
		if err == nil {
			// No commit pair survives on this server; per-file content
			// has to come from the same refs the diff did.
			versions = fileVersions{
				base:        shortRefName(pr.TargetRefName),
				target:      shortRefName(pr.SourceRefName),
				versionType: versionTypeBranch,
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("all diff retrieval strategies failed: %w", err)
	}

	files := make([]patch.RawFile, 0, len(changes))
	for _, ch := range changes {
		diff, err := c.fileDiff(ctx, ch, versions)
		if err != nil {
			c.logger.Warn("failed to build file diff", "path", ch.path, "error", err)
			continue
		}
		files = append(files, patch.RawFile{
			Path:         strings.TrimPrefix(ch.path, "/"),
			PreviousPath: strings.TrimPrefix(ch.previousPath, "/"),
			ChangeType:   ch.changeType,
			Diff:         diff,
		})
	}

	commitCount, err := c.commitCount(ctx)
	if err != nil {
		c.logger.Warn("failed to count pull request commits", "error", err)
	}

	prov := patch.Provenance{
		Platform:      string(platform.PlatformAzureDevOps),
		Organization:  c.identity.Organization,
		Project:       c.Identity().Project,
		Repository:    c.identity.Repository,
		PullRequestID: pr.PullRequestID,
		Title:         pr.Title,
		Author:        pr.CreatedBy.DisplayName,
		SourceBranch:  shortRefName(pr.SourceRefName),
		TargetBranch:  shortRefName(pr.TargetRefName),
		Status:        pr.Status,
		CreatedAt:     pr.CreationDate,
		CommitCount:   commitCount,
		FetchedAt:     time.Now().UTC(),
	}

	return c.normalizer.Normalize(prov, files), nil
}

// getPullRequest loads the pull request, resolving the project first when
// the page URL did not carry one.
func (c *Client) getPullRequest(ctx context.Context) (*pullRequest, error) {
	base, err := c.repoAPIBase(ctx)
	if err != nil {
		return nil, err
	}

	var pr pullRequest
	path := fmt.Sprintf("%s/pullRequests/%d", base, c.identity.PullRequestID)
	if err := c.getJSON(ctx, path, nil, &pr); err != nil {
		return nil, fmt.Errorf("failed to fetch pull request %d: %w", c.identity.PullRequestID, err)
	}
	return &pr, nil
}

// diffByCommits is tier one: the diffs/commits endpoint between the
// merge base and the latest source commit, both explicitly commit-typed.
func (c *Client) diffByCommits(ctx context.Context, versions fileVersions) ([]change, error) {
	if versions.base == "" || versions.target == "" {
		return nil, fmt.Errorf("pull request has no merge commit pair")
	}

	base, err := c.repoAPIBase(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"baseVersion":       {versions.base},
		"baseVersionType":   {versionTypeCommit},
		"targetVersion":     {versions.target},
		"targetVersionType": {versionTypeCommit},
		"$top":              {strconv.Itoa(maxChangedFiles)},
	}

	var diffs commitDiffs
	if err := c.getJSON(ctx, base+"/diffs/commits", query, &diffs); err != nil {
		return nil, err
	}
	return convertDiffChanges(diffs.Changes), nil
}

// iterationChanges is tier two: the latest iteration's change list. The
// iteration carries its own commit pair, which beats the pull request's
// when the latter is incomplete.
func (c *Client) iterationChanges(ctx context.Context, prID int) ([]change, fileVersions, error) {
	base, err := c.repoAPIBase(ctx)
	if err != nil {
		return nil, fileVersions{}, err
	}

	var iterations listResponse[iteration]
	iterPath := fmt.Sprintf("%s/pullRequests/%d/iterations", base, prID)
	if err := c.getJSON(ctx, iterPath, nil, &iterations); err != nil {
		return nil, fileVersions{}, err
	}
	if len(iterations.Value) == 0 {
		return nil, fileVersions{}, fmt.Errorf("pull request %d has no iterations", prID)
	}

	latest := iterations.Value[0]
	for _, it := range iterations.Value[1:] {
		if it.ID > latest.ID {
			latest = it
		}
	}

	var changes iterationChanges
	changesPath := fmt.Sprintf("%s/changes", iterPath+"/"+strconv.Itoa(latest.ID))
	query := url.Values{"$top": {strconv.Itoa(maxChangedFiles)}}
	if err := c.getJSON(ctx, changesPath, query, &changes); err != nil {
		return nil, fileVersions{}, err
	}

	out := make([]change, 0, len(changes.ChangeEntries))
	for _, entry := range changes.ChangeEntries {
		if entry.Item.IsFolder {
			continue
		}
		out = append(out, change{
			path:         entry.Item.Path,
			previousPath: entry.SourceServerItem,
			changeType:   convertChangeType(entry.ChangeType),
			inlineDiff:   entry.InlineDiff,
		})
	}

	iterBase := latest.CommonRefCommit.CommitID
	if iterBase == "" {
		iterBase = latest.TargetRefCommit.CommitID
	}
	versions := fileVersions{
		base:        iterBase,
		target:      latest.SourceRefCommit.CommitID,
		versionType: versionTypeCommit,
	}
	return out, versions, nil
}

// diffByBranches is tier three: a branch-typed diffs/commits request from
// the PR's declared ref names, for servers where no commit pair survives.
func (c *Client) diffByBranches(ctx context.Context, pr *pullRequest) ([]change, error) {
	source := shortRefName(pr.SourceRefName)
	target := shortRefName(pr.TargetRefName)
	if source == "" || target == "" {
		return nil, fmt.Errorf("pull request has no source/target refs")
	}

	base, err := c.repoAPIBase(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"baseVersion":       {target},
		"baseVersionType":   {versionTypeBranch},
		"targetVersion":     {source},
		"targetVersionType": {versionTypeBranch},
		"$top":              {strconv.Itoa(maxChangedFiles)},
	}

	var diffs commitDiffs
	if err := c.getJSON(ctx, base+"/diffs/commits", query, &diffs); err != nil {
		return nil, err
	}
	return convertDiffChanges(diffs.Changes), nil
}

// fileDiff sources one file's diff text: the inline base64 payload when
// the change entry carries one, otherwise the two file versions fetched
// separately and diffed locally. Added files never hit the base version;
// the file did not exist there and the request would 404.
func (c *Client) fileDiff(ctx context.Context, ch change, versions fileVersions) (string, error) {
	if ch.inlineDiff != nil && ch.inlineDiff.Content != "" {
		decoded, err := base64.StdEncoding.DecodeString(ch.inlineDiff.Content)
		if err != nil {
			return "", fmt.Errorf("failed to decode inline diff: %w", err)
		}
		return string(decoded), nil
	}

	path := strings.TrimPrefix(ch.path, "/")

	var target string
	var err error
	if ch.changeType != patch.ChangeDelete {
		target, err = c.fileContent(ctx, ch.path, versions.target, versions.versionType)
		if err != nil {
			return "", fmt.Errorf("failed to fetch target content: %w", err)
		}
	}

	// Renamed files live at the old path on the base side.
	basePath := ch.path
	if ch.previousPath != "" {
		basePath = ch.previousPath
	}

	var baseContent string
	if ch.changeType != patch.ChangeAdd {
		baseContent, err = c.fileContent(ctx, basePath, versions.base, versions.versionType)
		if err != nil {
			return "", fmt.Errorf("failed to fetch base content: %w", err)
		}
	}

	return patch.SynthesizeUnifiedDiff(path, baseContent, target, ch.changeType), nil
}

// fileContent fetches one file version via the items endpoint. version is
// a commit SHA or a branch name, matched by versionType.
func (c *Client) fileContent(ctx context.Context, itemPath, version, versionType string) (string, error) {
	if version == "" {
		return "", fmt.Errorf("no %s version to fetch %s from", versionType, itemPath)
	}

	base, err := c.repoAPIBase(ctx)
	if err != nil {
		return "", err
	}

	query := url.Values{
		"path":                          {itemPath},
		"versionDescriptor.version":     {version},
		"versionDescriptor.versionType": {versionType},
		"includeContent":                {"true"},
		"$format":                       {"text"},
	}
	return c.getText(ctx, base+"/items", query)
}

// commitCount counts the pull request's commits for the provenance
// header. Failures are reported, not fatal; the count is metadata.
func (c *Client) commitCount(ctx context.Context) (int, error) {
	base, err := c.repoAPIBase(ctx)
	if err != nil {
		return 0, err
	}

	var commits listResponse[commitRef]
	path := fmt.Sprintf("%s/pullRequests/%d/commits", base, c.identity.PullRequestID)
	if err := c.getJSON(ctx, path, nil, &commits); err != nil {
		return 0, err
	}
	if commits.Count > 0 {
		return commits.Count, nil
	}
	return len(commits.Value), nil
}

// FetchConversation retrieves the PR's comment threads flattened into a
// chronological list. System-generated entries (vote changes, ref
// updates) are dropped.
func (c *Client) FetchConversation(ctx context.Context) ([]platform.Comment, error) {
	base, err := c.repoAPIBase(ctx)
	if err != nil {
		return nil, err
	}

	var threads listResponse[commentThread]
	path := fmt.Sprintf("%s/pullRequests/%d/threads", base, c.identity.PullRequestID)
	if err := c.getJSON(ctx, path, nil, &threads); err != nil {
		return nil, fmt.Errorf("failed to fetch comment threads: %w", err)
	}

	var comments []platform.Comment
	for _, thread := range threads.Value {
		for _, tc := range thread.Comments {
			if tc.CommentType == "system" {
				continue
			}
			comment := platform.Comment{
				ID:        fmt.Sprintf("%d-%d", thread.ID, tc.ID),
				Author:    tc.Author.DisplayName,
				Body:      tc.Content,
				CreatedAt: tc.PublishedDate,
			}
			if tc.ParentCommentID > 0 {
				comment.ParentID = fmt.Sprintf("%d-%d", thread.ID, tc.ParentCommentID)
			}
			if thread.ThreadContext != nil {
				comment.FilePath = strings.TrimPrefix(thread.ThreadContext.FilePath, "/")
				if thread.ThreadContext.RightFileStart != nil {
					comment.Line = thread.ThreadContext.RightFileStart.Line
				}
			}
			comments = append(comments, comment)
		}
	}
	return comments, nil
}

// repoAPIBase builds the project-scoped repository API prefix, resolving
// the project first when needed.
func (c *Client) repoAPIBase(ctx context.Context) (string, error) {
	project, err := c.ensureProject(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/_apis/git/repositories/%s",
		c.baseURL, url.PathEscape(project), url.PathEscape(c.repositoryID())), nil
}

func convertDiffChanges(in []diffChange) []change {
	out := make([]change, 0, len(in))
	for _, dc := range in {
		if dc.Item.IsFolder || (dc.Item.GitObjectType != "" && dc.Item.GitObjectType != "blob") {
			continue
		}
		out = append(out, change{
			path:         dc.Item.Path,
			previousPath: dc.SourceServerItem,
			changeType:   convertChangeType(dc.ChangeType),
			inlineDiff:   dc.InlineDiff,
		})
	}
	return out
}

// convertChangeType maps Azure DevOps change kinds onto the normalized
// set. Composite kinds like "edit, rename" keep the rename.
func convertChangeType(adoType string) patch.ChangeType {
	t := strings.ToLower(adoType)
	switch {
	case strings.Contains(t, "rename"):
		return patch.ChangeRename
	case strings.Contains(t, "add"):
		return patch.ChangeAdd
	case strings.Contains(t, "delete"):
		return patch.ChangeDelete
	default:
		return patch.ChangeEdit
	}
}

func shortRefName(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}
