package github

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/go-github/v75/github"
	"github.com/shurcooL/githubv4"

	"github.com/difflens/difflens/internal/platform"
)

// reviewThreadsQuery pages through the PR's review threads. Threads carry
// the file anchor and resolution state that the REST comment listing
// does not expose.
type reviewThreadsQuery struct {
	Repository struct {
		PullRequest struct {
			ReviewThreads struct {
				Nodes []struct {
					IsResolved githubv4.Boolean
					Path       githubv4.String
					Line       *githubv4.Int
					Comments   struct {
						Nodes []struct {
							DatabaseID githubv4.Int
							Author     struct {
								Login githubv4.String
							}
							Body      githubv4.String
							CreatedAt githubv4.DateTime
						}
					} `graphql:"comments(first: 100)"`
				}
				PageInfo struct {
					HasNextPage githubv4.Boolean
					EndCursor   githubv4.String
				}
			} `graphql:"reviewThreads(first: 50, after: $cursor)"`
		} `graphql:"pullRequest(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// FetchConversation returns the issue-level discussion and every review
// thread comment, flattened and ordered by creation time.
func (c *Client) FetchConversation(ctx context.Context) ([]platform.Comment, error) {
	var comments []platform.Comment

	issueComments, err := c.fetchIssueComments(ctx)
	if err != nil {
		return nil, err
	}
	comments = append(comments, issueComments...)

	threadComments, err := c.fetchReviewThreads(ctx)
	if err != nil {
		return nil, err
	}
	comments = append(comments, threadComments...)

	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

func (c *Client) fetchIssueComments(ctx context.Context) ([]platform.Comment, error) {
	var comments []platform.Comment
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		page, resp, err := c.rest.Issues.ListComments(ctx, c.parsed.Owner, c.parsed.Repository,
			c.parsed.PullRequestID, opts)
		if err != nil {
			return nil, wrapError(err, http.MethodGet, "issue comments")
		}
		for _, ic := range page {
			comments = append(comments, platform.Comment{
				ID:        fmt.Sprintf("%d", ic.GetID()),
				Author:    ic.GetUser().GetLogin(),
				Body:      ic.GetBody(),
				CreatedAt: ic.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return comments, nil
}

func (c *Client) fetchReviewThreads(ctx context.Context) ([]platform.Comment, error) {
	var comments []platform.Comment
	variables := map[string]interface{}{
		"owner":  githubv4.String(c.parsed.Owner),
		"name":   githubv4.String(c.parsed.Repository),
		"number": githubv4.Int(c.parsed.PullRequestID),
		"cursor": (*githubv4.String)(nil),
	}

	for {
		var query reviewThreadsQuery
		if err := c.graphql.Query(ctx, &query, variables); err != nil {
			return nil, fmt.Errorf("failed to fetch review threads: %w", err)
		}

		threads := query.Repository.PullRequest.ReviewThreads
		for _, thread := range threads.Nodes {
			line := 0
			if thread.Line != nil {
				line = int(*thread.Line)
			}
			var parentID string
			for i, node := range thread.Comments.Nodes {
				comment := platform.Comment{
					ID:        fmt.Sprintf("%d", node.DatabaseID),
					Author:    string(node.Author.Login),
					Body:      string(node.Body),
					FilePath:  string(thread.Path),
					Line:      line,
					CreatedAt: node.CreatedAt.Time,
				}
				if i > 0 {
					comment.ParentID = parentID
				} else {
					parentID = comment.ID
				}
				comments = append(comments, comment)
			}
		}

		if !threads.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(threads.PageInfo.EndCursor)
	}
	return comments, nil
}
