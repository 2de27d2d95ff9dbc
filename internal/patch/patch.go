// Package patch defines the platform-neutral representation of a pull
// request's code changes and the tooling that produces it: a unified diff
// parser, a local diff synthesizer, and the normalizer that assembles the
// final patch document.
package patch

import "time"

// ChangeType classifies what happened to a file in a pull request.
type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeEdit   ChangeType = "edit"
	ChangeDelete ChangeType = "delete"
	ChangeRename ChangeType = "rename"
)

// FileChange is one file's contribution to a pull request, with its diff
// in unified format.
type FileChange struct {
	Path         string     `json:"path"`
	PreviousPath string     `json:"previous_path,omitempty"`
	ChangeType   ChangeType `json:"change_type"`
	LinesAdded   int        `json:"lines_added"`
	LinesRemoved int        `json:"lines_removed"`
	Diff         string     `json:"diff"`
}

// Provenance records where a patch came from and the review summary at
// fetch time. It feeds the human-readable header of a NormalizedPatch.
type Provenance struct {
	Platform      string    `json:"platform"`
	Organization  string    `json:"organization"`
	Project       string    `json:"project,omitempty"`
	Repository    string    `json:"repository"`
	PullRequestID int       `json:"pull_request_id"`
	Title         string    `json:"title,omitempty"`
	Author        string    `json:"author,omitempty"`
	SourceBranch  string    `json:"source_branch,omitempty"`
	TargetBranch  string    `json:"target_branch,omitempty"`
	Status        string    `json:"status,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	CommitCount   int       `json:"commit_count,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// NormalizedPatch is the platform-neutral output every client produces:
// a provenance header, per-file changes, and the total changed line count.
type NormalizedPatch struct {
	Header     string       `json:"header"`
	Files      []FileChange `json:"files"`
	TotalLines int          `json:"total_lines"`
	Provenance Provenance   `json:"provenance"`
}
