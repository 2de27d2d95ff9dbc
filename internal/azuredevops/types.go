package azuredevops

import "time"

// Wire types for the Azure DevOps REST API. Only the fields the fetch
// paths read are modeled; everything else in the payloads is ignored.

type listResponse[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

type teamProjectRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type gitRepository struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	RemoteURL string         `json:"remoteUrl"`
	Project   teamProjectRef `json:"project"`
}

type identityRef struct {
	DisplayName string `json:"displayName"`
	UniqueName  string `json:"uniqueName"`
}

type commitRef struct {
	CommitID string `json:"commitId"`
}

type pullRequest struct {
	PullRequestID         int         `json:"pullRequestId"`
	Title                 string      `json:"title"`
	Status                string      `json:"status"`
	CreatedBy             identityRef `json:"createdBy"`
	CreationDate          time.Time   `json:"creationDate"`
	SourceRefName         string      `json:"sourceRefName"`
	TargetRefName         string      `json:"targetRefName"`
	LastMergeSourceCommit commitRef   `json:"lastMergeSourceCommit"`
	LastMergeTargetCommit commitRef   `json:"lastMergeTargetCommit"`
	Repository            struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"repository"`
}

type gitItem struct {
	Path             string `json:"path"`
	GitObjectType    string `json:"gitObjectType"`
	IsFolder         bool   `json:"isFolder"`
	OriginalObjectID string `json:"originalObjectId"`
}

// inlineContent is a base64-encoded diff payload some server versions
// attach directly to a change entry.
type inlineContent struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

// diffChange is one entry of a diffs/commits response. SourceServerItem
// is the pre-rename path, populated for renames only.
type diffChange struct {
	ChangeType       string         `json:"changeType"`
	Item             gitItem        `json:"item"`
	SourceServerItem string         `json:"sourceServerItem"`
	InlineDiff       *inlineContent `json:"diff"`
}

type commitDiffs struct {
	Changes            []diffChange `json:"changes"`
	CommonCommit       string       `json:"commonCommit"`
	AheadCount         int          `json:"aheadCount"`
	BehindCount        int          `json:"behindCount"`
	AllChangesIncluded bool         `json:"allChangesIncluded"`
}

type iteration struct {
	ID              int       `json:"id"`
	SourceRefCommit commitRef `json:"sourceRefCommit"`
	TargetRefCommit commitRef `json:"targetRefCommit"`
	CommonRefCommit commitRef `json:"commonRefCommit"`
}

// iterationChange is one entry of an iteration changes response.
type iterationChange struct {
	ChangeID         int            `json:"changeId"`
	ChangeType       string         `json:"changeType"`
	Item             gitItem        `json:"item"`
	SourceServerItem string         `json:"sourceServerItem"`
	InlineDiff       *inlineContent `json:"diff"`
}

type iterationChanges struct {
	ChangeEntries []iterationChange `json:"changeEntries"`
}

type commentThread struct {
	ID            int             `json:"id"`
	Status        string          `json:"status"`
	Comments      []threadComment `json:"comments"`
	ThreadContext *struct {
		FilePath       string `json:"filePath"`
		RightFileStart *struct {
			Line int `json:"line"`
		} `json:"rightFileStart"`
	} `json:"threadContext"`
}

type threadComment struct {
	ID              int         `json:"id"`
	ParentCommentID int         `json:"parentCommentId"`
	Content         string      `json:"content"`
	CommentType     string      `json:"commentType"`
	Author          identityRef `json:"author"`
	PublishedDate   time.Time   `json:"publishedDate"`
}
