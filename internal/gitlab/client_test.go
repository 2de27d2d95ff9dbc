package gitlab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/difflens/difflens/internal/platform"
)

const mergeRequestJSON = `{
	"iid": 12,
	"title": "Add request tracing",
	"state": "opened",
	"source_branch": "feature/tracing",
	"target_branch": "main",
	"created_at": "2026-08-01T10:00:00Z",
	"author": {"username": "jamie"}
}`

const diffsJSON = `[
	{
		"old_path": "main.go",
		"new_path": "main.go",
		"diff": "@@ -1,3 +1,4 @@\n package main\n+\n func main() {\n }\n",
		"new_file": false,
		"renamed_file": false,
		"deleted_file": false
	},
	{
		"old_path": "docs/old.md",
		"new_path": "docs/new.md",
		"diff": "@@ -1 +1 @@\n-old\n+new\n",
		"new_file": false,
		"renamed_file": true,
		"deleted_file": false
	}
]`

func testIdentity() platform.Identity {
	return platform.Identity{
		Platform:      platform.PlatformGitLab,
		Organization:  "acme",
		Repository:    "widgets",
		PullRequestID: 12,
	}
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		Identity: testIdentity(),
		Token:    "test-token",
		BaseURL:  server.URL,
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(ClientConfig{Identity: testIdentity()})
	if !errors.Is(err, platform.ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
}

func TestTestConnection(t *testing.T) {
	var gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/user" {
			t.Errorf("unexpected request path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		gotToken = r.Header.Get("Private-Token")
		fmt.Fprint(w, `{"username": "jamie"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	if err := client.TestConnection(context.Background()); err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
	if gotToken != "test-token" {
		t.Errorf("Private-Token = %q, want test token", gotToken)
	}
}

func TestFetchCodeChanges(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v4/projects/acme/widgets/merge_requests/12":
			fmt.Fprint(w, mergeRequestJSON)
		case "/api/v4/projects/acme/widgets/merge_requests/12/diffs":
			fmt.Fprint(w, diffsJSON)
		case "/api/v4/projects/acme/widgets/merge_requests/12/commits":
			w.Header().Set("X-Total", "4")
			fmt.Fprint(w, `[{"id": "aaa", "title": "Wire tracer"}]`)
		default:
			t.Errorf("unexpected request path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server)
	result, err := client.FetchCodeChanges(context.Background())
	if err != nil {
		t.Fatalf("FetchCodeChanges: %v", err)
	}

	if len(result.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(result.Files))
	}
	if result.Files[0].Path != "main.go" || result.Files[0].LinesAdded != 1 {
		t.Errorf("first file = %+v", result.Files[0])
	}
	renamed := result.Files[1]
	if renamed.ChangeType != "rename" || renamed.Path != "docs/new.md" || renamed.PreviousPath != "docs/old.md" {
		t.Errorf("renamed file = %+v", renamed)
	}
	if result.Provenance.SourceBranch != "feature/tracing" || result.Provenance.Author != "jamie" {
		t.Errorf("provenance = %+v", result.Provenance)
	}
	if result.Provenance.CommitCount != 4 {
		t.Errorf("CommitCount = %d, want the X-Total header value", result.Provenance.CommitCount)
	}
	if !strings.Contains(result.Header, "# Pull Request #12: Add request tracing") {
		t.Errorf("header missing provenance line:\n%s", result.Header)
	}
}

func TestFetchCodeChangesNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "404 Not Found"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.FetchCodeChanges(context.Background())
	if !platform.IsNotFoundError(err) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestFetchConversation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v4/projects/acme/widgets/merge_requests/12/notes" {
			t.Errorf("unexpected request path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `[
			{"id": 700, "body": "changed target branch", "system": true,
				"author": {"username": "jamie"}, "created_at": "2026-08-02T08:00:00Z"},
			{"id": 701, "body": "Looks good overall", "system": false,
				"author": {"username": "pat"}, "created_at": "2026-08-02T09:00:00Z"},
			{"id": 702, "body": "Missing error check", "system": false,
				"author": {"username": "pat"}, "created_at": "2026-08-02T10:00:00Z",
				"position": {"new_path": "main.go", "new_line": 3}}
		]`)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	comments, err := client.FetchConversation(context.Background())
	if err != nil {
		t.Fatalf("FetchConversation: %v", err)
	}

	if len(comments) != 2 {
		t.Fatalf("got %d comments, want 2 with system note dropped", len(comments))
	}
	if comments[0].ID != "701" || comments[0].FilePath != "" {
		t.Errorf("first comment = %+v", comments[0])
	}
	if comments[1].FilePath != "main.go" || comments[1].Line != 3 {
		t.Errorf("anchored comment = %+v", comments[1])
	}
}
