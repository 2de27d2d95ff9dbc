package azuredevops

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/difflens/difflens/internal/platform"
)

// newTestClient builds a client against an httptest server with the
// capability cache pre-seeded so no probe traffic hits the handler.
func newTestClient(t *testing.T, server *httptest.Server, identity platform.Identity) *Client {
	t.Helper()

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}

	store := newMemCapabilityStore()
	store.caps[server.URL] = &Capability{
		Origin:       server.URL,
		APIVersion:   "7.1",
		VersionLabel: "Azure DevOps Server 2022+",
		DetectedAt:   time.Now().UTC(),
	}

	client, err := NewClient(context.Background(), ClientConfig{
		Identity:     identity,
		Token:        "test-token",
		Hostname:     u.Host,
		PageProtocol: "http:",
		Prober:       NewProber(store, discardLogger()),
		Logger:       discardLogger(),
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func repoJSON(id, name, project, remoteURL string) string {
	return fmt.Sprintf(`{"id":%q,"name":%q,"remoteUrl":%q,"project":{"id":"pid","name":%q}}`,
		id, name, remoteURL, project)
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{
		Identity: platform.Identity{Organization: "org", Repository: "repo", PullRequestID: 1},
	})
	if err == nil || !errors.Is(err, platform.ErrAuthentication) {
		t.Errorf("expected authentication error for missing token, got %v", err)
	}

	_, err = NewClient(context.Background(), ClientConfig{
		Identity: platform.Identity{Organization: "org"},
		Token:    "tok",
	})
	if err == nil {
		t.Error("expected error for incomplete identity")
	}
}

func TestProjectResolutionSingleCollectionCall(t *testing.T) {
	var mu sync.Mutex
	collectionCalls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/fabrikam/_apis/git/repositories":
			mu.Lock()
			collectionCalls++
			mu.Unlock()
			fmt.Fprintf(w, `{"count":1,"value":[%s]}`,
				repoJSON("guid-1", "fiber-api", "Fiber", "http://example/fabrikam/_git/fiber-api"))
		case strings.Contains(r.URL.Path, "/Fiber/_apis/git/repositories/"):
			fmt.Fprint(w, repoJSON("guid-1", "fiber-api", "Fiber", "http://example/fabrikam/_git/fiber-api"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server, platform.Identity{
		Platform:      platform.PlatformAzureDevOps,
		Organization:  "fabrikam",
		Repository:    "fiber-api",
		PullRequestID: 812,
	})

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			project, err := client.ensureProject(context.Background())
			if err != nil {
				t.Errorf("ensureProject: %v", err)
				return
			}
			results[i] = project
		}(i)
	}
	wg.Wait()

	for _, project := range results {
		if project != "Fiber" {
			t.Errorf("expected project Fiber, got %q", project)
		}
	}

	mu.Lock()
	calls := collectionCalls
	mu.Unlock()
	if calls != 1 {
		t.Errorf("expected exactly 1 collection-level repository call, got %d", calls)
	}

	if got := client.Identity().Project; got != "Fiber" {
		t.Errorf("identity should carry the resolved project, got %q", got)
	}
}

func TestProjectResolutionDisambiguatesByRemoteURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fabrikam/_apis/git/repositories" {
			fmt.Fprintf(w, `{"count":2,"value":[%s,%s]}`,
				repoJSON("guid-a", "ledger", "Archive", "http://example/fabrikam/Archive/_git/ledger"),
				repoJSON("guid-b", "ledger", "Payments", "http://example/fabrikam/_git/ledger"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server, platform.Identity{
		Platform:      platform.PlatformAzureDevOps,
		Organization:  "fabrikam",
		Repository:    "ledger",
		PullRequestID: 3,
	})

	project, err := client.ensureProject(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if project != "Payments" {
		t.Errorf("expected the project-less remote URL to win, got %q", project)
	}
}

func TestProjectResolutionAmbiguousFailsLoud(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fabrikam/_apis/git/repositories" {
			fmt.Fprintf(w, `{"count":2,"value":[%s,%s]}`,
				repoJSON("guid-a", "ledger", "Archive", "http://example/fabrikam/Archive/_git/ledger"),
				repoJSON("guid-b", "ledger", "Payments", "http://example/fabrikam/Payments/_git/ledger"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server, platform.Identity{
		Platform:      platform.PlatformAzureDevOps,
		Organization:  "fabrikam",
		Repository:    "ledger",
		PullRequestID: 3,
	})

	_, err := client.ensureProject(context.Background())
	if err == nil {
		t.Fatal("expected ambiguous resolution to fail")
	}
	if !errors.Is(err, platform.ErrAmbiguous) {
		t.Errorf("expected ambiguous classification, got %v", err)
	}

	var ambiguous *platform.AmbiguousResolutionError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousResolutionError, got %T", err)
	}
	if len(ambiguous.Candidates) != 2 {
		t.Errorf("expected both candidate projects surfaced, got %v", ambiguous.Candidates)
	}
}

func TestRequestShape(t *testing.T) {
	var mu sync.Mutex
	var gotAuth, gotVersion string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fabrikam/_apis/projects" {
			mu.Lock()
			gotAuth = r.Header.Get("Authorization")
			gotVersion = r.URL.Query().Get("api-version")
			mu.Unlock()
			fmt.Fprint(w, `{"count":1,"value":[{"id":"p1","name":"Fiber"}]}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server, platform.Identity{
		Platform:      platform.PlatformAzureDevOps,
		Organization:  "fabrikam",
		Project:       "Fiber",
		Repository:    "fiber-api",
		PullRequestID: 812,
	})

	if err := client.TestConnection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte(":test-token"))
	if gotAuth != wantAuth {
		t.Errorf("expected %q, got %q", wantAuth, gotAuth)
	}
	if gotVersion != "7.1" {
		t.Errorf("expected api-version 7.1 on every request, got %q", gotVersion)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"bad token"}`, platform.ErrAuthentication},
		{"forbidden", http.StatusForbidden, `{"$id":"1","typeKey":"GitRepositoryNotFoundException","message":"denied"}`, platform.ErrAuthorization},
		{"not found", http.StatusNotFound, `{"message":"no such pr"}`, platform.ErrNotFound},
		{"server error", http.StatusBadGateway, "upstream sad", platform.ErrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(t, server, platform.Identity{
				Platform:      platform.PlatformAzureDevOps,
				Organization:  "fabrikam",
				Project:       "Fiber",
				Repository:    "fiber-api",
				PullRequestID: 812,
			})

			err := client.TestConnection(context.Background())
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("expected %v classification, got %v", tt.sentinel, err)
			}

			if tt.status == http.StatusForbidden {
				var authz *platform.AuthorizationError
				if !errors.As(err, &authz) {
					t.Fatalf("expected AuthorizationError, got %T", err)
				}
				if !strings.Contains(authz.Body, "GitRepositoryNotFoundException") {
					t.Errorf("403 must carry the raw denial body, got %q", authz.Body)
				}
			}
		})
	}
}
