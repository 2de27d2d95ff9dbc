package patch

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func testProvenance() Provenance {
	return Provenance{
		Platform:      "azure-devops",
		Organization:  "fabrikam",
		Project:       "Fiber",
		Repository:    "fiber-api",
		PullRequestID: 42,
		Title:         "Add request tracing",
		Author:        "Jamie Doe",
		SourceBranch:  "feature/tracing",
		TargetBranch:  "main",
		Status:        "active",
		CreatedAt:     time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC),
		CommitCount:   3,
		FetchedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func discardNormalizer() *Normalizer {
	return NewNormalizer(slog.New(slog.DiscardHandler))
}

func TestNormalize(t *testing.T) {
	files := []RawFile{
		{
			Path:       "svc/handler.go",
			ChangeType: ChangeEdit,
			Diff:       "--- a/svc/handler.go\n+++ b/svc/handler.go\n@@ -1,2 +1,3 @@\n context\n-old\n+new\n+extra\n",
		},
		{
			Path:       "svc/new.go",
			ChangeType: ChangeAdd,
			Diff:       "--- /dev/null\n+++ b/svc/new.go\n@@ -0,0 +1,2 @@\n+package svc\n+\n",
		},
	}

	p := discardNormalizer().Normalize(testProvenance(), files)

	if len(p.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(p.Files))
	}
	if p.Files[0].LinesAdded != 2 || p.Files[0].LinesRemoved != 1 {
		t.Errorf("first file: expected 2/1, got %d/%d", p.Files[0].LinesAdded, p.Files[0].LinesRemoved)
	}
	if p.Files[1].LinesAdded != 2 || p.Files[1].LinesRemoved != 0 {
		t.Errorf("second file: expected 2/0, got %d/%d", p.Files[1].LinesAdded, p.Files[1].LinesRemoved)
	}
	if p.TotalLines != 5 {
		t.Errorf("expected total 5 changed lines, got %d", p.TotalLines)
	}
}

func TestNormalizeExcludesBinaryAndOversize(t *testing.T) {
	big := strings.Repeat("+x\n", MaxFileDiffBytes/3+1)
	files := []RawFile{
		{Path: "assets/logo.png", ChangeType: ChangeEdit, Diff: "Binary files differ"},
		{Path: "data/blob.dat", ChangeType: ChangeEdit, Binary: true, Diff: "GIT binary patch"},
		{Path: "gen/huge.go", ChangeType: ChangeEdit, Diff: big},
		{Path: "main.go", ChangeType: ChangeEdit, Diff: "+kept\n"},
	}

	p := discardNormalizer().Normalize(testProvenance(), files)

	if len(p.Files) != 1 {
		t.Fatalf("expected 1 surviving file, got %d", len(p.Files))
	}
	if p.Files[0].Path != "main.go" {
		t.Errorf("expected main.go to survive, got %s", p.Files[0].Path)
	}
	if p.TotalLines != 1 {
		t.Errorf("expected total 1, got %d", p.TotalLines)
	}
}

func TestNormalizeSkipsBrokenFileAndContinues(t *testing.T) {
	files := []RawFile{
		{Path: "", ChangeType: ChangeEdit, Diff: "+orphan\n"},
		{Path: "ok.go", ChangeType: ChangeEdit, Diff: "+fine\n"},
	}

	p := discardNormalizer().Normalize(testProvenance(), files)
	if len(p.Files) != 1 || p.Files[0].Path != "ok.go" {
		t.Fatalf("expected only ok.go to survive, got %+v", p.Files)
	}
}

func TestNormalizeHeader(t *testing.T) {
	p := discardNormalizer().Normalize(testProvenance(), []RawFile{
		{Path: "a.go", ChangeType: ChangeEdit, Diff: "+one\n-two\n"},
	})

	for _, want := range []string{
		"Pull Request #42: Add request tracing",
		"Platform: azure-devops",
		"Repository: fabrikam/Fiber/fiber-api",
		"Branches: feature/tracing -> main",
		"Created: 2026-02-10T09:30:00Z",
		"Commits: 3",
		"Fetched: 2026-03-01T12:00:00Z",
		"Files: 1, changed lines: 2",
	} {
		if !strings.Contains(p.Header, want) {
			t.Errorf("header missing %q:\n%s", want, p.Header)
		}
	}
}

func TestIsBinaryPath(t *testing.T) {
	tests := []struct {
		path   string
		binary bool
	}{
		{"docs/logo.png", true},
		{"fonts/inter.woff2", true},
		{"vendor/lib.jar", true},
		{"src/main.go", false},
		{"README.md", false},
		{"Makefile", false},
	}
	for _, tt := range tests {
		if got := isBinaryPath(tt.path); got != tt.binary {
			t.Errorf("isBinaryPath(%q) = %v, want %v", tt.path, got, tt.binary)
		}
	}
}
