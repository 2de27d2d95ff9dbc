package gitlab

import (
	"testing"

	"github.com/difflens/difflens/internal/platform"
)

func TestDetectorIsReviewPage(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name      string
		url       string
		generator string
		want      bool
	}{
		{
			name: "gitlab.com merge request",
			url:  "https://gitlab.com/acme/widgets/-/merge_requests/12",
			want: true,
		},
		{
			name: "gitlab.com issue",
			url:  "https://gitlab.com/acme/widgets/-/issues/12",
			want: false,
		},
		{
			name:      "self-managed with generator meta",
			url:       "https://git.example.com/acme/widgets/-/merge_requests/12",
			generator: "GitLab 17.4",
			want:      true,
		},
		{
			name: "self-managed hostname hint",
			url:  "https://gitlab.internal.example.com/acme/widgets/-/merge_requests/12",
			want: true,
		},
		{
			name: "unmarked foreign host",
			url:  "https://code.example.com/acme/widgets/-/merge_requests/12",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := platform.NewPageContext(tt.url)
			if err != nil {
				t.Fatalf("NewPageContext: %v", err)
			}
			page.MetaGenerator = tt.generator
			if got := d.IsReviewPage(page); got != tt.want {
				t.Errorf("IsReviewPage(%s) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestDetectorDetect(t *testing.T) {
	d := NewDetector()
	page, err := platform.NewPageContext("https://gitlab.com/acme/platform/widgets/-/merge_requests/12/diffs")
	if err != nil {
		t.Fatalf("NewPageContext: %v", err)
	}
	page.Title = "Add request tracing (!12) · Merge requests · acme/platform/widgets"

	result, err := d.Detect(page)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	want := platform.Identity{
		Platform:      platform.PlatformGitLab,
		Organization:  "acme/platform",
		Repository:    "widgets",
		PullRequestID: 12,
	}
	if *result.Identity != want {
		t.Errorf("identity = %+v, want %+v", *result.Identity, want)
	}
	if result.Metadata == nil || result.Metadata.Title != "Add request tracing" {
		t.Errorf("metadata = %+v", result.Metadata)
	}
}
