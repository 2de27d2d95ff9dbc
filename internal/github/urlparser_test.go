package github

import "testing"

func TestParsePullRequestPath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    ParsedPR
		wantErr bool
	}{
		{
			name: "plain pull request",
			path: "/octo/widgets/pull/42",
			want: ParsedPR{Owner: "octo", Repository: "widgets", PullRequestID: 42},
		},
		{
			name: "files tab suffix",
			path: "/octo/widgets/pull/42/files",
			want: ParsedPR{Owner: "octo", Repository: "widgets", PullRequestID: 42},
		},
		{
			name: "commits tab suffix",
			path: "/octo/widgets/pull/42/commits/abc123",
			want: ParsedPR{Owner: "octo", Repository: "widgets", PullRequestID: 42},
		},
		{
			name:    "issue page",
			path:    "/octo/widgets/issues/42",
			wantErr: true,
		},
		{
			name:    "repository root",
			path:    "/octo/widgets",
			wantErr: true,
		},
		{
			name:    "pull list page",
			path:    "/octo/widgets/pulls",
			wantErr: true,
		},
		{
			name:    "non-numeric number",
			path:    "/octo/widgets/pull/new",
			wantErr: true,
		},
		{
			name:    "zero number",
			path:    "/octo/widgets/pull/0",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePullRequestPath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %+v", tt.path, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *got != tt.want {
				t.Errorf("got %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestDiffURL(t *testing.T) {
	pr := &ParsedPR{Owner: "octo", Repository: "widgets", PullRequestID: 42}

	got := DiffURL("https://github.com", pr)
	want := "https://github.com/octo/widgets/pull/42.diff"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got = DiffURL("https://ghe.example.com/", pr)
	want = "https://ghe.example.com/octo/widgets/pull/42.diff"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
