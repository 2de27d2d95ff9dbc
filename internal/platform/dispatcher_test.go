package platform

import (
	"log/slog"
	"testing"
)

type fakeDetector struct {
	platform Platform
	claims   bool
	calls    *[]Platform
}

func (d *fakeDetector) Platform() Platform { return d.platform }

func (d *fakeDetector) IsReviewPage(page PageContext) bool {
	*d.calls = append(*d.calls, d.platform)
	return d.claims
}

func (d *fakeDetector) Detect(page PageContext) (*DetectionResult, error) {
	return &DetectionResult{
		Platform:  d.platform,
		PageType:  PageTypePullRequest,
		Supported: true,
		Identity:  &Identity{Platform: d.platform, Organization: "o", Repository: "r", PullRequestID: 1},
	}, nil
}

func testPage(t *testing.T) PageContext {
	t.Helper()
	page, err := NewPageContext("https://example.com/some/page")
	if err != nil {
		t.Fatal(err)
	}
	return page
}

func TestDispatcherFirstClaimWins(t *testing.T) {
	var calls []Platform
	d := NewDispatcher(slog.New(slog.DiscardHandler),
		&fakeDetector{platform: PlatformAzureDevOps, claims: false, calls: &calls},
		&fakeDetector{platform: PlatformGitHub, claims: true, calls: &calls},
		&fakeDetector{platform: PlatformBitbucket, claims: true, calls: &calls},
	)

	result, err := d.Detect(testPage(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Platform != PlatformGitHub {
		t.Errorf("expected the first claiming detector to win, got %s", result.Platform)
	}

	// Detectors are consulted strictly in order; once one claims the page
	// the rest are never asked.
	want := []Platform{PlatformAzureDevOps, PlatformGitHub}
	if len(calls) != len(want) {
		t.Fatalf("expected %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], calls[i])
		}
	}
}

func TestDispatcherUnclaimedPage(t *testing.T) {
	var calls []Platform
	d := NewDispatcher(slog.New(slog.DiscardHandler),
		&fakeDetector{platform: PlatformGitHub, claims: false, calls: &calls},
		&fakeDetector{platform: PlatformGitLab, claims: false, calls: &calls},
	)

	result, err := d.Detect(testPage(t))
	if err != nil {
		t.Fatalf("an unclaimed page is not an error: %v", err)
	}
	if result.Supported || result.PageType != PageTypeOther {
		t.Errorf("expected unsupported other-page result, got %+v", result)
	}
}

func TestDispatcherIdentify(t *testing.T) {
	var calls []Platform
	d := NewDispatcher(slog.New(slog.DiscardHandler),
		&fakeDetector{platform: PlatformGitHub, claims: true, calls: &calls},
	)

	identity, err := d.Identify(testPage(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.Platform != PlatformGitHub {
		t.Errorf("unexpected identity %+v", identity)
	}

	empty := NewDispatcher(slog.New(slog.DiscardHandler))
	if _, err := empty.Identify(testPage(t)); err == nil {
		t.Error("expected an error for an unclaimed page")
	}
}
