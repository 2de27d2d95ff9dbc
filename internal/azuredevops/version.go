package azuredevops

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/difflens/difflens/internal/platform"
)

// probeVersions are the API versions tried against an unknown server, in
// descending order. The probe stops at the first version the server
// accepts, or at the first 401.
var probeVersions = []string{"7.2", "7.1", "7.0", "6.0", "5.0", "4.1", "3.0"}

// versionLabels maps a detected API version to the product generation it
// implies.
var versionLabels = map[string]string{
	"7.2": "Azure DevOps Services",
	"7.1": "Azure DevOps Server 2022+",
	"7.0": "Azure DevOps Server 2022",
	"6.0": "Azure DevOps Server 2020",
	"5.0": "Azure DevOps Server 2019",
	"4.1": "TFS 2018",
	"3.0": "TFS 2017",
}

// VersionIndeterminate is the label recorded when a server authenticates
// the probe but answers every candidate version with an error.
const VersionIndeterminate = "indeterminate"

// probeTimeout bounds each probe request. Probes are diagnostics; content
// requests never get an artificial deadline like this.
const probeTimeout = 5 * time.Second

// Capability is what the prober learns about one server origin.
type Capability struct {
	Origin       string
	APIVersion   string
	VersionLabel string
	DetectedAt   time.Time
}

// Valid reports whether the capability is complete enough to skip a new
// probe. Indeterminate results are never cached as valid so the probe can
// try again once the server misbehaves less.
func (c *Capability) Valid() bool {
	return c != nil && c.Origin != "" && c.APIVersion != "" && c.VersionLabel != "" &&
		c.VersionLabel != VersionIndeterminate
}

// CapabilityStore persists capabilities per server origin.
type CapabilityStore interface {
	GetCapability(ctx context.Context, origin string) (*Capability, error)
	SaveCapability(ctx context.Context, cap *Capability) error
}

// RequestAPIVersion maps a detected server version to the version used on
// subsequent requests. 7.2 is preview-only on Services and is downgraded
// to 7.1; anything older than 4.1 is clamped up to 4.1, the oldest
// version the request paths are written against.
func RequestAPIVersion(detected string) string {
	switch detected {
	case "7.2":
		return "7.1"
	case "3.0":
		return "4.1"
	case "":
		return "7.1"
	default:
		return detected
	}
}

// Prober discovers which REST API version a server origin speaks, caching
// the answer per origin so repeat reviews against a known server cost
// zero probe requests.
type Prober struct {
	store      CapabilityStore
	httpClient *http.Client
	logger     *slog.Logger
}

// NewProber creates a Prober backed by the given store. A nil store
// disables caching but not probing.
func NewProber(store CapabilityStore, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		store:      store,
		httpClient: &http.Client{Timeout: probeTimeout},
		logger:     logger,
	}
}

// Detect returns the capability for baseURL's origin, probing the server
// only when no valid cached capability exists. The token authenticates
// probe requests; servers that reject anonymous probes with 401 yield an
// indeterminate capability rather than an error, since a 401 still proves
// there is an Azure DevOps endpoint listening.
func (p *Prober) Detect(ctx context.Context, baseURL, token string) (*Capability, error) {
	origin, err := originOf(baseURL)
	if err != nil {
		return nil, err
	}

	if p.store != nil {
		cached, err := p.store.GetCapability(ctx, origin)
		if err != nil {
			p.logger.Warn("capability cache read failed", "origin", origin, "error", err)
		} else if cached.Valid() {
			p.logger.Debug("using cached server capability",
				"origin", origin,
				"api_version", cached.APIVersion,
				"label", cached.VersionLabel)
			return cached, nil
		}
	}

	cap, err := p.probe(ctx, baseURL, origin, token)
	if err != nil {
		return nil, err
	}

	if p.store != nil && cap.Valid() {
		if err := p.store.SaveCapability(ctx, cap); err != nil {
			p.logger.Warn("capability cache write failed", "origin", origin, "error", err)
		}
	}

	return cap, nil
}

func (p *Prober) probe(ctx context.Context, baseURL, origin, token string) (*Capability, error) {
	for _, version := range probeVersions {
		probeURL := fmt.Sprintf("%s/_apis/projects?%s", baseURL, url.Values{
			"api-version": {version},
			"$top":        {"1"},
		}.Encode())

		status, err := p.probeOnce(ctx, probeURL, token)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Debug("version probe request failed", "origin", origin, "version", version, "error", err)
			continue
		}

		switch {
		case status == http.StatusOK:
			cap := &Capability{
				Origin:       origin,
				APIVersion:   version,
				VersionLabel: versionLabels[version],
				DetectedAt:   time.Now().UTC(),
			}
			p.logger.Info("detected server api version",
				"origin", origin,
				"api_version", cap.APIVersion,
				"label", cap.VersionLabel)
			return cap, nil
		case status == http.StatusUnauthorized:
			// The endpoint exists and wants credentials. Probing lower
			// versions would only repeat the same rejection, so stop
			// here with the version unknown.
			p.logger.Info("version probe unauthorized, server version indeterminate", "origin", origin)
			return &Capability{
				Origin:       origin,
				VersionLabel: VersionIndeterminate,
				DetectedAt:   time.Now().UTC(),
			}, nil
		default:
			p.logger.Debug("version probe rejected", "origin", origin, "version", version, "status", status)
		}
	}

	return nil, &platform.APIError{
		Platform: platform.PlatformAzureDevOps,
		Message:  fmt.Sprintf("no supported api version found for %s", origin),
		URL:      baseURL,
		Method:   http.MethodGet,
		Err:      platform.ErrNotFound,
	}
}

func (p *Prober) probeOnce(ctx context.Context, probeURL, token string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", basicAuthHeader(token))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	return resp.StatusCode, nil
}

func originOf(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base URL %q is not absolute", baseURL)
	}
	return u.Scheme + "://" + u.Host, nil
}
