package platform

import (
	"fmt"
	"log/slog"
)

// Dispatcher runs page detection across an ordered list of platform
// detectors. Order matters: the first detector to claim a page wins, so
// detectors with precise URL shapes go before detectors that lean on
// generic markers. In particular GitLab goes last because self-hosted
// GitLab URLs are the least distinguishable.
type Dispatcher struct {
	detectors []Detector
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher over the given detectors, consulted
// in the order given.
func NewDispatcher(logger *slog.Logger, detectors ...Detector) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{detectors: detectors, logger: logger}
}

// Detect runs the page through each detector in order and returns the
// first positive result. Pages no detector claims come back as an
// unsupported PageTypeOther result, not an error.
func (d *Dispatcher) Detect(page PageContext) (*DetectionResult, error) {
	for _, det := range d.detectors {
		if !det.IsReviewPage(page) {
			continue
		}
		result, err := det.Detect(page)
		if err != nil {
			return nil, fmt.Errorf("failed to detect %s review page: %w", det.Platform(), err)
		}
		d.logger.Debug("detected review page",
			"platform", det.Platform(),
			"hostname", page.Hostname,
			"identity", result.Identity)
		return result, nil
	}

	d.logger.Debug("page not recognized by any platform", "hostname", page.Hostname, "path", page.Path)
	return &DetectionResult{PageType: PageTypeOther, Supported: false}, nil
}

// Identify is Detect narrowed to pages that must be review pages: it
// returns the identity or ErrUnsupportedPage.
func (d *Dispatcher) Identify(page PageContext) (*Identity, error) {
	result, err := d.Detect(page)
	if err != nil {
		return nil, err
	}
	if !result.Supported || result.Identity == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPage, page.RawURL)
	}
	return result.Identity, nil
}
