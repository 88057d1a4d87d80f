// Package headless provides the optional chromedp rendering fallback for
// JS-heavy sites, plus the heuristic that decides when to use it.
package headless

import (
	"bytes"
)

// jsShellMarkers are framework fingerprints that indicate the served HTML is
// an empty application shell filled in client-side.
var jsShellMarkers = [][]byte{
	[]byte("__next_data__"),
	[]byte("data-reactroot"),
	[]byte("ng-app"),
	[]byte("window.__apollo_state__"),
	[]byte("window.__nuxt__"),
}

// Detector decides whether a fetched page warrants a headless re-render.
type Detector struct {
	minHTMLBytes int
}

// NewDetector constructs a Detector; pages shorter than minBytes are always
// promoted.
func NewDetector(minBytes int) *Detector {
	return &Detector{minHTMLBytes: minBytes}
}

// ShouldPromote inspects the page for signals that JS rendering is required.
func (d *Detector) ShouldPromote(body []byte) bool {
	if d == nil {
		return false
	}
	if d.minHTMLBytes > 0 && len(body) < d.minHTMLBytes {
		return true
	}
	lower := bytes.ToLower(body)
	for _, marker := range jsShellMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}
