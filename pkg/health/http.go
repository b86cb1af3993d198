package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPChecker performs HTTP-based health checks against OpenStack API
// endpoints. Version documents are decoded so the message names the API
// version that answered.
type HTTPChecker struct {
	// URL is the full HTTP URL to check (e.g., "http://10.0.0.5/identity/v3")
	URL string

	// ExpectedStatusMin is the minimum acceptable HTTP status code (default: 200)
	ExpectedStatusMin int

	// ExpectedStatusMax is the maximum acceptable HTTP status code (default: 399)
	ExpectedStatusMax int

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

// NewHTTPChecker creates a new HTTP health checker
func NewHTTPChecker(url string) *HTTPChecker {
	return &HTTPChecker{
		URL:               url,
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 399,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// versionDocument covers both the single-version form served by
// /identity/v3 and the multiple-choice form served by API roots
type versionDocument struct {
	Version struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"version"`
	Versions struct {
		Values []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"values"`
	} `json:"versions"`
}

func (d versionDocument) describe() string {
	if d.Version.ID != "" {
		return fmt.Sprintf("%s (%s)", d.Version.ID, d.Version.Status)
	}
	if n := len(d.Versions.Values); n > 0 {
		return fmt.Sprintf("%d API versions", n)
	}
	return ""
}

// Check performs the HTTP health check
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return result(start, false, "failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return result(start, false, "GET %s failed: %v", h.URL, err)
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode >= h.ExpectedStatusMin && resp.StatusCode <= h.ExpectedStatusMax
	if !healthy {
		return result(start, false, "GET %s: HTTP %d (expected %d-%d)",
			h.URL, resp.StatusCode, h.ExpectedStatusMin, h.ExpectedStatusMax)
	}

	var doc versionDocument
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(body, &doc) == nil {
		if v := doc.describe(); v != "" {
			return result(start, true, "GET %s: HTTP %d, %s", h.URL, resp.StatusCode, v)
		}
	}
	return result(start, true, "GET %s: HTTP %d", h.URL, resp.StatusCode)
}

// Type returns the health check type
func (h *HTTPChecker) Type() CheckType {
	return CheckTypeHTTP
}

// WithStatusRange sets the expected status code range
func (h *HTTPChecker) WithStatusRange(min, max int) *HTTPChecker {
	h.ExpectedStatusMin = min
	h.ExpectedStatusMax = max
	return h
}

// WithTimeout sets the HTTP client timeout
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}
