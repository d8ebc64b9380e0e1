package connectivity

import (
	"context"
	"net/http"
	"time"
)

// HTTPProbe checks connectivity by issuing a lightweight request against the
// remote service's base URL.
type HTTPProbe struct {
	httpClient *http.Client
	url        string
}

// NewHTTPProbe creates a probe against the given URL.
func NewHTTPProbe(url string) *HTTPProbe {
	return &HTTPProbe{
		url: url,
		httpClient: &http.Client{
			Timeout: 3 * time.Second,
		},
	}
}

// Online implements service.Probe. Any response, even an error status, means
// the network path is up; only transport failures count as offline.
func (p *HTTPProbe) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

// StaticProbe is a fixed-answer probe for tests and forced-offline mode.
type StaticProbe bool

// Online implements service.Probe.
func (p StaticProbe) Online(_ context.Context) bool {
	return bool(p)
}
