// Package ctps provides a client for the TPS/CTPS opt-out registry API used
// to screen outbound call numbers.
package ctps

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.tpsservices.co.uk"

// Client checks numbers against the opt-out registry.
type Client interface {
	// Lookup reports whether the E.164 number is on the opt-out registry.
	Lookup(ctx context.Context, e164 string) (bool, error)
}

// lookupResponse is the parsed registry API response.
type lookupResponse struct {
	Number     string `json:"number"`
	Registered bool   `json:"registered"`
	Registry   string `json:"registry,omitempty"`
}

// Option configures the registry client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new opt-out registry client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Lookup(ctx context.Context, e164 string) (bool, error) {
	reqURL := c.baseURL + "/v1/check?number=" + url.QueryEscape(e164)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, eris.Wrap(err, "ctps: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, eris.Wrap(err, "ctps: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, eris.Wrap(err, "ctps: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return false, eris.Errorf("ctps: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result lookupResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return false, eris.Wrap(err, "ctps: unmarshal response")
	}
	return result.Registered, nil
}
