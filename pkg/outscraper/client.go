// Package outscraper provides a client for the Outscraper emails and
// contacts API, the primary discovery source for business contact data.
package outscraper

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.outscraper.cloud"

// Client defines the Outscraper operations.
type Client interface {
	// EmailsAndContacts fetches contact data discovered for a domain.
	EmailsAndContacts(ctx context.Context, domain string) (*ContactsResult, error)
}

// ContactsResponse is the parsed API envelope.
type ContactsResponse struct {
	Status string           `json:"status"`
	Data   []ContactsResult `json:"data"`
}

// ContactsResult holds the discovered contact data for one query.
type ContactsResult struct {
	Query       string            `json:"query"`
	Emails      []ValueItem       `json:"emails"`
	Phones      []ValueItem       `json:"phones"`
	Socials     map[string]string `json:"socials"`
	SiteData    SiteData          `json:"site_data"`
	Details     BusinessDetails   `json:"details"`
	PageContent string            `json:"page_content,omitempty"`
}

// ValueItem is a discovered email or phone with its crawl sources.
type ValueItem struct {
	Value   string   `json:"value"`
	Sources []string `json:"sources,omitempty"`
}

// SiteData describes the crawled site.
type SiteData struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Generator   string `json:"generator,omitempty"`
}

// BusinessDetails carries structured attributes scraped from the site.
type BusinessDetails struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	Country string `json:"country,omitempty"`
}

// Option configures the Outscraper client.
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

// NewClient creates a new Outscraper client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
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

func (c *httpClient) EmailsAndContacts(ctx context.Context, domain string) (*ContactsResult, error) {
	reqURL := c.baseURL + "/emails-and-contacts?query=" + url.QueryEscape(domain) + "&async=false"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "outscraper: create request")
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "outscraper: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "outscraper: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("outscraper: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result ContactsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "outscraper: unmarshal response")
	}
	if len(result.Data) == 0 {
		return &ContactsResult{Query: domain}, nil
	}
	return &result.Data[0], nil
}
