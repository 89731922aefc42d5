// Package vapi is a client for the Vapi voice API: placing outbound
// assistant calls and verifying call-report webhooks.
package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.vapi.ai"

// Client places calls against the Vapi API.
type Client interface {
	CreateCall(ctx context.Context, req CallRequest) (*Call, error)
	GetCall(ctx context.Context, callID string) (*Call, error)
}

// CallRequest describes one outbound call.
type CallRequest struct {
	AssistantID    string
	PhoneNumberID  string
	CustomerNumber string
	Variables      map[string]string
}

// Call is the provider's view of a call.
type Call struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	EndedReason string `json:"endedReason,omitempty"`
}

// APIError is a non-2xx response from the API. The dispatcher classifies it
// into a retryable or terminal outcome by status code.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vapi: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
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

// NewClient creates a Vapi API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type createCallRequest struct {
	AssistantID        string             `json:"assistantId"`
	PhoneNumberID      string             `json:"phoneNumberId"`
	Customer           customer           `json:"customer"`
	AssistantOverrides assistantOverrides `json:"assistantOverrides,omitempty"`
}

type customer struct {
	Number string `json:"number"`
}

type assistantOverrides struct {
	VariableValues map[string]string `json:"variableValues,omitempty"`
}

func (c *httpClient) CreateCall(ctx context.Context, req CallRequest) (*Call, error) {
	body, err := json.Marshal(createCallRequest{
		AssistantID:   req.AssistantID,
		PhoneNumberID: req.PhoneNumberID,
		Customer:      customer{Number: req.CustomerNumber},
		AssistantOverrides: assistantOverrides{
			VariableValues: req.Variables,
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "vapi: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "vapi: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(httpReq)
}

func (c *httpClient) GetCall(ctx context.Context, callID string) (*Call, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/call/"+callID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "vapi: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(httpReq)
}

func (c *httpClient) do(req *http.Request) (*Call, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "vapi: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "vapi: read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var call Call
	if err := json.Unmarshal(respBody, &call); err != nil {
		return nil, eris.Wrap(err, "vapi: unmarshal response")
	}
	return &call, nil
}
