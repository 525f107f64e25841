// Package challonge talks to the Challonge v1 REST API. The client keeps no
// state between calls; every bracket computation happens remotely.
package challonge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.challonge.com/v1"

var (
	ErrMissingCredentials  = errors.New("challonge api key is not configured")
	ErrManualStartRequired = errors.New("remote service refused automatic start")
	ErrSlugTaken           = errors.New("tournament url is already taken on challonge")
	ErrSameParticipant     = errors.New("cannot swap a participant with itself")
	ErrParticipantNotFound = errors.New("participant not found in remote tournament")
	ErrSwapIncomplete      = errors.New("seed swap applied only partially")
)

// APIError is a non-2xx answer from Challonge.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("challonge: http %d", e.StatusCode)
	}
	return fmt.Sprintf("challonge: http %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

func (e *APIError) contains(substr string) bool {
	for _, m := range e.Messages {
		if strings.Contains(strings.ToLower(m), substr) {
			return true
		}
	}
	return false
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether calls can be made at all.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// do sends one request and returns the raw body of a 2xx answer.
func (c *Client) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrMissingCredentials
	}

	query := url.Values{}
	query.Set("api_key", c.apiKey)
	endpoint := c.baseURL + path + "?" + query.Encode()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 300 {
		return nil, parseAPIError(resp.StatusCode, raw)
	}
	return raw, nil
}

// parseAPIError accepts {"errors": [...]}, {"errors": "..."} and plain text bodies.
func parseAPIError(status int, raw []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var payload struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && len(payload.Errors) > 0 {
		var list []string
		if err := json.Unmarshal(payload.Errors, &list); err == nil {
			apiErr.Messages = list
			return apiErr
		}
		var single string
		if err := json.Unmarshal(payload.Errors, &single); err == nil {
			apiErr.Messages = []string{single}
			return apiErr
		}
	}

	if text := strings.TrimSpace(string(raw)); text != "" && !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "<") {
		apiErr.Messages = []string{text}
	}
	return apiErr
}
