// ABOUTME: HTTP client for the council server API
// ABOUTME: Builds endpoint URLs, resolves transports and lists models

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	solvePath  = "/solve"
	modelsPath = "/models"
)

// Client talks to a council server.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the server at baseURL. A nil httpClient
// uses http.DefaultClient; a nil logger uses slog.Default().
//
// The HTTP client must not set an overall Timeout: streams are long-lived.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must use http or https scheme: %q", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: u,
		http:    httpClient,
		logger:  logger.With("component", "transport"),
	}, nil
}

// Transport returns the transport for mode.
func (c *Client) Transport(mode Mode) (Transport, error) {
	switch mode {
	case ModeStream:
		return &SSE{client: c}, nil
	case ModeBatch:
		return &Batch{client: c}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, mode)
	}
}

// endpoint joins path onto the base URL, keeping any base path prefix.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Model is one selectable backend model.
type Model struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// modelsResponse is the JSON response from GET /models.
type modelsResponse struct {
	Models []Model `json:"models"`
}

// ListModels fetches the models the server offers.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(modelsPath, nil), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching models: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var body modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("parsing models response: %w", err)
	}

	c.logger.Debug("models listed", "count", len(body.Models))
	return body.Models, nil
}

// checkStatus turns a non-200 response into ErrUnexpectedStatus, including
// the server's JSON error message when it sent one.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var errResp map[string]any
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&errResp); err == nil {
			for _, key := range []string{"error", "detail"} {
				if msg, ok := errResp[key].(string); ok && msg != "" {
					return fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, msg)
				}
			}
		}
	}
	return fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
}
