// Package api is the HTTP client for the Jimmy backend: status checks,
// question lookup, recent answers and escalation charges.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/st-keller/jimmy-client/diag"
	"github.com/st-keller/jimmy-client/types"
)

// Endpoint paths.
const (
	PathCheck    = "/api/check"
	PathQuestion = "/api/question"
	PathRecent   = "/api/recent"
	PathCharge   = "/api/charge"
)

var (
	// ErrNotFound is returned when the backend does not know the question id.
	ErrNotFound = errors.New("api: question not found")
	// ErrDeclined is returned when the backend rejects an escalation charge.
	ErrDeclined = errors.New("api: charge declined")
	// ErrUnavailable is returned when the recent-items feed reports failure.
	ErrUnavailable = errors.New("api: recent items unavailable")
	// ErrMalformed is returned when a response is missing required fields.
	ErrMalformed = errors.New("api: malformed response")
)

// HTTPError is a non-2xx response.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Client talks JSON to the Jimmy backend.
type Client struct {
	baseURL      string
	http         *http.Client
	userAgent    string
	logs         *diag.RecentLogs
	connectivity *diag.ConnectivityTracker
}

// New creates a Client. Nil logs or connectivity get private instances.
func New(baseURL string, httpClient *http.Client, userAgent string, logs *diag.RecentLogs, connectivity *diag.ConnectivityTracker) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logs == nil {
		logs = diag.NopLogs()
	}
	if connectivity == nil {
		connectivity = diag.NewConnectivityTracker()
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		http:         httpClient,
		userAgent:    userAgent,
		logs:         logs,
		connectivity: connectivity,
	}
}

type keyRequest struct {
	Key types.ItemID `json:"key"`
}

type chargeRequest struct {
	Key   types.ItemID `json:"key"`
	Token string       `json:"token"`
}

type statusResponse struct {
	Status   bool         `json:"status"`
	Answer   *string      `json:"answer"`
	List     []types.Link `json:"list"`
	Position *int         `json:"position"`
}

type questionResponse struct {
	Status bool   `json:"status"`
	Text   string `json:"text"`
}

type recentResponse struct {
	Status  bool               `json:"status"`
	Recents []types.RecentItem `json:"recents"`
}

type chargeResponse struct {
	Status bool `json:"status"`
}

// Status performs one status check.
func (c *Client) Status(ctx context.Context, id types.ItemID) (types.StatusResult, error) {
	var resp statusResponse
	if err := c.do(ctx, "check", http.MethodPost, PathCheck, keyRequest{Key: id}, &resp); err != nil {
		return types.StatusResult{}, err
	}

	if resp.Status {
		if resp.Answer == nil {
			return types.StatusResult{}, fmt.Errorf("%w: ready status without answer", ErrMalformed)
		}
		return types.StatusResult{Ready: true, Answer: *resp.Answer, Links: resp.List}, nil
	}

	if resp.Position == nil {
		return types.StatusResult{}, fmt.Errorf("%w: pending status without position", ErrMalformed)
	}
	return types.StatusResult{Position: *resp.Position}, nil
}

// Question looks up the text of a question.
func (c *Client) Question(ctx context.Context, id types.ItemID) (string, error) {
	var resp questionResponse
	if err := c.do(ctx, "question", http.MethodPost, PathQuestion, keyRequest{Key: id}, &resp); err != nil {
		return "", err
	}
	if !resp.Status {
		return "", ErrNotFound
	}
	return resp.Text, nil
}

// Recent returns recently answered searches. Items that are not searches,
// or lack text or answer, are dropped.
func (c *Client) Recent(ctx context.Context) ([]types.RecentItem, error) {
	var resp recentResponse
	if err := c.do(ctx, "recent", http.MethodGet, PathRecent, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Status {
		return nil, ErrUnavailable
	}
	return FilterSearches(resp.Recents), nil
}

// FilterSearches keeps answered searches in their original order.
func FilterSearches(items []types.RecentItem) []types.RecentItem {
	out := make([]types.RecentItem, 0, len(items))
	for _, item := range items {
		if item.IsAnsweredSearch() {
			out = append(out, item)
		}
	}
	return out
}

// Charge pays to move the question to the front of the queue.
func (c *Client) Charge(ctx context.Context, id types.ItemID, token string) error {
	var resp chargeResponse
	if err := c.do(ctx, "charge", http.MethodPost, PathCharge, chargeRequest{Key: id, Token: token}, &resp); err != nil {
		return err
	}
	if !resp.Status {
		return ErrDeclined
	}
	return nil
}

// do sends one request, records connectivity and decodes the response.
func (c *Client) do(ctx context.Context, name, method, path string, payload, out interface{}) error {
	url := c.baseURL + path

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", name, err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", name, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	startTime := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(startTime)

	if err != nil {
		c.connectivity.TrackFailure(name, url, latency, err.Error())
		c.logs.Warn("Backend request failed", map[string]interface{}{
			"endpoint":   name,
			"error":      err.Error(),
			"latency_ms": latency.Milliseconds(),
		})
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.connectivity.TrackFailure(name, url, latency, err.Error())
		return fmt.Errorf("failed to read %s response: %w", name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{Endpoint: name, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		c.connectivity.TrackFailure(name, url, latency, httpErr.Error())
		c.logs.Warn("Backend returned error status", map[string]interface{}{
			"endpoint":   name,
			"status":     resp.StatusCode,
			"latency_ms": latency.Milliseconds(),
		})
		return httpErr
	}

	if err := decodeBody(raw, out); err != nil {
		c.connectivity.TrackFailure(name, url, latency, err.Error())
		c.logs.Warn("Failed to decode backend response", map[string]interface{}{
			"endpoint": name,
			"error":    err.Error(),
		})
		return fmt.Errorf("failed to decode %s response: %w", name, err)
	}

	c.connectivity.TrackSuccess(name, url, latency)
	return nil
}

// decodeBody accepts a JSON object or a JSON string holding the object,
// which is how the backend serializes its replies.
func decodeBody(raw []byte, out interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return err
		}
		trimmed = []byte(inner)
	}
	return json.Unmarshal(trimmed, out)
}
