package search

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

	"lr2ise/internal/services"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxErrorBodyBytes     = 4 << 10
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Record is one loosely decoded result item. Field access goes through the
// mapping package, which validates every value before use.
type Record map[string]any

// Task identifies a submitted search.
type Task struct {
	ID string
	// Message carries the backend's diagnostic text when no handle was returned.
	Message string
}

// Created reports whether the backend returned a task handle.
func (t Task) Created() bool {
	return strings.TrimSpace(t.ID) != ""
}

// Snapshot is one read of a task's status and accumulated items.
type Snapshot struct {
	Status string
	Items  []Record
}

// RequestError reports a transport, HTTP, or decoding failure against the
// search backend.
type RequestError struct {
	Op         string
	StatusCode int
	Body       string
	Latency    time.Duration
	Err        error
}

func (e *RequestError) Error() string {
	var b strings.Builder
	b.WriteString("search ")
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " returned %d", e.StatusCode)
	} else {
		b.WriteString(" failed")
	}
	fmt.Fprintf(&b, " (latency=%v)", e.Latency.Round(time.Millisecond))
	if e.Body != "" {
		b.WriteString(": ")
		b.WriteString(e.Body)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is matches services.ErrRequest.
func (e *RequestError) Is(target error) bool {
	return target == services.ErrRequest
}

// Client talks to the LogRhythm Search API.
type Client struct {
	baseURL        string
	token          string
	httpClient     HTTPDoer
	requestTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRequestTimeout bounds each individual HTTP call.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.requestTimeout = timeout
		}
	}
}

// New creates a search client.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("search base url required")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("search api token required")
	}
	client := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		token:          token,
		httpClient:     &http.Client{},
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type submitResponse struct {
	TaskID        string `json:"taskId"`
	Message       string `json:"message"`
	StatusMessage string `json:"statusMessage"`
	Error         string `json:"error"`
}

// Submit posts a query and returns the created task. A successful response
// without a taskId yields a Task whose Created method reports false.
func (c *Client) Submit(ctx context.Context, q Query) (Task, error) {
	var payload submitResponse
	if err := c.post(ctx, "search-task", q, &payload); err != nil {
		return Task{}, err
	}
	message := firstNonEmpty(payload.Message, payload.StatusMessage, payload.Error)
	return Task{ID: strings.TrimSpace(payload.TaskID), Message: message}, nil
}

type resultRequest struct {
	SearchResultBody struct {
		SearchGUID string `json:"searchGuid"`
	} `json:"SearchResultBody"`
}

type resultResponse struct {
	TaskStatus string   `json:"taskStatus"`
	Items      []Record `json:"items"`
}

// Fetch returns the current snapshot for a task. The status label is passed
// through verbatim and items may be partial while the search is running.
func (c *Client) Fetch(ctx context.Context, t Task) (*Snapshot, error) {
	var body resultRequest
	body.SearchResultBody.SearchGUID = t.ID

	var payload resultResponse
	if err := c.post(ctx, "search-result", body, &payload); err != nil {
		return nil, err
	}
	items := payload.Items
	if items == nil {
		items = []Record{}
	}
	return &Snapshot{Status: payload.TaskStatus, Items: items}, nil
}

func (c *Client) post(ctx context.Context, action string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return &RequestError{Op: action, Err: fmt.Errorf("encode request: %w", err)}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/actions/"+action, bytes.NewReader(encoded))
	if err != nil {
		return &RequestError{Op: action, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return &RequestError{Op: action, Latency: latency, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &RequestError{
			Op:         action,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
			Latency:    latency,
		}
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return &RequestError{Op: action, StatusCode: resp.StatusCode, Latency: latency, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
