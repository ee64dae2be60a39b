package ise

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

	"lr2ise/internal/mapping"
)

const (
	tokenPath             = "/api/fmi_platform/v1/identityauth/generatetoken"
	identityMappingPath   = "/api/identity/v1/identity/identitymapping"
	tokenHeader           = "X-auth-access-token"
	defaultRequestTimeout = 15 * time.Second
	maxErrorBodyBytes     = 4 << 10
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError reports a non-success response from ISE.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
	Latency    time.Duration
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("ise %s returned %d (latency=%v)", e.Op, e.StatusCode, e.Latency.Round(time.Millisecond))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unauthorized reports whether ISE rejected the credentials or token.
func (e *StatusError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Client talks to the ISE passive identity REST API.
type Client struct {
	baseURL        string
	username       string
	password       string
	httpClient     HTTPDoer
	requestTimeout time.Duration
	tokens         *tokenSource
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

// New creates an ISE client. No request is made until a token is needed.
func New(baseURL, username, password string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("ise url required")
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.New("ise username and password required")
	}
	client := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		username:       username,
		password:       password,
		httpClient:     &http.Client{},
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(client)
	}
	client.tokens = &tokenSource{acquire: client.generateToken}
	return client, nil
}

// CheckAuth verifies the credentials by acquiring a token. The token is kept
// for later calls.
func (c *Client) CheckAuth(ctx context.Context) error {
	_, err := c.tokens.Token(ctx)
	return err
}

type mappingRequest struct {
	User         string `json:"user"`
	SrcIPAddress string `json:"srcIpAddress"`
	AgentInfo    string `json:"agentInfo"`
	Timestamp    string `json:"timestamp"`
	Domain       string `json:"domain"`
}

// AddIdentityMapping posts one mapping. A 401 or 403 drops the cached token
// so the next call re-authenticates; the failing call is not retried.
func (c *Client) AddIdentityMapping(ctx context.Context, m mapping.IdentityMapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(mappingRequest{
		User:         m.User,
		SrcIPAddress: m.SourceIP,
		AgentInfo:    m.Agent,
		Timestamp:    m.Timestamp,
		Domain:       m.Domain,
	})
	if err != nil {
		return fmt.Errorf("encode identity mapping: %w", err)
	}

	resp, latency, err := c.do(ctx, identityMappingPath, bytes.NewReader(body), func(req *http.Request) {
		req.Header.Set(tokenHeader, token)
		req.Header.Set("Content-Type", "application/json")
	})
	if err != nil {
		return fmt.Errorf("add identity mapping (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := newStatusError("identitymapping", resp, latency)
		if statusErr.Unauthorized() {
			c.tokens.Invalidate(token)
		}
		return statusErr
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) generateToken(ctx context.Context) (string, error) {
	resp, latency, err := c.do(ctx, tokenPath, nil, func(req *http.Request) {
		req.SetBasicAuth(c.username, c.password)
	})
	if err != nil {
		return "", fmt.Errorf("generate ise token (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newStatusError("generatetoken", resp, latency)
	}
	token := strings.TrimSpace(resp.Header.Get(tokenHeader))
	if token == "" {
		return "", fmt.Errorf("ise generatetoken returned %d without %s header", resp.StatusCode, tokenHeader)
	}
	return token, nil
}

func (c *Client) do(ctx context.Context, path string, body io.Reader, decorate func(*http.Request)) (*http.Response, time.Duration, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		cancel()
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	decorate(req)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		cancel()
		return nil, latency, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, latency, nil
}

func newStatusError(op string, resp *http.Response, latency time.Duration) *StatusError {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &StatusError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
		Latency:    latency,
	}
}

// cancelOnClose releases the per-call timeout once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
