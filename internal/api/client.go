// Package api is the REST client for the support chat backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

// TokenSource supplies the bearer token for protected calls
type TokenSource interface {
	Token() string
}

// Client talks to the REST API under <baseURL>/api
type Client struct {
	baseURL string
	client  *http.Client

	mu            sync.RWMutex
	tokens        TokenSource
	onAuthFailure func(error)
}

// NewClient creates a new API client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the server root the client was built with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTokenSource sets where bearer tokens come from
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// OnAuthFailure registers fn to run when a protected call is rejected
// because the token is invalid or expired.
func (c *Client) OnAuthFailure(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAuthFailure = fn
}

// Close releases idle connections
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// callOptions describe how a request authenticates
type callOptions struct {
	auth        bool
	credentials bool
}

var (
	public      = callOptions{}
	protected   = callOptions{auth: true}
	credentials = callOptions{credentials: true}
)

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) authFailed(err error) {
	c.mu.RLock()
	fn := c.onAuthFailure
	c.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// do sends a JSON request and decodes the JSON response into out
func (c *Client) do(ctx context.Context, method, path string, in, out any, opts callOptions) error {
	// Validate payload before touching the network
	if in != nil {
		if err := validate.Struct(in); err != nil {
			var invalid *validator.InvalidValidationError
			if !errors.As(err, &invalid) {
				return NewValidationError(err)
			}
		}
	}

	var token string
	if opts.auth {
		token = c.token()
		if token == "" {
			return &Error{Kind: KindAuth, Message: "not authenticated"}
		}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api"+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// Execute request
	resp, err := c.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("method", method).Str("path", path).Msg("API request failed")
		return &Error{Kind: KindNetwork, Message: "connection error", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Status: resp.StatusCode, Message: "connection error", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeError(resp.StatusCode, data, opts.credentials)
		log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("kind", string(apiErr.Kind)).
			Msg("API request rejected")
		if opts.auth && apiErr.Kind == KindAuth {
			c.authFailed(apiErr)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindServer, Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

// errorBody covers both {"error": "msg"} and {"error": {"field": "msg"}}
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

func decodeError(status int, data []byte, credentials bool) *Error {
	apiErr := &Error{
		Kind:   kindForStatus(status, credentials),
		Status: status,
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}

	var msg string
	var fields map[string]string
	switch {
	case json.Unmarshal(body.Error, &msg) == nil:
		apiErr.Message = msg
	case json.Unmarshal(body.Error, &fields) == nil:
		apiErr.Fields = fields
		apiErr.Message = "invalid input"
	}
	if apiErr.Message == "" {
		apiErr.Message = body.Message
	}
	return apiErr
}

func escape(segment string) string {
	return url.PathEscape(segment)
}
