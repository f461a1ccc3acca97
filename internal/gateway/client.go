// Package gateway is a client for the hosted backend: auth, PostgREST-style
// tables and RPC, file storage and the realtime change feed.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/claude/ironlog/internal/session"
)

// Client talks to one backend project. It is safe for concurrent use.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	log        *slog.Logger

	mu    sync.RWMutex
	token string
}

// Options configures a Client.
type Options struct {
	URL     string
	AnonKey string
	Timeout time.Duration
}

// New creates a Client. Requests carry the anon key until a user signs in.
func New(opts Options, log *slog.Logger) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.URL, "/"),
		anonKey:    opts.AnonKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type tokenKey struct{}

// WithAccessToken returns a context whose requests run as the user owning
// token, overriding the client's own session.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// accessToken returns the bearer token for ctx and whether it belongs to a user.
func (c *Client) accessToken(ctx context.Context) (string, bool) {
	if t, ok := ctx.Value(tokenKey{}).(string); ok && t != "" {
		return t, true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" {
		return c.token, true
	}
	return c.anonKey, false
}

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("gateway: %d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("gateway: %d: %s", e.Status, msg)
}

// Is maps backend responses onto the session error taxonomy.
func (e *Error) Is(target error) bool {
	switch target {
	case session.ErrAuthRequired:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case session.ErrNotFound:
		// 406 is PostgREST's answer to a single-object read with zero rows.
		return e.Status == http.StatusNotFound || e.Status == http.StatusNotAcceptable || e.Code == "PGRST116"
	case session.ErrValidation:
		// unique, check and not-null violations, bad input syntax
		return e.Code == "23505" || e.Code == "23514" || e.Code == "23502" || e.Code == "22P02"
	}
	return false
}

func parseError(status int, body []byte) *Error {
	e := &Error{Status: status}
	if err := json.Unmarshal(body, e); err != nil || (e.Message == "" && e.Code == "") {
		// auth endpoints use a different envelope
		var alt struct {
			Msg         string `json:"msg"`
			Description string `json:"error_description"`
			ErrorCode   string `json:"error_code"`
		}
		if json.Unmarshal(body, &alt) == nil {
			e.Code = alt.ErrorCode
			e.Message = alt.Msg
			if e.Message == "" {
				e.Message = alt.Description
			}
		}
		if e.Message == "" {
			e.Message = strings.TrimSpace(string(body))
		}
	}
	return e
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	header  http.Header
	noToken bool
}

// do sends r and returns the response body and headers. Non-2xx responses
// become *Error.
func (c *Client) do(ctx context.Context, r request) ([]byte, http.Header, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, nil, fmt.Errorf("gateway: encode %s: %w", r.path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, nil, fmt.Errorf("gateway: create request: %w", err)
	}
	for k, v := range r.header {
		req.Header[k] = v
	}
	req.Header.Set("apikey", c.anonKey)
	if !r.noToken {
		token, _ := c.accessToken(ctx)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("gateway: %s %s: %w", r.method, r.path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("gateway: read body: %w", err)
	}

	c.log.Debug("gateway request",
		"method", r.method, "path", r.path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, parseError(resp.StatusCode, data)
	}
	return data, resp.Header, nil
}

// doJSON sends r and decodes the response into dst when dst is non-nil.
func (c *Client) doJSON(ctx context.Context, r request, dst any) error {
	data, _, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	if dst == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("gateway: decode %s: %w", r.path, err)
	}
	return nil
}
