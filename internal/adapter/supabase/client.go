// Package supabase implements the remote backend on a hosted Supabase
// project: GoTrue for authentication and PostgREST for the profiles, posts
// and comments tables.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"gallery/internal/domain"
	"gallery/internal/metrics"

	"resty.dev/v3"
)

// DefaultTransport bounds every phase of a backend request.
var DefaultTransport = &resty.TransportSettings{
	DialerTimeout:         5 * time.Second,
	DialerKeepAlive:       30 * time.Second,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   5 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ResponseHeaderTimeout: 10 * time.Second,
}

// Config locates a Supabase project.
type Config struct {
	URL     string
	AnonKey string

	// TransportSettings defaults to DefaultTransport.
	TransportSettings *resty.TransportSettings
}

// Client talks to one Supabase project on behalf of one signed-in user.
type Client struct {
	client  *resty.Client
	anonKey string

	mu        sync.Mutex
	session   *session
	listeners []domain.AuthListener
}

type session struct {
	accessToken string
	user        domain.AuthUser
}

var _ domain.Backend = (*Client)(nil)

// APIError is a non-2xx answer of the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "supabase: status " + strconv.Itoa(e.StatusCode)
	}
	return fmt.Sprintf("supabase: status %d: %s", e.StatusCode, e.Message)
}

// errorBody covers the error shapes of both GoTrue and PostgREST.
type errorBody struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (b *errorBody) text() string {
	for _, s := range []string{b.Message, b.Msg, b.ErrorDescription, b.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// New creates a client for the project described by cfg.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, fmt.Errorf("supabase: url and anon key are required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("supabase: url: %w", err)
	}
	ts := cfg.TransportSettings
	if ts == nil {
		ts = DefaultTransport
	}

	client := resty.NewWithTransportSettings(ts).
		SetBaseURL(cfg.URL).
		SetHeader("apikey", cfg.AnonKey)
	client.AddResponseMiddleware(latencyMiddleware)

	return &Client{client: client, anonKey: cfg.AnonKey}, nil
}

// Close releases the idle connections of the client.
func (c *Client) Close() error {
	return c.client.Close()
}

// r starts a request authorized as the signed-in user, or as the anonymous
// role without a session.
func (c *Client) r(ctx context.Context) *resty.Request {
	token := c.anonKey
	c.mu.Lock()
	if c.session != nil {
		token = c.session.accessToken
	}
	c.mu.Unlock()

	return c.client.R().
		WithContext(ctx).
		SetAuthToken(token)
}

// check turns a transport error or a non-2xx response into an error.
func check(res *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !res.IsError() {
		return nil
	}
	apiErr := &APIError{StatusCode: res.StatusCode()}
	var body errorBody
	if json.Unmarshal([]byte(res.String()), &body) == nil {
		apiErr.Message = body.text()
	}
	return apiErr
}

func latencyMiddleware(_ *resty.Client, res *resty.Response) error {
	path := res.Request.URL
	if u, err := url.Parse(res.Request.URL); err == nil {
		path = u.Path
	}
	metrics.BackendLatency.WithLabelValues(
		res.Request.Method,
		path,
		strconv.Itoa(res.StatusCode()),
	).Observe(res.Duration().Seconds())
	return nil
}
