// Package api is a thin client for the restaurant dashboard REST API.
//
// The API is an external JSON service. Every list endpoint accepts the
// establishment_id, order_by, direction and limit query parameters; single
// resources live under /<resource>/{id}. The client adds a bearer token and a
// fresh X-Request-ID to every call and never retries: failures are returned
// as *Error values wrapping one of the package sentinel errors.
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
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"restodash/internal/logger"
)

const (
	// DefaultTimeout is used when no HTTP client is supplied.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of an error answer is kept in Details.
	maxErrorBody = 4 << 10

	requestIDHeader = "X-Request-ID"
)

// Client talks to the backend API.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	const op = "New"

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid base URL: %w", op, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: base URL must be absolute, got %q", op, baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
		log:     logger.WithComponent("api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListOptions are the query parameters shared by list endpoints.
type ListOptions struct {
	EstablishmentID string
	OrderBy         string
	Direction       string // asc or desc
	Limit           int

	// Filters holds endpoint specific parameters (e.g. date bounds).
	Filters map[string]string
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.EstablishmentID != "" {
		v.Set("establishment_id", o.EstablishmentID)
	}
	if o.OrderBy != "" {
		v.Set("order_by", o.OrderBy)
	}
	if o.Direction != "" {
		v.Set("direction", o.Direction)
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	for key, value := range o.Filters {
		if value != "" {
			v.Set(key, value)
		}
	}
	return v
}

// resolve builds the absolute URL of an API path.
func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// getJSON issues a GET and decodes the JSON answer into out.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	body, err := c.do(ctx, op, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return c.decode(op, http.MethodGet, path, body, out)
}

// sendJSON issues a request with a JSON body and decodes the answer into out
// when out is not nil.
func (c *Client) sendJSON(ctx context.Context, op, method, path string, payload, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return &Error{Op: op, Method: method, Path: path, Err: err, Details: "failed to encode request"}
	}

	body, err := c.do(ctx, op, method, path, nil, encoded)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return c.decode(op, method, path, body, out)
}

func (c *Client) decode(op, method, path string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Op: op, Method: method, Path: path, StatusCode: http.StatusOK, Err: ErrDecode, Details: err.Error()}
	}
	return nil
}

// do sends a request to the API and returns the body of a 2xx answer.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path, query), reader)
	if err != nil {
		return nil, &Error{Op: op, Method: method, Path: path, Err: ErrTransport, Details: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.send(req, op, path)
}

// send executes req and reads the body of a 2xx answer.
func (c *Client) send(req *http.Request, op, path string) ([]byte, error) {
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	log := logger.WithRequestID(c.log, requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, &Error{Op: op, Method: req.Method, Path: path, Err: ctxErr}
		}
		log.Debug().Err(err).Str("method", req.Method).Str("path", path).Msg("API request failed")
		return nil, &Error{Op: op, Method: req.Method, Path: path, Err: ErrTransport, Details: err.Error()}
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", req.Method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("API request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{
			Op:         op,
			Method:     req.Method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Err:        classifyStatus(resp.StatusCode),
			Details:    errorDetails(raw),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: op, Method: req.Method, Path: path, StatusCode: resp.StatusCode, Err: ErrTransport, Details: err.Error()}
	}
	return body, nil
}

// errorDetails extracts the message of an error answer.
func errorDetails(raw []byte) string {
	var payload struct {
		Detail  any    `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.Error != "":
			return payload.Error
		case payload.Detail != nil:
			return fmt.Sprint(payload.Detail)
		}
	}
	return strings.TrimSpace(string(raw))
}

// Download fetches a document from an absolute URL (a signed storage URL).
// The API token is only attached when the URL points at the API host.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	const op = "Download"

	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return nil, &Error{Op: op, Method: http.MethodGet, Path: rawURL, Err: ErrBadRequest, Details: "download URL must be absolute"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Op: op, Method: http.MethodGet, Path: u.Path, Err: ErrTransport, Details: err.Error()}
	}
	if c.token != "" && u.Host == c.baseURL.Host {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.send(req, op, u.Path)
}

// IsNotFound reports whether err is a 404 answer.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
