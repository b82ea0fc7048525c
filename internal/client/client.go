// Package client is the HTTP client for the speedcube backend API.
package client

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
	"time"

	"go.uber.org/zap"

	"github.com/and161185/speedcube/internal/convert"
	"github.com/and161185/speedcube/internal/cube"
	"github.com/and161185/speedcube/internal/model"
	"github.com/and161185/speedcube/internal/timer"
)

// APIError is a non-2xx response. Detail is the server's human-readable message, if any.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Detail)
}

// UserMessage returns the server-provided detail carried by err, or fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// New constructs a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ timer.Persister = (*Client)(nil)

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, password string) (convert.UserResponse, error) {
	var out convert.UserResponse
	err := c.doJSON(ctx, http.MethodPost, "/users/register", "", convert.RegisterRequest{Username: username, Password: password}, &out)
	return out, err
}

// Token exchanges credentials for an access token. The body is form-encoded.
func (c *Client) Token(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var out convert.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/token", "", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()), &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("api: empty access token")
	}
	return out.AccessToken, nil
}

// PersistSolve records a completed solve for the token's owner.
func (c *Client) PersistSolve(ctx context.Context, token string, rec timer.SolveRecord) error {
	return c.doJSON(ctx, http.MethodPost, "/solves", token,
		convert.SolveRequest{TimeMs: rec.TimeMs, Scramble: rec.Scramble}, nil)
}

// ListSolves returns every solve stored for the token's owner.
func (c *Client) ListSolves(ctx context.Context, token string) ([]convert.SolveResponse, error) {
	var out []convert.SolveResponse
	err := c.do(ctx, http.MethodGet, "/solves", token, "", nil, &out)
	return out, err
}

// Solve asks the backend solver for a move sequence.
func (c *Client) Solve(ctx context.Context, f cube.Facelets) (string, error) {
	var out convert.SolutionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/solve", "", convert.CubeRequest{CubeString: f.String()}, &out); err != nil {
		return "", err
	}
	return out.Solution, nil
}

// Stats fetches the world-record document.
func (c *Client) Stats(ctx context.Context) (model.WorldRecords, error) {
	var out model.WorldRecords
	err := c.do(ctx, http.MethodGet, "/stats", "", "", nil, &out)
	return out, err
}

func (c *Client) doJSON(ctx context.Context, method, path, bearer string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, bearer, "application/json", bytes.NewReader(b), out)
}

func (c *Client) do(ctx context.Context, method, path, bearer, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("api",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var er convert.ErrorResponse
	if json.Unmarshal(b, &er) == nil {
		apiErr.Detail = er.Detail
	}
	return apiErr
}
