// Package client talks to a running BlitzFind server over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/spounge-ai/blitzfind/internal/importer/source"
)

const (
	DefaultURL = "http://localhost:8000"

	defaultRetryMax     = 2
	defaultRetryWaitMin = 100 * time.Millisecond
	defaultRetryWaitMax = 2 * time.Second
	defaultTimeout      = 5 * time.Minute
)

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// Option customizes a Client.
type Option func(*retryablehttp.Client)

// WithRetry sets how often and how far apart transient failures are retried.
func WithRetry(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *retryablehttp.Client) {
		c.RetryMax = retryMax
		c.RetryWaitMin = waitMin
		c.RetryWaitMax = waitMax
	}
}

// WithLogger logs retries through logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *retryablehttp.Client) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithTimeout bounds a single attempt, including reading the response.
func WithTimeout(d time.Duration) Option {
	return func(c *retryablehttp.Client) { c.HTTPClient.Timeout = d }
}

// New validates baseURL and builds a Client. Connection failures and 5xx
// responses are retried; the last response is always returned to the caller.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: server url must be http(s)://host[:port], got %q", app_errors.ErrInvalidInput, baseURL)
	}

	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = defaultRetryMax
	rc.RetryWaitMin = defaultRetryWaitMin
	rc.RetryWaitMax = defaultRetryWaitMax
	rc.HTTPClient.Timeout = defaultTimeout
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	for _, opt := range opts {
		opt(rc)
	}

	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: rc}, nil
}

// QueryResult is the body of GET /query/{id}.
type QueryResult struct {
	Found bool            `json:"found"`
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
}

// APIError is a non-2xx response. It unwraps to the matching sentinel from
// internal/errors so callers can use errors.Is the same way as in-process.
type APIError struct {
	Status    int
	Message   string
	Class     string
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("server returned %d: %s (request %s)", e.Status, e.Message, e.RequestID)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return app_errors.ErrNotFound
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return app_errors.ErrInvalidInput
	case http.StatusServiceUnavailable:
		return app_errors.ErrTransient
	case http.StatusGatewayTimeout:
		return context.DeadlineExceeded
	default:
		return nil
	}
}

// Get fetches the full record stored under id.
func (c *Client) Get(ctx context.Context, id string) (*domain.Record, error) {
	var rec domain.Record
	if _, err := c.do(ctx, http.MethodGet, "/data/"+url.PathEscape(id), nil, nil, "", &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Query looks id up without failing when it is absent.
func (c *Client) Query(ctx context.Context, id string) (*QueryResult, error) {
	var res QueryResult
	if _, err := c.do(ctx, http.MethodGet, "/query/"+url.PathEscape(id), nil, nil, "", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Set creates or replaces the record under id.
func (c *Client) Set(ctx context.Context, id string, value json.RawMessage) (*domain.UpsertResult, error) {
	body, err := json.Marshal(struct {
		ID    string          `json:"id"`
		Value json.RawMessage `json:"value"`
	}{id, value})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", app_errors.ErrInvalidInput, err)
	}

	var rec domain.Record
	status, err := c.do(ctx, http.MethodPost, "/data", nil, body, "application/json", &rec)
	if err != nil {
		return nil, err
	}
	return &domain.UpsertResult{Record: &rec, Created: status == http.StatusCreated}, nil
}

// Delete removes id and reports whether it existed.
func (c *Client) Delete(ctx context.Context, id string) (bool, error) {
	_, err := c.do(ctx, http.MethodDelete, "/data/"+url.PathEscape(id), nil, nil, "", nil)
	switch {
	case errors.Is(err, app_errors.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	default:
		return true, nil
	}
}

// List returns one window of record ids and timestamps. Values are not included.
func (c *Client) List(ctx context.Context, skip, limit int) (*domain.Page, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	var page domain.Page
	if _, err := c.do(ctx, http.MethodGet, "/data", q, nil, "", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ImportGeoJSON uploads a FeatureCollection as the request body.
func (c *Client) ImportGeoJSON(ctx context.Context, r io.Reader) (*domain.ImportResult, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read geojson: %w", err)
	}
	var res domain.ImportResult
	if _, err := c.do(ctx, http.MethodPost, "/import/geojson", nil, body, "application/geo+json", &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ImportSQLite uploads a SQLite or SpatiaLite file and imports one of its tables.
func (c *Client) ImportSQLite(ctx context.Context, filename string, r io.Reader, opts source.TableOptions) (*domain.ImportResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	opts = opts.WithDefaults()
	q := url.Values{}
	q.Set("table_name", opts.Table)
	q.Set("id_column", opts.IDColumn)
	q.Set("geom_column", opts.GeomColumn)

	var res domain.ImportResult
	if _, err := c.do(ctx, http.MethodPost, "/import/spatialite", q, buf.Bytes(), mw.FormDataContentType(), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, contentType string, out any) (int, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var rawBody any
	if body != nil {
		rawBody = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, rawBody)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, fmt.Errorf("%s %s: %w", method, path, ctxErr)
		}
		return 0, fmt.Errorf("%w: %s %s: %w", app_errors.ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, decodeAPIError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, RequestID: resp.Header.Get("X-Request-ID")}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error     string `json:"error"`
		Class     string `json:"class"`
		RequestID string `json:"request_id"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Class = body.Class
		if body.RequestID != "" {
			apiErr.RequestID = body.RequestID
		}
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
