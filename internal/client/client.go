// Package client is a small typed client for the template mock API. It maps
// the mock's failure statuses to sentinel errors so callers can exercise
// their retry and error paths.
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
	"strconv"
	"strings"
	"time"
)

type Template struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	Category    string     `json:"category"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type Upload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

type APIResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
}

type Health struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	TemplateCount int    `json:"template_count"`
}

var (
	ErrNotFound    = errors.New("template not found")
	ErrConflict    = errors.New("template already exists")
	ErrBadRequest  = errors.New("bad request")
	ErrServerFault = errors.New("server fault")
	ErrUnavailable = errors.New("mock server unavailable")
	ErrBadStatus   = errors.New("unexpected status")
)

// StatusError carries the status and detail of a failed call. It unwraps to
// one of the sentinel errors above.
type StatusError struct {
	Code   int
	Detail string
	kind   error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status=%d detail=%q", e.kind, e.Code, e.Detail)
}

func (e *StatusError) Unwrap() error { return e.kind }

// Timing is the latency metadata the mock attaches to every response.
type Timing struct {
	ProcessTime time.Duration
	ServerName  string
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type ListOptions struct {
	Skip     int
	Limit    int
	Category string
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Skip > 0 {
		v.Set("skip", strconv.Itoa(o.Skip))
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Category != "" {
		v.Set("category", o.Category)
	}
	return v
}

func (c *Client) List(ctx context.Context, opt ListOptions) ([]Template, Timing, error) {
	var out []Template
	t, err := c.do(ctx, http.MethodGet, "/api/templates", opt.values(), nil, &out)
	return out, t, err
}

func (c *Client) Get(ctx context.Context, id string) (Template, Timing, error) {
	var out Template
	t, err := c.do(ctx, http.MethodGet, "/api/templates/"+url.PathEscape(id), nil, nil, &out)
	return out, t, err
}

func (c *Client) Search(ctx context.Context, q string, opt ListOptions) ([]Template, Timing, error) {
	v := opt.values()
	v.Set("q", q)

	var out []Template
	t, err := c.do(ctx, http.MethodPost, "/api/templates/search", v, nil, &out)
	return out, t, err
}

func (c *Client) Upload(ctx context.Context, u Upload) (APIResponse, Timing, error) {
	var out APIResponse
	t, err := c.do(ctx, http.MethodPost, "/api/templates/upload", nil, u, &out)
	return out, t, err
}

func (c *Client) Delete(ctx context.Context, id string) (APIResponse, Timing, error) {
	var out APIResponse
	t, err := c.do(ctx, http.MethodDelete, "/api/templates/"+url.PathEscape(id), nil, nil, &out)
	return out, t, err
}

func (c *Client) Health(ctx context.Context) (Health, Timing, error) {
	var out Health
	t, err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out)
	return out, t, err
}

// TestError asks the mock to fail with code; the returned error is always
// non-nil on a healthy server.
func (c *Client) TestError(ctx context.Context, code int) (Timing, error) {
	return c.do(ctx, http.MethodGet, "/api/test/error/"+strconv.Itoa(code), nil, nil, nil)
}

func (c *Client) TestDelay(ctx context.Context, d time.Duration) (Timing, error) {
	secs := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	return c.do(ctx, http.MethodGet, "/api/test/delay/"+secs, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) (Timing, error) {
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Timing{}, err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return Timing{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Timing{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	timing := parseTiming(resp.Header)

	if resp.StatusCode != http.StatusOK {
		return timing, statusError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return timing, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return timing, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return timing, nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Detail string `json:"detail"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil {
		body.Detail = strings.TrimSpace(string(raw))
	}

	kind := ErrBadStatus
	switch {
	case resp.StatusCode == http.StatusNotFound:
		kind = ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		kind = ErrConflict
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnprocessableEntity:
		kind = ErrBadRequest
	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		kind = ErrServerFault
	}

	return &StatusError{Code: resp.StatusCode, Detail: body.Detail, kind: kind}
}

func parseTiming(h http.Header) Timing {
	t := Timing{ServerName: h.Get("X-Server-Name")}
	if secs, err := strconv.ParseFloat(h.Get("X-Process-Time"), 64); err == nil {
		t.ProcessTime = time.Duration(secs * float64(time.Second))
	}
	return t
}
