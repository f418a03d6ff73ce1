// Package platforms holds the publish adapter for every supported
// destination plus the registry that dispatches to them. All network and
// cookie access goes through the Runtime capability object injected at
// registration, so adapters never touch lower-level primitives and tests
// substitute a fake.
package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"crosspost/config"
)

// Request is one outbound HTTP call made on behalf of an adapter.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Response is the buffered result of a Request.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Runtime is the shared capability object adapters run against: request
// execution with header overrides, and read access to stored session
// cookies. It is injected exactly once and read-only afterwards.
type Runtime interface {
	Do(ctx context.Context, req *Request) (*Response, error)
	Cookie(site, name string) (string, bool)
}

// HTTPRuntime is the production Runtime backed by net/http with a shared
// cookie jar. Header overrides are plain header sets; nothing here depends
// on browser privileges.
type HTTPRuntime struct {
	client *http.Client
}

// NewHTTPRuntime builds a runtime with a cookie jar and sane timeout.
func NewHTTPRuntime() (*HTTPRuntime, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &HTTPRuntime{
		client: &http.Client{Jar: jar, Timeout: config.RequestTimeout},
	}, nil
}

// Do executes the request and buffers the response body.
func (r *HTTPRuntime) Do(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: data}, nil
}

// Cookie returns a stored cookie for site by name.
func (r *HTTPRuntime) Cookie(site, name string) (string, bool) {
	u, err := url.Parse(site)
	if err != nil {
		return "", false
	}
	for _, c := range r.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// doJSON performs a JSON round trip through the runtime. If result is nil
// the response body is not decoded. Non-2xx statuses come back as an error
// carrying the status code.
func doJSON(ctx context.Context, rt Runtime, method, url string, headers map[string]string, payload, result any) (int, error) {
	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		body = data
	}

	h := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		h[k] = v
	}

	resp, err := rt.Do(ctx, &Request{Method: method, URL: url, Headers: h, Body: body})
	if err != nil {
		return 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(resp.Body, 200))
	}
	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
