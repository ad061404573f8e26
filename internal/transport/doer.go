package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// Request is the wire-format-agnostic network request the core issues.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

// Response carries the raw result of a network request.
type Response struct {
	Status   int
	Headers  map[string]string
	Body     []byte
	Duration time.Duration
}

// Doer is the sole network I/O surface of the core. Tests inject
// deterministic doubles; production uses HTTPDoer.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// DoerFunc adapts a function to the Doer interface.
type DoerFunc func(ctx context.Context, req Request) (*Response, error)

func (f DoerFunc) Do(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// HTTPDoer executes requests over net/http.
type HTTPDoer struct {
	client *http.Client
}

var _ Doer = (*HTTPDoer)(nil)

// NewHTTPDoer creates an HTTP-backed Doer. Per-attempt timeouts come from
// each Request, so the shared client carries none.
func NewHTTPDoer() *HTTPDoer {
	return &HTTPDoer{client: &http.Client{}}
}

// Do executes a single HTTP request.
func (d *HTTPDoer) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &ConnectionError{URL: req.URL, Transient: false, Err: err}
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	start := time.Now()
	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, NewConnectionError(req.URL, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewConnectionError(req.URL, err)
	}

	headers := make(map[string]string, len(httpResp.Header))
	for key := range httpResp.Header {
		headers[key] = httpResp.Header.Get(key)
	}

	return &Response{
		Status:   httpResp.StatusCode,
		Headers:  headers,
		Body:     respBody,
		Duration: time.Since(start),
	}, nil
}
