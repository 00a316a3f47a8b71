// Package transport defines the boundary between the request layer and the
// wire. A Transport takes a Descriptor and returns either a Response or a raw
// error; it carries no retry or authentication logic of its own.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Descriptor describes a single logical request. Callers fill it in once; the
// executor clones it per dispatch, so a Descriptor is safe to reuse.
type Descriptor struct {
	Method   string
	Path     string
	Header   http.Header
	Body     []byte
	SkipAuth bool
}

// Clone returns a deep copy so per-attempt header mutation (bearer injection)
// never leaks back into the caller's Descriptor.
func (d *Descriptor) Clone() *Descriptor {
	c := &Descriptor{
		Method:   d.Method,
		Path:     d.Path,
		SkipAuth: d.SkipAuth,
	}
	if d.Header != nil {
		c.Header = d.Header.Clone()
	} else {
		c.Header = make(http.Header)
	}
	if d.Body != nil {
		c.Body = append([]byte(nil), d.Body...)
	}
	return c
}

// Response is the fully-read result of a dispatch. The body is buffered so
// classification and callers can both inspect it without consuming a stream.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport sends a single request. Implementations must surface enough of the
// failure (status code, body, or raw transport error) for classification.
type Transport interface {
	Send(ctx context.Context, d *Descriptor) (*Response, error)
}

// HTTPTransport is the net/http-backed Transport used in production.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPTransport creates a transport rooted at baseURL. A zero timeout means
// no per-request limit beyond the caller's context. With debug logging enabled
// the underlying client traces full wire traffic.
func NewHTTPTransport(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPTransport {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("transport")

	client := &http.Client{Timeout: timeout}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		client.Transport = newTraceTransport(nil, logger)
	}

	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Send dispatches the request and reads the response body in full.
// The raw error is returned unwrapped so the classifier can inspect it.
func (t *HTTPTransport) Send(ctx context.Context, d *Descriptor) (*Response, error) {
	url := t.baseURL + "/" + strings.TrimLeft(d.Path, "/")

	var body io.Reader
	if len(d.Body) > 0 {
		body = bytes.NewReader(d.Body)
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range d.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if len(d.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	t.logger.Debug("request dispatched",
		zap.String("method", d.Method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Int("body_bytes", len(data)))

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
