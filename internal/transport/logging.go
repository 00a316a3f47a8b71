package transport

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Bodies above this size are logged as a preview only.
const maxTracedBody = 10000

// traceTransport wraps an http.RoundTripper to log full request and response
// traffic. Installed only when the transport logger has debug enabled.
type traceTransport struct {
	base   http.RoundTripper
	logger *zap.Logger
}

func newTraceTransport(base http.RoundTripper, logger *zap.Logger) *traceTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &traceTransport{
		base:   base,
		logger: logger.Named("trace"),
	}
}

func (t *traceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	t.logger.Debug("request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Any("headers", redactAuth(req.Header)))

	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		if err == nil {
			req.Body = io.NopCloser(bytes.NewReader(data))
			t.logBody("request body", data)
		}
	}

	resp, err := t.base.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		t.logger.Debug("request failed",
			zap.Error(err),
			zap.Duration("elapsed", elapsed))
		return nil, err
	}

	t.logger.Debug("response",
		zap.Int("status", resp.StatusCode),
		zap.Any("headers", resp.Header),
		zap.Duration("elapsed", elapsed))

	resp.Body = &traceReader{rc: resp.Body, tt: t}
	return resp, nil
}

func (t *traceTransport) logBody(msg string, data []byte) {
	if len(data) == 0 {
		return
	}
	if len(data) > maxTracedBody {
		t.logger.Debug(msg+" (truncated)",
			zap.Int("total_size", len(data)),
			zap.ByteString("preview", data[:1000]))
		return
	}
	t.logger.Debug(msg, zap.ByteString("body", data))
}

// redactAuth hides credential material in traced headers.
func redactAuth(h http.Header) http.Header {
	if h.Get("Authorization") == "" {
		return h
	}
	c := h.Clone()
	c.Set("Authorization", "[redacted]")
	return c
}

// traceReader buffers the response body and logs it once fully read.
type traceReader struct {
	rc     io.ReadCloser
	tt     *traceTransport
	buf    bytes.Buffer
	logged bool
}

func (r *traceReader) Read(p []byte) (n int, err error) {
	n, err = r.rc.Read(p)
	if n > 0 && r.buf.Len() < maxTracedBody+1 {
		r.buf.Write(p[:n])
	}
	if err == io.EOF && !r.logged {
		r.logged = true
		r.tt.logBody("response body", r.buf.Bytes())
	}
	return n, err
}

func (r *traceReader) Close() error {
	return r.rc.Close()
}
