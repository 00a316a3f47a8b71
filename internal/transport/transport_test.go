package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDescriptor_Clone(t *testing.T) {
	d := &Descriptor{
		Method: http.MethodPost,
		Path:   "/payments",
		Header: http.Header{"X-Trace": []string{"abc"}},
		Body:   []byte(`{"amount":10}`),
	}

	c := d.Clone()
	c.Header.Set("Authorization", "Bearer token")
	c.Body[0] = '['

	assert.Empty(t, d.Header.Get("Authorization"), "clone header mutation must not leak")
	assert.Equal(t, byte('{'), d.Body[0], "clone body mutation must not leak")
	assert.Equal(t, "abc", c.Header.Get("X-Trace"))
}

func TestDescriptor_CloneNilHeader(t *testing.T) {
	c := (&Descriptor{Method: http.MethodGet, Path: "/rooms"}).Clone()
	require.NotNil(t, c.Header)
	c.Header.Set("Authorization", "Bearer token") // must not panic
}

func TestHTTPTransport_Send(t *testing.T) {
	t.Run("dispatches method, path, headers and body", func(t *testing.T) {
		var got *http.Request
		var gotBody []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r
			gotBody, _ = io.ReadAll(r.Body)
			w.Header().Set("X-Request-Id", "req-1")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":1}`))
		}))
		defer srv.Close()

		tr := NewHTTPTransport(srv.URL, 5*time.Second, zap.NewNop())
		resp, err := tr.Send(context.Background(), &Descriptor{
			Method: http.MethodPost,
			Path:   "/tenants",
			Header: http.Header{"X-Trace": []string{"abc"}},
			Body:   []byte(`{"name":"t"}`),
		})

		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, got.Method)
		assert.Equal(t, "/tenants", got.URL.Path)
		assert.Equal(t, "abc", got.Header.Get("X-Trace"))
		assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
		assert.Equal(t, `{"name":"t"}`, string(gotBody))

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "req-1", resp.Header.Get("X-Request-Id"))
		assert.Equal(t, `{"id":1}`, string(resp.Body))
	})

	t.Run("joins base URL and path regardless of slashes", func(t *testing.T) {
		var gotPath string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
		}))
		defer srv.Close()

		tr := NewHTTPTransport(srv.URL+"/", time.Second, zap.NewNop())
		_, err := tr.Send(context.Background(), &Descriptor{Method: http.MethodGet, Path: "rooms"})
		require.NoError(t, err)
		assert.Equal(t, "/rooms", gotPath)
	})

	t.Run("non-2xx responses are returned, not errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		tr := NewHTTPTransport(srv.URL, time.Second, zap.NewNop())
		resp, err := tr.Send(context.Background(), &Descriptor{Method: http.MethodGet, Path: "/x"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("unreachable host returns a raw error", func(t *testing.T) {
		tr := NewHTTPTransport("http://127.0.0.1:1", time.Second, zap.NewNop())
		_, err := tr.Send(context.Background(), &Descriptor{Method: http.MethodGet, Path: "/x"})
		assert.Error(t, err)
	})
}

func TestTraceTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	tr := NewHTTPTransport(srv.URL, time.Second, zap.New(core))

	resp, err := tr.Send(context.Background(), &Descriptor{
		Method: http.MethodPost,
		Path:   "/rooms",
		Header: http.Header{"Authorization": []string{"Bearer secret-token"}},
		Body:   []byte(`{"name":"101"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(resp.Body), "tracing must not consume the body")

	assert.NotZero(t, logs.FilterMessage("request").Len())
	assert.NotZero(t, logs.FilterMessage("response").Len())

	for _, entry := range logs.All() {
		for _, f := range entry.Context {
			if h, ok := f.Interface.(http.Header); ok {
				assert.NotContains(t, h.Get("Authorization"), "secret-token", "traced headers must redact credentials")
			}
		}
	}
}
