package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casaflow/relay-go/internal/transport"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify_TransportErrors(t *testing.T) {
	t.Run("timeout signal maps to Timeout", func(t *testing.T) {
		cerr := Classify(nil, timeoutError{})
		assert.Equal(t, Timeout, cerr.Kind)
	})

	t.Run("context deadline maps to Timeout", func(t *testing.T) {
		cerr := Classify(nil, fmt.Errorf("request: %w", context.DeadlineExceeded))
		assert.Equal(t, Timeout, cerr.Kind)
	})

	t.Run("other transport failures map to Network", func(t *testing.T) {
		cerr := Classify(nil, errors.New("dial tcp 10.0.0.1:443: connection refused"))
		assert.Equal(t, Network, cerr.Kind)
		assert.Zero(t, cerr.HTTPStatus)
	})
}

func TestClassify_Statuses(t *testing.T) {
	cases := []struct {
		status int
		want   Kind
	}{
		{401, Unauthorized},
		{403, Forbidden},
		{404, NotFound},
		{400, Validation},
		{422, Validation},
		{500, ServerError},
		{502, ServerError},
		{503, ServerError},
		{504, ServerError},
		{418, Unknown},
		{301, Unknown},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("status %d", tc.status), func(t *testing.T) {
			cerr := Classify(&transport.Response{StatusCode: tc.status}, nil)
			assert.Equal(t, tc.want, cerr.Kind)
			assert.Equal(t, tc.status, cerr.HTTPStatus)
		})
	}
}

func TestClassify_FieldErrors(t *testing.T) {
	t.Run("enveloped field errors copied verbatim", func(t *testing.T) {
		body := []byte(`{"message":"validation failed","errors":{"email":["is invalid","is taken"],"name":["is required"]}}`)
		cerr := Classify(&transport.Response{StatusCode: 422, Body: body}, nil)

		require.Equal(t, Validation, cerr.Kind)
		assert.Equal(t, map[string][]string{
			"email": {"is invalid", "is taken"},
			"name":  {"is required"},
		}, cerr.FieldErrors)
		assert.Equal(t, "validation failed", cerr.Message)
	})

	t.Run("top-level field map accepted", func(t *testing.T) {
		body := []byte(`{"amount":["must be positive"]}`)
		cerr := Classify(&transport.Response{StatusCode: 400, Body: body}, nil)
		assert.Equal(t, map[string][]string{"amount": {"must be positive"}}, cerr.FieldErrors)
	})

	t.Run("malformed body yields no field errors", func(t *testing.T) {
		cerr := Classify(&transport.Response{StatusCode: 400, Body: []byte("<html>")}, nil)
		assert.Equal(t, Validation, cerr.Kind)
		assert.Nil(t, cerr.FieldErrors)
	})
}

func TestKindOf(t *testing.T) {
	t.Run("classified error", func(t *testing.T) {
		err := fmt.Errorf("call failed: %w", &Error{Kind: ServerError, HTTPStatus: 503})
		assert.Equal(t, ServerError, KindOf(err))
	})

	t.Run("plain error is Unknown", func(t *testing.T) {
		assert.Equal(t, Unknown, KindOf(errors.New("boom")))
	})
}

func TestKind_String(t *testing.T) {
	kinds := map[Kind]string{
		Network:      "network",
		Timeout:      "timeout",
		Unauthorized: "unauthorized",
		Forbidden:    "forbidden",
		NotFound:     "not_found",
		Validation:   "validation",
		ServerError:  "server_error",
		Unknown:      "unknown",
	}
	for k, want := range kinds {
		assert.Equal(t, want, k.String())
	}
}
