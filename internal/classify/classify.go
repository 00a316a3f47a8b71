// Package classify maps raw transport failures into the closed error taxonomy
// the rest of the request layer branches on. Classification is total and
// deterministic: every failure produces exactly one Kind.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/casaflow/relay-go/internal/transport"
)

// Kind is the closed failure taxonomy. Business-logic callers only ever see
// one of these, never a raw transport error.
type Kind int

const (
	// Network indicates the request never produced a response (DNS failure,
	// connection refused or reset) for a non-timeout reason.
	Network Kind = iota
	// Timeout indicates the request was abandoned on a timeout signal.
	Timeout
	// Unauthorized indicates HTTP 401; triggers credential renewal.
	Unauthorized
	// Forbidden indicates HTTP 403.
	Forbidden
	// NotFound indicates HTTP 404.
	NotFound
	// Validation indicates HTTP 400 or 422, optionally with field errors.
	Validation
	// ServerError indicates HTTP 500, 502, 503 or 504.
	ServerError
	// Unknown covers every other status or a malformed outcome.
	Unknown
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case Validation:
		return "validation"
	case ServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Immutable once constructed.
type Error struct {
	Kind        Kind
	HTTPStatus  int
	FieldErrors map[string][]string
	Message     string
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// KindOf extracts the classified kind from err, or Unknown if err was never
// classified. Callers use this to branch without unwrapping by hand.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Unknown
}

// Classify maps a transport outcome to exactly one classified error. Either
// resp or err is non-nil; a nil err with a success status never reaches here.
func Classify(resp *transport.Response, err error) *Error {
	if err != nil {
		return classifyTransportError(err)
	}
	return classifyResponse(resp)
}

func classifyTransportError(err error) *Error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &Error{Kind: Timeout, Message: err.Error()}
	}
	return &Error{Kind: Network, Message: err.Error()}
}

func classifyResponse(resp *transport.Response) *Error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return &Error{Kind: Unauthorized, HTTPStatus: resp.StatusCode, Message: bodyMessage(resp)}
	case http.StatusForbidden:
		return &Error{Kind: Forbidden, HTTPStatus: resp.StatusCode, Message: bodyMessage(resp)}
	case http.StatusNotFound:
		return &Error{Kind: NotFound, HTTPStatus: resp.StatusCode, Message: bodyMessage(resp)}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &Error{
			Kind:        Validation,
			HTTPStatus:  resp.StatusCode,
			FieldErrors: parseFieldErrors(resp.Body),
			Message:     bodyMessage(resp),
		}
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &Error{Kind: ServerError, HTTPStatus: resp.StatusCode, Message: bodyMessage(resp)}
	default:
		return &Error{Kind: Unknown, HTTPStatus: resp.StatusCode, Message: bodyMessage(resp)}
	}
}

// errorBody is the error envelope the API emits for failed requests.
type errorBody struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

// parseFieldErrors copies a field-keyed error map out of the body verbatim.
// Returns nil when the body has no recognizable map.
func parseFieldErrors(body []byte) map[string][]string {
	if len(body) == 0 {
		return nil
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Errors) > 0 {
		return eb.Errors
	}
	// Some endpoints return the map at the top level.
	var flat map[string][]string
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return flat
	}
	return nil
}

func bodyMessage(resp *transport.Response) string {
	var eb errorBody
	if err := json.Unmarshal(resp.Body, &eb); err == nil && eb.Message != "" {
		return eb.Message
	}
	return http.StatusText(resp.StatusCode)
}
