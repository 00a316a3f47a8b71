package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/casaflow/relay-go/internal/classify"
	"github.com/casaflow/relay-go/internal/credstore"
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// HTTPRefresher calls the remote refresh endpoint. It deliberately bypasses
// the executor and the generic retry path: a refresh-endpoint failure is
// terminal for that renewal attempt.
type HTTPRefresher struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPRefresher creates a refresher for the given absolute endpoint URL.
func NewHTTPRefresher(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPRefresher {
	if logger == nil {
		logger = zap.L()
	}
	return &HTTPRefresher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.Named("refresher"),
	}
}

// Renew exchanges the refresh token for a new credential pair. A 4xx response
// means the refresh token was rejected and maps to Unauthorized; a 5xx maps to
// ServerError. Both are terminal here, never retried.
func (r *HTTPRefresher) Renew(ctx context.Context, refreshToken string) (credstore.Credential, error) {
	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return credstore.Credential{}, fmt.Errorf("marshal refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return credstore.Credential{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return credstore.Credential{}, classify.Classify(nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return credstore.Credential{}, classify.Classify(nil, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// Fall through to decode.
	case resp.StatusCode >= 500:
		return credstore.Credential{}, &classify.Error{
			Kind:       classify.ServerError,
			HTTPStatus: resp.StatusCode,
			Message:    "refresh endpoint unavailable",
		}
	default:
		r.logger.Warn("refresh token rejected", zap.Int("status", resp.StatusCode))
		return credstore.Credential{}, &classify.Error{
			Kind:       classify.Unauthorized,
			HTTPStatus: resp.StatusCode,
			Message:    "refresh token rejected",
		}
	}

	var rr refreshResponse
	if err := json.Unmarshal(body, &rr); err != nil || rr.AccessToken == "" {
		return credstore.Credential{}, &classify.Error{
			Kind:       classify.Unauthorized,
			HTTPStatus: resp.StatusCode,
			Message:    "malformed refresh response",
		}
	}

	return credstore.Credential{
		AccessToken:  rr.AccessToken,
		RefreshToken: rr.RefreshToken,
	}, nil
}
