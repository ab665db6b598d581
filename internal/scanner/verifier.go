package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/go_pickup/internal/domain"
)

// HTTPVerifier redeems tokens against the pickup service's /verify endpoint.
type HTTPVerifier struct {
	url    string
	client *http.Client
}

func NewHTTPVerifier(url string) *HTTPVerifier {
	return &HTTPVerifier{
		url:    url,
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

type verifyResponse struct {
	Outcome
	Code    string   `json:"code"`
	Details string   `json:"details"`
	Order   *Outcome `json:"order"`
}

// Verify maps the HTTP answer back onto the domain error taxonomy. For finalized
// orders the returned Outcome carries the stored snapshot alongside the error.
func (v *HTTPVerifier) Verify(ctx context.Context, token string) (Outcome, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return Outcome{}, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: verify: %v", domain.ErrInternal, err)
	}
	defer resp.Body.Close()

	var decoded verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && resp.StatusCode < http.StatusInternalServerError {
		return Outcome{}, fmt.Errorf("%w: decode verify response: %v", domain.ErrInternal, err)
	}

	var snapshot Outcome
	if decoded.Order != nil {
		snapshot = *decoded.Order
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return decoded.Outcome, nil
	case http.StatusBadRequest:
		return Outcome{}, fmt.Errorf("%w: %s", domain.ErrValidation, decoded.Details)
	case http.StatusNotFound:
		return Outcome{}, fmt.Errorf("%w: unknown token", domain.ErrNotFound)
	case http.StatusGone:
		return snapshot, fmt.Errorf("%w: order is %s", domain.ErrExpired, snapshot.Status)
	case http.StatusConflict:
		if decoded.Code == "conflict" {
			return Outcome{}, fmt.Errorf("%w: %s", domain.ErrConflict, decoded.Details)
		}
		return snapshot, fmt.Errorf("%w: order is %s", domain.ErrAlreadyFinalized, snapshot.Status)
	default:
		return Outcome{}, fmt.Errorf("%w: verify returned %d", domain.ErrInternal, resp.StatusCode)
	}
}
