package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPOracle asks an external decision service for actions. The view
// is POSTed as JSON and the service replies with a decision body.
// Timeouts and malformed replies surface as errors; the driver falls
// back deterministically.
type HTTPOracle struct {
	url    string
	client *http.Client
}

// NewHTTPOracle creates an oracle that calls an external HTTP
// endpoint. The client timeout backstops callers that forget a
// context deadline.
func NewHTTPOracle(url string) *HTTPOracle {
	return &HTTPOracle{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (o *HTTPOracle) Decide(ctx context.Context, view View) (Decision, error) {
	reqBody, err := json.Marshal(view)
	if err != nil {
		return Decision{}, fmt.Errorf("marshal view: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(reqBody))
	if err != nil {
		return Decision{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return Decision{}, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Decision{}, fmt.Errorf("oracle status %d", resp.StatusCode)
	}

	// Limit response body to 1MB to avoid pathological responses
	limitedReader := io.LimitReader(resp.Body, 1<<20)

	var d Decision
	if err := json.NewDecoder(limitedReader).Decode(&d); err != nil {
		return Decision{}, fmt.Errorf("decode decision: %w", err)
	}
	return d, nil
}
