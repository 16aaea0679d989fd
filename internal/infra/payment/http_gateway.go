package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"invoice-ocr-platform/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*HTTPGateway)(nil)

// HTTPGateway verifies transactions against the provider's status endpoint.
type HTTPGateway struct {
	verifyURL string
	apiKey    string
	client    *http.Client
}

func NewHTTPGateway(verifyURL, apiKey string) *HTTPGateway {
	return &HTTPGateway{
		verifyURL: verifyURL,
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

type verifyResponse struct {
	Data struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
	} `json:"data"`
	Errors []interface{} `json:"errors"`
}

func (g *HTTPGateway) Verify(ctx context.Context, reference string, amount int64) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"reference": reference,
		"amount":    amount,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.verifyURL, bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read provider response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider returned %d: %s", resp.StatusCode, string(body))
	}

	var response verifyResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to unmarshal provider response: %w, body: %s", err, string(body))
	}
	if len(response.Errors) > 0 {
		errorBytes, _ := json.Marshal(response.Errors)
		return "", fmt.Errorf("provider errors: %s", string(errorBytes))
	}
	return response.Data.Status, nil
}
