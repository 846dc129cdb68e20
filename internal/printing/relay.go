package printing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Relay delivers a rendered document to a physical printer.
type Relay interface {
	Print(ctx context.Context, req PrintRequest) error
}

// RelayClient talks to the LAN print relay, the small service that owns
// the raw TCP connections to the thermal printers.
type RelayClient struct {
	baseURL string
	client  *http.Client
}

func NewRelayClient(baseURL string) *RelayClient {
	return &RelayClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type relayResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// Print posts the request to the relay and treats anything other than
// {"status":"ok"} as a delivery failure.
func (c *RelayClient) Print(ctx context.Context, req PrintRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal print request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/print", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build print request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("relay request: %w", err)
	}
	defer resp.Body.Close()

	var rr relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return fmt.Errorf("relay response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || rr.Status != "ok" {
		if rr.Error != "" {
			return fmt.Errorf("relay: %s", rr.Error)
		}
		return fmt.Errorf("relay: unexpected status %d", resp.StatusCode)
	}
	return nil
}
