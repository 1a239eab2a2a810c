// ABOUTME: Channel-delivery HTTP client and environment endpoint mapping
// ABOUTME: Posts the serialized response aggregate to the channel sendMessage endpoint

package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Fixed sendMessage endpoints per environment.
const (
	DevURL  = "https://channel.dev.captivat.io/api/channel/sendMessage"
	ProdURL = "https://channel.prod.captivat.io/api/channel/sendMessage"
)

// Environment names.
const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

// EndpointFor maps an environment name to its delivery endpoint. Any value
// other than "prod" deterministically maps to the dev endpoint; this is the
// documented contract for unrecognized environments.
func EndpointFor(environment string) string {
	if environment == EnvProd {
		return ProdURL
	}
	return DevURL
}

// Error is a failed delivery: the endpoint returned a non-2xx status.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("delivery failed with status %d: %s", e.Status, e.Body)
}

// Client posts JSON payloads to a channel-delivery endpoint.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a delivery client. A nil httpClient gets a default
// with a 30s timeout.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient}
}

// Send POSTs the payload as JSON to url and returns the response body.
// Non-2xx statuses are returned as *Error.
func (c *Client) Send(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Status: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
