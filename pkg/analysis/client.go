package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the contract with the remote emissions analysis backend. All of
// the orchestrator's network traffic goes through this interface, so tests
// can substitute a scripted implementation.
type Client interface {
	StartSession(ctx context.Context, profile CompanyProfile) (string, error)
	NextStep(ctx context.Context, req StepRequest) (*StepResponse, error)
	UpdateSummary(ctx context.Context, sessionID, category string) error
	CalculateEmissions(ctx context.Context, req EmissionsRequest) (*EmissionsResponse, error)
	CheckConfidence(ctx context.Context, sessionID, category string) (*ConfidenceResponse, error)
	FetchResults(ctx context.Context, sessionID string) (*ResultsResponse, error)
}

type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

var _ Client = &HTTPClient{}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *HTTPClient) StartSession(ctx context.Context, profile CompanyProfile) (string, error) {
	body, err := c.postJSON(ctx, "/sessions/start", map[string]any{
		"company_profile": profile,
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("backend returned no session id")
	}
	return resp.SessionID, nil
}

func (c *HTTPClient) NextStep(ctx context.Context, req StepRequest) (*StepResponse, error) {
	body, err := c.postJSON(ctx, "/chat/next", req)
	if err != nil {
		return nil, err
	}
	return decodeStepResponse(body)
}

func (c *HTTPClient) UpdateSummary(ctx context.Context, sessionID, category string) error {
	_, err := c.postJSON(ctx, "/summary/update", map[string]string{
		"session_id": sessionID,
		"category":   category,
	})
	return err
}

func (c *HTTPClient) CalculateEmissions(ctx context.Context, req EmissionsRequest) (*EmissionsResponse, error) {
	body, err := c.postJSON(ctx, "/emissions/calculate", req)
	if err != nil {
		return nil, err
	}
	var resp EmissionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}

func (c *HTTPClient) CheckConfidence(ctx context.Context, sessionID, category string) (*ConfidenceResponse, error) {
	body, err := c.postJSON(ctx, "/confidence/check", map[string]string{
		"session_id": sessionID,
		"category":   category,
	})
	if err != nil {
		return nil, err
	}
	var resp ConfidenceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}

func (c *HTTPClient) FetchResults(ctx context.Context, sessionID string) (*ResultsResponse, error) {
	url := c.BaseURL + "/results/" + sessionID
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var resp ResultsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *HTTPClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("analysis error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}
	return bodyBytes, nil
}

// decodeStepResponse tolerates the backend occasionally wrapping the step
// payload in a single-element array.
func decodeStepResponse(body []byte) (*StepResponse, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []StepResponse
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		if len(list) == 0 {
			return nil, nil
		}
		return &list[0], nil
	}

	var resp StepResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}
