// Package oracle wraps the external reasoning model behind two narrow calls:
// privacy classification and item extraction. The model is a black box, the
// adapter's job is enforcing the output contract.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"schoolmail/pkg/circuitbreaker"
	"schoolmail/pkg/metrics"
)

const (
	defaultTimeout = 60 * time.Second
	maxTokens      = 4096
	apiVersion     = "2023-06-01"
)

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:  logger,
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// complete sends one prompt and returns the model's text reply. The circuit
// breaker trips after repeated transport failures so a dead oracle fails the
// rest of the batch fast.
func (c *Client) complete(ctx context.Context, endpoint, prompt string) (string, error) {
	var text string

	start := time.Now()
	err := c.breaker.Execute(func() error {
		var callErr error
		text, callErr = c.doRequest(ctx, prompt)
		return callErr
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordOracleCallLatency(endpoint, status, time.Since(start))

	return text, err
}

func (c *Client) doRequest(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("oracle returned 5xx: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("oracle returned %d: %s", resp.StatusCode, string(payload))
	}

	var parsed messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode oracle response: %w", err)
	}

	for _, block := range parsed.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", &SchemaError{Reason: "response has no text content"}
}
