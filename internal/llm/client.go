// Package llm calls an OpenAI-compatible chat-completions API to generate
// answers.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/biorag/biorag/internal/config"
	"github.com/biorag/biorag/internal/errors"
)

const (
	defaultTimeout    = 90 * time.Second
	defaultMaxRetries = 3
)

// Generator produces an answer for a filled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
	Close() error
}

// Client is a chat-completions client for Together or any API speaking the
// same protocol.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	temp       float64
	maxTokens  int
	maxRetries int
}

var _ Generator = (*Client)(nil)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient creates a generation client from configuration. A missing API
// key is a fatal construction error, never silently defaulted.
func NewClient(cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.ConfigError(errors.ErrCodeMissingAPIKey,
			"no API key configured for the language model", nil).
			WithSuggestion("set TOGETHER_API_KEY in the environment or a .env file")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultTogetherBaseURL
	}

	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.ModelName,
		temp:       cfg.Temperature,
		maxTokens:  cfg.MaxTokens,
		maxRetries: defaultMaxRetries,
	}, nil
}

// Generate sends the prompt as a single user message and returns the
// model's answer text. Transient failures are retried with backoff,
// honoring Retry-After on 429 responses.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temp,
		MaxTokens:   c.maxTokens,
		Stream:      false,
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(500<<attempt) * time.Millisecond
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, retryAfter, err := c.doGenerate(ctx, body)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if retryAfter > 0 {
			slog.Debug("rate limited, honoring Retry-After", "seconds", retryAfter.Seconds())
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryAfter):
			}
		}
		slog.Debug("generation attempt failed",
			"attempt", attempt+1, "max_retries", c.maxRetries, "error", err)
	}

	return "", errors.NetworkError(errors.ErrCodeGenerationFailed,
		fmt.Sprintf("generation failed after %d attempts", c.maxRetries), lastErr)
}

// doGenerate performs one request. The returned duration is a server-asked
// delay before the next attempt, zero when absent.
func (c *Client) doGenerate(ctx context.Context, body []byte) (string, time.Duration, error) {
	reqCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		var retryAfter time.Duration
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
		return "", retryAfter, fmt.Errorf("rate limited (status 429)")
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", 0, fmt.Errorf("generation failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != nil {
		return "", 0, fmt.Errorf("api error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", 0, fmt.Errorf("response contained no choices")
	}

	return result.Choices[0].Message.Content, 0, nil
}

// ModelName returns the configured model identifier.
func (c *Client) ModelName() string { return c.model }

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
