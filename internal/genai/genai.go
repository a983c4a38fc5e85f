// Package genai provides the text-generation capability consumed by the
// coaching pipeline. The client speaks the OpenAI-compatible chat completions
// protocol; callers depend on the Generator interface so the capability can
// be faked in tests.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Generator produces text from a role-scoped prompt pair.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GenerationError reports a failure of the external generation capability:
// timeout, quota, transport failure, or a malformed response.
type GenerationError struct {
	Op     string
	Status int
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("generation %s: status %d", e.Op, e.Status)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Config controls the generation request parameters. Output length is bounded
// and the sampling temperature is fixed per deployment.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Client is a resty-backed Generator.
type Client struct {
	http *resty.Client
	cfg  Config
}

// NewClient constructs a Client from cfg, applying defaults for unset limits.
func NewClient(cfg Config) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}
	return &Client{http: c, cfg: cfg}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate requests a completion for the prompt pair. Any transport error,
// non-200 status, or empty completion is returned as *GenerationError.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := chatRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&req).
		Post("/v1/chat/completions")
	if err != nil {
		return "", &GenerationError{Op: "request", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return "", &GenerationError{Op: "request", Status: resp.StatusCode()}
	}

	var cr chatResponse
	if err := json.Unmarshal(resp.Body(), &cr); err != nil {
		return "", &GenerationError{Op: "decode", Err: err}
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return "", &GenerationError{Op: "decode", Err: fmt.Errorf("empty completion")}
	}
	return cr.Choices[0].Message.Content, nil
}
