// Package backend talks to an OpenAI-compatible chat completion endpoint.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/fitcoach/internal/domain"
	"github.com/ashureev/fitcoach/internal/promptctx"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "gpt-4o-mini"
	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
	defaultTimeout     = 60 * time.Second
	rawHistoryMessages = 3
	maxErrorBodyBytes  = 2048
)

// Config holds endpoint settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Tracker records token usage against a spend budget.
type Tracker interface {
	TrackCall(inputTokens, outputTokens int, model string) bool
}

// Observer receives request outcomes.
type Observer interface {
	ObserveBackend(outcome string, d time.Duration)
}

// Request is one assistant turn.
type Request struct {
	Message string
	Context promptctx.OptimizedContext
	// ForceFunction makes the backend call the named function.
	ForceFunction string
}

// FunctionCall is the structured operation chosen by the backend.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage reports token counts.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the normalized backend output.
type Response struct {
	Content      string
	FunctionCall *FunctionCall
	Usage        Usage
	Model        string
	// Fallback is set when Content is a canned reply.
	Fallback     bool
	WithinBudget bool
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model        string        `json:"model"`
	Messages     []chatMessage `json:"messages"`
	Functions    []FunctionDef `json:"functions"`
	FunctionCall any           `json:"function_call"`
	MaxTokens    int           `json:"max_tokens"`
	Temperature  float64       `json:"temperature"`
}

type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content      string        `json:"content"`
			FunctionCall *FunctionCall `json:"function_call"`
		} `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// Client sends requests to the completion endpoint.
type Client struct {
	cfg      Config
	http     *http.Client
	tracker  Tracker
	observer Observer
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTracker feeds usage into t.
func WithTracker(t Tracker) Option {
	return func(c *Client) { c.tracker = t }
}

// WithObserver reports request outcomes to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client. Missing settings fall back to defaults, except
// the API key: without one every Send returns ErrNotConfigured.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether requests will be attempted.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.cfg.APIKey) != "" && strings.TrimSpace(c.cfg.BaseURL) != ""
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Send issues one completion request. The returned Response is always usable:
// on error it carries a canned reply with Fallback set, and the error is
// ErrNotConfigured or wraps ErrNetwork.
func (c *Client) Send(ctx context.Context, req Request) (Response, error) {
	if !c.Configured() {
		return fallback(NotConfiguredReply), ErrNotConfigured
	}

	start := time.Now()
	resp, err := c.do(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if c.observer != nil {
		c.observer.ObserveBackend(outcome, time.Since(start))
	}
	if err != nil {
		c.logger.Warn("assistant backend request failed", "error", err, "model", c.cfg.Model)
		return fallback(NetworkReply), err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, req Request) (Response, error) {
	payload := completionRequest{
		Model:        c.cfg.Model,
		Messages:     buildMessages(req),
		Functions:    Functions(),
		FunctionCall: "auto",
		MaxTokens:    c.cfg.MaxTokens,
		Temperature:  c.cfg.Temperature,
	}
	if req.ForceFunction != "" {
		payload.FunctionCall = map[string]string{"name": req.ForceFunction}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("%w: encode request: %v", ErrNetwork, err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("%w: build request: %v", ErrNetwork, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBodyBytes))
		return Response{}, fmt.Errorf("%w: status %s: %s", ErrNetwork, httpResp.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded completionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&decoded); err != nil {
		return Response{}, fmt.Errorf("%w: decode response: %v", ErrNetwork, err)
	}
	if len(decoded.Choices) == 0 {
		return Response{}, fmt.Errorf("%w: empty choices", ErrNetwork)
	}

	msg := decoded.Choices[0].Message
	out := Response{
		Content:      msg.Content,
		FunctionCall: msg.FunctionCall,
		Model:        decoded.Model,
		WithinBudget: true,
	}
	if out.Model == "" {
		out.Model = c.cfg.Model
	}
	if decoded.Usage != nil {
		out.Usage = *decoded.Usage
		if c.tracker != nil {
			out.WithinBudget = c.tracker.TrackCall(out.Usage.PromptTokens, out.Usage.CompletionTokens, out.Model)
		}
	}
	return out, nil
}

// buildMessages sends the last few user and assistant turns verbatim. System
// summaries are rendered into the system prompt instead.
func buildMessages(req Request) []chatMessage {
	history := make([]domain.ChatMessage, 0, len(req.Context.ChatHistory))
	for _, m := range req.Context.ChatHistory {
		if m.Role != domain.RoleSystem {
			history = append(history, m)
		}
	}
	if len(history) > rawHistoryMessages {
		history = history[len(history)-rawHistoryMessages:]
	}
	msgs := make([]chatMessage, 0, len(history)+2)
	msgs = append(msgs, chatMessage{Role: string(domain.RoleSystem), Content: SystemPrompt(req.Context)})
	for _, m := range history {
		msgs = append(msgs, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, chatMessage{Role: string(domain.RoleUser), Content: req.Message})
	return msgs
}

func fallback(text string) Response {
	return Response{Content: text, Fallback: true, WithinBudget: true}
}
