// Package llm talks to OpenAI-compatible endpoints (/chat/completions,
// /models, /embeddings). Calls are made once; there is no retry layer.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devforge-org/devforge-backend/internal/logger"
)

const (
	DefaultTimeout  = 120 * time.Second
	maxResponseSize = 10 << 20
)

var ErrEmptyResponse = errors.New("llm returned no choices")

// APIError is a non-2xx answer from the endpoint.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm endpoint HTTP %d: %s", e.Status, e.Message)
}

// Endpoint is the resolved request target of one LLM configuration.
type Endpoint struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   *int
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResult struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
	Duration     time.Duration
}

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []Message      `json:"messages"`
	Temperature   float64        `json:"temperature"`
	MaxTokens     *int           `json:"max_tokens,omitempty"`
	Stream        bool           `json:"stream"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	log        *logger.Logger
	http       *http.Client
	streamHTTP *http.Client
}

func NewClient(log *logger.Logger) *Client {
	return &Client{
		log:  log.With("service", "LLMClient"),
		http: &http.Client{Timeout: DefaultTimeout},
		// streaming is bounded by the request context only
		streamHTTP: &http.Client{},
	}
}

// NewClientWithHTTP lets tests inject a client pointed at httptest servers.
func NewClientWithHTTP(log *logger.Logger, hc *http.Client) *Client {
	return &Client{log: log.With("service", "LLMClient"), http: hc, streamHTTP: hc}
}

func endpointURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + path
}

func (c *Client) newRequest(ctx context.Context, method string, ep Endpoint, path string, body interface{}) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpointURL(ep.BaseURL, path), rdr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}
	return req, nil
}

func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", maxResponseSize)
	}
	return body, nil
}

func errorFromResponse(status int, body []byte) error {
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return &APIError{Status: status, Message: parsed.Error.Message}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}

// Chat performs one non-streaming chat completion.
func (c *Client) Chat(ctx context.Context, ep Endpoint, messages []Message) (*ChatResult, error) {
	start := time.Now()
	req, err := c.newRequest(ctx, http.MethodPost, ep, "/chat/completions", chatRequest{
		Model:       ep.Model,
		Messages:    messages,
		Temperature: ep.Temperature,
		MaxTokens:   ep.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("chat completion request failed", "model", ep.Model, "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("chat completion responded with non-2xx", "statusCode", resp.StatusCode)
		return nil, errorFromResponse(resp.StatusCode, body)
	}
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	out := &ChatResult{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		FinishReason: parsed.Choices[0].FinishReason,
		Usage:        parsed.Usage,
		Duration:     time.Since(start),
	}
	if out.Model == "" {
		out.Model = ep.Model
	}
	c.log.Debug("chat completion done", "model", out.Model, "completionTokens", out.Usage.CompletionTokens, "durationMs", out.Duration.Milliseconds())
	return out, nil
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	// Ollama's native /api/tags shape, accepted for convenience.
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the model ids advertised by {base}/models.
func (c *Client) ListModels(ctx context.Context, ep Endpoint) ([]string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, ep, "/models", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := readBody(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(resp.StatusCode, body)
	}
	var parsed modelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse models: %w", err)
	}
	ids := make([]string, 0, len(parsed.Data)+len(parsed.Models))
	for _, m := range parsed.Data {
		ids = append(ids, m.ID)
	}
	for _, m := range parsed.Models {
		ids = append(ids, m.Name)
	}
	return ids, nil
}

type ProbeResult struct {
	OK        bool   `json:"ok"`
	Status    int    `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Models    int    `json:"models"`
	Error     string `json:"error,omitempty"`
}

// Probe checks reachability through GET {base}/models. Failures are reported
// in the result, never as an error.
func (c *Client) Probe(ctx context.Context, ep Endpoint) ProbeResult {
	start := time.Now()
	models, err := c.ListModels(ctx, ep)
	res := ProbeResult{LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			res.Status = apiErr.Status
		}
		res.Error = err.Error()
		return res
	}
	res.OK = true
	res.Status = http.StatusOK
	res.Models = len(models)
	return res
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input, in input order.
func (c *Client) Embed(ctx context.Context, ep Endpoint, model string, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	req, err := c.newRequest(ctx, http.MethodPost, ep, "/embeddings", embeddingRequest{Model: model, Input: inputs})
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := readBody(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(resp.StatusCode, body)
	}
	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse embeddings: %w", err)
	}
	if len(parsed.Data) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(parsed.Data))
	}
	out := make([][]float32, len(inputs))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
