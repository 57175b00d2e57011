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

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	alexerrors "govai/internal/errors"
	"govai/internal/httpclient"
	"govai/internal/logging"
	"govai/internal/observability"
)

const (
	defaultLLMTimeout = 600 * time.Second
	maxResponseBytes  = 32 << 20
)

// OpenAIClient speaks the OpenAI-compatible chat completions API.
type OpenAIClient struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	logger     logging.Logger
	metrics    *observability.Metrics
	tracer     *observability.TracerProvider
}

var _ StreamingClient = (*OpenAIClient)(nil)

// Option customizes an OpenAIClient.
type Option func(*OpenAIClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *OpenAIClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *OpenAIClient) { c.logger = logging.OrNop(logger) }
}

// WithMetrics records request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *OpenAIClient) { c.metrics = m }
}

// WithTracer records a span per request.
func WithTracer(tp *observability.TracerProvider) Option {
	return func(c *OpenAIClient) { c.tracer = tp }
}

// NewOpenAIClient builds a client that posts to <BaseURL>/chat/completions.
func NewOpenAIClient(cfg Config, opts ...Option) (*OpenAIClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("llm: base URL is required")
	}
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	logger := logging.NewComponentLogger("llm." + cfg.Provider)

	c := &OpenAIClient{
		cfg:      cfg,
		endpoint: base + "/chat/completions",
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = httpclient.New(timeout, c.logger)
	}
	return c, nil
}

// Provider returns the provider label.
func (c *OpenAIClient) Provider() string { return c.cfg.Provider }

// Model returns the configured model, possibly empty.
func (c *OpenAIClient) Model() string { return c.cfg.Model }

type chatRequest struct {
	Model     string    `json:"model,omitempty"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Stream    bool      `json:"stream"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type streamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete performs a buffered completion.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (completion *Completion, err error) {
	requestID, prefix := c.requestPrefix(req)
	ctx, span := c.tracer.StartSpan(ctx, observability.SpanLLM, observability.LLMAttrs(c.cfg.Provider, c.model(req), false)...)
	start := time.Now()
	defer func() {
		c.finish(span, "complete", start, completion, err)
	}()

	resp, err := c.send(ctx, req, false, prefix)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := httpclient.ReadAllWithLimit(resp.Body, maxResponseBytes)
	if err != nil {
		c.logger.Debug("%sFailed to read response body: %v", prefix, err)
		return nil, fmt.Errorf("%s: read response: %w", c.cfg.Provider, err)
	}
	latency := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("%sError Response Body: %s", prefix, httpclient.Snippet(body, 2000))
		return nil, c.httpError(resp.StatusCode, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Debug("%sFailed to decode response: %v", prefix, err)
		return nil, newResponseError(c.cfg.Provider, resp.StatusCode, "Invalid JSON response", body)
	}
	if parsed.Error != nil && parsed.Error.Message != "" && len(parsed.Choices) == 0 {
		return nil, newResponseError(c.cfg.Provider, resp.StatusCode, "API error: "+parsed.Error.Message, body)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		c.logger.Debug("%sNo content in response", prefix)
		return nil, newResponseError(c.cfg.Provider, resp.StatusCode, "Empty content", body)
	}

	agg := NewLifecycleAggregator()
	if payload, err := decodeObject(string(body)); err == nil {
		agg.ObserveChunk(payload)
	}

	completion = &Completion{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		RequestID:    parsed.ID,
		FinishReason: parsed.Choices[0].FinishReason,
		Usage:        parsed.Usage,
		Latency:      latency,
		Lifecycle:    agg.Result(),
		Raw:          body,
	}
	if completion.RequestID == "" {
		completion.RequestID = requestID
	}
	c.logSummary(prefix, completion)
	return completion, nil
}

// Stream performs a server-sent-event completion. Deltas and lifecycle
// events are delivered through callbacks as they arrive.
func (c *OpenAIClient) Stream(ctx context.Context, req Request, callbacks Callbacks) (completion *Completion, err error) {
	requestID, prefix := c.requestPrefix(req)
	ctx, span := c.tracer.StartSpan(ctx, observability.SpanLLM, observability.LLMAttrs(c.cfg.Provider, c.model(req), true)...)
	start := time.Now()
	defer func() {
		c.finish(span, "stream", start, completion, err)
	}()

	resp, err := c.send(ctx, req, true, prefix)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := httpclient.ReadAllWithLimit(resp.Body, 1<<20)
		c.logger.Debug("%sError Response Body: %s", prefix, httpclient.Snippet(body, 2000))
		return nil, c.httpError(resp.StatusCode, body)
	}

	var (
		reader  = NewSSEReader(resp.Body)
		agg     = NewLifecycleAggregator()
		content strings.Builder
		result  = &Completion{Streamed: true}
		chunks  int
	)
	for {
		ev, readErr := reader.Next()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			c.logger.Debug("%sStream read failed after %d chunks: %v", prefix, chunks, readErr)
			return nil, fmt.Errorf("%s: stream read: %w", c.cfg.Provider, readErr)
		}
		data := strings.TrimSpace(ev.Data)
		if data == "[DONE]" {
			break
		}
		if data == "" {
			continue
		}
		chunks++

		payload, decodeErr := decodeObject(data)
		if decodeErr != nil {
			if kind, _ := ClassifyEvent(ev.Event, nil); kind == "" {
				c.logger.Debug("%sSkipping undecodable chunk: %v", prefix, decodeErr)
				continue
			}
			payload = map[string]any{"data": data}
		}

		if lifecycleEvent, ok := agg.Observe(ev.Event, payload); ok {
			c.metrics.ObserveLifecycleEvent(lifecycleEvent.Kind)
			c.logger.Debug("%sLifecycle event: %s", prefix, lifecycleEvent.Type)
			if callbacks.OnEvent != nil {
				callbacks.OnEvent(lifecycleEvent)
			}
			continue
		}
		agg.ObserveChunk(payload)

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.logger.Debug("%sSkipping malformed chunk: %v", prefix, err)
			continue
		}
		if chunk.Error != nil && chunk.Error.Message != "" {
			msg := fmt.Sprintf("%s: stream error: %s", c.cfg.Provider, chunk.Error.Message)
			return nil, alexerrors.NewTransientError(errors.New(chunk.Error.Message), msg)
		}
		if result.RequestID == "" {
			result.RequestID = chunk.ID
		}
		if result.Model == "" {
			result.Model = chunk.Model
		}
		if chunk.Usage != nil {
			result.Usage = chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if delta := choice.Delta.Content; delta != "" {
			content.WriteString(delta)
			if callbacks.OnDelta != nil {
				callbacks.OnDelta(delta)
			}
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			result.FinishReason = *choice.FinishReason
		}
	}

	result.Content = content.String()
	result.Latency = time.Since(start)
	result.Lifecycle = agg.Result()
	if result.RequestID == "" {
		result.RequestID = requestID
	}
	if result.Content == "" {
		return nil, newResponseError(c.cfg.Provider, resp.StatusCode, "Empty content", nil)
	}
	c.logger.Debug("%sStream finished: %d chunks", prefix, chunks)
	c.logSummary(prefix, result)
	return result, nil
}

func (c *OpenAIClient) model(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return c.cfg.Model
}

func (c *OpenAIClient) requestPrefix(req Request) (string, string) {
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()[:8]
	}
	return requestID, fmt.Sprintf("[req:%s] ", requestID)
}

func (c *OpenAIClient) send(ctx context.Context, req Request, stream bool, prefix string) (*http.Response, error) {
	maxTokens := c.cfg.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	payload := chatRequest{
		Model:     c.model(req),
		Messages:  req.Messages,
		MaxTokens: maxTokens,
		Stream:    stream,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Debug("%s=== LLM Request ===", prefix)
	c.logger.Debug("%sURL: POST %s", prefix, c.endpoint)
	c.logger.Debug("%sModel: %q stream=%t max_tokens=%d body=%d bytes", prefix, payload.Model, stream, maxTokens, len(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("%sHTTP request failed: %v", prefix, err)
		return nil, fmt.Errorf("%s: request failed: %w", c.cfg.Provider, err)
	}
	c.logger.Debug("%s=== LLM Response ===", prefix)
	c.logger.Debug("%sStatus: %d", prefix, resp.StatusCode)
	return resp, nil
}

func (c *OpenAIClient) httpError(status int, body []byte) error {
	return alexerrors.ClassifyHTTPStatus(&alexerrors.HTTPError{
		Service:    c.cfg.Provider,
		StatusCode: status,
		Body:       httpclient.Snippet(body, 500),
	})
}

func (c *OpenAIClient) finish(span trace.Span, mode string, start time.Time, completion *Completion, err error) {
	outcome := "ok"
	prompt, output := 0, 0
	if err != nil {
		outcome = "error"
	} else if completion != nil && completion.Usage != nil {
		prompt, output = completion.Usage.PromptTokens, completion.Usage.CompletionTokens
		span.SetAttributes(observability.UsageAttrs(prompt, output)...)
	}
	c.metrics.ObserveLLM(c.cfg.Provider, mode, outcome, time.Since(start), prompt, output)
	observability.EndSpan(span, err)
}

func (c *OpenAIClient) logSummary(prefix string, completion *Completion) {
	c.logger.Debug("%s=== LLM Response Summary ===", prefix)
	c.logger.Debug("%sFinish Reason: %s", prefix, completion.FinishReason)
	c.logger.Debug("%sContent Length: %d chars", prefix, len(completion.Content))
	if completion.Usage != nil {
		c.logger.Debug("%sUsage: %d prompt + %d completion = %d total tokens",
			prefix, completion.Usage.PromptTokens, completion.Usage.CompletionTokens, completion.Usage.TotalTokens)
	}
	if completion.Lifecycle != nil {
		c.logger.Debug("%sLifecycle: %s", prefix, completion.Lifecycle)
	}
}
