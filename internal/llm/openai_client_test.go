package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alexerrors "govai/internal/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*Config)) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := Config{Provider: "ambient", BaseURL: server.URL + "/v1/", APIKey: "test-key", Timeout: 5 * time.Second}
	for _, m := range mutate {
		m(&cfg)
	}
	client, err := NewOpenAIClient(cfg)
	require.NoError(t, err)
	return client
}

func userRequest() Request {
	return Request{Messages: []Message{{Role: "system", Content: "sys"}, {Role: "user", Content: "hi"}}}
}

func TestNewOpenAIClientRequiresBaseURL(t *testing.T) {
	_, err := NewOpenAIClient(Config{})
	require.Error(t, err)
}

func TestOpenAIClientCompleteSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "value", r.Header.Get("X-Custom"))

		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Hermes-4-70B", payload["model"])
		assert.Equal(t, float64(100000), payload["max_tokens"])
		assert.Equal(t, false, payload["stream"])
		assert.Len(t, payload["messages"], 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"id":"chatcmpl-9","model":"Hermes-4-70B","choices":[{"message":{"content":"{\"a\":1}"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`)
	}, func(cfg *Config) {
		cfg.Model = "Hermes-4-70B"
		cfg.MaxTokens = 100000
		cfg.Headers = map[string]string{"X-Custom": "value"}
	})

	resp, err := client.Complete(context.Background(), userRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Content)
	assert.Equal(t, "chatcmpl-9", resp.RequestID)
	assert.Equal(t, "stop", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
	require.NotNil(t, resp.Lifecycle)
	assert.Equal(t, "chatcmpl-9", resp.Lifecycle.RequestID)
	assert.Equal(t, "Hermes-4-70B", resp.Lifecycle.Model)
	assert.False(t, resp.Streamed)
}

func TestOpenAIClientOmitsUnsetModelAndMaxTokens(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, hasModel := payload["model"]
		_, hasMax := payload["max_tokens"]
		assert.False(t, hasModel)
		assert.False(t, hasMax)
		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"content":"x"}}]}`)
	})
	_, err := client.Complete(context.Background(), userRequest())
	require.NoError(t, err)
}

func TestOpenAIClientHTTPErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprint(w, `{"error":{"message":"nope"}}`)
			})
			_, err := client.Complete(context.Background(), userRequest())
			require.Error(t, err)
			assert.Equal(t, tt.transient, alexerrors.IsTransient(err))
			assert.Equal(t, tt.status, alexerrors.StatusCode(err))
			assert.Contains(t, err.Error(), fmt.Sprintf("ambient: HTTP %d", tt.status))
		})
	}
}

func TestOpenAIClientInvalidJSONResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "<html>gateway</html>")
	})
	_, err := client.Complete(context.Background(), userRequest())
	require.Error(t, err)
	assert.Equal(t, "ambient: Invalid JSON response", err.Error())
	assert.True(t, alexerrors.IsPermanent(err))

	meta := ErrorMeta(err)
	assert.Equal(t, http.StatusOK, meta["status"])
	assert.Equal(t, "<html>gateway</html>", meta["raw"])
}

func TestOpenAIClientEmptyContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"content":""}}]}`)
	})
	_, err := client.Complete(context.Background(), userRequest())
	require.Error(t, err)
	assert.Equal(t, "ambient: Empty content", err.Error())
}

func sseHandler(frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, frame := range frames {
			_, _ = fmt.Fprint(w, frame)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

func TestOpenAIClientStreamAggregatesDeltasAndLifecycle(t *testing.T) {
	client := newTestClient(t, sseHandler(
		"event: auction.started\ndata: {\"auction_address\":\"https://explorer/a/1\"}\n\n",
		"data: {\"type\":\"bid.placed\"}\n\n",
		"data: {\"id\":\"chatcmpl-1\",\"model\":\"m\",\"choices\":[{\"delta\":{\"role\":\"assistant\",\"content\":\"{\\\"a\\\":\"}}]}\n\n",
		": keepalive\n\n",
		"data: not json\n\n",
		"data: {\"id\":\"chatcmpl-1\",\"choices\":[{\"delta\":{\"content\":\"1}\"},\"finish_reason\":\"stop\"}],\"usage\":{\"prompt_tokens\":10,\"completion_tokens\":2,\"total_tokens\":12}}\n\n",
		"event: verification.complete\ndata: {\"merkle_root\":\"0xroot\",\"validators\":3}\n\n",
		"data: [DONE]\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n",
	))

	var deltas []string
	var events []string
	resp, err := client.Stream(context.Background(), userRequest(), Callbacks{
		OnDelta: func(d string) { deltas = append(deltas, d) },
		OnEvent: func(e LifecycleEvent) { events = append(events, e.Type) },
	})
	require.NoError(t, err)
	assert.True(t, resp.Streamed)
	assert.Equal(t, `{"a":1}`, resp.Content)
	assert.Equal(t, []string{`{"a":`, `1}`}, deltas)
	assert.Equal(t, []string{"auction.started", "bid.placed", "verification.complete"}, events)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "chatcmpl-1", resp.RequestID)
	assert.Equal(t, "m", resp.Model)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.TotalTokens)

	lc := resp.Lifecycle
	require.NotNil(t, lc)
	assert.Equal(t, "started", lc.Auction.Status)
	assert.Equal(t, "https://explorer/a/1", lc.Auction.Address)
	assert.Equal(t, 1, lc.Auction.Bids.Placed)
	require.NotNil(t, lc.Verified)
	assert.True(t, *lc.Verified)
	assert.Equal(t, "0xroot", lc.MerkleRoot)
	assert.Equal(t, "chatcmpl-1", lc.RequestID)
}

func TestOpenAIClientStreamSendsStreamFlag(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, true, payload["stream"])
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		sseHandler("data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")(w, r)
	})
	resp, err := client.Stream(context.Background(), userRequest(), Callbacks{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestOpenAIClientStreamHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})
	_, err := client.Stream(context.Background(), userRequest(), Callbacks{})
	require.Error(t, err)
	assert.True(t, alexerrors.IsTransient(err))
	assert.True(t, strings.HasPrefix(err.Error(), "ambient: HTTP 503"))
}

func TestOpenAIClientStreamEmptyContent(t *testing.T) {
	client := newTestClient(t, sseHandler("data: [DONE]\n\n"))
	_, err := client.Stream(context.Background(), userRequest(), Callbacks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Empty content")
}

func TestDoFallsBackToComplete(t *testing.T) {
	client := &countingClient{content: "whole"}
	var deltas []string
	resp, err := Do(context.Background(), client, Request{Stream: true}, Callbacks{
		OnDelta: func(d string) { deltas = append(deltas, d) },
	})
	require.NoError(t, err)
	assert.Equal(t, "whole", resp.Content)
	assert.Equal(t, []string{"whole"}, deltas)
	assert.Equal(t, 1, client.calls)
}
