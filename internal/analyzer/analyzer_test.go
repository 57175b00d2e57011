package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govai/internal/llm"
	"govai/internal/report"
	"govai/internal/source"
)

type stubFetcher struct {
	rec source.Record
	err error
}

func (s stubFetcher) FetchAndExtract(ctx context.Context, url string) (source.Record, error) {
	return s.rec, s.err
}

type stubClient struct {
	content string
	err     error
	lastReq llm.Request
}

func (s *stubClient) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Completion{Content: s.content, Lifecycle: &llm.Lifecycle{RequestID: "r1"}}, nil
}

type stubStreamer struct {
	stubClient
	streamed bool
}

func (s *stubStreamer) Stream(ctx context.Context, req llm.Request, cb llm.Callbacks) (*llm.Completion, error) {
	s.streamed = true
	for _, part := range strings.SplitAfter(s.content, ",") {
		cb.OnDelta(part)
	}
	return &llm.Completion{Content: s.content, Streamed: true}, nil
}

func record() source.Record {
	return source.Record{
		SourceType: source.SourceGeneric,
		FetchedAt:  "2025-01-01T00:00:00.000Z",
		Title:      "Fee switch",
		Body:       "Turn on the protocol fee switch.",
		Options:    []string{},
		Metadata:   map[string]any{},
	}
}

func TestAnalyzeBuildsReport(t *testing.T) {
	client := &stubClient{content: "```json\n{\"analysis\":{\"summary\":\"Fees on\",\"risks\":[\"LP exit\"]}}\n```"}
	a, err := New(Config{Fetcher: stubFetcher{rec: record()}, Client: client})
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), "https://example.org/p/1", map[string]any{"risk": "low"})
	require.NoError(t, err)

	require.Len(t, client.lastReq.Messages, 2)
	assert.Equal(t, "system", client.lastReq.Messages[0].Role)
	assert.Contains(t, client.lastReq.Messages[1].Content, "https://example.org/p/1")
	assert.Contains(t, client.lastReq.Messages[1].Content, `"risk": "low"`)
	assert.False(t, client.lastReq.Stream)

	assert.Equal(t, record(), res.Record)
	assert.Equal(t, record(), res.Report["extracted"])
	assert.Contains(t, res.Report, report.KeyBoundary)
	assert.Contains(t, res.Report, report.KeyAmbient)
	assert.Greater(t, res.PromptTokens, 0)
}

func TestAnalyzeStreamsWhenConfigured(t *testing.T) {
	client := &stubStreamer{stubClient: stubClient{content: `{"analysis":{"summary":"a","risks":["b"]}}`}}
	var deltas []string
	a, err := New(Config{
		Fetcher:   stubFetcher{rec: record()},
		Client:    client,
		Stream:    true,
		Callbacks: llm.Callbacks{OnDelta: func(d string) { deltas = append(deltas, d) }},
	})
	require.NoError(t, err)

	res, err := a.Analyze(context.Background(), "u", nil)
	require.NoError(t, err)
	assert.True(t, client.streamed)
	assert.Equal(t, client.content, strings.Join(deltas, ""))
	assert.NotContains(t, res.Report, report.KeyAmbient)
}

func TestAnalyzeFetchError(t *testing.T) {
	a, err := New(Config{Fetcher: stubFetcher{err: errors.New("dns")}, Client: &stubClient{}})
	require.NoError(t, err)
	_, err = a.Analyze(context.Background(), "u", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch u: dns")
}

func TestAnalyzeRefusal(t *testing.T) {
	a, err := New(Config{Fetcher: stubFetcher{rec: record()}, Client: &stubClient{content: "I'm sorry, but I can't assist with that."}})
	require.NoError(t, err)
	_, err = a.Analyze(context.Background(), "u", nil)
	assert.ErrorIs(t, err, report.ErrRefusal)
}

func TestAnalyzeInvalidJSON(t *testing.T) {
	a, err := New(Config{Fetcher: stubFetcher{rec: record()}, Client: &stubClient{content: "no json here"}})
	require.NoError(t, err)
	_, err = a.Analyze(context.Background(), "u", nil)
	assert.ErrorIs(t, err, llm.ErrInvalidJSON)
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{Client: &stubClient{}})
	assert.Error(t, err)
	_, err = New(Config{Fetcher: stubFetcher{}})
	assert.Error(t, err)
}
