package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	respStatus int
	respBody   []byte
	captured   []byte
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	b, _ := io.ReadAll(req.Body)
	_ = req.Body.Close()
	f.captured = b
	resp := &http.Response{
		StatusCode: f.respStatus,
		Body:       io.NopCloser(bytes.NewReader(f.respBody)),
		Header:     make(http.Header),
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

func newTestAnthropic(rt http.RoundTripper) *AnthropicSummarizer {
	client := NewAnthropicClient("test-key",
		option.WithHTTPClient(&http.Client{Transport: rt}),
		option.WithMaxRetries(0),
	)
	return NewAnthropicSummarizer(client, "claude-3-7-sonnet-latest", 256)
}

func TestAnthropicSummarizer_ReturnsTextBlocks(t *testing.T) {
	fake := &fakeTransport{respStatus: 200, respBody: []byte(`{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-3-7-sonnet-latest",
		"content": [{"type": "text", "text": "<think>why</think>First part"}, {"type": "text", "text": "second part"}],
		"stop_reason": "end_turn", "usage": {"input_tokens": 3, "output_tokens": 5}
	}`)}

	out, err := newTestAnthropic(fake).Summarize(context.Background(), "hello there")
	require.NoError(t, err)
	assert.Equal(t, "<think>why</think>First part\nsecond part", out)

	var sent struct {
		Model       string  `json:"model"`
		MaxTokens   int64   `json:"max_tokens"`
		Temperature float64 `json:"temperature"`
		System      []struct {
			Text string `json:"text"`
		} `json:"system"`
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(fake.captured, &sent))
	assert.Equal(t, "claude-3-7-sonnet-latest", sent.Model)
	assert.Equal(t, int64(256), sent.MaxTokens)
	require.Len(t, sent.System, 1)
	assert.Equal(t, SystemPrompt, sent.System[0].Text)
	require.Len(t, sent.Messages, 1)
	assert.Equal(t, "user", sent.Messages[0].Role)
	require.Len(t, sent.Messages[0].Content, 1)
	assert.Equal(t, "hello there", sent.Messages[0].Content[0].Text)
}

func TestAnthropicSummarizer_PropagatesAPIError(t *testing.T) {
	fake := &fakeTransport{respStatus: 400, respBody: []byte(`{"type":"error","error":{"type":"invalid_request_error","message":"messages: text content blocks must be non-empty"}}`)}

	_, err := newTestAnthropic(fake).Summarize(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic")
}

func TestAnthropicSummarizer_NoTextContent(t *testing.T) {
	fake := &fakeTransport{respStatus: 200, respBody: []byte(`{"id":"msg_1","type":"message","role":"assistant","content":[],"usage":{"input_tokens":1,"output_tokens":0}}`)}

	_, err := newTestAnthropic(fake).Summarize(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text content")
}
