package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageJSON(text string) map[string]any {
	return map[string]any{
		"id":   "msg_test_001",
		"type": "message",
		"role": "assistant",
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"model":       "claude-sonnet-4-5-20250929",
		"stop_reason": "end_turn",
		"usage": map[string]any{
			"input_tokens":                1200,
			"output_tokens":               80,
			"cache_creation_input_tokens": 0,
			"cache_read_input_tokens":     900,
		},
	}
}

func TestSDKClient_CreateMessage_WithImages(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messageJSON(`{"name":"Ann"}`)) //nolint:errcheck
	}))
	defer ts.Close()

	client := NewClient("test-key", option.WithBaseURL(ts.URL), option.WithMaxRetries(0))
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 1024,
		System:    CachedSystem("extract the card"),
		Messages: []Message{{
			Role:    "user",
			Content: "front then back",
			Images: []Image{
				{MediaType: "image/jpeg", Data: []byte("front-bytes")},
				{MediaType: "image/png", Data: []byte("back-bytes")},
			},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Ann"}`, resp.FirstText())
	assert.Equal(t, int64(900), resp.Usage.CacheReadInputTokens)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	content := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 3)
	first := content[0].(map[string]any)
	assert.Equal(t, "image", first["type"])
	src := first["source"].(map[string]any)
	assert.Equal(t, "base64", src["type"])
	assert.Equal(t, "image/jpeg", src["media_type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("front-bytes")), src["data"])
	assert.Equal(t, "text", content[2].(map[string]any)["type"])

	system := body["system"].([]any)
	require.Len(t, system, 1)
	assert.NotNil(t, system[0].(map[string]any)["cache_control"])
}

func TestSDKClient_CreateMessage_Error(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad image"}}`)) //nolint:errcheck
	}))
	defer ts.Close()

	client := NewClient("test-key", option.WithBaseURL(ts.URL), option.WithMaxRetries(0))
	_, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 16,
		Messages:  []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
}

func TestFirstText(t *testing.T) {
	var nilResp *MessageResponse
	assert.Equal(t, "", nilResp.FirstText())

	resp := &MessageResponse{Content: []ContentBlock{{Type: "thinking"}, {Type: "text", Text: "a"}, {Type: "text", Text: "b"}}}
	assert.Equal(t, "a", resp.FirstText())
}

func TestToSDKMessages_Roles(t *testing.T) {
	out := toSDKMessages([]Message{{Role: "user", Content: "q"}, {Role: "assistant", Content: "a"}, {Role: "other", Content: "x"}})
	require.Len(t, out, 3)
	assert.Equal(t, "user", string(out[0].Role))
	assert.Equal(t, "assistant", string(out[1].Role))
	assert.Equal(t, "user", string(out[2].Role))
}

func TestEstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 18.0, u.EstimateCost("claude-sonnet-4-5-20250929"), 0.001)
	assert.Zero(t, u.EstimateCost("unknown-model"))

	cached := TokenUsage{CacheReadInputTokens: 1_000_000}
	assert.InDelta(t, 0.3, cached.EstimateCost("claude-sonnet-4-5-20250929"), 0.001)
}
