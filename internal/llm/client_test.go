// File: internal/llm/client_test.go
package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/applypilot/api/schemas"
	"github.com/xkilldash9x/applypilot/internal/config"
)

func testLLMConfig(endpoint string) config.LLMConfig {
	return config.LLMConfig{
		APIKey:         "test-key",
		Endpoint:       endpoint,
		RequestTimeout: 5 * time.Second,
		MaxRetryTime:   3 * time.Second,
	}
}

func geminiReply(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":` + string(mustJSON(text)) + `}],"role":"model"},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":5,"totalTokenCount":15}}`
}

func mustJSON(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

func TestNewGeminiClient_Validation(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)

	_, err := NewGeminiClient(config.LLMConfig{}, "gemini-2.0-flash", nil, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")

	_, err = NewGeminiClient(config.LLMConfig{APIKey: "k"}, "", nil, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model name is required")
}

func TestGeminiClient_Generate(t *testing.T) {
	t.Parallel()

	var gotPayload geminiRequestPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_, _ = w.Write([]byte(geminiReply("Paris")))
	}))
	defer server.Close()

	client, err := NewGeminiClient(testLLMConfig(server.URL), "test-model", nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), schemas.GenerationRequest{
		SystemPrompt: "You answer form questions.",
		UserPrompt:   "Where is the candidate located?",
		Options: schemas.GenerationOptions{
			Temperature:     0.2,
			ForceJSONFormat: true,
			MaxOutputTokens: 256,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Paris", out)

	require.Len(t, gotPayload.Contents, 1)
	assert.Equal(t, "user", gotPayload.Contents[0].Role)
	assert.Equal(t, "Where is the candidate located?", gotPayload.Contents[0].Parts[0].Text)
	require.NotNil(t, gotPayload.SystemInstruction)
	assert.Equal(t, "You answer form questions.", gotPayload.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "application/json", gotPayload.GenerationConfig.ResponseMimeType)
	assert.Equal(t, 0.2, gotPayload.GenerationConfig.Temperature)
	assert.Equal(t, 256, gotPayload.GenerationConfig.MaxOutputTokens)
}

func TestGeminiClient_Generate_NoSystemPrompt(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload geminiRequestPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Nil(t, payload.SystemInstruction, "empty system prompt must be omitted")
		assert.Empty(t, payload.GenerationConfig.ResponseMimeType)
		_, _ = w.Write([]byte(geminiReply("ok")))
	}))
	defer server.Close()

	client, err := NewGeminiClient(testLLMConfig(server.URL), "test-model", nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
	require.NoError(t, err)
}

func TestGeminiClient_Generate_RetriesTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": {"message": "quota"}}`))
			return
		}
		_, _ = w.Write([]byte(geminiReply("recovered")))
	}))
	defer server.Close()

	client, err := NewGeminiClient(testLLMConfig(server.URL), "test-model", nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGeminiClient_Generate_PermanentHTTPError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid argument"}}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(testLLMConfig(server.URL), "test-model", nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load(), "4xx other than 429 must not retry")
}

func TestGeminiClient_Generate_SafetyBlockIsPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(testLLMConfig(server.URL), "test-model", nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeminiClient_Generate_NoCandidates(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(testLLMConfig(server.URL), "test-model", nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), schemas.GenerationRequest{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidates")
}

func TestGeminiClient_DefaultEndpoint(t *testing.T) {
	t.Parallel()

	client, err := NewGeminiClient(config.LLMConfig{APIKey: "k"}, "gemini-2.5-pro", nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t,
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-pro:generateContent",
		client.endpoint)
}
