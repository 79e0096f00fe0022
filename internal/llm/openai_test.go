package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewOpenAI(OpenAIConfig{
		APIKey:   "sk-test",
		Model:    "gpt-3.5-turbo",
		BaseURL:  server.URL + "/v1",
		JSONMode: true,
	})
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": "invalid_request_error", "code": code},
	})
}

func TestOpenAIComplete(t *testing.T) {
	var captured map[string]any

	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-3.5-turbo",
			"choices": []any{map[string]any{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": `{"numeroFactura":"F-1"}`}}},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	})

	out, err := client.Complete(context.Background(), Request{
		System:      "extract invoices",
		User:        "FACTURA F-1",
		Temperature: 0.1,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"numeroFactura":"F-1"}`, out)

	assert.Equal(t, "gpt-3.5-turbo", captured["model"])
	assert.InDelta(t, 0.1, captured["temperature"], 1e-6)
	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "extract invoices", messages[0].(map[string]any)["content"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
	assert.Equal(t, "FACTURA F-1", messages[1].(map[string]any)["content"])
	assert.Equal(t, "json_object", captured["response_format"].(map[string]any)["type"])
}

func TestOpenAICompleteRateLimited(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusTooManyRequests, "You exceeded your current quota", "insufficient_quota")
	})

	_, err := client.Complete(context.Background(), Request{System: "s", User: "u"})

	require.Error(t, err)
	assert.Equal(t, KindRateLimited, KindOf(err))

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
	assert.Equal(t, ProviderOpenAI, pe.Provider)
}

func TestOpenAICompleteProviderError(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusBadRequest, "This model's maximum context length is 4097 tokens", "context_length_exceeded")
	})

	_, err := client.Complete(context.Background(), Request{System: "s", User: "u"})

	require.Error(t, err)
	assert.Equal(t, KindProvider, KindOf(err))
	assert.Equal(t, "This model's maximum context length is 4097 tokens", MessageOf(err))
}

func TestOpenAICompleteTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: url + "/v1"})
	_, err := client.Complete(context.Background(), Request{System: "s", User: "u"})

	require.Error(t, err)
	assert.Equal(t, KindUnknown, KindOf(err))
}

func TestOpenAICompleteNoChoices(t *testing.T) {
	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	})

	_, err := client.Complete(context.Background(), Request{System: "s", User: "u"})

	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestOpenAICompleteSendsZeroTemperature(t *testing.T) {
	var captured map[string]any

	client := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{}"}}]}`))
	})

	_, err := client.Complete(context.Background(), Request{System: "s", User: "u", Temperature: 0})
	require.NoError(t, err)

	temperature, ok := captured["temperature"]
	require.True(t, ok, "temperature must be sent explicitly")
	assert.InDelta(t, 0, temperature, 1e-6)
}
