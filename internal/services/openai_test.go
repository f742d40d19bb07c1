package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-chat/internal/models"
)

type capturedRequest struct {
	Path    string
	Header  http.Header
	Payload struct {
		Model    string               `json:"model"`
		Stream   bool                 `json:"stream"`
		Messages []models.ChatMessage `json:"messages"`
	}
}

func sseServer(t *testing.T, captured *capturedRequest, deltas []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		captured.Header = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured.Payload))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprint(w, `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"role":"assistant","content":""}}]}`+"\n\n")
		for _, d := range deltas {
			content, _ := json.Marshal(d)
			fmt.Fprintf(w, `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":{"content":%s}}]}`+"\n\n", content)
			flusher.Flush()
		}
		fmt.Fprint(w, `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func drain(t *testing.T, s Stream) []string {
	t.Helper()
	var out []string
	for {
		text, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, text)
	}
}

func TestOpenAIProvider_StreamsDeltas(t *testing.T) {
	var captured capturedRequest
	srv := sseServer(t, &captured, []string{"You", " can", " reset..."})
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL+"/v1/", "sk-test", "gpt-4o-mini", map[string]string{
		"HTTP-Referer": "https://support.example.com",
		"X-Title":      "Support Chat",
	})

	msgs := []models.ChatMessage{
		{Role: models.RoleSystem, Content: "be helpful"},
		{Role: models.RoleUser, Content: "How do I reset my password?"},
	}
	stream, err := p.Stream(context.Background(), msgs)
	require.NoError(t, err)
	defer stream.Close()

	got := drain(t, stream)
	assert.Equal(t, []string{"", "You", " can", " reset...", ""}, got)

	assert.Equal(t, "/v1/chat/completions", captured.Path)
	assert.Equal(t, "Bearer sk-test", captured.Header.Get("Authorization"))
	assert.Equal(t, "https://support.example.com", captured.Header.Get("HTTP-Referer"))
	assert.Equal(t, "Support Chat", captured.Header.Get("X-Title"))
	assert.Equal(t, "gpt-4o-mini", captured.Payload.Model)
	assert.True(t, captured.Payload.Stream)
	assert.Equal(t, msgs, captured.Payload.Messages)
}

func TestOpenAIProvider_RejectedBeforeStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "bad-key", "gpt-4o-mini", nil)
	_, err := p.Stream(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	require.Error(t, err)

	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "openai", ue.Provider)

	var apiErr *openai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatusCode)
}

func TestHeaderTransport_DoesNotMutateOriginal(t *testing.T) {
	var seen string
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = r.Header.Get("X-Title")
		return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody, Request: r}, nil
	})
	tr := &headerTransport{base: base, headers: map[string]string{"X-Title": "Support Chat"}}

	req, err := http.NewRequest(http.MethodGet, "http://example.invalid", nil)
	require.NoError(t, err)

	_, err = tr.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, "Support Chat", seen)
	assert.Empty(t, req.Header.Get("X-Title"))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
