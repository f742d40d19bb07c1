package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-chat/internal/models"
)

func TestStream_DeliversChunksInOrder(t *testing.T) {
	var got []models.ChatMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		for _, part := range []string{"You", " can", " reset..."} {
			w.Write([]byte(part))
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	var sb strings.Builder
	history := []models.ChatMessage{{Role: models.RoleUser, Content: "How do I reset my password?"}}
	err := New(srv.URL+"/").Stream(context.Background(), history, func(p []byte) {
		sb.Write(p)
	})

	require.NoError(t, err)
	assert.Equal(t, "You can reset...", sb.String())
	assert.Equal(t, history, got)
}

func TestStream_EmptyHistorySendsArray(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		raw = string(data)
	}))
	defer srv.Close()

	require.NoError(t, New(srv.URL).Stream(context.Background(), nil, func([]byte) {}))
	assert.Equal(t, "[]", raw)
}

func TestStream_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":{"code":"UPSTREAM_ERROR","message":"Failed to get AI response","request_id":"r1"}}`))
	}))
	defer srv.Close()

	called := false
	err := New(srv.URL).Stream(context.Background(), nil, func([]byte) { called = true })

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, "UPSTREAM_ERROR", se.Code)
	assert.False(t, called)
}

func TestStream_StatusErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New(srv.URL).Stream(context.Background(), nil, func([]byte) {})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Contains(t, se.Error(), "Internal Server Error")
}

func TestStream_Interrupted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}))
	defer srv.Close()

	var sb strings.Builder
	err := New(srv.URL).Stream(context.Background(), nil, func(p []byte) { sb.Write(p) })

	assert.ErrorIs(t, err, ErrStreamInterrupted)
	assert.Equal(t, "partial", sb.String())
}

func TestStream_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := New(url).Stream(context.Background(), nil, func([]byte) {})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStreamInterrupted)
}
