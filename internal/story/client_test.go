// ABOUTME: Tests for the Responses API client against a fake upstream
// ABOUTME: Verifies the outgoing request, response mapping and error wrapping

package story

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeUpstream(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL: srv.URL + "/v1/",
		APIKey:  "sk-test",
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	})
}

func TestGenerate_Success(t *testing.T) {
	var got responsesRequest
	c := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("x-request-id", "req_123")
		_, _ = w.Write([]byte(`{
			"model":"gpt-4o-mini-2024-07-18",
			"output":[{"type":"message","content":[{"type":"output_text",
				"text":"{\"title\":\"Rain\",\"content\":\"He walked anyway.\",\"moral\":\"Go.\"}"}]}]
		}`))
	})

	s, err := c.Generate(context.Background(), Request{Language: "en", Topic: "rain", Words: 120})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Contains(t, got.Instructions, "Write in language code: en.")
	assert.Contains(t, got.Input, "Story theme/topic: rain")

	assert.Equal(t, Story{
		Title:     "Rain",
		Content:   "He walked anyway.",
		Moral:     "Go.",
		Model:     "gpt-4o-mini-2024-07-18",
		RequestID: "req_123",
	}, s)
}

func TestGenerate_DefaultsAndGeneratedRequestID(t *testing.T) {
	var got responsesRequest
	c := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"model":"m","output_text":"just prose"}`))
	})

	s, err := c.Generate(context.Background(), Request{})
	require.NoError(t, err)

	assert.Contains(t, got.Instructions, "Write in language code: zh.")
	assert.Contains(t, got.Input, "Story theme/topic: 坚持到底")
	assert.Equal(t, FallbackTitle, s.Title)
	assert.Equal(t, "just prose", s.Content)
	assert.Empty(t, s.Moral)
	_, err = uuid.Parse(s.RequestID)
	assert.NoError(t, err, "request id should be a uuid, got %q", s.RequestID)
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		detail  string
	}{
		{
			name: "upstream error message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
			},
			detail: "Incorrect API key provided",
		},
		{
			name: "plain 502",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad gateway", http.StatusBadGateway)
			},
			detail: "upstream status 502",
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
			detail: "invalid JSON",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fakeUpstream(t, tt.handler)
			_, err := c.Generate(context.Background(), Request{})
			require.ErrorIs(t, err, ErrGenerate)
			assert.Contains(t, err.Error(), tt.detail)
		})
	}
}

func TestGenerate_InvalidRequestNeverCallsUpstream(t *testing.T) {
	called := false
	c := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := c.Generate(context.Background(), Request{Words: 5})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.False(t, called)
}

func TestGenerate_ContextCancelled(t *testing.T) {
	c := fakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Generate(ctx, Request{})
	assert.ErrorIs(t, err, ErrGenerate)
}
