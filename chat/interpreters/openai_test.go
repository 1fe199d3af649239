package interpreters

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

	"taskchat/chat"
	"taskchat/errors"
	"taskchat/logger"
	"taskchat/tasks"
)

func toolCallResponse(name, args string) string {
	resp := map[string]any{
		"choices": []any{map[string]any{
			"message": map[string]any{
				"content": "",
				"tool_calls": []any{map[string]any{
					"id":       "call_1",
					"type":     "function",
					"function": map[string]any{"name": name, "arguments": args},
				}},
			},
		}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func proseResponse(text string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": text}}},
	})
	return string(b)
}

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	o := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "test-model"}, logger.Discard())
	o.initDelay = time.Millisecond
	return o
}

func TestOpenAI_ToolCalls(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tool string
		args string
		want chat.Action
	}{
		{"create", "create_task", `{"title":"Buy milk","description":"2 liters"}`, chat.CreateAction{Title: "Buy milk", Description: tasks.Ptr("2 liters")}},
		{"create without description", "create_task", `{"title":"Buy milk"}`, chat.CreateAction{Title: "Buy milk"}},
		{"list default", "list_tasks", `{}`, chat.ListAction{Filter: tasks.FilterAll}},
		{"list pending", "list_tasks", `{"status":"pending"}`, chat.ListAction{Filter: tasks.FilterPending}},
		{"list unknown status", "list_tasks", `{"status":"someday"}`, chat.ListAction{Filter: tasks.FilterAll}},
		{"complete default", "complete_task", `{"task":"3f2a"}`, chat.CompleteAction{Ref: "3f2a", Completed: true}},
		{"reopen", "complete_task", `{"task":"3f2a","completed":false}`, chat.CompleteAction{Ref: "3f2a", Completed: false}},
		{"update clears description", "update_task", `{"task":"","description":""}`, chat.UpdateAction{Fields: tasks.Fields{Description: tasks.Ptr("")}}},
		{"delete", "delete_task", `{"task":"Buy milk"}`, chat.DeleteAction{Ref: "Buy milk"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(toolCallResponse(tt.tool, tt.args)))
			})

			got, err := o.Interpret(context.Background(), "whatever", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Action)
		})
	}
}

func TestOpenAI_Request(t *testing.T) {
	t.Parallel()

	var captured openAIRequest
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(proseResponse("Hello! How can I help?")))
	})

	history := []chat.Message{
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello"},
	}
	got, err := o.Interpret(context.Background(), "what can you do", history)
	require.NoError(t, err)
	assert.Nil(t, got.Action)
	assert.Equal(t, "Hello! How can I help?", got.Prose)

	assert.Equal(t, "test-model", captured.Model)
	assert.Equal(t, "auto", captured.ToolChoice)
	assert.Len(t, captured.Tools, 5)
	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "hi", captured.Messages[1].Content)
	assert.Equal(t, "assistant", captured.Messages[2].Role)
	assert.Equal(t, openAIMessage{Role: "user", Content: "what can you do"}, captured.Messages[3])
}

func TestOpenAI_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(toolCallResponse("list_tasks", `{}`)))
	})

	got, err := o.Interpret(context.Background(), "show tasks", nil)
	require.NoError(t, err)
	assert.Equal(t, chat.ListAction{Filter: tasks.FilterAll}, got.Action)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAI_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantCalls int32
	}{
		{
			name: "server keeps failing",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantCalls: openAIMaxRetries,
		},
		{
			name: "client error is not retried",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad key", http.StatusUnauthorized)
			},
			wantCalls: 1,
		},
		{
			name: "malformed arguments",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(toolCallResponse("create_task", `{"title":`)))
			},
			wantCalls: 1,
		},
		{
			name: "unknown tool",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(toolCallResponse("launch_rocket", `{}`)))
			},
			wantCalls: 1,
		},
		{
			name: "no choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"choices":[]}`))
			},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			})

			_, err := o.Interpret(context.Background(), "anything", nil)
			require.Error(t, err)
			assert.Equal(t, errors.CollaboratorUnavailableError, errors.TypeOf(err))
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestOpenAI_RetriesStayWithinTimeout(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	o.timeout = 50 * time.Millisecond
	o.initDelay = time.Second

	start := time.Now()
	_, err := o.Interpret(context.Background(), "anything", nil)

	require.Error(t, err)
	assert.Equal(t, errors.CollaboratorUnavailableError, errors.TypeOf(err))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAI_MissingKey(t *testing.T) {
	t.Parallel()

	o := NewOpenAI(OpenAIConfig{}, logger.Discard())
	_, err := o.Interpret(context.Background(), "hi", nil)
	assert.Equal(t, errors.CollaboratorUnavailableError, errors.TypeOf(err))
}

func TestNewOpenAI_Defaults(t *testing.T) {
	t.Parallel()

	o := NewOpenAI(OpenAIConfig{APIKey: "k"}, logger.Discard())
	assert.Equal(t, DefaultOpenAIBaseURL, o.baseURL)
	assert.Equal(t, DefaultOpenAIModel, o.model)
	assert.Equal(t, 20*time.Second, o.client.Timeout)
	assert.Equal(t, 20*time.Second, o.timeout)
}
