package interpreters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"taskchat/chat"
	"taskchat/errors"
	"taskchat/logger"
	"taskchat/tasks"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4"

	openAIMaxRetries = 3
	openAIInitDelay  = 500 * time.Millisecond
	maxErrorBodyLen  = 300
)

const systemPrompt = `You are a helpful assistant for managing todo tasks. ` +
	`You can create, list, update, complete, and delete tasks by calling the provided tools. ` +
	`Call at most one tool per message. ` +
	`Refer to tasks by the id or title the user gave; leave "task" empty when the user means the task you were just discussing. ` +
	`When no tool fits, answer briefly in plain text.`

// OpenAIConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// Timeout bounds a whole Interpret call, retries included.
	Timeout time.Duration
}

// OpenAI interprets turns with a chat completions model using tool calling.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	client     *http.Client
	logger     *logger.Logger
	timeout    time.Duration
	maxRetries int
	initDelay  time.Duration
}

var _ chat.Interpreter = (*OpenAI)(nil)

func NewOpenAI(cfg OpenAIConfig, lg *logger.Logger) *OpenAI {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &OpenAI{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		client:     &http.Client{Timeout: timeout},
		logger:     lg,
		timeout:    timeout,
		maxRetries: openAIMaxRetries,
		initDelay:  openAIInitDelay,
	}
}

type openAIRequest struct {
	Model      string          `json:"model"`
	Messages   []openAIMessage `json:"messages"`
	Tools      []openAITool    `json:"tools"`
	ToolChoice string          `json:"tool_choice"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// toolArgs is the union of every tool's arguments.
type toolArgs struct {
	Status      string  `json:"status"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Task        string  `json:"task"`
	Completed   *bool   `json:"completed"`
}

func object(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var (
	taskRefParam = map[string]any{
		"type":        "string",
		"description": "The task id, an id prefix, or its exact title. Empty means the task currently being discussed.",
	}

	openAITools = []openAITool{
		{Type: "function", Function: openAIFunction{
			Name:        "list_tasks",
			Description: "Lists the user's tasks. Can filter by status: 'all', 'pending', or 'completed'.",
			Parameters: object(map[string]any{
				"status": map[string]any{"type": "string", "enum": []string{"all", "pending", "completed"}},
			}),
		}},
		{Type: "function", Function: openAIFunction{
			Name:        "create_task",
			Description: "Creates a new task for the user.",
			Parameters: object(map[string]any{
				"title":       map[string]any{"type": "string", "description": "The title of the task."},
				"description": map[string]any{"type": "string", "description": "An optional description for the task."},
			}, "title"),
		}},
		{Type: "function", Function: openAIFunction{
			Name:        "update_task",
			Description: "Changes the title or description of an existing task. Omit a field to leave it unchanged; an empty description clears it.",
			Parameters: object(map[string]any{
				"task":        taskRefParam,
				"title":       map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
			}),
		}},
		{Type: "function", Function: openAIFunction{
			Name:        "complete_task",
			Description: "Marks an existing task as completed, or as not completed when completed is false.",
			Parameters: object(map[string]any{
				"task":      taskRefParam,
				"completed": map[string]any{"type": "boolean"},
			}),
		}},
		{Type: "function", Function: openAIFunction{
			Name:        "delete_task",
			Description: "Deletes an existing task.",
			Parameters:  object(map[string]any{"task": taskRefParam}),
		}},
	}
)

func (o *OpenAI) Interpret(ctx context.Context, text string, history []chat.Message) (chat.Interpretation, error) {
	if o.apiKey == "" {
		return chat.Interpretation{}, errors.NewCollaboratorUnavailableError("OPENAI_API_KEY not set", nil)
	}

	messages := make([]openAIMessage, 0, len(history)+2)
	messages = append(messages, openAIMessage{Role: "system", Content: systemPrompt})
	for _, m := range history {
		messages = append(messages, openAIMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: text})

	body, err := json.Marshal(openAIRequest{
		Model:      o.model,
		Messages:   messages,
		Tools:      openAITools,
		ToolChoice: "auto",
	})
	if err != nil {
		return chat.Interpretation{}, errors.NewInternalError("failed to marshal interpreter request", err)
	}

	resp, err := o.complete(ctx, body)
	if err != nil {
		return chat.Interpretation{}, errors.NewCollaboratorUnavailableError("interpreter request failed", err)
	}

	interp, err := decode(resp)
	if err != nil {
		return chat.Interpretation{}, errors.NewCollaboratorUnavailableError("interpreter returned an unusable response", err)
	}
	return interp, nil
}

// complete posts body, retrying transport failures, 429 and 5xx with exponential backoff.
// All attempts together share one timeout budget.
func (o *OpenAI) complete(ctx context.Context, body []byte) (*openAIResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < o.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * o.initDelay
			o.logger.Debug("Retrying interpreter request", map[string]any{
				"attempt": attempt + 1,
				"delay":   delay.String(),
				"error":   lastErr.Error(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := o.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("API error (%d): %s", resp.StatusCode, snippet(respBody))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return nil, lastErr
		}

		var out openAIResponse
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &out, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", o.maxRetries, lastErr)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBodyLen {
		return s[:maxErrorBodyLen] + "..."
	}
	return s
}

// decode maps the first tool call to an action. Extra tool calls are ignored.
func decode(resp *openAIResponse) (chat.Interpretation, error) {
	if len(resp.Choices) == 0 {
		return chat.Interpretation{}, fmt.Errorf("no choices in response")
	}
	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return chat.Interpretation{Prose: msg.Content}, nil
	}

	call := msg.ToolCalls[0].Function
	var args toolArgs
	if strings.TrimSpace(call.Arguments) != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return chat.Interpretation{}, fmt.Errorf("invalid arguments for %s: %w", call.Name, err)
		}
	}

	var action chat.Action
	switch call.Name {
	case "list_tasks":
		filter, err := tasks.ParseFilter(args.Status)
		if err != nil {
			filter = tasks.FilterAll
		}
		action = chat.ListAction{Filter: filter}
	case "create_task":
		if args.Title == nil {
			return chat.Interpretation{}, fmt.Errorf("create_task without a title")
		}
		action = chat.CreateAction{Title: *args.Title, Description: args.Description}
	case "update_task":
		action = chat.UpdateAction{
			Ref:    args.Task,
			Fields: tasks.Fields{Title: args.Title, Description: args.Description},
		}
	case "complete_task":
		completed := true
		if args.Completed != nil {
			completed = *args.Completed
		}
		action = chat.CompleteAction{Ref: args.Task, Completed: completed}
	case "delete_task":
		action = chat.DeleteAction{Ref: args.Task}
	default:
		return chat.Interpretation{}, fmt.Errorf("unknown tool %q", call.Name)
	}

	return chat.Interpretation{Action: action, Prose: msg.Content}, nil
}
