package chat

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"taskchat/errors"
	"taskchat/logger"
	"taskchat/tasks"
)

const (
	// DefaultOwner owns conversations started without one.
	DefaultOwner = "default_user"

	fallbackReply  = "Sorry, I'm having trouble understanding right now. Please try again in a moment."
	emptyTurnReply = "What would you like to do with your tasks? You can add, list, update, complete, or delete them."
	noActionReply  = "I'm not sure what you'd like me to do. Try something like \"add a task to buy milk\" or \"show my tasks\"."

	// recordTimeout bounds the writes that finish a turn after its caller has gone.
	recordTimeout = 5 * time.Second
)

// ErrNoTaskInContext is returned by handlers when a turn refers to "it" but the
// conversation has not talked about any task yet.
var ErrNoTaskInContext = stderrors.New("no task in conversation context")

// Turn is one user message addressed to the engine.
type Turn struct {
	// ConversationID continues an existing conversation. Empty or unknown ids start a new one.
	ConversationID string
	// Owner is used only when a new conversation is started.
	Owner string
	Text  string
}

type Reply struct {
	Text           string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// Engine maps conversational turns onto task operations.
type Engine struct {
	conversations ConversationStore
	interpreter   Interpreter
	handlers      *HandlerRegistry
	logger        *logger.Logger

	// locks serializes turns of the same conversation. Entries are never removed;
	// they live as long as the engine, like conversations do.
	locks sync.Map
}

func NewEngine(conversations ConversationStore, interpreter Interpreter, handlers *HandlerRegistry, lg *logger.Logger) *Engine {
	return &Engine{
		conversations: conversations,
		interpreter:   interpreter,
		handlers:      handlers,
		logger:        lg,
	}
}

// HandleTurn runs one turn: record it, interpret it, execute at most one action,
// and record the reply. Interpreter and action failures become a friendly reply;
// only conversation storage failures are returned as errors.
func (e *Engine) HandleTurn(ctx context.Context, turn Turn) (*Reply, error) {
	conv, err := e.conversation(ctx, turn)
	if err != nil {
		return nil, err
	}

	unlock := e.lock(conv.ID)
	defer unlock()

	// Reload under the lock so history includes any turn that finished while we waited.
	conv, err = e.conversations.Get(ctx, conv.ID)
	if err != nil {
		return nil, errors.NewInternalError("failed to load conversation", err)
	}
	prior := conv.History

	text := strings.TrimSpace(turn.Text)
	if err := e.conversations.Append(ctx, conv.ID, Message{Role: RoleUser, Content: text, CreatedAt: time.Now().UTC()}); err != nil {
		return nil, errors.NewInternalError("failed to record message", err)
	}

	reply, focus := e.respond(ctx, conv, text, prior)

	// The user message is already recorded, so the reply must be too, even when
	// the turn's deadline ran out while waiting on the interpreter.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if focus != nil {
		if err := e.conversations.SetFocus(recordCtx, conv.ID, *focus); err != nil {
			e.logger.Warn("Failed to update conversation focus", map[string]any{"conversation_id": conv.ID, "error": err.Error()})
		}
	}

	if err := e.conversations.Append(recordCtx, conv.ID, Message{Role: RoleAssistant, Content: reply, CreatedAt: time.Now().UTC()}); err != nil {
		return nil, errors.NewInternalError("failed to record reply", err)
	}

	return &Reply{Text: reply, ConversationID: conv.ID}, nil
}

// History returns a copy of a conversation's messages.
func (e *Engine) History(ctx context.Context, conversationID string) ([]Message, error) {
	conv, err := e.conversations.Get(ctx, conversationID)
	if stderrors.Is(err, ErrConversationNotFound) {
		return nil, errors.NewNotFoundError(fmt.Sprintf("conversation %s not found", conversationID))
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to load conversation", err)
	}
	return conv.History, nil
}

func (e *Engine) conversation(ctx context.Context, turn Turn) (*Conversation, error) {
	if turn.ConversationID != "" {
		conv, err := e.conversations.Get(ctx, turn.ConversationID)
		if err == nil {
			return conv, nil
		}
		if !stderrors.Is(err, ErrConversationNotFound) {
			return nil, errors.NewInternalError("failed to load conversation", err)
		}
		e.logger.Conversation(turn.ConversationID, "Unknown conversation, starting a new one")
	}

	owner := strings.TrimSpace(turn.Owner)
	if owner == "" {
		owner = DefaultOwner
	}
	conv, err := e.conversations.Create(ctx, owner)
	if err != nil {
		return nil, errors.NewInternalError("failed to start conversation", err)
	}
	e.logger.Conversation(conv.ID, "Conversation started", map[string]any{"owner": owner})
	return conv, nil
}

// respond produces the reply text and, when the action moved it, the new focus.
func (e *Engine) respond(ctx context.Context, conv *Conversation, text string, prior []Message) (string, *string) {
	if text == "" {
		return emptyTurnReply, nil
	}

	interp, err := e.interpreter.Interpret(ctx, text, prior)
	if err != nil {
		e.logger.Conversation(conv.ID, "Interpreter failed", map[string]any{"error": err.Error()})
		return fallbackReply, nil
	}

	if interp.Action == nil {
		if prose := strings.TrimSpace(interp.Prose); prose != "" {
			return prose, nil
		}
		return noActionReply, nil
	}

	kind := interp.Action.Kind()
	handler, ok := e.handlers.Get(kind)
	if !ok {
		e.logger.Error("No handler registered for action", map[string]any{"kind": string(kind), "conversation_id": conv.ID})
		return explain(errors.NewInternalError("no handler for " + string(kind))), nil
	}

	out, err := handler.Handle(ctx, Call{Action: interp.Action, Owner: conv.Owner, Focus: conv.Focus})
	if err != nil {
		e.logger.Conversation(conv.ID, "Action failed", map[string]any{
			"kind":  string(kind),
			"error": err.Error(),
		})
		return explain(err), nil
	}

	e.logger.Conversation(conv.ID, "Action executed", map[string]any{"kind": string(kind)})
	return out.Reply, out.Focus
}

func (e *Engine) lock(id string) func() {
	v, _ := e.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// explain turns an action failure into text fit for the user. Internal details stay in the logs.
func explain(err error) string {
	if stderrors.Is(err, ErrNoTaskInContext) {
		return "I'm not sure which task you mean. Could you tell me its title or id?"
	}

	switch errors.TypeOf(err) {
	case errors.NotFoundError:
		return "I couldn't find a task matching that description."
	case errors.AmbiguousPrefixError:
		ids := errors.Candidates(err)
		short := make([]string, len(ids))
		for i, id := range ids {
			short[i] = tasks.ShortID(id)
		}
		return fmt.Sprintf("That matches more than one task (%s). Which one did you mean?", strings.Join(short, ", "))
	case errors.ValidationError:
		return "I need a non-empty title to do that."
	default:
		return "Something went wrong while working on your tasks. Please try again."
	}
}
