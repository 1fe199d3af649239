package chat

import (
	"context"
	"slices"
	"sync"
)

// Call is what an ActionHandler gets to work with.
type Call struct {
	Action Action
	// Owner of the conversation; new tasks belong to them.
	Owner string
	// Focus is the conversation's current task id, used for empty refs.
	Focus string
}

// Outcome is a handler's reply plus the conversation focus it leaves behind.
type Outcome struct {
	Reply string
	// Focus replaces the conversation focus when non-nil; a pointer to "" clears it.
	Focus *string
}

// ActionHandler executes one kind of action against the task service.
type ActionHandler interface {
	Handle(ctx context.Context, call Call) (Outcome, error)
}

// HandlerRegistry maps action kinds to their handlers.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[ActionKind]ActionHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[ActionKind]ActionHandler),
	}
}

// Register binds a handler to a kind, replacing any previous one.
func (r *HandlerRegistry) Register(kind ActionKind, handler ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[kind] = handler
}

func (r *HandlerRegistry) Get(kind ActionKind) (ActionHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns every registered kind, sorted. Used by the health endpoint.
func (r *HandlerRegistry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, string(kind))
	}
	slices.Sort(kinds)
	return kinds
}
