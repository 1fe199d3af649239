package chat

import "context"

// Interpretation is what the interpreter made of a turn: an action to run, or prose to
// show as-is when Action is nil.
type Interpretation struct {
	Action Action
	Prose  string
}

// Interpreter turns free text into an Interpretation. It is the only place the
// engine talks to a language model, and it may block for a long time.
type Interpreter interface {
	// Interpret receives the current user text and the history before it.
	Interpret(ctx context.Context, text string, history []Message) (Interpretation, error)
}

// InterpreterFunc adapts a function to the Interpreter interface.
type InterpreterFunc func(ctx context.Context, text string, history []Message) (Interpretation, error)

func (f InterpreterFunc) Interpret(ctx context.Context, text string, history []Message) (Interpretation, error) {
	return f(ctx, text, history)
}
