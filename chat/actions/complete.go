package actions

import (
	"context"

	"taskchat/chat"
	"taskchat/tasks/service"
)

// CompleteHandler marks a task complete or pending again. Repeating it is harmless.
type CompleteHandler struct {
	svc service.Service
}

func (h *CompleteHandler) Handle(ctx context.Context, call chat.Call) (chat.Outcome, error) {
	a, ok := call.Action.(chat.CompleteAction)
	if !ok {
		return chat.Outcome{}, unexpected("complete handler", call.Action)
	}

	task, err := resolve(ctx, h.svc, call, a.Ref)
	if err != nil {
		return chat.Outcome{}, err
	}

	task, err = h.svc.SetCompletion(ctx, task.ID, a.Completed)
	if err != nil {
		return chat.Outcome{}, err
	}

	reply := "Marked " + describe(task) + " as complete."
	if !task.Completed {
		reply = "Marked " + describe(task) + " as not complete."
	}
	return chat.Outcome{Reply: reply, Focus: &task.ID}, nil
}
