package actions

import (
	"context"

	"taskchat/chat"
	"taskchat/tasks/service"
)

// CreateHandler adds a task for the conversation owner and focuses it.
type CreateHandler struct {
	svc service.Service
}

func (h *CreateHandler) Handle(ctx context.Context, call chat.Call) (chat.Outcome, error) {
	a, ok := call.Action.(chat.CreateAction)
	if !ok {
		return chat.Outcome{}, unexpected("create handler", call.Action)
	}

	task, err := h.svc.CreateTask(ctx, call.Owner, a.Title, a.Description)
	if err != nil {
		return chat.Outcome{}, err
	}

	return chat.Outcome{
		Reply: "Created task " + describe(task) + ".",
		Focus: &task.ID,
	}, nil
}
