package actions

import (
	"context"

	"taskchat/chat"
	"taskchat/tasks/service"
)

type UpdateHandler struct {
	svc service.Service
}

func (h *UpdateHandler) Handle(ctx context.Context, call chat.Call) (chat.Outcome, error) {
	a, ok := call.Action.(chat.UpdateAction)
	if !ok {
		return chat.Outcome{}, unexpected("update handler", call.Action)
	}

	task, err := resolve(ctx, h.svc, call, a.Ref)
	if err != nil {
		return chat.Outcome{}, err
	}

	if a.Fields.IsEmpty() {
		return chat.Outcome{
			Reply: "What would you like to change about " + describe(task) + "? I can update its title or description.",
			Focus: &task.ID,
		}, nil
	}

	task, err = h.svc.UpdateTask(ctx, task.ID, a.Fields)
	if err != nil {
		return chat.Outcome{}, err
	}

	return chat.Outcome{
		Reply: "Updated task " + describe(task) + ".",
		Focus: &task.ID,
	}, nil
}
