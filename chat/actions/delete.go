package actions

import (
	"context"

	"taskchat/chat"
	"taskchat/tasks/service"
)

// DeleteHandler removes a task. Deleting the focused task clears the focus.
type DeleteHandler struct {
	svc service.Service
}

func (h *DeleteHandler) Handle(ctx context.Context, call chat.Call) (chat.Outcome, error) {
	a, ok := call.Action.(chat.DeleteAction)
	if !ok {
		return chat.Outcome{}, unexpected("delete handler", call.Action)
	}

	task, err := resolve(ctx, h.svc, call, a.Ref)
	if err != nil {
		return chat.Outcome{}, err
	}

	if err := h.svc.DeleteTask(ctx, task.ID); err != nil {
		return chat.Outcome{}, err
	}

	out := chat.Outcome{Reply: "Deleted task " + describe(task) + "."}
	if task.ID == call.Focus {
		cleared := ""
		out.Focus = &cleared
	}
	return out, nil
}
