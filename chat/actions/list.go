package actions

import (
	"context"
	"fmt"
	"strings"

	"taskchat/chat"
	"taskchat/tasks"
	"taskchat/tasks/service"
)

// ListHandler shows the owner's tasks. A single result becomes the focus.
type ListHandler struct {
	svc service.Service
}

func (h *ListHandler) Handle(ctx context.Context, call chat.Call) (chat.Outcome, error) {
	a, ok := call.Action.(chat.ListAction)
	if !ok {
		return chat.Outcome{}, unexpected("list handler", call.Action)
	}

	filter := a.Filter
	if filter == "" {
		filter = tasks.FilterAll
	}

	list, err := h.svc.ListTasks(ctx, call.Owner, filter)
	if err != nil {
		return chat.Outcome{}, err
	}

	if len(list) == 0 {
		switch filter {
		case tasks.FilterPending:
			return chat.Outcome{Reply: "You have no pending tasks."}, nil
		case tasks.FilterCompleted:
			return chat.Outcome{Reply: "You have no completed tasks."}, nil
		default:
			return chat.Outcome{Reply: "You don't have any tasks yet."}, nil
		}
	}

	out := chat.Outcome{Reply: formatList(filter, list)}
	if len(list) == 1 {
		out.Focus = &list[0].ID
	}
	return out, nil
}

func formatList(filter tasks.Filter, list []*tasks.Task) string {
	var b strings.Builder
	switch filter {
	case tasks.FilterPending:
		b.WriteString("Here are your pending tasks:")
	case tasks.FilterCompleted:
		b.WriteString("Here are your completed tasks:")
	default:
		b.WriteString("Here are your tasks:")
	}

	for i, t := range list {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		fmt.Fprintf(&b, "\n%d. [%s] %s (%s)", i+1, mark, t.Title, tasks.ShortID(t.ID))
		if d := t.DescriptionText(); d != "" {
			b.WriteString(" - " + d)
		}
	}
	return b.String()
}
