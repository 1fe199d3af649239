package actions

import (
	"context"
	"fmt"
	"strings"

	"taskchat/chat"
	"taskchat/errors"
	"taskchat/tasks"
	"taskchat/tasks/service"
)

// NewRegistry returns a registry with a handler for every action kind.
func NewRegistry(svc service.Service) *chat.HandlerRegistry {
	r := chat.NewHandlerRegistry()
	r.Register(chat.KindCreate, &CreateHandler{svc: svc})
	r.Register(chat.KindList, &ListHandler{svc: svc})
	r.Register(chat.KindUpdate, &UpdateHandler{svc: svc})
	r.Register(chat.KindComplete, &CompleteHandler{svc: svc})
	r.Register(chat.KindDelete, &DeleteHandler{svc: svc})
	return r
}

// Words that point at the task the conversation is about rather than naming one.
var pronouns = map[string]bool{
	"it":        true,
	"that":      true,
	"this":      true,
	"the task":  true,
	"that task": true,
	"this task": true,
	"that one":  true,
	"this one":  true,
}

// minRefPrefix is the shortest id prefix accepted in chat. Shorter refs are
// too likely to be a word that happens to start some id.
const minRefPrefix = 4

// resolve finds the task a ref names. An empty ref or a pronoun means the
// conversation focus. Otherwise the ref is matched as an exact, case-insensitive
// title among the owner's tasks, then as an id prefix. Tasks of other owners
// never match.
func resolve(ctx context.Context, svc service.Service, call chat.Call, ref string) (*tasks.Task, error) {
	ref = strings.TrimSpace(ref)
	if pronouns[strings.ToLower(ref)] {
		ref = ""
	}

	if ref == "" {
		if call.Focus == "" {
			return nil, chat.ErrNoTaskInContext
		}
		return svc.GetTask(ctx, call.Focus)
	}

	owned, err := svc.ListTasks(ctx, call.Owner, tasks.FilterAll)
	if err != nil {
		return nil, err
	}

	var matches []*tasks.Task
	for _, t := range owned {
		if strings.EqualFold(strings.TrimSpace(t.Title), ref) {
			matches = append(matches, t)
		}
	}

	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) > 1 {
		return nil, errors.NewAmbiguousPrefixError(ref, ids(matches))
	}

	notFound := errors.NewNotFoundError(fmt.Sprintf("no task matches %q", ref))
	if len(ref) < minRefPrefix {
		return nil, notFound
	}

	task, err := svc.GetTask(ctx, ref)
	if err != nil {
		return nil, err
	}
	if call.Owner != "" && task.Owner != call.Owner {
		return nil, notFound
	}
	return task, nil
}

func ids(list []*tasks.Task) []string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.ID
	}
	return out
}

func unexpected(h string, action chat.Action) error {
	return errors.NewInternalError(fmt.Sprintf("%s cannot handle %T", h, action))
}

func describe(t *tasks.Task) string {
	return fmt.Sprintf("%q (%s)", t.Title, tasks.ShortID(t.ID))
}
