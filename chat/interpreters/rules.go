package interpreters

import (
	"context"
	"regexp"
	"strings"

	"taskchat/chat"
	"taskchat/tasks"
)

const helpText = `I can help you manage your tasks. Try things like:
- "add a task to buy milk"
- "show my pending tasks"
- "mark buy milk as done"
- "rename it to buy oat milk"
- "delete the task"`

// Rules is a deterministic, offline interpreter built from a fixed set of
// phrasings. It needs no credentials and is what the CLI and tests use by default.
type Rules struct{}

var _ chat.Interpreter = Rules{}

type rule struct {
	pattern *regexp.Regexp
	build   func(m []string) chat.Action
}

func re(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^` + expr + `$`)
}

// Order matters: the first matching rule wins.
var rules = []rule{
	{re(`(?:please\s+)?(?:add|create)\s+(?:a\s+)?(?:new\s+)?(?:task|todo)\s*[:\s]\s*(?:to\s+|called\s+|named\s+)?(.+?)\s+(?:with description|described as)\s+(.+)`), func(m []string) chat.Action {
		return chat.CreateAction{Title: clean(m[1]), Description: tasks.Ptr(clean(m[2]))}
	}},
	{re(`(?:please\s+)?(?:add|create)\s+(?:a\s+)?(?:new\s+)?(?:task|todo)\s*[:\s]\s*(?:to\s+|called\s+|named\s+)?(.+)`), func(m []string) chat.Action {
		return chat.CreateAction{Title: clean(m[1])}
	}},
	{re(`remind me to\s+(.+)`), func(m []string) chat.Action {
		return chat.CreateAction{Title: clean(m[1])}
	}},
	{re(`add\s+(.+?)\s+to\s+(?:my\s+)?(?:list|tasks|todo list|to-do list)`), func(m []string) chat.Action {
		return chat.CreateAction{Title: clean(m[1])}
	}},

	{re(`(?:show|list|display|see|view|what are|what's on)\s+(?:me\s+)?(?:all\s+)?(?:my\s+|the\s+)?(pending|open|incomplete|remaining|unfinished)\s+(?:tasks|todos|list)`), func([]string) chat.Action {
		return chat.ListAction{Filter: tasks.FilterPending}
	}},
	{re(`(?:show|list|display|see|view|what are)\s+(?:me\s+)?(?:all\s+)?(?:my\s+|the\s+)?(completed|done|finished)\s+(?:tasks|todos)`), func([]string) chat.Action {
		return chat.ListAction{Filter: tasks.FilterCompleted}
	}},
	{re(`(?:show|list|display|see|view|what are|what's on)\s+(?:me\s+)?(?:all\s+)?(?:my\s+|the\s+)?(?:tasks|todos|list|to-do list|todo list)`), func([]string) chat.Action {
		return chat.ListAction{Filter: tasks.FilterAll}
	}},
	{re(`what do i (?:have|need) to do`), func([]string) chat.Action {
		return chat.ListAction{Filter: tasks.FilterPending}
	}},

	{re(`(?:rename|retitle)\s+(.+?)\s+to\s+(.+)`), func(m []string) chat.Action {
		return chat.UpdateAction{Ref: clean(m[1]), Fields: tasks.Fields{Title: tasks.Ptr(clean(m[2]))}}
	}},
	{re(`(?:change|set|update)\s+the\s+title\s+(?:of\s+(.+?)\s+)?to\s+(.+)`), func(m []string) chat.Action {
		return chat.UpdateAction{Ref: clean(m[1]), Fields: tasks.Fields{Title: tasks.Ptr(clean(m[2]))}}
	}},
	{re(`(?:change|set|update)\s+the\s+description\s+(?:of\s+(.+?)\s+)?to\s+(.+)`), func(m []string) chat.Action {
		return chat.UpdateAction{Ref: clean(m[1]), Fields: tasks.Fields{Description: tasks.Ptr(clean(m[2]))}}
	}},
	{re(`(?:clear|remove)\s+the\s+description(?:\s+(?:of|from)\s+(.+))?`), func(m []string) chat.Action {
		return chat.UpdateAction{Ref: clean(m[1]), Fields: tasks.Fields{Description: tasks.Ptr("")}}
	}},

	{re(`(?:mark|set)\s+(.+?)\s+(?:as\s+)?(?:not done|not complete|not completed|incomplete|pending|undone|open)`), func(m []string) chat.Action {
		return chat.CompleteAction{Ref: clean(m[1]), Completed: false}
	}},
	{re(`(?:reopen|uncomplete)\s+(.+)`), func(m []string) chat.Action {
		return chat.CompleteAction{Ref: clean(m[1]), Completed: false}
	}},
	{re(`(?:mark|set)\s+(.+?)\s+(?:as\s+)?(?:done|complete|completed|finished)`), func(m []string) chat.Action {
		return chat.CompleteAction{Ref: clean(m[1]), Completed: true}
	}},
	{re(`(?:complete|finish)\s+(.+)`), func(m []string) chat.Action {
		return chat.CompleteAction{Ref: clean(m[1]), Completed: true}
	}},
	{re(`(?:i\s+)?(?:finished|did|completed)\s+(.+)`), func(m []string) chat.Action {
		return chat.CompleteAction{Ref: clean(m[1]), Completed: true}
	}},

	{re(`(?:delete|remove|drop)\s+(.+?)(?:\s+from\s+(?:my\s+)?(?:list|tasks|todo list))?`), func(m []string) chat.Action {
		return chat.DeleteAction{Ref: clean(m[1])}
	}},
}

func (Rules) Interpret(ctx context.Context, text string, _ []chat.Message) (chat.Interpretation, error) {
	if err := ctx.Err(); err != nil {
		return chat.Interpretation{}, err
	}

	text = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(text), ".!?"))
	for _, r := range rules {
		if m := r.pattern.FindStringSubmatch(text); m != nil {
			return chat.Interpretation{Action: r.build(m)}, nil
		}
	}
	return chat.Interpretation{Prose: helpText}, nil
}

// clean strips quotes and a leading "task" from a captured phrase.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "task ") {
		s = strings.TrimSpace(s[len("task "):])
	}
	return strings.Trim(s, `"'`)
}
