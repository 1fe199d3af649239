package chat

import "taskchat/tasks"

// ActionKind names one of the task operations a turn can request.
type ActionKind string

const (
	KindCreate   ActionKind = "create"
	KindList     ActionKind = "list"
	KindUpdate   ActionKind = "update"
	KindComplete ActionKind = "complete"
	KindDelete   ActionKind = "delete"
)

// Action is the structured request an interpreter extracts from a turn.
// A turn that requests nothing carries a nil Action.
type Action interface {
	Kind() ActionKind
}

// A Ref is whatever the user used to name a task: an id prefix or a title.
// An empty Ref means the task the conversation is currently about.

type CreateAction struct {
	Title       string
	Description *string
}

type ListAction struct {
	Filter tasks.Filter
}

type UpdateAction struct {
	Ref    string
	Fields tasks.Fields
}

type CompleteAction struct {
	Ref       string
	Completed bool
}

type DeleteAction struct {
	Ref string
}

func (CreateAction) Kind() ActionKind   { return KindCreate }
func (ListAction) Kind() ActionKind     { return KindList }
func (UpdateAction) Kind() ActionKind   { return KindUpdate }
func (CompleteAction) Kind() ActionKind { return KindComplete }
func (DeleteAction) Kind() ActionKind   { return KindDelete }
