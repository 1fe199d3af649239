package tasks

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Task is a unit of trackable work owned by a single creator.
type Task struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	Title string `json:"title"`
	// Nil when the task has no description.
	Description *string   `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTask builds a pending task with a fresh id. Title validation is the caller's job.
func NewTask(owner, title string, description *string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:          NewID(),
		Owner:       owner,
		Title:       title,
		Description: normalizeDescription(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewID returns a random 128-bit id in canonical lowercase form.
func NewID() string {
	return uuid.New().String()
}

// Clone returns a deep copy so stored records never share memory with callers.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Description != nil {
		d := *t.Description
		c.Description = &d
	}
	return &c
}

// DescriptionText returns the description or "" when absent.
func (t *Task) DescriptionText() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// Fields carries a partial update of the user-editable text fields.
// A nil pointer leaves the field unchanged; a pointer to "" clears the description.
type Fields struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// IsEmpty reports whether no field is present.
func (f Fields) IsEmpty() bool {
	return f.Title == nil && f.Description == nil
}

// Patch is the field-level mutation a store applies atomically.
type Patch struct {
	Title       *string
	Description *string
	Completed   *bool
}

// Apply mutates t in place and refreshes UpdatedAt, even when nothing changed.
func (p Patch) Apply(t *Task, now time.Time) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = normalizeDescription(p.Description)
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if !now.After(t.UpdatedAt) {
		// keep updated_at strictly advancing on coarse clocks
		now = t.UpdatedAt.Add(time.Nanosecond)
	}
	t.UpdatedAt = now
}

func normalizeDescription(d *string) *string {
	if d == nil || *d == "" {
		return nil
	}
	c := *d
	return &c
}

// Filter selects tasks by completion state.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterPending   Filter = "pending"
	FilterCompleted Filter = "completed"
)

// ParseFilter accepts "", "all", "pending" and "completed" in any case.
func ParseFilter(s string) (Filter, error) {
	switch Filter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterPending:
		return FilterPending, nil
	case FilterCompleted:
		return FilterCompleted, nil
	default:
		return "", fmt.Errorf("unknown filter %q: must be all, pending or completed", s)
	}
}

func (f Filter) String() string {
	return string(f)
}

// Matches reports whether t passes the filter.
func (f Filter) Matches(t *Task) bool {
	switch f {
	case FilterPending:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

// ShortID is the display form of an id used in replies and listings.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
