// Package store defines the task record model and the operations the rest of
// taskping performs against a task store. Two implementations ship with the
// module: a local markdown docstore and a remote property-store client.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
	timeNow     = func() time.Time { return time.Now().UTC() }
)

// Priority select values.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// Recurrence select values.
const (
	RecurrenceNone    = "None"
	RecurrenceDaily   = "Daily"
	RecurrenceWeekly  = "Weekly"
	RecurrenceMonthly = "Monthly"
)

// reminderSortSentinel keys tasks without a reminder after every dated task.
const reminderSortSentinel = "9999-12-31T23:59:59Z"

// Task is one to-do item. Name is the lookup key within an owner's tasks;
// there is no identifier that survives a rename.
type Task struct {
	Name       string
	Done       bool
	Reminder   string // ISO-8601 timestamp, empty when unset
	Priority   string
	Recurrence string
	Tags       []string
	Notes      string
	Owner      string // phone number scoping the task
}

// Filter narrows a Query. Zero-value fields are ignored; set fields combine
// with AND. There is no OR and no server-side full-text search.
type Filter struct {
	Owner    string
	Priority string
	Tag      string
	Done     *bool
}

// Matches reports whether t satisfies every set condition in f.
func (f Filter) Matches(t Task) bool {
	if f.Owner != "" && t.Owner != f.Owner {
		return false
	}
	if f.Priority != "" && !strings.EqualFold(t.Priority, f.Priority) {
		return false
	}
	if f.Tag != "" && !containsFold(t.Tags, f.Tag) {
		return false
	}
	if f.Done != nil && t.Done != *f.Done {
		return false
	}
	return true
}

// Fields is a partial update. Nil means "leave unchanged"; clearing a field
// is not supported.
type Fields struct {
	Name       *string
	Done       *bool
	Reminder   *string
	Priority   *string
	Recurrence *string
	Tags       *[]string
	Notes      *string
}

// Empty reports whether the update carries no changes at all.
func (f Fields) Empty() bool {
	return f.Name == nil && f.Done == nil && f.Reminder == nil &&
		f.Priority == nil && f.Recurrence == nil && f.Tags == nil && f.Notes == nil
}

func (f Fields) apply(t *Task) {
	if f.Name != nil {
		t.Name = *f.Name
	}
	if f.Done != nil {
		t.Done = *f.Done
	}
	if f.Reminder != nil {
		t.Reminder = *f.Reminder
	}
	if f.Priority != nil {
		t.Priority = *f.Priority
	}
	if f.Recurrence != nil {
		t.Recurrence = *f.Recurrence
	}
	if f.Tags != nil {
		t.Tags = *f.Tags
	}
	if f.Notes != nil {
		t.Notes = *f.Notes
	}
}

// Store is the task-store contract. Lookups by name are exact matches scoped
// to the owner; when duplicates exist the first match wins. Archive is a soft
// delete: archived tasks drop out of Query results but are not destroyed.
type Store interface {
	Create(ctx context.Context, t Task) error
	Query(ctx context.Context, f Filter) ([]Task, error)
	Update(ctx context.Context, name, owner string, fields Fields) error
	Archive(ctx context.Context, name, owner string) error
	ArchiveAll(ctx context.Context, f Filter) error
}

// SortByReminder orders tasks ascending by reminder timestamp. Tasks without
// a reminder sort last via a maximal sentinel date. The sort key is the raw
// ISO-8601 string, which orders correctly for same-offset timestamps.
func SortByReminder(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return reminderSortKey(tasks[i]) < reminderSortKey(tasks[j])
	})
}

func reminderSortKey(t Task) string {
	if strings.TrimSpace(t.Reminder) == "" {
		return reminderSortSentinel
	}
	return t.Reminder
}

func containsFold(list []string, v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	for _, s := range list {
		if strings.ToLower(strings.TrimSpace(s)) == v {
			return true
		}
	}
	return false
}
