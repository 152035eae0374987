package command

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/amirbrooks/taskping/internal/store"
)

// PhoneRecorder records which phone number owns a task name, so the reminder
// scanner can route notifications later.
type PhoneRecorder interface {
	Set(taskName, phone string) error
}

// Handler dispatches parsed commands to the task store. Every failure path
// returns a reply string; no error and no panic crosses this boundary.
type Handler struct {
	store  store.Store
	phones PhoneRecorder
	log    *zap.Logger
}

func NewHandler(st store.Store, phones PhoneRecorder, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: st, phones: phones, log: log.Named("command")}
}

const (
	replyUnknown      = "Unknown command. Send 'help' for the list of commands."
	replyInternalFail = "Sorry, something went wrong. Please try again."

	usageAdd = "Please specify a task to add. Example:\n" +
		"add Buy groceries /reminder 2025-08-10T15:00:00 /priority High /repeat Daily " +
		"/tags shopping,urgent /notes Buy low fat milk"
	usageEdit = "Specify task edit details. Example:\n" +
		"edit Old Task Name /newname New Task Name /reminder 2025-08-12T10:00:00 /priority High " +
		"/recurrence Daily /tags tag1,tag2 /notes Some notes here"

	helpText = "Commands:\n" +
		"- add <task> [/reminder <ISO datetime>] [/priority <Low|Medium|High>] [/repeat|recurrence <None|Daily|Weekly|Monthly>] " +
		"[/tags <tag1,tag2>] [/notes <text>]\n" +
		"- list [sort]\n" +
		"- list-incomplete [sort]\n" +
		"- complete <task>\n" +
		"- mark-incomplete <task>\n" +
		"- edit <old_task_name> /newname <new_name> /reminder <ISO datetime> /priority <Low|Medium|High> " +
		"/recurrence <None|Daily|Weekly|Monthly> /tags <tag1,tag2> /notes <text>\n" +
		"- delete <task>\n" +
		"- delete-all-completed\n" +
		"- search <keyword>\n" +
		"- summary\n" +
		"- help"
)

// Process interprets one inbound message from the given phone number and
// returns the reply text.
func (h *Handler) Process(ctx context.Context, body, from string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("panic while processing command", zap.Any("panic", r), zap.String("from", from))
			reply = replyInternalFail
		}
	}()

	verb, args := Parse(body)
	switch verb {
	case "add":
		return h.add(ctx, args, from)
	case "list":
		return h.list(ctx, args, from, false)
	case "list-incomplete":
		return h.list(ctx, args, from, true)
	case "complete":
		return h.setDone(ctx, args, from, true)
	case "mark-incomplete":
		return h.setDone(ctx, args, from, false)
	case "edit":
		return h.edit(ctx, args, from)
	case "delete":
		return h.delete(ctx, args, from)
	case "delete-all-completed":
		return h.deleteAllCompleted(ctx, from)
	case "search":
		return h.search(ctx, args, from)
	case "summary":
		return h.summary(ctx, from)
	case "help", "":
		return helpText
	default:
		return replyUnknown
	}
}

func (h *Handler) add(ctx context.Context, args, from string) string {
	if strings.TrimSpace(args) == "" {
		return usageAdd
	}
	name, flags := ExtractFlags(args)
	if name == "" {
		return usageAdd
	}
	t := store.Task{Name: name, Owner: from}
	if flags.Reminder != nil {
		t.Reminder = *flags.Reminder
	}
	if flags.Priority != nil {
		t.Priority = *flags.Priority
	}
	if flags.Recurrence != nil {
		t.Recurrence = *flags.Recurrence
	}
	if flags.Tags != nil {
		t.Tags = *flags.Tags
	}
	if flags.Notes != nil {
		t.Notes = *flags.Notes
	}
	if err := h.store.Create(ctx, t); err != nil {
		h.log.Warn("add failed", zap.String("task", name), zap.Error(err))
		return "Failed to add task."
	}
	if h.phones != nil {
		if err := h.phones.Set(name, from); err != nil {
			h.log.Warn("failed to record phone for task", zap.String("task", name), zap.Error(err))
		}
	}
	if t.Reminder != "" {
		return fmt.Sprintf("Task added with reminder at %s!", t.Reminder)
	}
	return "Task added!"
}

func (h *Handler) list(ctx context.Context, args, from string, incompleteOnly bool) string {
	filter := store.Filter{Owner: from}
	if incompleteOnly {
		notDone := false
		filter.Done = &notDone
	}
	tasks, err := h.store.Query(ctx, filter)
	if err != nil {
		h.log.Warn("list failed", zap.Error(err))
		return replyInternalFail
	}
	if strings.Contains(strings.ToLower(args), "sort") {
		store.SortByReminder(tasks)
	}
	if len(tasks) == 0 {
		if incompleteOnly {
			return "No incomplete tasks found."
		}
		return "No tasks found."
	}
	header := "Your tasks:"
	if incompleteOnly {
		header = "Incomplete tasks:"
	}
	var b strings.Builder
	b.WriteString(header)
	for _, t := range tasks {
		b.WriteString("\n")
		b.WriteString(taskLine(t, !incompleteOnly))
	}
	return trimReply(b.String())
}

func (h *Handler) setDone(ctx context.Context, args, from string, done bool) string {
	name := strings.TrimSpace(args)
	if name == "" {
		if done {
			return "Please specify the task to complete."
		}
		return "Please specify the task to mark incomplete."
	}
	fields := store.Fields{Done: &done}
	if err := h.store.Update(ctx, name, from, fields); err != nil {
		h.log.Warn("done toggle failed", zap.String("task", name), zap.Bool("done", done), zap.Error(err))
		if done {
			return "Failed to mark task."
		}
		return "Failed to update task."
	}
	if done {
		return "Task marked as completed!"
	}
	return "Task marked as incomplete!"
}

func (h *Handler) edit(ctx context.Context, args, from string) string {
	if strings.TrimSpace(args) == "" {
		return usageEdit
	}
	oldName, flags := ExtractFlags(args)
	if oldName == "" || flags.Empty() {
		return "Failed to edit task."
	}
	fields := store.Fields{
		Name:       flags.NewName,
		Reminder:   flags.Reminder,
		Priority:   flags.Priority,
		Recurrence: flags.Recurrence,
		Tags:       flags.Tags,
		Notes:      flags.Notes,
	}
	if err := h.store.Update(ctx, oldName, from, fields); err != nil {
		h.log.Warn("edit failed", zap.String("task", oldName), zap.Error(err))
		return "Failed to edit task."
	}
	return "Task edited successfully!"
}

func (h *Handler) delete(ctx context.Context, args, from string) string {
	name := strings.TrimSpace(args)
	if name == "" {
		return "Please specify the task to delete."
	}
	if err := h.store.Archive(ctx, name, from); err != nil {
		h.log.Warn("delete failed", zap.String("task", name), zap.Error(err))
		return "Failed to delete task."
	}
	return "Task deleted!"
}

func (h *Handler) deleteAllCompleted(ctx context.Context, from string) string {
	done := true
	if err := h.store.ArchiveAll(ctx, store.Filter{Owner: from, Done: &done}); err != nil {
		h.log.Warn("delete-all-completed failed", zap.Error(err))
		return "Failed to delete completed tasks."
	}
	return "All completed tasks deleted!"
}

func (h *Handler) search(ctx context.Context, args, from string) string {
	keyword := strings.TrimSpace(args)
	if keyword == "" {
		return "Please provide a keyword to search tasks."
	}
	tasks, err := h.store.Query(ctx, store.Filter{Owner: from})
	if err != nil {
		h.log.Warn("search failed", zap.Error(err))
		return replyInternalFail
	}
	matches := searchTasks(tasks, keyword)
	if len(matches) == 0 {
		return "No matching tasks found."
	}
	var b strings.Builder
	b.WriteString("Search results:")
	for _, t := range matches {
		b.WriteString("\n- ")
		b.WriteString(t.Name)
	}
	return trimReply(b.String())
}

// searchTasks keeps tasks whose name contains every whitespace-separated
// keyword as a case-insensitive substring (AND semantics).
func searchTasks(tasks []store.Task, keywords string) []store.Task {
	words := strings.Fields(strings.ToLower(keywords))
	var out []store.Task
	for _, t := range tasks {
		name := strings.ToLower(t.Name)
		all := true
		for _, w := range words {
			if !strings.Contains(name, w) {
				all = false
				break
			}
		}
		if all {
			out = append(out, t)
		}
	}
	return out
}

func (h *Handler) summary(ctx context.Context, from string) string {
	tasks, err := h.store.Query(ctx, store.Filter{Owner: from})
	if err != nil {
		h.log.Warn("summary failed", zap.Error(err))
		return replyInternalFail
	}
	total := len(tasks)
	completed := 0
	priorities := map[string]int{}
	var order []string
	for _, t := range tasks {
		if t.Done {
			completed++
		}
		p := t.Priority
		if p == "" {
			p = "None"
		}
		if _, seen := priorities[p]; !seen {
			order = append(order, p)
		}
		priorities[p]++
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Task Summary:\nTotal: %d\nCompleted: %d\nIncomplete: %d\nBy Priority:", total, completed, total-completed)
	for _, p := range order {
		fmt.Fprintf(&b, "\n- %s: %d", p, priorities[p])
	}
	return trimReply(b.String())
}
