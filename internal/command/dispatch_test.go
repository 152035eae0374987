package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amirbrooks/taskping/internal/store"
)

// memStore is a minimal in-memory Store for handler tests. First match wins
// on name lookups, matching the real backends.
type memStore struct {
	tasks   []store.Task
	failAll bool
}

func (m *memStore) Create(ctx context.Context, t store.Task) error {
	if m.failAll {
		return errors.New("store down")
	}
	m.tasks = append(m.tasks, t)
	return nil
}

func (m *memStore) Query(ctx context.Context, f store.Filter) ([]store.Task, error) {
	if m.failAll {
		return nil, errors.New("store down")
	}
	var out []store.Task
	for _, t := range m.tasks {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) Update(ctx context.Context, name, owner string, fields store.Fields) error {
	if m.failAll {
		return errors.New("store down")
	}
	for i := range m.tasks {
		if m.tasks[i].Name == name && m.tasks[i].Owner == owner {
			t := m.tasks[i]
			if fields.Name != nil {
				t.Name = *fields.Name
			}
			if fields.Done != nil {
				t.Done = *fields.Done
			}
			if fields.Reminder != nil {
				t.Reminder = *fields.Reminder
			}
			if fields.Priority != nil {
				t.Priority = *fields.Priority
			}
			if fields.Recurrence != nil {
				t.Recurrence = *fields.Recurrence
			}
			if fields.Tags != nil {
				t.Tags = *fields.Tags
			}
			if fields.Notes != nil {
				t.Notes = *fields.Notes
			}
			m.tasks[i] = t
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) Archive(ctx context.Context, name, owner string) error {
	if m.failAll {
		return errors.New("store down")
	}
	for i := range m.tasks {
		if m.tasks[i].Name == name && m.tasks[i].Owner == owner {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) ArchiveAll(ctx context.Context, f store.Filter) error {
	if m.failAll {
		return errors.New("store down")
	}
	var kept []store.Task
	for _, t := range m.tasks {
		if !f.Matches(t) {
			kept = append(kept, t)
		}
	}
	m.tasks = kept
	return nil
}

type memPhones struct {
	entries map[string]string
	fail    bool
}

func (m *memPhones) Set(taskName, phone string) error {
	if m.fail {
		return errors.New("disk full")
	}
	if m.entries == nil {
		m.entries = map[string]string{}
	}
	m.entries[taskName] = phone
	return nil
}

const testFrom = "+15551234567"

func newTestHandler() (*Handler, *memStore, *memPhones) {
	st := &memStore{}
	ph := &memPhones{}
	return NewHandler(st, ph, zap.NewNop()), st, ph
}

func TestProcessAdd(t *testing.T) {
	t.Run("plain add", func(t *testing.T) {
		h, st, ph := newTestHandler()
		reply := h.Process(context.Background(), "add Buy milk", testFrom)
		assert.Equal(t, "Task added!", reply)
		require.Len(t, st.tasks, 1)
		assert.Equal(t, "Buy milk", st.tasks[0].Name)
		assert.Equal(t, testFrom, st.tasks[0].Owner)
		assert.Equal(t, testFrom, ph.entries["Buy milk"])
	})

	t.Run("add with reminder echoes it", func(t *testing.T) {
		h, st, _ := newTestHandler()
		reply := h.Process(context.Background(),
			"add Buy milk /reminder 2025-08-10T15:00:00 /priority high /tags a,b,c", testFrom)
		assert.Equal(t, "Task added with reminder at 2025-08-10T15:00:00!", reply)
		require.Len(t, st.tasks, 1)
		assert.Equal(t, "High", st.tasks[0].Priority)
		assert.Equal(t, []string{"a", "b", "c"}, st.tasks[0].Tags)
	})

	t.Run("add without a name prints usage", func(t *testing.T) {
		h, _, _ := newTestHandler()
		assert.Equal(t, usageAdd, h.Process(context.Background(), "add", testFrom))
		assert.Equal(t, usageAdd, h.Process(context.Background(), "add /priority high", testFrom))
	})

	t.Run("store failure", func(t *testing.T) {
		h, st, _ := newTestHandler()
		st.failAll = true
		assert.Equal(t, "Failed to add task.", h.Process(context.Background(), "add Buy milk", testFrom))
	})

	t.Run("phone write failure does not fail the add", func(t *testing.T) {
		st := &memStore{}
		h := NewHandler(st, &memPhones{fail: true}, zap.NewNop())
		assert.Equal(t, "Task added!", h.Process(context.Background(), "add Buy milk", testFrom))
	})
}

func TestProcessList(t *testing.T) {
	seed := func(st *memStore) {
		st.tasks = []store.Task{
			{Name: "No date", Owner: testFrom},
			{Name: "Later", Reminder: "2025-09-01T09:00:00", Owner: testFrom, Done: true},
			{Name: "Sooner", Reminder: "2025-08-10T15:00:00", Owner: testFrom},
			{Name: "Not yours", Owner: "+15550000000"},
		}
	}

	t.Run("list shows checkboxes", func(t *testing.T) {
		h, st, _ := newTestHandler()
		seed(st)
		reply := h.Process(context.Background(), "list", testFrom)
		assert.Equal(t, "Your tasks:\n"+
			"- [ ] No date\n"+
			"- [x] Later (reminder: 2025-09-01T09:00:00)\n"+
			"- [ ] Sooner (reminder: 2025-08-10T15:00:00)", reply)
	})

	t.Run("list sort puts undated tasks last", func(t *testing.T) {
		h, st, _ := newTestHandler()
		seed(st)
		reply := h.Process(context.Background(), "list sort", testFrom)
		assert.Equal(t, "Your tasks:\n"+
			"- [ ] Sooner (reminder: 2025-08-10T15:00:00)\n"+
			"- [x] Later (reminder: 2025-09-01T09:00:00)\n"+
			"- [ ] No date", reply)
	})

	t.Run("list-incomplete filters done tasks", func(t *testing.T) {
		h, st, _ := newTestHandler()
		seed(st)
		reply := h.Process(context.Background(), "list-incomplete", testFrom)
		assert.Equal(t, "Incomplete tasks:\n"+
			"- No date\n"+
			"- Sooner (reminder: 2025-08-10T15:00:00)", reply)
	})

	t.Run("empty store", func(t *testing.T) {
		h, _, _ := newTestHandler()
		assert.Equal(t, "No tasks found.", h.Process(context.Background(), "list", testFrom))
		assert.Equal(t, "No incomplete tasks found.", h.Process(context.Background(), "list-incomplete", testFrom))
	})
}

func TestProcessDoneToggle(t *testing.T) {
	h, st, _ := newTestHandler()
	st.tasks = []store.Task{{Name: "Buy milk", Owner: testFrom}}

	assert.Equal(t, "Task marked as completed!", h.Process(context.Background(), "complete Buy milk", testFrom))
	assert.True(t, st.tasks[0].Done)

	assert.Equal(t, "Task marked as incomplete!", h.Process(context.Background(), "mark-incomplete Buy milk", testFrom))
	assert.False(t, st.tasks[0].Done)

	assert.Equal(t, "Failed to mark task.", h.Process(context.Background(), "complete No such", testFrom))
	assert.Equal(t, "Failed to update task.", h.Process(context.Background(), "mark-incomplete No such", testFrom))
}

func TestProcessEdit(t *testing.T) {
	t.Run("rename and retag", func(t *testing.T) {
		h, st, _ := newTestHandler()
		st.tasks = []store.Task{{Name: "Old name", Owner: testFrom}}
		reply := h.Process(context.Background(), "edit Old name /newname New name /tags x,y", testFrom)
		assert.Equal(t, "Task edited successfully!", reply)
		assert.Equal(t, "New name", st.tasks[0].Name)
		assert.Equal(t, []string{"x", "y"}, st.tasks[0].Tags)
	})

	t.Run("no flags fails", func(t *testing.T) {
		h, st, _ := newTestHandler()
		st.tasks = []store.Task{{Name: "Old name", Owner: testFrom}}
		assert.Equal(t, "Failed to edit task.", h.Process(context.Background(), "edit Old name", testFrom))
	})

	t.Run("missing task fails", func(t *testing.T) {
		h, _, _ := newTestHandler()
		assert.Equal(t, "Failed to edit task.", h.Process(context.Background(), "edit Ghost /priority low", testFrom))
	})

	t.Run("bare edit prints usage", func(t *testing.T) {
		h, _, _ := newTestHandler()
		assert.Equal(t, usageEdit, h.Process(context.Background(), "edit", testFrom))
	})
}

func TestProcessDelete(t *testing.T) {
	h, st, _ := newTestHandler()
	st.tasks = []store.Task{{Name: "Buy milk", Owner: testFrom}}

	assert.Equal(t, "Task deleted!", h.Process(context.Background(), "delete Buy milk", testFrom))
	assert.Empty(t, st.tasks)
	assert.Equal(t, "Failed to delete task.", h.Process(context.Background(), "delete Buy milk", testFrom))
}

func TestProcessDeleteAllCompleted(t *testing.T) {
	t.Run("removes only own completed tasks", func(t *testing.T) {
		h, st, _ := newTestHandler()
		st.tasks = []store.Task{
			{Name: "Done one", Done: true, Owner: testFrom},
			{Name: "Open one", Owner: testFrom},
			{Name: "Someone else's", Done: true, Owner: "+15550000000"},
		}
		assert.Equal(t, "All completed tasks deleted!", h.Process(context.Background(), "delete-all-completed", testFrom))
		require.Len(t, st.tasks, 2)
		assert.Equal(t, "Open one", st.tasks[0].Name)
		assert.Equal(t, "Someone else's", st.tasks[1].Name)
	})

	t.Run("zero matches is still success", func(t *testing.T) {
		h, _, _ := newTestHandler()
		assert.Equal(t, "All completed tasks deleted!", h.Process(context.Background(), "delete-all-completed", testFrom))
	})
}

func TestProcessSearch(t *testing.T) {
	h, st, _ := newTestHandler()
	st.tasks = []store.Task{
		{Name: "Buy groceries", Owner: testFrom},
		{Name: "Buy milk", Owner: testFrom},
		{Name: "Call mom", Owner: testFrom},
	}

	t.Run("keywords AND together", func(t *testing.T) {
		reply := h.Process(context.Background(), "search buy groc", testFrom)
		assert.Equal(t, "Search results:\n- Buy groceries", reply)
	})

	t.Run("case-insensitive substring", func(t *testing.T) {
		reply := h.Process(context.Background(), "search MILK", testFrom)
		assert.Equal(t, "Search results:\n- Buy milk", reply)
	})

	t.Run("no matches", func(t *testing.T) {
		assert.Equal(t, "No matching tasks found.", h.Process(context.Background(), "search zebra", testFrom))
	})

	t.Run("missing keyword", func(t *testing.T) {
		assert.Equal(t, "Please provide a keyword to search tasks.", h.Process(context.Background(), "search", testFrom))
	})
}

func TestProcessSummary(t *testing.T) {
	h, st, _ := newTestHandler()
	st.tasks = []store.Task{
		{Name: "A", Priority: "High", Done: true, Owner: testFrom},
		{Name: "B", Priority: "High", Owner: testFrom},
		{Name: "C", Owner: testFrom},
		{Name: "D", Priority: "Low", Owner: testFrom},
	}
	reply := h.Process(context.Background(), "summary", testFrom)
	assert.Equal(t, "Task Summary:\n"+
		"Total: 4\n"+
		"Completed: 1\n"+
		"Incomplete: 3\n"+
		"By Priority:\n"+
		"- High: 2\n"+
		"- None: 1\n"+
		"- Low: 1", reply)
}

func TestProcessHelpAndUnknown(t *testing.T) {
	h, _, _ := newTestHandler()
	assert.Equal(t, helpText, h.Process(context.Background(), "help", testFrom))
	assert.Equal(t, helpText, h.Process(context.Background(), "", testFrom))
	assert.Equal(t, replyUnknown, h.Process(context.Background(), "frobnicate all the things", testFrom))
}

func TestProcessRecoversFromPanic(t *testing.T) {
	h := NewHandler(nil, nil, zap.NewNop()) // nil store panics on use
	assert.Equal(t, replyInternalFail, h.Process(context.Background(), "list", testFrom))
}

func TestTrimReply(t *testing.T) {
	long := "Your tasks:"
	for i := 0; i < 200; i++ {
		long += "\n- [ ] A fairly long task name to overflow the reply budget"
	}
	trimmed := trimReply(long)
	assert.LessOrEqual(t, len([]rune(trimmed)), replyMaxChars)
	assert.True(t, len(trimmed) < len(long))
	assert.Contains(t, trimmed, "(truncated)")
}
