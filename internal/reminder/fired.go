// Package reminder scans the task store on a fixed cadence and sends
// at-most-once notifications for due and near-due reminders, advancing
// recurring tasks as they fire.
package reminder

// Phase identifies one of the two notification moments per reminder.
type Phase string

const (
	PhaseBefore Phase = "2min_before"
	PhaseDue    Phase = "due_now"
)

// Key is the dedup marker for one phase of one task's reminder.
type Key struct {
	Name  string
	Phase Phase
}

// FiredStore tracks which reminder phases already fired. Implementations may
// assume a single writer: the scanner is the sole mutator. State is not
// persisted; a restart loses it and delivery degrades to best effort.
type FiredStore interface {
	Fired(k Key) bool
	Mark(k Key)
}

// MemoryFired is the in-process FiredStore. It grows with the number of
// distinct task names seen; entries are never evicted.
type MemoryFired struct {
	keys map[Key]struct{}
}

func NewMemoryFired() *MemoryFired {
	return &MemoryFired{keys: make(map[Key]struct{})}
}

func (m *MemoryFired) Fired(k Key) bool {
	_, ok := m.keys[k]
	return ok
}

func (m *MemoryFired) Mark(k Key) {
	m.keys[k] = struct{}{}
}
