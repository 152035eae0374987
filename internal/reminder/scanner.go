package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/amirbrooks/taskping/internal/notify"
	"github.com/amirbrooks/taskping/internal/store"
)

// PhoneDirectory resolves the phone number that owns a task name. Tasks
// without an entry cannot be notified and are skipped.
type PhoneDirectory interface {
	Get(taskName string) (string, bool)
}

// Config tunes the scanner windows. Each notification window is Window wide;
// a tick that lands past a window permanently misses that notification
// (no catch-up).
type Config struct {
	Interval time.Duration // cadence between ticks
	Lead     time.Duration // how far before the due time the early warning fires
	Window   time.Duration // width of each notification window
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.Lead <= 0 {
		c.Lead = 2 * time.Minute
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	return c
}

// Scanner polls the full task store and dispatches reminder notifications.
// Exactly one scanner runs per process; it is the sole writer of the fired
// store.
type Scanner struct {
	store  store.Store
	phones PhoneDirectory
	sender notify.Sender
	fired  FiredStore
	cfg    Config
	now    func() time.Time
	log    *zap.Logger
}

func NewScanner(st store.Store, phones PhoneDirectory, sender notify.Sender, fired FiredStore, cfg Config, log *zap.Logger) *Scanner {
	if fired == nil {
		fired = NewMemoryFired()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{
		store:  st,
		phones: phones,
		sender: sender,
		fired:  fired,
		cfg:    cfg.withDefaults(),
		now:    func() time.Time { return time.Now().UTC() },
		log:    log.Named("scanner"),
	}
}

// Run scans once immediately, then ticks on the configured cadence until ctx
// is cancelled. Cancellation is honored at the top of each tick.
func (s *Scanner) Run(ctx context.Context) error {
	s.log.Info("reminder scanner started", zap.Duration("interval", s.cfg.Interval))
	// Reminders due within the first interval would otherwise be missed.
	s.Tick(ctx)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("reminder scanner stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scan pass. Failures are isolated per task: one malformed
// or failing task never halts the rest of the scan.
func (s *Scanner) Tick(ctx context.Context) {
	now := s.now()
	tasks, err := s.store.Query(ctx, store.Filter{}) // all owners
	if err != nil {
		s.log.Warn("task scan failed", zap.Error(err))
		return
	}
	for _, t := range tasks {
		s.checkTask(ctx, t, now)
	}
}

func (s *Scanner) checkTask(ctx context.Context, t store.Task, now time.Time) {
	if t.Done || t.Reminder == "" {
		return
	}
	due, err := ParseReminder(t.Reminder)
	if err != nil {
		s.log.Warn("skipping task with malformed reminder",
			zap.String("task", t.Name), zap.String("reminder", t.Reminder), zap.Error(err))
		return
	}
	phone, ok := s.phones.Get(t.Name)
	if !ok {
		s.log.Debug("no phone number for task", zap.String("task", t.Name))
		return
	}

	before := due.Add(-s.cfg.Lead)
	if s.inWindow(now, before) {
		s.dispatch(ctx, Key{Name: t.Name, Phase: PhaseBefore}, phone,
			fmt.Sprintf("Reminder: Task '%s' is coming up in 2 minutes!", t.Name))
	}
	if s.inWindow(now, due) {
		if s.dispatch(ctx, Key{Name: t.Name, Phase: PhaseDue}, phone,
			fmt.Sprintf("Reminder: Task '%s' is due now!", t.Name)) {
			s.closeOccurrence(ctx, t)
		}
	}
}

// inWindow reports whether now falls in [start, start+window).
func (s *Scanner) inWindow(now, start time.Time) bool {
	return !now.Before(start) && now.Before(start.Add(s.cfg.Window))
}

// dispatch sends the notification unless its key already fired. The key is
// marked even when the send fails, so a flaky carrier cannot cause a retry
// storm: delivery is at-most-once. Returns true when the key fired during
// this call.
func (s *Scanner) dispatch(ctx context.Context, k Key, phone, text string) bool {
	if s.fired.Fired(k) {
		return false
	}
	if err := s.sender.Send(ctx, phone, text); err != nil {
		s.log.Warn("notification send failed",
			zap.String("task", k.Name), zap.String("phase", string(k.Phase)), zap.Error(err))
	}
	s.fired.Mark(k)
	return true
}

// closeOccurrence finishes a due recurring task: it writes the advanced
// reminder timestamp and marks the task complete in the same pass, closing
// the current occurrence while opening the next.
func (s *Scanner) closeOccurrence(ctx context.Context, t store.Task) {
	if !IsRecurring(t.Recurrence) {
		return
	}
	next, err := NextReminder(t.Reminder, t.Recurrence)
	if err != nil {
		s.log.Warn("failed to advance recurrence",
			zap.String("task", t.Name), zap.String("recurrence", t.Recurrence), zap.Error(err))
		return
	}
	done := true
	fields := store.Fields{Reminder: &next, Done: &done}
	if err := s.store.Update(ctx, t.Name, t.Owner, fields); err != nil {
		s.log.Warn("failed to reschedule recurring task",
			zap.String("task", t.Name), zap.Error(err))
		return
	}
	s.log.Info("rescheduled recurring task",
		zap.String("task", t.Name), zap.String("next", next))
}
