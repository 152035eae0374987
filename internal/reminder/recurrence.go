package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirbrooks/taskping/internal/store"
)

// naiveLayout accepts ISO-8601 timestamps without a zone; they are read as UTC.
const naiveLayout = "2006-01-02T15:04:05"

// reminderLayouts are the accepted ISO-8601 shapes, full-second with or
// without a zone plus the minute-resolution and date-only forms users type.
var reminderLayouts = []string{
	time.RFC3339,
	naiveLayout,
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseReminder parses an ISO-8601 reminder timestamp. Naive inputs are read
// as UTC.
func ParseReminder(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty reminder timestamp")
	}
	for _, layout := range reminderLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse reminder %q: unrecognized timestamp", s)
}

// NextReminder computes the next occurrence timestamp for a recurring task.
// Daily and Weekly advance by 1 and 7 calendar days at the same wall time.
// Monthly keeps the day-of-month and bumps the month, rolling the year over
// past December. There is no end-of-month clamp, so Jan 31 advances to the
// literal "Feb 31". Unrecognized recurrence values return the input
// unchanged.
func NextReminder(ts, recurrence string) (string, error) {
	t, err := ParseReminder(ts)
	if err != nil {
		return "", err
	}
	zone := zoneSuffix(ts)
	switch recurrence {
	case store.RecurrenceDaily:
		return t.AddDate(0, 0, 1).Format(naiveLayout) + zone, nil
	case store.RecurrenceWeekly:
		return t.AddDate(0, 0, 7).Format(naiveLayout) + zone, nil
	case store.RecurrenceMonthly:
		month := int(t.Month()) + 1
		year := t.Year()
		if month > 12 {
			month = 1
			year++
		}
		// Assembled as text: a Go time.Time would normalize "Feb 31" away.
		return fmt.Sprintf("%04d-%02d-%02dT%s%s", year, month, t.Day(), t.Format("15:04:05"), zone), nil
	default:
		return strings.TrimSpace(ts), nil
	}
}

// IsRecurring reports whether the recurrence value schedules another
// occurrence.
func IsRecurring(recurrence string) bool {
	switch recurrence {
	case store.RecurrenceDaily, store.RecurrenceWeekly, store.RecurrenceMonthly:
		return true
	default:
		return false
	}
}

// zoneSuffix returns the literal zone text of an ISO-8601 timestamp ("" for
// naive inputs). The suffix is carried through verbatim so "+00:00" stays
// "+00:00" instead of collapsing to "Z".
func zoneSuffix(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= len(naiveLayout) {
		return ""
	}
	return s[len(naiveLayout):]
}
