package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirbrooks/taskping/internal/store"
)

func TestParseReminder(t *testing.T) {
	t.Run("with zone", func(t *testing.T) {
		got, err := ParseReminder("2025-08-10T15:00:00+02:00")
		require.NoError(t, err)
		assert.Equal(t, 13, got.UTC().Hour())
	})

	t.Run("naive read as UTC", func(t *testing.T) {
		got, err := ParseReminder("2025-08-10T15:00:00")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 8, 10, 15, 0, 0, 0, time.UTC), got)
	})

	t.Run("minute resolution", func(t *testing.T) {
		got, err := ParseReminder("2025-08-10T15:00")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 8, 10, 15, 0, 0, 0, time.UTC), got)
	})

	t.Run("date only", func(t *testing.T) {
		got, err := ParseReminder("2025-08-10")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseReminder("tomorrow at noon")
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseReminder("")
		assert.Error(t, err)
	})
}

func TestNextReminderDaily(t *testing.T) {
	got, err := NextReminder("2025-08-10T15:00:00", store.RecurrenceDaily)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-11T15:00:00", got)

	// Minute-resolution inputs advance to the full-second form.
	got, err = NextReminder("2025-08-10T15:00", store.RecurrenceDaily)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-11T15:00:00", got)
}

func TestNextReminderWeekly(t *testing.T) {
	got, err := NextReminder("2025-08-10T15:00:00+00:00", store.RecurrenceWeekly)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-17T15:00:00+00:00", got)
}

func TestNextReminderMonthly(t *testing.T) {
	t.Run("keeps day without clamping", func(t *testing.T) {
		got, err := NextReminder("2025-01-31T10:00:00+00:00", store.RecurrenceMonthly)
		require.NoError(t, err)
		assert.Equal(t, "2025-02-31T10:00:00+00:00", got)
	})

	t.Run("year rollover", func(t *testing.T) {
		got, err := NextReminder("2025-12-15T08:30:00", store.RecurrenceMonthly)
		require.NoError(t, err)
		assert.Equal(t, "2026-01-15T08:30:00", got)
	})

	t.Run("naive stays naive", func(t *testing.T) {
		got, err := NextReminder("2025-03-05T12:00:00", store.RecurrenceMonthly)
		require.NoError(t, err)
		assert.Equal(t, "2025-04-05T12:00:00", got)
	})

	t.Run("non-UTC offset preserved", func(t *testing.T) {
		got, err := NextReminder("2025-05-10T09:00:00+05:30", store.RecurrenceMonthly)
		require.NoError(t, err)
		assert.Equal(t, "2025-06-10T09:00:00+05:30", got)
	})
}

func TestNextReminderUnrecognized(t *testing.T) {
	got, err := NextReminder("2025-08-10T15:00:00", "Yearly")
	require.NoError(t, err)
	assert.Equal(t, "2025-08-10T15:00:00", got)

	got, err = NextReminder("2025-08-10T15:00:00", store.RecurrenceNone)
	require.NoError(t, err)
	assert.Equal(t, "2025-08-10T15:00:00", got)
}

func TestNextReminderBadTimestamp(t *testing.T) {
	_, err := NextReminder("not a date", store.RecurrenceDaily)
	assert.Error(t, err)
}

func TestIsRecurring(t *testing.T) {
	assert.True(t, IsRecurring(store.RecurrenceDaily))
	assert.True(t, IsRecurring(store.RecurrenceWeekly))
	assert.True(t, IsRecurring(store.RecurrenceMonthly))
	assert.False(t, IsRecurring(store.RecurrenceNone))
	assert.False(t, IsRecurring(""))
	assert.False(t, IsRecurring("daily")) // values are normalized upstream
}
