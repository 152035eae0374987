package command

import (
	"strings"

	"github.com/amirbrooks/taskping/internal/store"
)

// Carrier text messages cap out around 1600 characters; stay under it.
const replyMaxChars = 1500

func trimReply(s string) string {
	s = strings.TrimRight(s, "\n")
	runes := []rune(s)
	if len(runes) <= replyMaxChars {
		return s
	}
	suffix := "\n… (truncated)"
	suffixRunes := []rune(suffix)
	limit := replyMaxChars - len(suffixRunes)
	if limit < 1 {
		return string(runes[:replyMaxChars])
	}
	return string(runes[:limit]) + suffix
}

// taskLine renders one task for list output, e.g.
// "- [x] Buy milk (reminder: 2025-08-10T15:00:00) [Priority: High] [Repeat: Daily]".
func taskLine(t store.Task, withCheckbox bool) string {
	var b strings.Builder
	b.WriteString("- ")
	if withCheckbox {
		if t.Done {
			b.WriteString("[x] ")
		} else {
			b.WriteString("[ ] ")
		}
	}
	b.WriteString(cleanName(t.Name))
	if t.Reminder != "" {
		b.WriteString(" (reminder: ")
		b.WriteString(t.Reminder)
		b.WriteString(")")
	}
	if t.Priority != "" {
		b.WriteString(" [Priority: ")
		b.WriteString(t.Priority)
		b.WriteString("]")
	}
	if t.Recurrence != "" {
		b.WriteString(" [Repeat: ")
		b.WriteString(t.Recurrence)
		b.WriteString("]")
	}
	return b.String()
}

func cleanName(name string) string {
	name = strings.ReplaceAll(name, "\n", " ")
	name = strings.ReplaceAll(name, "\r", " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return "(untitled)"
	}
	return name
}
