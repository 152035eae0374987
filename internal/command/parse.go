// Package command interprets free-text chat commands and dispatches them to
// the task store, producing a human-readable reply for every input.
package command

import (
	"regexp"
	"strings"
	"unicode"
)

// flagSplit separates the primary value from /flag segments: a slash with
// optional surrounding whitespace.
var flagSplit = regexp.MustCompile(`\s*/\s*`)

// Parse splits a raw message into a lower-cased verb and the remaining text.
// Empty input yields an empty verb. Parsing never fails; unknown verbs are
// the dispatcher's problem.
func Parse(message string) (verb, args string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ""
	}
	idx := strings.IndexFunc(message, unicode.IsSpace)
	if idx < 0 {
		return strings.ToLower(message), ""
	}
	return strings.ToLower(message[:idx]), strings.TrimLeftFunc(message[idx:], unicode.IsSpace)
}

// Flags holds the optional /key value segments of a command. Nil means the
// flag was absent ("no change"); clearing a field is not supported.
type Flags struct {
	Reminder   *string
	Priority   *string
	Recurrence *string
	Tags       *[]string
	Notes      *string
	NewName    *string
}

// Empty reports whether no recognized flag was present.
func (f Flags) Empty() bool {
	return f.Reminder == nil && f.Priority == nil && f.Recurrence == nil &&
		f.Tags == nil && f.Notes == nil && f.NewName == nil
}

// ExtractFlags splits an argument string into its primary value and the
// recognized /flag segments. Unmatched segments are silently ignored and a
// repeated flag overwrites the previous occurrence (last wins). Extraction
// never fails.
func ExtractFlags(args string) (primary string, flags Flags) {
	parts := flagSplit.Split(strings.TrimSpace(args), -1)
	primary = strings.TrimSpace(parts[0])
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		lowered := strings.ToLower(part)
		switch {
		case strings.HasPrefix(lowered, "reminder "):
			flags.Reminder = trimmed(part, "reminder ")
		case strings.HasPrefix(lowered, "priority "):
			flags.Priority = capitalized(part, "priority ")
		case strings.HasPrefix(lowered, "recurrence "):
			flags.Recurrence = capitalized(part, "recurrence ")
		case strings.HasPrefix(lowered, "repeat "):
			flags.Recurrence = capitalized(part, "repeat ")
		case strings.HasPrefix(lowered, "tags "):
			tags := splitTags(part[len("tags "):])
			flags.Tags = &tags
		case strings.HasPrefix(lowered, "notes "):
			flags.Notes = trimmed(part, "notes ")
		case strings.HasPrefix(lowered, "newname "):
			flags.NewName = trimmed(part, "newname ")
		}
	}
	return primary, flags
}

func trimmed(part, prefix string) *string {
	v := strings.TrimSpace(part[len(prefix):])
	return &v
}

func capitalized(part, prefix string) *string {
	v := capitalize(strings.TrimSpace(part[len(prefix):]))
	return &v
}

// capitalize upper-cases the first rune and lower-cases the rest, so "high",
// "HIGH" and "High" all normalize to "High".
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func splitTags(csv string) []string {
	var out []string
	for _, tag := range strings.Split(csv, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		out = append(out, tag)
	}
	return out
}
