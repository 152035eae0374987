package store

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

// DocStore keeps each task as a markdown file with YAML frontmatter under
// <root>/owners/<owner-slug>/. Notes live in the file body. Useful for local
// development and as the test double for the remote property store.
type DocStore struct {
	Root string
	log  *zap.Logger
}

type taskMeta struct {
	Schema     int        `yaml:"schema"`
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	Done       bool       `yaml:"done"`
	Reminder   string     `yaml:"reminder"`
	Priority   string     `yaml:"priority"`
	Recurrence string     `yaml:"recurrence"`
	Tags       []string   `yaml:"tags"`
	Owner      string     `yaml:"owner"`
	CreatedAt  *time.Time `yaml:"created_at"`
	UpdatedAt  *time.Time `yaml:"updated_at"`
	ArchivedAt *time.Time `yaml:"archived_at"`
}

// OpenDocStore opens a docstore rooted at root, creating the directory tree
// on first use.
func OpenDocStore(root string, log *zap.Logger) (*DocStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	root = expandHome(root)
	if err := os.MkdirAll(filepath.Join(root, "owners"), 0o755); err != nil {
		return nil, err
	}
	return &DocStore{Root: root, log: log.Named("docstore")}, nil
}

func (d *DocStore) Create(ctx context.Context, t Task) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: task name is required", ErrInvalid)
	}
	now := timeNow()
	meta := taskMeta{
		Schema:     1,
		ID:         "tsk_" + newULID(),
		Name:       strings.TrimSpace(t.Name),
		Done:       t.Done,
		Reminder:   strings.TrimSpace(t.Reminder),
		Priority:   t.Priority,
		Recurrence: t.Recurrence,
		Tags:       dedupeStrings(t.Tags),
		Owner:      strings.TrimSpace(t.Owner),
		CreatedAt:  &now,
		UpdatedAt:  &now,
	}
	filename := fmt.Sprintf("%s__%s.md", meta.ID, slugify(meta.Name))
	path := filepath.Join(d.ownerDir(meta.Owner), filename)
	return writeTaskFile(path, meta, t.Notes)
}

func (d *DocStore) Query(ctx context.Context, f Filter) ([]Task, error) {
	var out []Task
	root := filepath.Join(d.Root, "owners")
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry == nil || entry.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(entry.Name()), ".md") {
			return nil
		}
		meta, body, err := readTaskFile(path)
		if err != nil {
			d.log.Warn("skipping unreadable task file", zap.String("path", path), zap.Error(err))
			return nil
		}
		if meta.ArchivedAt != nil {
			return nil
		}
		t := taskFromMeta(meta, body)
		if !f.Matches(t) {
			return nil
		}
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DocStore) Update(ctx context.Context, name, owner string, fields Fields) error {
	if fields.Empty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalid)
	}
	path, meta, body, err := d.findByName(name, owner)
	if err != nil {
		return err
	}
	t := taskFromMeta(meta, body)
	fields.apply(&t)
	now := timeNow()
	meta.Name = t.Name
	meta.Done = t.Done
	meta.Reminder = t.Reminder
	meta.Priority = t.Priority
	meta.Recurrence = t.Recurrence
	meta.Tags = dedupeStrings(t.Tags)
	meta.UpdatedAt = &now
	return writeTaskFile(path, meta, t.Notes)
}

func (d *DocStore) Archive(ctx context.Context, name, owner string) error {
	path, meta, body, err := d.findByName(name, owner)
	if err != nil {
		return err
	}
	now := timeNow()
	meta.ArchivedAt = &now
	meta.UpdatedAt = &now
	return writeTaskFile(path, meta, body)
}

// ArchiveAll archives every live task matching f. Zero matches is success.
func (d *DocStore) ArchiveAll(ctx context.Context, f Filter) error {
	paths, err := d.matchingPaths(f)
	if err != nil {
		return err
	}
	now := timeNow()
	for _, path := range paths {
		meta, body, err := readTaskFile(path)
		if err != nil {
			d.log.Warn("skipping unreadable task file", zap.String("path", path), zap.Error(err))
			continue
		}
		meta.ArchivedAt = &now
		meta.UpdatedAt = &now
		if err := writeTaskFile(path, meta, body); err != nil {
			return err
		}
	}
	return nil
}

// findByName returns the first live task with an exact name match for owner.
// Paths are walked in sorted order so "first match wins" is deterministic.
func (d *DocStore) findByName(name, owner string) (string, taskMeta, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", taskMeta{}, "", fmt.Errorf("%w: task name is required", ErrInvalid)
	}
	paths, err := d.matchingPaths(Filter{Owner: owner})
	if err != nil {
		return "", taskMeta{}, "", err
	}
	for _, path := range paths {
		meta, body, err := readTaskFile(path)
		if err != nil {
			continue
		}
		if meta.Name == name {
			return path, meta, body, nil
		}
	}
	return "", taskMeta{}, "", ErrNotFound
}

func (d *DocStore) matchingPaths(f Filter) ([]string, error) {
	var hits []string
	root := filepath.Join(d.Root, "owners")
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry == nil || entry.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(entry.Name()), ".md") {
			return nil
		}
		meta, body, err := readTaskFile(path)
		if err != nil {
			return nil
		}
		if meta.ArchivedAt != nil {
			return nil
		}
		if !f.Matches(taskFromMeta(meta, body)) {
			return nil
		}
		hits = append(hits, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(hits)
	return hits, nil
}

func (d *DocStore) ownerDir(owner string) string {
	return filepath.Join(d.Root, "owners", slugifyOrDefault(owner, "unowned"))
}

func taskFromMeta(meta taskMeta, body string) Task {
	return Task{
		Name:       meta.Name,
		Done:       meta.Done,
		Reminder:   meta.Reminder,
		Priority:   meta.Priority,
		Recurrence: meta.Recurrence,
		Tags:       meta.Tags,
		Notes:      strings.TrimSpace(body),
		Owner:      meta.Owner,
	}
}

func writeTaskFile(path string, meta taskMeta, notes string) error {
	yamlBytes, err := yaml.Marshal(&meta)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(yamlBytes)
	buf.WriteString("---\n\n")
	if strings.TrimSpace(notes) != "" {
		buf.WriteString(strings.TrimSpace(notes))
		buf.WriteString("\n")
	}
	return atomicWriteFile(path, buf.Bytes(), 0o644)
}

func readTaskFile(path string) (taskMeta, string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return taskMeta{}, "", err
	}
	return parseFrontmatter(b)
}

func parseFrontmatter(b []byte) (taskMeta, string, error) {
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if !strings.HasPrefix(s, "---\n") {
		return taskMeta{}, "", fmt.Errorf("%w: missing frontmatter", ErrInvalid)
	}
	parts := strings.SplitN(s, "\n---\n", 2)
	if len(parts) != 2 {
		return taskMeta{}, "", fmt.Errorf("%w: invalid frontmatter delimiters", ErrInvalid)
	}
	yamlPart := strings.TrimPrefix(parts[0], "---\n")
	var meta taskMeta
	if err := yaml.Unmarshal([]byte(yamlPart), &meta); err != nil {
		return taskMeta{}, "", err
	}
	if meta.Schema == 0 {
		meta.Schema = 1
	}
	return meta, parts[1], nil
}

func newULID() string {
	t := ulid.Timestamp(timeNow())
	entropy := ulid.Monotonic(randReader{}, 0)
	id, err := ulid.New(t, entropy)
	if err != nil {
		// fallback
		return fmt.Sprintf("%d", timeNow().UnixNano())
	}
	return strings.ToUpper(id.String())
}

func slugifyOrDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		s = def
	}
	return slugify(s)
}

func slugify(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "x"
	}
	var b strings.Builder
	lastHyphen := false
	for _, r := range s {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			lastHyphen = false
		} else {
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "x"
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || path == "~" {
		home, _ := os.UserHomeDir()
		if home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%d", timeNow().UnixNano()))
	if err := os.WriteFile(tmp, data, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// Rename is atomic on same filesystem.
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
