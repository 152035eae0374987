// Package phonedir persists the task-name to phone-number association the
// reminder scanner uses to resolve notification targets. The map is keyed by
// task name alone, so two owners sharing a task name collide; the last write
// wins. Known gap, kept for parity with the stored data.
package phonedir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Directory is a small persistent key-value map backed by a JSON file.
type Directory struct {
	path string
	mu   sync.Mutex
}

// Open returns a directory backed by the given file. The file is created on
// the first Set.
func Open(path string) *Directory {
	return &Directory{path: path}
}

// Get returns the phone number recorded for a task name.
func (d *Directory) Get(taskName string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, err := d.load()
	if err != nil {
		return "", false
	}
	phone, ok := data[taskName]
	return phone, ok && phone != ""
}

// Set records the phone number for a task name, overwriting any previous
// association.
func (d *Directory) Set(taskName, phone string) error {
	taskName = strings.TrimSpace(taskName)
	if taskName == "" {
		return errors.New("phonedir: task name is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	data, err := d.load()
	if err != nil {
		return err
	}
	data[taskName] = strings.TrimSpace(phone)
	return d.save(data)
}

func (d *Directory) load() (map[string]string, error) {
	b, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	data := map[string]string{}
	if err := json.Unmarshal(b, &data); err != nil {
		// A corrupt file should not wedge the bot; start over.
		return map[string]string{}, nil
	}
	return data, nil
}

func (d *Directory) save(data map[string]string) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%d", time.Now().UnixNano()))
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, d.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
