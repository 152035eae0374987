package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Property names in the remote database schema.
const (
	propName       = "Name"
	propDone       = "Done"
	propUser       = "User"
	propReminder   = "Reminder"
	propPriority   = "Priority"
	propRecurrence = "Recurrence"
	propTags       = "Tags"
	propNotes      = "Notes"
)

// PropertyStore talks to a remote property-based document database over its
// HTTP API (Notion-style pages/query endpoints). Records are pages whose
// typed properties carry the task fields.
type PropertyStore struct {
	baseURL    string
	apiKey     string
	databaseID string
	version    string
	client     *http.Client
	log        *zap.Logger
}

// PropertyStoreConfig carries the remote API settings.
type PropertyStoreConfig struct {
	BaseURL    string
	APIKey     string
	DatabaseID string
	Version    string
}

// NewPropertyStore builds a client for the remote task database.
func NewPropertyStore(cfg PropertyStoreConfig, log *zap.Logger) (*PropertyStore, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.DatabaseID) == "" {
		return nil, fmt.Errorf("%w: property store needs an API key and database id", ErrInvalid)
	}
	if log == nil {
		log = zap.NewNop()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.notion.com/v1"
	}
	version := cfg.Version
	if version == "" {
		version = "2022-06-28"
	}
	return &PropertyStore{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		databaseID: cfg.DatabaseID,
		version:    version,
		client:     &http.Client{Timeout: 30 * time.Second},
		log:        log.Named("propstore"),
	}, nil
}

// Wire types for the property API.

type richText struct {
	Text      *textContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

type textContent struct {
	Content string `json:"content"`
}

type selectValue struct {
	Name string `json:"name"`
}

type dateValue struct {
	Start    string `json:"start"`
	TimeZone string `json:"time_zone,omitempty"`
}

type property struct {
	Title       []richText    `json:"title,omitempty"`
	RichText    []richText    `json:"rich_text,omitempty"`
	Checkbox    *bool         `json:"checkbox,omitempty"`
	Date        *dateValue    `json:"date,omitempty"`
	Select      *selectValue  `json:"select,omitempty"`
	MultiSelect []selectValue `json:"multi_select,omitempty"`
}

type page struct {
	ID         string              `json:"id"`
	Properties map[string]property `json:"properties"`
}

type queryResponse struct {
	Results []page `json:"results"`
}

func (s *PropertyStore) Create(ctx context.Context, t Task) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: task name is required", ErrInvalid)
	}
	props := map[string]property{
		propName: {Title: []richText{{Text: &textContent{Content: strings.TrimSpace(t.Name)}}}},
		propDone: {Checkbox: boolPtr(t.Done)},
	}
	if t.Owner != "" {
		props[propUser] = property{RichText: []richText{{Text: &textContent{Content: t.Owner}}}}
	}
	if t.Reminder != "" {
		props[propReminder] = property{Date: &dateValue{Start: t.Reminder}}
	}
	if t.Priority != "" {
		props[propPriority] = property{Select: &selectValue{Name: t.Priority}}
	}
	if t.Recurrence != "" {
		props[propRecurrence] = property{Select: &selectValue{Name: t.Recurrence}}
	}
	if len(t.Tags) > 0 {
		props[propTags] = property{MultiSelect: tagValues(t.Tags)}
	}
	if t.Notes != "" {
		props[propNotes] = property{RichText: []richText{{Text: &textContent{Content: t.Notes}}}}
	}
	body := map[string]any{
		"parent":     map[string]string{"database_id": s.databaseID},
		"properties": props,
	}
	return s.do(ctx, http.MethodPost, "/pages", body, nil)
}

func (s *PropertyStore) Query(ctx context.Context, f Filter) ([]Task, error) {
	var conditions []map[string]any
	if f.Owner != "" {
		conditions = append(conditions, map[string]any{
			"property": propUser, "rich_text": map[string]any{"equals": f.Owner},
		})
	}
	if f.Priority != "" {
		conditions = append(conditions, map[string]any{
			"property": propPriority, "select": map[string]any{"equals": f.Priority},
		})
	}
	if f.Tag != "" {
		// The API only supports containment on one tag per condition.
		conditions = append(conditions, map[string]any{
			"property": propTags, "multi_select": map[string]any{"contains": f.Tag},
		})
	}
	if f.Done != nil {
		conditions = append(conditions, map[string]any{
			"property": propDone, "checkbox": map[string]any{"equals": *f.Done},
		})
	}
	var body map[string]any
	if len(conditions) > 0 {
		body = map[string]any{"filter": map[string]any{"and": conditions}}
	}

	var resp queryResponse
	path := fmt.Sprintf("/databases/%s/query", s.databaseID)
	if err := s.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(resp.Results))
	for _, p := range resp.Results {
		t := taskFromPage(p)
		if t.Name == "" {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (s *PropertyStore) Update(ctx context.Context, name, owner string, fields Fields) error {
	if fields.Empty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalid)
	}
	pageID, err := s.findPageID(ctx, name, owner)
	if err != nil {
		return err
	}
	props := map[string]property{}
	if fields.Name != nil {
		props[propName] = property{Title: []richText{{Text: &textContent{Content: *fields.Name}}}}
	}
	if fields.Done != nil {
		props[propDone] = property{Checkbox: fields.Done}
	}
	if fields.Reminder != nil {
		props[propReminder] = property{Date: &dateValue{Start: *fields.Reminder}}
	}
	if fields.Priority != nil {
		props[propPriority] = property{Select: &selectValue{Name: *fields.Priority}}
	}
	if fields.Recurrence != nil {
		props[propRecurrence] = property{Select: &selectValue{Name: *fields.Recurrence}}
	}
	if fields.Tags != nil {
		props[propTags] = property{MultiSelect: tagValues(*fields.Tags)}
	}
	if fields.Notes != nil {
		props[propNotes] = property{RichText: []richText{{Text: &textContent{Content: *fields.Notes}}}}
	}
	body := map[string]any{"properties": props}
	return s.do(ctx, http.MethodPatch, "/pages/"+pageID, body, nil)
}

func (s *PropertyStore) Archive(ctx context.Context, name, owner string) error {
	pageID, err := s.findPageID(ctx, name, owner)
	if err != nil {
		return err
	}
	return s.do(ctx, http.MethodPatch, "/pages/"+pageID, map[string]any{"archived": true}, nil)
}

// ArchiveAll archives every page matching f. Zero matches is success.
func (s *PropertyStore) ArchiveAll(ctx context.Context, f Filter) error {
	var conditions []map[string]any
	if f.Done != nil {
		conditions = append(conditions, map[string]any{
			"property": propDone, "checkbox": map[string]any{"equals": *f.Done},
		})
	}
	if f.Owner != "" {
		conditions = append(conditions, map[string]any{
			"property": propUser, "rich_text": map[string]any{"equals": f.Owner},
		})
	}
	var body map[string]any
	if len(conditions) > 0 {
		body = map[string]any{"filter": map[string]any{"and": conditions}}
	}
	var resp queryResponse
	path := fmt.Sprintf("/databases/%s/query", s.databaseID)
	if err := s.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return err
	}
	for _, p := range resp.Results {
		if err := s.do(ctx, http.MethodPatch, "/pages/"+p.ID, map[string]any{"archived": true}, nil); err != nil {
			s.log.Warn("failed to archive page", zap.String("page_id", p.ID), zap.Error(err))
			return err
		}
	}
	return nil
}

// findPageID resolves a task name to its page id, scoped to the owner.
// First match wins when duplicate names exist.
func (s *PropertyStore) findPageID(ctx context.Context, name, owner string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: task name is required", ErrInvalid)
	}
	conditions := []map[string]any{
		{"property": propName, "title": map[string]any{"equals": name}},
	}
	if owner != "" {
		conditions = append(conditions, map[string]any{
			"property": propUser, "rich_text": map[string]any{"equals": owner},
		})
	}
	body := map[string]any{"filter": map[string]any{"and": conditions}}
	var resp queryResponse
	path := fmt.Sprintf("/databases/%s/query", s.databaseID)
	if err := s.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", ErrNotFound
	}
	return resp.Results[0].ID, nil
}

func (s *PropertyStore) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", s.version)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		s.log.Warn("property store request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("property store: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("property store: decode response: %w", err)
		}
	}
	return nil
}

func taskFromPage(p page) Task {
	var t Task
	if prop, ok := p.Properties[propName]; ok {
		t.Name = joinRichText(prop.Title)
	}
	if prop, ok := p.Properties[propDone]; ok && prop.Checkbox != nil {
		t.Done = *prop.Checkbox
	}
	if prop, ok := p.Properties[propUser]; ok {
		t.Owner = joinRichText(prop.RichText)
	}
	if prop, ok := p.Properties[propReminder]; ok && prop.Date != nil {
		t.Reminder = prop.Date.Start
	}
	if prop, ok := p.Properties[propPriority]; ok && prop.Select != nil {
		t.Priority = prop.Select.Name
	}
	if prop, ok := p.Properties[propRecurrence]; ok && prop.Select != nil {
		t.Recurrence = prop.Select.Name
	}
	if prop, ok := p.Properties[propTags]; ok {
		for _, v := range prop.MultiSelect {
			t.Tags = append(t.Tags, v.Name)
		}
	}
	if prop, ok := p.Properties[propNotes]; ok {
		t.Notes = joinRichText(prop.RichText)
	}
	return t
}

func joinRichText(parts []richText) string {
	var b strings.Builder
	for _, p := range parts {
		if p.PlainText != "" {
			b.WriteString(p.PlainText)
		} else if p.Text != nil {
			b.WriteString(p.Text.Content)
		}
	}
	return b.String()
}

func tagValues(tags []string) []selectValue {
	out := make([]selectValue, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		out = append(out, selectValue{Name: tag})
	}
	return out
}

func boolPtr(v bool) *bool { return &v }
