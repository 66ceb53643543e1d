// Package editor holds the working overlay list behind the editing table:
// the single row in edit mode with its pending changes, the row selection
// and the batch resize. Rows are addressed by their stable key, so edit and
// selection state survive re-sorting and deletion of other rows.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/heimdex/overlay-editor/internal/layout"
	"github.com/heimdex/overlay-editor/internal/overlay"
)

var (
	ErrNotFound     = errors.New("overlay not found")
	ErrNotEditing   = errors.New("overlay is not in edit mode")
	ErrEmptyURL     = errors.New("image url is required")
	ErrInvalidPatch = errors.New("invalid overlay change")
	ErrInvalidURL   = errors.New("invalid image url")
)

// Store is the persistence the session writes through to.
type Store interface {
	Insert(ctx context.Context, o *overlay.Overlay) error
	UpdateByID(ctx context.Context, id int64, p overlay.Patch) error
	DeleteByID(ctx context.Context, id int64) error
}

// Row is one entry of the editing table.
type Row struct {
	overlay.Overlay
	Editing  bool `json:"editing"`
	Selected bool `json:"selected"`
}

type Session struct {
	store  Store
	logger *slog.Logger

	mu       sync.Mutex
	items    []overlay.Overlay
	editKey  string
	pending  overlay.Patch
	selected map[string]struct{}
}

// NewSession creates an empty session. A nil store keeps every change in
// memory only.
func NewSession(store Store, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		store:    store,
		logger:   logger,
		selected: make(map[string]struct{}),
	}
}

// Replace swaps the working list. Edit mode and the selection are cleared.
func (s *Session) Replace(items []overlay.Overlay) {
	list := make([]overlay.Overlay, len(items))
	copy(list, items)
	overlay.EnsureKeys(list)
	sortByStart(list)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = list
	s.editKey = ""
	s.pending = overlay.Patch{}
	s.selected = make(map[string]struct{})
}

// Items returns a copy of the list sorted by start time.
func (s *Session) Items() []overlay.Overlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]overlay.Overlay, len(s.items))
	copy(out, s.items)
	return out
}

// Rows returns the list together with the edit and selection flags.
func (s *Session) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]Row, len(s.items))
	for i, o := range s.items {
		_, sel := s.selected[o.Key]
		rows[i] = Row{Overlay: o, Editing: o.Key == s.editKey, Selected: sel}
	}
	return rows
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Session) Get(key string) (overlay.Overlay, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(key)
	if i < 0 {
		return overlay.Overlay{}, false
	}
	return s.items[i], true
}

// StartTimeOf returns the start time of a row, for jumping playback to it.
func (s *Session) StartTimeOf(key string) (float64, bool) {
	o, ok := s.Get(key)
	return o.StartTime, ok
}

// EditTarget returns the key of the row in edit mode, or "".
func (s *Session) EditTarget() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editKey
}

// Pending returns the staged changes of the row in edit mode.
func (s *Session) Pending() overlay.Patch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// BeginEdit puts a row in edit mode with an empty change buffer. A row that
// was already being edited loses its staged changes.
func (s *Session) BeginEdit(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(key) < 0 {
		return ErrNotFound
	}
	if s.editKey != "" && s.editKey != key && !s.pending.Empty() {
		s.logger.Debug("abandoning staged changes", "key", s.editKey)
	}
	s.editKey = key
	s.pending = overlay.Patch{}
	return nil
}

// Stage merges field changes into the buffer of the row in edit mode.
func (s *Session) Stage(key string, p overlay.Patch) error {
	if p.ImageURL != nil {
		url := strings.TrimSpace(*p.ImageURL)
		p.ImageURL = &url
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "" || key != s.editKey {
		return ErrNotEditing
	}
	s.pending = s.pending.Merge(p)
	return nil
}

// Save applies the staged changes, leaves edit mode and re-sorts the list.
// Persisted rows are updated in the store; a store failure is logged and the
// in-memory change is kept.
func (s *Session) Save(ctx context.Context, key string) (overlay.Overlay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "" || key != s.editKey {
		return overlay.Overlay{}, ErrNotEditing
	}
	i := s.indexOf(key)
	if i < 0 {
		s.editKey = ""
		s.pending = overlay.Patch{}
		return overlay.Overlay{}, ErrNotFound
	}

	p := s.pending
	o := p.Apply(s.items[i])
	s.items[i] = o
	sortByStart(s.items)
	s.editKey = ""
	s.pending = overlay.Patch{}

	if !p.Empty() {
		s.persistUpdate(ctx, o, p)
	}
	return o, nil
}

// Cancel leaves edit mode without changing the row.
func (s *Session) Cancel(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "" || key != s.editKey {
		return ErrNotEditing
	}
	s.editKey = ""
	s.pending = overlay.Patch{}
	return nil
}

// ToggleSelect flips the selection of a row and reports whether it is now
// selected.
func (s *Session) ToggleSelect(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(key) < 0 {
		return false, ErrNotFound
	}
	if _, ok := s.selected[key]; ok {
		delete(s.selected, key)
		return false, nil
	}
	s.selected[key] = struct{}{}
	return true, nil
}

// Selection returns the selected keys in list order.
func (s *Session) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.selected))
	for _, o := range s.items {
		if _, ok := s.selected[o.Key]; ok {
			keys = append(keys, o.Key)
		}
	}
	return keys
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	s.selected = make(map[string]struct{})
	s.mu.Unlock()
}

// ApplyTargetHeight resizes every selected row whose image size is known so
// it renders targetHeight pixels tall, then clears the selection. It returns
// the number of rows resized. Nothing happens for a non-positive height or
// an empty selection.
func (s *Session) ApplyTargetHeight(ctx context.Context, targetHeight int, dims layout.DimensionLookup) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if targetHeight <= 0 || len(s.selected) == 0 {
		return 0
	}

	resized := 0
	for i, o := range s.items {
		if _, ok := s.selected[o.Key]; !ok {
			continue
		}
		d, ok := dims(o.ImageURL)
		if !ok || !d.Known() {
			continue
		}
		w := layout.FitWidth(targetHeight, d)
		s.items[i].Width = w
		resized++
		s.persistUpdate(ctx, s.items[i], overlay.Patch{Width: &w})
	}
	s.selected = make(map[string]struct{})
	return resized
}

// Add appends a row with the add-new defaults and opens it in edit mode.
func (s *Session) Add(ctx context.Context, url string) (overlay.Overlay, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return overlay.Overlay{}, ErrEmptyURL
	}
	if err := overlay.ValidateImageURL(url); err != nil {
		return overlay.Overlay{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	o := overlay.New(url)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		if err := s.store.Insert(ctx, &o); err != nil {
			s.logger.Warn("overlay kept in memory only", "key", o.Key, "error", err)
		}
	}
	s.items = append(s.items, o)
	sortByStart(s.items)
	s.editKey = o.Key
	s.pending = overlay.Patch{}
	return o, nil
}

// Delete removes a row. Edit mode ends if the row was being edited.
func (s *Session) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(key)
	if i < 0 {
		return ErrNotFound
	}
	o := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.selected, key)
	if s.editKey == key {
		s.editKey = ""
		s.pending = overlay.Patch{}
	}

	if s.store != nil && o.ID != 0 {
		if err := s.store.DeleteByID(ctx, o.ID); err != nil {
			s.logger.Warn("failed to delete persisted overlay", "key", key, "id", o.ID, "error", err)
		}
	}
	return nil
}

func (s *Session) persistUpdate(ctx context.Context, o overlay.Overlay, p overlay.Patch) {
	if s.store == nil || o.ID == 0 {
		return
	}
	if err := s.store.UpdateByID(ctx, o.ID, p); err != nil {
		s.logger.Warn("failed to persist overlay change", "key", o.Key, "id", o.ID, "error", err)
	}
}

func (s *Session) indexOf(key string) int {
	for i := range s.items {
		if s.items[i].Key == key {
			return i
		}
	}
	return -1
}

func sortByStart(items []overlay.Overlay) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].StartTime < items[j].StartTime
	})
}
