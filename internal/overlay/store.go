package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

var ErrStoreUnavailable = errors.New("overlay store unavailable")

const seededConfigKey = "overlays_seeded"

// Store is the authoritative persisted overlay list. A Store whose
// initialization failed keeps answering LoadAll with the default set.
type Store struct {
	repo   Repository
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
	initErr     error
}

// NewStore wraps repo. A nil repo yields a store that is permanently
// unavailable, which is how callers represent a database that failed to open.
func NewStore(repo Repository, logger *slog.Logger) *Store {
	return &Store{repo: repo, logger: logger}
}

// Initialize is idempotent. The default set is written only the first time the
// store is ever initialized, tracked by a config flag rather than by row count.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return s.initErr
	}

	s.initErr = s.seed(ctx)
	if s.initErr != nil {
		s.initErr = fmt.Errorf("%w: %v", ErrStoreUnavailable, s.initErr)
		if s.logger != nil {
			s.logger.Warn("overlay store unavailable, falling back to defaults", "error", s.initErr)
		}
	}
	s.initialized = true
	return s.initErr
}

func (s *Store) seed(ctx context.Context) error {
	if s.repo == nil {
		return errors.New("no repository")
	}

	seeded, err := s.repo.GetConfig(ctx, seededConfigKey)
	if err != nil {
		return fmt.Errorf("read seed flag: %w", err)
	}
	if seeded != "" {
		return nil
	}

	count, err := s.repo.CountOverlays(ctx)
	if err != nil {
		return fmt.Errorf("count overlays: %w", err)
	}
	if count == 0 {
		for _, o := range Defaults() {
			if err := s.repo.CreateOverlay(ctx, &o); err != nil {
				return fmt.Errorf("seed overlay: %w", err)
			}
		}
		if s.logger != nil {
			s.logger.Info("seeded default overlays", "count", len(Defaults()))
		}
	}

	return s.repo.SetConfig(ctx, seededConfigKey, "1")
}

// Available reports whether the store initialized successfully.
func (s *Store) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized && s.initErr == nil
}

func (s *Store) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return fmt.Errorf("%w: not initialized", ErrStoreUnavailable)
	}
	return s.initErr
}

// LoadAll returns every overlay ordered by start time, each with a fresh key.
// It never fails: an unusable store or a failed read yields the default set.
func (s *Store) LoadAll(ctx context.Context) []Overlay {
	if err := s.ready(); err != nil {
		return Defaults()
	}

	items, err := s.repo.ListOverlays(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to load overlays, using defaults", "error", err)
		}
		return Defaults()
	}

	EnsureKeys(items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].StartTime < items[j].StartTime
	})
	return items
}

// ReplaceAll swaps the persisted list for items, writing the new IDs back.
func (s *Store) ReplaceAll(ctx context.Context, items []Overlay) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.repo.ReplaceOverlays(ctx, items); err != nil {
		return fmt.Errorf("replace overlays: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("overlays replaced", "count", len(items))
	}
	return nil
}

// Insert persists o and sets its ID.
func (s *Store) Insert(ctx context.Context, o *Overlay) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.repo.CreateOverlay(ctx, o)
}

func (s *Store) UpdateByID(ctx context.Context, id int64, p Patch) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return s.repo.UpdateOverlay(ctx, id, p)
}

func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.repo.DeleteOverlay(ctx, id)
}

// Video returns the last registered video, or nil.
func (s *Store) Video(ctx context.Context) (*Video, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.repo.GetVideo(ctx)
}

func (s *Store) SaveVideo(ctx context.Context, v *Video) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.repo.SetVideo(ctx, v)
}
