package overlay

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/heimdex/overlay-editor/internal/db"
)

func setupTestDB(t *testing.T) (*db.DB, *SQLiteRepository) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return database, NewRepository(database.Conn())
}

func TestStore_InitializeSeedsOnce(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	store := NewStore(repo, nil)
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}

	count, err := repo.CountOverlays(ctx)
	if err != nil {
		t.Fatalf("CountOverlays() error = %v", err)
	}
	if count != 2 {
		t.Errorf("overlay count = %d, want 2", count)
	}
}

func TestStore_InitializeSeedsOnceAcrossInstances(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := NewStore(repo, nil).Initialize(ctx); err != nil {
			t.Fatalf("Initialize() #%d error = %v", i, err)
		}
	}

	count, _ := repo.CountOverlays(ctx)
	if count != 2 {
		t.Errorf("overlay count = %d, want 2", count)
	}
}

func TestStore_InitializeConcurrent(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(repo, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Initialize(ctx)
		}()
	}
	wg.Wait()

	count, _ := repo.CountOverlays(ctx)
	if count != 2 {
		t.Errorf("overlay count = %d, want 2", count)
	}
}

func TestStore_NoReseedAfterDeletingEverything(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	store := NewStore(repo, nil)
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := store.ReplaceAll(ctx, nil); err != nil {
		t.Fatalf("ReplaceAll(nil) error = %v", err)
	}

	if err := NewStore(repo, nil).Initialize(ctx); err != nil {
		t.Fatalf("Initialize() on reopened store error = %v", err)
	}
	count, _ := repo.CountOverlays(ctx)
	if count != 0 {
		t.Errorf("overlay count = %d, want 0", count)
	}
}

func TestStore_UnavailableFallsBackToDefaults(t *testing.T) {
	store := NewStore(nil, nil)
	ctx := context.Background()

	err := store.Initialize(ctx)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Initialize() error = %v, want ErrStoreUnavailable", err)
	}
	if store.Available() {
		t.Error("Available() = true, want false")
	}

	items := store.LoadAll(ctx)
	if len(items) != 2 {
		t.Fatalf("LoadAll() returned %d items, want 2", len(items))
	}
	for i, want := range Defaults() {
		if !items[i].SameContent(want) {
			t.Errorf("item %d = %+v, want %+v", i, items[i], want)
		}
	}

	if err := store.Insert(ctx, &Overlay{}); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Insert() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestStore_ClosedDatabaseIsUnavailable(t *testing.T) {
	database, repo := setupTestDB(t)
	database.Close()

	store := NewStore(repo, nil)
	if err := store.Initialize(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Initialize() error = %v, want ErrStoreUnavailable", err)
	}
	if got := store.LoadAll(context.Background()); len(got) != 2 {
		t.Errorf("LoadAll() returned %d items, want defaults", len(got))
	}
}

func TestStore_LoadAllOrderedByStartTime(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(repo, nil)
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	items := []Overlay{
		testOverlay("c.png", 9),
		testOverlay("a.png", 1),
		testOverlay("b.png", 4.5),
	}
	if err := store.ReplaceAll(ctx, items); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}

	got := store.LoadAll(ctx)
	want := []string{"a.png", "b.png", "c.png"}
	if len(got) != len(want) {
		t.Fatalf("LoadAll() returned %d items, want %d", len(got), len(want))
	}
	for i, url := range want {
		if got[i].ImageURL != url {
			t.Errorf("item %d url = %s, want %s", i, got[i].ImageURL, url)
		}
		if got[i].Key == "" {
			t.Errorf("item %d has no key", i)
		}
		if got[i].ID == 0 {
			t.Errorf("item %d has no id", i)
		}
	}
}

func TestStore_UpdateByIDPartial(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(repo, nil)
	store.Initialize(ctx)

	o := testOverlay("a.png", 3)
	if err := store.Insert(ctx, &o); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	width := 640
	slide := TransitionSlide
	if err := store.UpdateByID(ctx, o.ID, Patch{Width: &width, Transition: &slide}); err != nil {
		t.Fatalf("UpdateByID() error = %v", err)
	}

	got, err := repo.GetOverlay(ctx, o.ID)
	if err != nil || got == nil {
		t.Fatalf("GetOverlay() = %v, %v", got, err)
	}
	if got.Width != 640 || got.Transition != TransitionSlide {
		t.Errorf("updated fields = (%d, %s), want (640, lateral)", got.Width, got.Transition)
	}
	if got.ImageURL != "a.png" || got.StartTime != 3 || got.PositionX != o.PositionX {
		t.Errorf("untouched fields changed: %+v", got)
	}
}

func TestStore_UpdateByIDRejectsInvalidEnum(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(repo, nil)
	store.Initialize(ctx)

	o := testOverlay("a.png", 3)
	store.Insert(ctx, &o)

	bad := Background("blur")
	if err := store.UpdateByID(ctx, o.ID, Patch{Background: &bad}); err == nil {
		t.Fatal("UpdateByID() with invalid fondo should fail")
	}
}

func TestStore_DeleteByID(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(repo, nil)
	store.Initialize(ctx)

	o := testOverlay("a.png", 3)
	store.Insert(ctx, &o)

	if err := store.DeleteByID(ctx, o.ID); err != nil {
		t.Fatalf("DeleteByID() error = %v", err)
	}
	if err := store.DeleteByID(ctx, o.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteByID() error = %v, want ErrNotFound", err)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	db1, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	store1 := NewStore(NewRepository(db1.Conn()), nil)
	store1.Initialize(ctx)
	if err := store1.ReplaceAll(ctx, []Overlay{testOverlay("kept.png", 1)}); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}
	db1.Close()

	db2, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db2.Close()
	store2 := NewStore(NewRepository(db2.Conn()), nil)
	store2.Initialize(ctx)

	got := store2.LoadAll(ctx)
	if len(got) != 1 || got[0].ImageURL != "kept.png" {
		t.Errorf("LoadAll() after reopen = %+v, want [kept.png]", got)
	}
}

func TestStore_Video(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	store := NewStore(repo, nil)
	store.Initialize(ctx)

	v, err := store.Video(ctx)
	if err != nil || v != nil {
		t.Fatalf("Video() = %v, %v, want nil, nil", v, err)
	}

	if err := store.SaveVideo(ctx, &Video{Path: "/v/a.mp4", Name: "a.mp4", Width: 1280, Height: 720, Duration: 12.5}); err != nil {
		t.Fatalf("SaveVideo() error = %v", err)
	}
	if err := store.SaveVideo(ctx, &Video{Path: "/v/b.mp4", Name: "b.mp4", Width: 1920, Height: 1080}); err != nil {
		t.Fatalf("second SaveVideo() error = %v", err)
	}

	v, err = store.Video(ctx)
	if err != nil || v == nil {
		t.Fatalf("Video() = %v, %v", v, err)
	}
	if v.Name != "b.mp4" || v.Width != 1920 {
		t.Errorf("Video() = %+v, want b.mp4 1920", v)
	}
}

func testOverlay(url string, start float64) Overlay {
	o := New(url)
	o.StartTime = start
	return o
}
