package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/heimdex/overlay-editor/internal/csvcodec"
	"github.com/heimdex/overlay-editor/internal/db"
	"github.com/heimdex/overlay-editor/internal/imagemeta"
	"github.com/heimdex/overlay-editor/internal/media"
	"github.com/heimdex/overlay-editor/internal/overlay"
)

type fakeFetcher struct {
	images map[string]imagemeta.Dimensions
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	d, ok := f.images[url]
	if !ok {
		return nil, errors.New("not found")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, d.Width, d.Height))); err != nil {
		return nil, err
	}
	return io.NopCloser(&buf), nil
}

type fakeProber struct {
	info media.Info
	err  error
}

func (p *fakeProber) Probe(ctx context.Context, path string) (media.Info, error) {
	return p.info, p.err
}

type testEnv struct {
	dbPath  string
	fetcher *fakeFetcher
	prober  *fakeProber
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		dbPath:  filepath.Join(t.TempDir(), "overlays.db"),
		fetcher: &fakeFetcher{images: map[string]imagemeta.Dimensions{}},
		prober:  &fakeProber{},
	}
}

// open starts a shell on the environment's database.
func (e *testEnv) open(t *testing.T) *Shell {
	t.Helper()
	database, err := db.New(e.dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := overlay.NewStore(overlay.NewRepository(database.Conn()), nil)
	return e.openWith(t, store)
}

func (e *testEnv) openWith(t *testing.T, store *overlay.Store) *Shell {
	t.Helper()
	resolver := imagemeta.NewResolver(e.fetcher, time.Second, nil)
	s := New(store, resolver, e.prober, nil)
	s.Start(context.Background())
	resolver.Wait()
	return s
}

const sampleCSV = csvcodec.Header + `
b.png,100,200,400,5,3,transparente,lateral
a.png,50,10,300,2,8,opacidad,difuminado
`

func TestShell_StartSeedsDefaults(t *testing.T) {
	env := newTestEnv(t)
	s := env.open(t)

	items := s.Session().Items()
	if len(items) != 2 {
		t.Fatalf("got %d overlays, want the 2 defaults", len(items))
	}
	for _, o := range items {
		if o.ID == 0 {
			t.Error("seeded overlay should be persisted")
		}
	}
}

func TestShell_StartWithoutStore(t *testing.T) {
	env := newTestEnv(t)
	s := env.openWith(t, overlay.NewStore(nil, nil))

	items := s.Session().Items()
	if len(items) != 2 || items[0].ID != 0 {
		t.Errorf("items = %+v, want in-memory defaults", items)
	}
}

func TestShell_ImportPersists(t *testing.T) {
	env := newTestEnv(t)
	s := env.open(t)

	items, err := s.Import(context.Background(), strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(items) != 2 || items[0].ImageURL != "a.png" {
		t.Fatalf("items = %+v, want a.png first", items)
	}

	reopened := env.open(t)
	got := reopened.Session().Items()
	if len(got) != 2 || got[0].ImageURL != "a.png" || got[1].ImageURL != "b.png" {
		t.Errorf("reloaded = %+v", got)
	}
}

func TestShell_ImportMalformedKeepsState(t *testing.T) {
	env := newTestEnv(t)
	s := env.open(t)
	before := s.Session().Items()

	_, err := s.Import(context.Background(), strings.NewReader(csvcodec.Header+"\nonly,three,fields"))
	if !errors.Is(err, csvcodec.ErrFormat) {
		t.Fatalf("Import() error = %v, want ErrFormat", err)
	}

	after := s.Session().Items()
	if len(after) != len(before) || after[0].Key != before[0].Key {
		t.Error("malformed import should leave the list untouched")
	}
}

func TestShell_ImportWithoutStore(t *testing.T) {
	env := newTestEnv(t)
	s := env.openWith(t, overlay.NewStore(nil, nil))

	items, err := s.Import(context.Background(), strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(items) != 2 || items[0].ID != 0 {
		t.Errorf("items = %+v, want in-memory only", items)
	}
}

func TestShell_ExportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	s := env.open(t)
	if _, err := s.Import(context.Background(), strings.NewReader(sampleCSV)); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	var buf bytes.Buffer
	if err := s.Export(&buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	want := csvcodec.Header + "\n" +
		"a.png,50,10,300,2,8,opacidad,difuminado\n" +
		"b.png,100,200,400,5,3,transparente,lateral"
	if buf.String() != want {
		t.Errorf("Export() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestShell_ExportEDL(t *testing.T) {
	env := newTestEnv(t)
	s := env.open(t)
	if _, err := s.Import(context.Background(), strings.NewReader(sampleCSV)); err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	var buf bytes.Buffer
	n, err := s.ExportEDL(&buf, "show", 30)
	if err != nil {
		t.Fatalf("ExportEDL() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("ExportEDL() events = %d, want 2", n)
	}

	out := buf.String()
	for _, want := range []string{
		"TITLE: show",
		"001  GFX      V2    C        00:00:00:00 00:00:08:00 00:00:02:00 00:00:10:00",
		"* FROM CLIP NAME:  a.png",
		"002  GFX      V2    C        00:00:00:00 00:00:03:00 00:00:05:00 00:00:08:00",
		"* POSITION:  X 100 Y 200 WIDTH 400",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("EDL missing %q:\n%s", want, out)
		}
	}
}

func TestShell_Summary(t *testing.T) {
	env := newTestEnv(t)
	s := env.open(t)
	s.Import(context.Background(), strings.NewReader(csvcodec.Header+"\na.png,50,10,300,2.5,8,opacidad,lateral"))

	rows := s.Summary()
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	r := rows[0]
	if r.Position != "X: 50, Y: 10" || r.Width != "300px" || r.Time != "2.5s - 10.5s" || r.Settings != "opacidad, lateral" {
		t.Errorf("summary = %+v", r)
	}
}

func TestShell_LoadVideo(t *testing.T) {
	env := newTestEnv(t)
	env.prober.info = media.Info{Path: "/v/clip.mp4", Name: "clip.mp4", Size: 1 << 20, Width: 1280, Height: 720, Duration: 42}
	s := env.open(t)

	info, err := s.LoadVideo(context.Background(), "/v/clip.mp4")
	if err != nil {
		t.Fatalf("LoadVideo() error = %v", err)
	}
	if info.Width != 1280 {
		t.Errorf("info = %+v", info)
	}
	vp := s.Engine().Viewport()
	if vp.NativeWidth != 1280 || vp.NativeHeight != 720 || s.Engine().Duration() != 42 {
		t.Errorf("engine frame = %+v duration %v", vp, s.Engine().Duration())
	}

	reopened := env.open(t)
	v, ok := reopened.Video()
	if !ok || v.Name != "clip.mp4" || reopened.Engine().Viewport().NativeWidth != 1280 {
		t.Errorf("restored video = %+v, %v", v, ok)
	}
}

func TestShell_LoadVideoProbeFailure(t *testing.T) {
	env := newTestEnv(t)
	env.prober.info = media.Info{Path: "/v/odd.bin", Name: "odd.bin"}
	env.prober.err = errors.New("ffprobe: invalid data")
	s := env.open(t)

	info, err := s.LoadVideo(context.Background(), "/v/odd.bin")
	if err != nil {
		t.Fatalf("LoadVideo() error = %v", err)
	}
	if info.Width != 1920 || info.Height != 1080 || info.DurationKnown() {
		t.Errorf("info = %+v, want default frame", info)
	}
}

func TestShell_LoadVideoMissingFile(t *testing.T) {
	env := newTestEnv(t)
	env.prober.err = errors.New("no such file")
	s := env.open(t)

	if _, err := s.LoadVideo(context.Background(), "/nope.mp4"); err == nil {
		t.Fatal("LoadVideo() should fail for a missing file")
	}
	if _, ok := s.Video(); ok {
		t.Error("no video should be registered")
	}
}

func TestShell_PreviewAndRows(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.images["a.png"] = imagemeta.Dimensions{Width: 600, Height: 300}
	s := env.open(t)
	s.Import(context.Background(), strings.NewReader(sampleCSV))
	s.Images().Wait()

	f := s.Preview(2.5, 960)
	if f.Scale != 0.5 || len(f.Placements) != 1 {
		t.Fatalf("frame = %+v", f)
	}
	p := f.Placements[0]
	if p.ImageURL != "a.png" || p.Left != 25 || p.Width != 150 || p.Height == nil || *p.Height != 75 {
		t.Errorf("placement = %+v", p)
	}

	rows := s.Rows()
	if !rows[0].Active || rows[1].Active {
		t.Errorf("active flags = %v, %v", rows[0].Active, rows[1].Active)
	}
	if rows[0].DerivedHeight == nil || *rows[0].DerivedHeight != 150 {
		t.Errorf("derived height = %v, want 150", rows[0].DerivedHeight)
	}
	if rows[1].DerivedHeight != nil {
		t.Error("unknown image should have no derived height")
	}
}

func TestShell_ApplyTargetHeight(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.images["a.png"] = imagemeta.Dimensions{Width: 4, Height: 3}
	s := env.open(t)
	items, _ := s.Import(context.Background(), strings.NewReader(sampleCSV))
	s.Images().Wait()

	for _, o := range items {
		s.Session().ToggleSelect(o.Key)
	}
	if n := s.ApplyTargetHeight(context.Background(), 100); n != 1 {
		t.Errorf("ApplyTargetHeight() = %d, want 1", n)
	}

	reopened := env.open(t)
	got := reopened.Session().Items()
	if got[0].Width != 133 || got[1].Width != 400 {
		t.Errorf("persisted widths = %d, %d, want 133, 400", got[0].Width, got[1].Width)
	}
}

func TestShell_AddAndJump(t *testing.T) {
	env := newTestEnv(t)
	s := env.open(t)

	o, err := s.Add(context.Background(), "https://example/new.png")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if s.Session().EditTarget() != o.Key {
		t.Error("new overlay should be in edit mode")
	}

	got, err := s.Jump(o.Key)
	if err != nil || got != overlay.DefaultStartTime {
		t.Errorf("Jump() = %v, %v, want %v", got, err, overlay.DefaultStartTime)
	}
	if _, err := s.Jump("missing"); err == nil {
		t.Error("Jump(missing) should fail")
	}
}

func TestShell_ReloadVideo(t *testing.T) {
	env := newTestEnv(t)
	s := env.open(t)
	ctx := context.Background()

	if _, ok, err := s.ReloadVideo(ctx); ok || err != nil {
		t.Fatalf("ReloadVideo() without video = %v, %v", ok, err)
	}

	var loaded []media.Info
	s.OnVideoLoaded(func(info media.Info) { loaded = append(loaded, info) })

	env.prober.info = media.Info{Path: "/v/clip.mp4", Name: "clip.mp4", Width: 1280, Height: 720, Duration: 10}
	if _, err := s.LoadVideo(ctx, "/v/clip.mp4"); err != nil {
		t.Fatalf("LoadVideo() error = %v", err)
	}

	env.prober.info.Width, env.prober.info.Height, env.prober.info.Duration = 3840, 2160, 12
	info, ok, err := s.ReloadVideo(ctx)
	if !ok || err != nil {
		t.Fatalf("ReloadVideo() = %v, %v", ok, err)
	}
	if info.Width != 3840 || info.Duration != 12 {
		t.Errorf("reloaded info = %+v", info)
	}
	if got, _ := s.Video(); got.Height != 2160 {
		t.Errorf("Video() = %+v", got)
	}
	if len(loaded) != 2 || loaded[1].Width != 3840 {
		t.Errorf("listener saw %+v", loaded)
	}
}

func TestShell_OnVideoLoadedSeesRestoredVideo(t *testing.T) {
	env := newTestEnv(t)
	env.prober.info = media.Info{Path: "/v/clip.mp4", Name: "clip.mp4", Width: 1280, Height: 720, Duration: 42}
	first := env.open(t)
	if _, err := first.LoadVideo(context.Background(), "/v/clip.mp4"); err != nil {
		t.Fatalf("LoadVideo() error = %v", err)
	}

	reopened := env.open(t)
	var seen []string
	reopened.OnVideoLoaded(func(info media.Info) { seen = append(seen, info.Path) })

	if len(seen) != 1 || seen[0] != "/v/clip.mp4" {
		t.Errorf("listener saw %v, want the restored video", seen)
	}
}
