// Package app wires the overlay store, the editing session, the layout engine
// and the image and media lookups into the operations the API and the CLI
// expose.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/heimdex/overlay-editor/internal/csvcodec"
	"github.com/heimdex/overlay-editor/internal/editor"
	"github.com/heimdex/overlay-editor/internal/export"
	"github.com/heimdex/overlay-editor/internal/imagemeta"
	"github.com/heimdex/overlay-editor/internal/layout"
	"github.com/heimdex/overlay-editor/internal/logging"
	"github.com/heimdex/overlay-editor/internal/media"
	"github.com/heimdex/overlay-editor/internal/overlay"
)

// Shell owns the application state for one data directory.
type Shell struct {
	store   *overlay.Store
	session *editor.Session
	engine  *layout.Engine
	images  *imagemeta.Resolver
	prober  media.Prober
	logger  *slog.Logger

	mu      sync.RWMutex
	video   *media.Info
	onVideo func(media.Info)
}

func New(store *overlay.Store, images *imagemeta.Resolver, prober media.Prober, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{
		store:   store,
		session: editor.NewSession(store, logging.WithComponent(logger, "editor")),
		engine:  layout.NewEngine(),
		images:  images,
		prober:  prober,
		logger:  logger,
	}
}

func (s *Shell) Session() *editor.Session {
	return s.session
}

func (s *Shell) Engine() *layout.Engine {
	return s.engine
}

func (s *Shell) Images() *imagemeta.Resolver {
	return s.images
}

// Start initializes the store and loads the working list. A store that
// cannot be initialized is logged and the default overlays are used.
func (s *Shell) Start(ctx context.Context) {
	if err := s.store.Initialize(ctx); err != nil {
		s.logger.Warn("store unavailable, running in memory", "error", err)
	}

	items := s.store.LoadAll(ctx)
	s.session.Replace(items)
	s.prefetch(items)

	if v, err := s.store.Video(ctx); err == nil && v != nil {
		info := media.Info{
			Path:     v.Path,
			Name:     v.Name,
			Size:     v.Size,
			Width:    v.Width,
			Height:   v.Height,
			Duration: v.Duration,
		}
		s.setVideo(info)
	}

	s.logger.Info("editor ready", "overlays", len(items), "store_available", s.store.Available())
}

// Import replaces the overlay list with the contents of a delimited file. A
// malformed file leaves everything untouched. A store failure is logged and
// the new list is still used in memory.
func (s *Shell) Import(ctx context.Context, r io.Reader) ([]overlay.Overlay, error) {
	items, err := csvcodec.Parse(r)
	if err != nil {
		return nil, err
	}

	if err := s.store.ReplaceAll(ctx, items); err != nil {
		s.logger.Warn("imported overlays not persisted", "count", len(items), "error", err)
		for i := range items {
			items[i].ID = 0
		}
	}
	s.session.Replace(items)
	s.prefetch(items)

	s.logger.Info("overlays imported", "count", humanize.Comma(int64(len(items))))
	return s.session.Items(), nil
}

// Export writes the current list, sorted by start time.
func (s *Shell) Export(w io.Writer) error {
	return csvcodec.Serialize(w, s.session.Items())
}

// ExportEDL writes the list as an edit decision list and returns the number
// of events. Overlays with an empty time window are left out.
func (s *Shell) ExportEDL(w io.Writer, title string, frameRate float64) (int, error) {
	cues := export.CuesFromOverlays(s.session.Items())
	_, err := io.WriteString(w, export.GenerateEDL(cues, title, frameRate))
	return len(cues), err
}

// StoreAvailable reports whether changes are being persisted.
func (s *Shell) StoreAvailable() bool {
	return s.store.Available()
}

// SummaryRow is one line of the read-only overlay table.
type SummaryRow struct {
	Key      string `json:"key"`
	Image    string `json:"image"`
	Position string `json:"position"`
	Width    string `json:"width"`
	Time     string `json:"time"`
	Settings string `json:"settings"`
}

func (s *Shell) Summary() []SummaryRow {
	items := s.session.Items()
	rows := make([]SummaryRow, len(items))
	for i, o := range items {
		rows[i] = SummaryRow{
			Key:      o.Key,
			Image:    o.ImageURL,
			Position: fmt.Sprintf("X: %d, Y: %d", o.PositionX, o.PositionY),
			Width:    fmt.Sprintf("%dpx", o.Width),
			Time:     fmt.Sprintf("%ss - %ss", humanize.Ftoa(o.StartTime), humanize.Ftoa(o.EndTime())),
			Settings: fmt.Sprintf("%s, %s", o.Background, o.Transition),
		}
	}
	return rows
}

// LoadVideo registers a local video. When ffprobe cannot read the file the
// video is still registered with the default 1920x1080 frame and an unknown
// duration. Only a missing or unreadable file is an error.
func (s *Shell) LoadVideo(ctx context.Context, path string) (media.Info, error) {
	info, err := s.prober.Probe(ctx, path)
	if err != nil {
		if info.Path == "" {
			return media.Info{}, err
		}
		s.logger.Warn("video metadata unavailable, using default frame", "path", logging.SanitizePath(path), "error", err)
		info.Width, info.Height, info.Duration = media.DefaultWidth, media.DefaultHeight, 0
	}

	s.setVideo(info)

	err = s.store.SaveVideo(ctx, &overlay.Video{
		Path:      info.Path,
		Name:      info.Name,
		Size:      info.Size,
		Width:     info.Width,
		Height:    info.Height,
		Duration:  info.Duration,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("video not persisted", "path", logging.SanitizePath(path), "error", err)
	}

	s.logger.Info("video loaded",
		"path", logging.SanitizePath(info.Path),
		"size", info.SizeHuman(),
		"width", info.Width,
		"height", info.Height,
		"duration", info.Duration,
	)

	s.mu.RLock()
	onVideo := s.onVideo
	s.mu.RUnlock()
	if onVideo != nil {
		onVideo(info)
	}
	return info, nil
}

// OnVideoLoaded registers fn to run after every successful LoadVideo. When a
// video is already registered, restored by Start or loaded earlier, fn runs
// for it before OnVideoLoaded returns.
func (s *Shell) OnVideoLoaded(fn func(media.Info)) {
	s.mu.Lock()
	s.onVideo = fn
	var current *media.Info
	if s.video != nil {
		v := *s.video
		current = &v
	}
	s.mu.Unlock()

	if fn != nil && current != nil {
		fn(*current)
	}
}

// ReloadVideo probes the registered video again. It reports false when no
// video is registered.
func (s *Shell) ReloadVideo(ctx context.Context) (media.Info, bool, error) {
	current, ok := s.Video()
	if !ok {
		return media.Info{}, false, nil
	}
	info, err := s.LoadVideo(ctx, current.Path)
	return info, true, err
}

func (s *Shell) setVideo(info media.Info) {
	s.mu.Lock()
	s.video = &info
	s.mu.Unlock()
	s.engine.SetNativeFrame(info.Width, info.Height, info.Duration)
}

// Video returns the registered video, if any.
func (s *Shell) Video() (media.Info, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.video == nil {
		return media.Info{}, false
	}
	return *s.video, true
}

// Preview seeks to t and lays out the visible overlays. A non-positive
// viewport width keeps the current one.
func (s *Shell) Preview(t, viewportWidth float64) layout.Frame {
	if viewportWidth > 0 {
		s.engine.SetViewportWidth(viewportWidth)
	}
	s.engine.Seek(t)
	return s.engine.Frame(s.session.Items(), s.images.Lookup)
}

// Row is an editing table row with its playback and size annotations.
type Row struct {
	editor.Row
	Active        bool `json:"active"`
	DerivedHeight *int `json:"derived_height"`
}

// Rows returns the editing table, marking the rows visible at the current
// playback time.
func (s *Shell) Rows() []Row {
	t := s.engine.Current()
	base := s.session.Rows()
	rows := make([]Row, len(base))
	for i, r := range base {
		rows[i] = Row{Row: r, Active: layout.Visible(r.Overlay, t)}
		if d, ok := s.images.Lookup(r.ImageURL); ok {
			h := layout.DerivedHeight(r.Width, d)
			rows[i].DerivedHeight = &h
		}
	}
	return rows
}

// Add appends a new overlay in edit mode and starts loading its image size.
func (s *Shell) Add(ctx context.Context, url string) (overlay.Overlay, error) {
	o, err := s.session.Add(ctx, url)
	if err != nil {
		return o, err
	}
	s.images.Prefetch([]string{o.ImageURL})
	return o, nil
}

// SaveEdit commits the row in edit mode and loads the size of a changed image.
func (s *Shell) SaveEdit(ctx context.Context, key string) (overlay.Overlay, error) {
	o, err := s.session.Save(ctx, key)
	if err != nil {
		return o, err
	}
	s.images.Prefetch([]string{o.ImageURL})
	return o, nil
}

// ApplyTargetHeight resizes the selected rows to a common rendered height.
func (s *Shell) ApplyTargetHeight(ctx context.Context, targetHeight int) int {
	return s.session.ApplyTargetHeight(ctx, targetHeight, s.images.Lookup)
}

// Jump moves playback to the start of an overlay.
func (s *Shell) Jump(key string) (float64, error) {
	t, ok := s.session.StartTimeOf(key)
	if !ok {
		return 0, editor.ErrNotFound
	}
	return s.engine.Seek(t), nil
}

func (s *Shell) prefetch(items []overlay.Overlay) {
	urls := make([]string, 0, len(items))
	for _, o := range items {
		urls = append(urls, o.ImageURL)
	}
	s.images.Prefetch(urls)
}
