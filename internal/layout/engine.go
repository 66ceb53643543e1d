package layout

import (
	"math"
	"sync"

	"github.com/heimdex/overlay-editor/internal/imagemeta"
	"github.com/heimdex/overlay-editor/internal/media"
	"github.com/heimdex/overlay-editor/internal/overlay"
)

// DimensionLookup returns the intrinsic size of an image if it is known.
type DimensionLookup func(url string) (imagemeta.Dimensions, bool)

// Frame is the preview state at one playback time.
type Frame struct {
	Time       float64     `json:"time"`
	Duration   float64     `json:"duration"`
	Viewport   Viewport    `json:"viewport"`
	Scale      float64     `json:"scale"`
	Placements []Placement `json:"placements"`
}

// Engine tracks the playback position and the preview geometry.
type Engine struct {
	mu       sync.RWMutex
	viewport Viewport
	current  float64
	duration float64
}

func NewEngine() *Engine {
	return &Engine{
		viewport: Viewport{
			NativeWidth:  media.DefaultWidth,
			NativeHeight: media.DefaultHeight,
		},
	}
}

// SetNativeFrame updates the native video size and duration. Non-positive
// sizes keep the current frame; a non-positive duration means unknown.
func (e *Engine) SetNativeFrame(width, height int, duration float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if width > 0 && height > 0 {
		e.viewport.NativeWidth = width
		e.viewport.NativeHeight = height
	}
	if duration > 0 && !math.IsInf(duration, 0) {
		e.duration = duration
	} else {
		e.duration = 0
	}
	e.current = e.clamp(e.current)
}

// SetViewportWidth updates the rendered preview width.
func (e *Engine) SetViewportWidth(width float64) {
	if width < 0 || math.IsNaN(width) || math.IsInf(width, 0) {
		width = 0
	}
	e.mu.Lock()
	e.viewport.RenderedWidth = width
	e.mu.Unlock()
}

// Seek moves the playback position and returns where it landed.
func (e *Engine) Seek(t float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = e.clamp(t)
	return e.current
}

func (e *Engine) clamp(t float64) float64 {
	if t < 0 || math.IsNaN(t) {
		return 0
	}
	if e.duration > 0 && t > e.duration {
		return e.duration
	}
	return t
}

func (e *Engine) Current() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Duration is the media length in seconds, 0 when unknown.
func (e *Engine) Duration() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.duration
}

func (e *Engine) Viewport() Viewport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.viewport
}

func (e *Engine) Scale() float64 {
	return e.Viewport().Scale()
}

// Frame places every overlay visible at the current time, in list order.
func (e *Engine) Frame(items []overlay.Overlay, dims DimensionLookup) Frame {
	e.mu.RLock()
	vp, t, d := e.viewport, e.current, e.duration
	e.mu.RUnlock()

	scale := vp.Scale()
	f := Frame{
		Time:       t,
		Duration:   d,
		Viewport:   vp,
		Scale:      scale,
		Placements: []Placement{},
	}
	for _, o := range items {
		if !Visible(o, t) {
			continue
		}
		var size imagemeta.Dimensions
		if dims != nil {
			size, _ = dims(o.ImageURL)
		}
		f.Placements = append(f.Placements, Style(o, t, scale, size))
	}
	return f
}

// Active reports whether o is visible at the current time.
func (e *Engine) Active(o overlay.Overlay) bool {
	return Visible(o, e.Current())
}

// ToNative maps a pointer position inside the preview to native pixels.
func (e *Engine) ToNative(x, y float64) (int, int, bool) {
	scale := e.Scale()
	if scale <= 0 {
		return 0, 0, false
	}
	return int(math.Round(x / scale)), int(math.Round(y / scale)), true
}

// Grid returns the guide lines for the native frame.
func (e *Engine) Grid() Grid {
	vp := e.Viewport()
	return GridLines(vp.NativeWidth, vp.NativeHeight, GridStep)
}
