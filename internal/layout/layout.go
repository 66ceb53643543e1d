// Package layout computes which overlays are on screen at a playback time and
// where they are drawn inside a preview box that is scaled down from the
// native video frame.
package layout

import (
	"math"

	"github.com/heimdex/overlay-editor/internal/imagemeta"
	"github.com/heimdex/overlay-editor/internal/overlay"
)

const (
	// FadeWindow is how long the entry transition runs, in seconds.
	FadeWindow = 1.0

	// DimOpacity is the overlay opacity for the opacidad background.
	DimOpacity = 0.7

	// GridStep is the spacing of the editor guide lines in native pixels.
	GridStep = 100
)

// Viewport relates the native video frame to the rendered preview width.
type Viewport struct {
	NativeWidth   int     `json:"native_width"`
	NativeHeight  int     `json:"native_height"`
	RenderedWidth float64 `json:"rendered_width"`
}

// Scale is the uniform factor from native to rendered pixels.
func (v Viewport) Scale() float64 {
	if v.NativeWidth <= 0 {
		return 0
	}
	return v.RenderedWidth / float64(v.NativeWidth)
}

// RenderedHeight is the preview height implied by the native aspect ratio.
func (v Viewport) RenderedHeight() float64 {
	return float64(v.NativeHeight) * v.Scale()
}

// Visible reports whether o is on screen at time t. Both ends of the window
// are inclusive.
func Visible(o overlay.Overlay, t float64) bool {
	return o.StartTime <= t && t <= o.StartTime+o.Duration
}

// Motion is the state of an entry transition.
type Motion struct {
	Opacity           float64 `json:"opacity"`
	TranslateXPercent float64 `json:"translate_x_percent"`
}

// Transition returns the entry animation state of o at time t. Once the fade
// window has passed the overlay is fully settled.
func Transition(o overlay.Overlay, t float64) Motion {
	elapsed := t - o.StartTime
	if elapsed >= FadeWindow {
		return Motion{Opacity: 1}
	}
	progress := math.Max(elapsed/FadeWindow, 0)

	if o.Transition == overlay.TransitionSlide {
		return Motion{Opacity: 1, TranslateXPercent: (1 - progress) * 100}
	}
	return Motion{Opacity: progress}
}

// Placement is where and how one overlay is drawn in the preview.
type Placement struct {
	Key               string   `json:"key"`
	ImageURL          string   `json:"image_url"`
	Left              float64  `json:"left"`
	Top               float64  `json:"top"`
	Width             float64  `json:"width"`
	Height            *float64 `json:"height"`
	Opacity           float64  `json:"opacity"`
	TranslateXPercent float64  `json:"translate_x_percent"`
	Dimmed            bool     `json:"dimmed"`
}

// Style places o at time t. Height is nil when the image size is unknown and
// left to the renderer.
func Style(o overlay.Overlay, t, scale float64, dims imagemeta.Dimensions) Placement {
	m := Transition(o, t)

	base := 1.0
	if o.Background == overlay.BackgroundDim {
		base = DimOpacity
	}

	p := Placement{
		Key:               o.Key,
		ImageURL:          o.ImageURL,
		Left:              float64(o.PositionX) * scale,
		Top:               float64(o.PositionY) * scale,
		Width:             float64(o.Width) * scale,
		Opacity:           base * m.Opacity,
		TranslateXPercent: m.TranslateXPercent,
		Dimmed:            o.Background == overlay.BackgroundDim,
	}
	if dims.Known() {
		h := p.Width * float64(dims.Height) / float64(dims.Width)
		p.Height = &h
	}
	return p
}

// DerivedHeight is the native height of an overlay drawn at width, or 0 when
// the image size is unknown.
func DerivedHeight(width int, dims imagemeta.Dimensions) int {
	if !dims.Known() {
		return 0
	}
	return int(math.Round(float64(width) * float64(dims.Height) / float64(dims.Width)))
}

// FitWidth is the width that gives an image the target height at its own
// aspect ratio.
func FitWidth(targetHeight int, dims imagemeta.Dimensions) int {
	return int(math.Round(float64(targetHeight) * float64(dims.Width) / float64(dims.Height)))
}

// Grid holds guide line positions in native pixels.
type Grid struct {
	Vertical   []int `json:"vertical"`
	Horizontal []int `json:"horizontal"`
}

// GridLines returns lines every step pixels, starting at 0, across a
// width x height frame.
func GridLines(width, height, step int) Grid {
	if step <= 0 {
		step = GridStep
	}
	return Grid{
		Vertical:   lines(width, step),
		Horizontal: lines(height, step),
	}
}

func lines(extent, step int) []int {
	if extent < 0 {
		return []int{}
	}
	out := make([]int, 0, extent/step+1)
	for v := 0; v <= extent; v += step {
		out = append(out, v)
	}
	return out
}
