package layout

import (
	"math"
	"testing"

	"github.com/heimdex/overlay-editor/internal/imagemeta"
	"github.com/heimdex/overlay-editor/internal/overlay"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestVisible(t *testing.T) {
	o := overlay.New("a.png") // start 2, duration 8

	tests := []struct {
		t    float64
		want bool
	}{
		{1.999, false},
		{2, true},
		{6, true},
		{10, true},
		{10.001, false},
	}

	for _, tt := range tests {
		if got := Visible(o, tt.t); got != tt.want {
			t.Errorf("Visible(t=%v) = %v, want %v", tt.t, got, tt.want)
		}
	}
}

func TestVisible_EmptyWindow(t *testing.T) {
	o := overlay.New("a.png")
	o.Duration = 0
	if !Visible(o, 2) {
		t.Error("zero duration should be visible at its start instant")
	}
	o.Duration = -1
	if Visible(o, 2) || Visible(o, 1.5) {
		t.Error("negative duration should never be visible")
	}
}

func TestTransition(t *testing.T) {
	fade := overlay.New("a.png")
	slide := overlay.New("b.png")
	slide.Transition = overlay.TransitionSlide

	m := Transition(fade, 2.5)
	if !almostEqual(m.Opacity, 0.5) || m.TranslateXPercent != 0 {
		t.Errorf("fade at 2.5 = %+v, want opacity 0.5", m)
	}

	m = Transition(slide, 2.5)
	if !almostEqual(m.TranslateXPercent, 50) || m.Opacity != 1 {
		t.Errorf("slide at 2.5 = %+v, want translate 50", m)
	}

	m = Transition(fade, 3)
	if m.Opacity != 1 || m.TranslateXPercent != 0 {
		t.Errorf("fade at 3 = %+v, want settled", m)
	}

	m = Transition(slide, 2)
	if m.TranslateXPercent != 100 {
		t.Errorf("slide at start = %+v, want translate 100", m)
	}
}

func TestStyle(t *testing.T) {
	o := overlay.New("a.png")
	o.PositionX, o.PositionY, o.Width = 100, 40, 300

	p := Style(o, 2.5, 0.5, imagemeta.Dimensions{Width: 600, Height: 300})
	if p.Left != 50 || p.Top != 20 || p.Width != 150 {
		t.Errorf("geometry = (%v,%v,%v), want (50,20,150)", p.Left, p.Top, p.Width)
	}
	if p.Height == nil || *p.Height != 75 {
		t.Errorf("Height = %v, want 75", p.Height)
	}
	if !almostEqual(p.Opacity, 0.35) {
		t.Errorf("Opacity = %v, want 0.7*0.5", p.Opacity)
	}
	if !p.Dimmed {
		t.Error("opacidad background should be dimmed")
	}

	o.Background = overlay.BackgroundTransparent
	p = Style(o, 5, 0.5, imagemeta.Dimensions{})
	if p.Opacity != 1 || p.Dimmed {
		t.Errorf("transparent settled = %+v, want opacity 1 undimmed", p)
	}
	if p.Height != nil {
		t.Error("Height should be nil when dimensions are unknown")
	}
}

func TestDerivedHeight(t *testing.T) {
	if got := DerivedHeight(300, imagemeta.Dimensions{Width: 4, Height: 3}); got != 225 {
		t.Errorf("DerivedHeight() = %d, want 225", got)
	}
	if got := DerivedHeight(300, imagemeta.Dimensions{}); got != 0 {
		t.Errorf("DerivedHeight(unknown) = %d, want 0", got)
	}
}

func TestFitWidth(t *testing.T) {
	if got := FitWidth(100, imagemeta.Dimensions{Width: 2, Height: 1}); got != 200 {
		t.Errorf("FitWidth(2:1) = %d, want 200", got)
	}
	if got := FitWidth(100, imagemeta.Dimensions{Width: 4, Height: 3}); got != 133 {
		t.Errorf("FitWidth(4:3) = %d, want 133", got)
	}
}

func TestGridLines(t *testing.T) {
	g := GridLines(1920, 1080, 100)
	if len(g.Vertical) != 20 || len(g.Horizontal) != 11 {
		t.Fatalf("grid = %d x %d lines, want 20 x 11", len(g.Vertical), len(g.Horizontal))
	}
	if g.Vertical[0] != 0 || g.Vertical[19] != 1900 || g.Horizontal[10] != 1000 {
		t.Errorf("grid positions = %v / %v", g.Vertical, g.Horizontal)
	}

	g = GridLines(200, 100, 0)
	if len(g.Vertical) != 3 || len(g.Horizontal) != 2 {
		t.Errorf("default step grid = %v / %v", g.Vertical, g.Horizontal)
	}
}
