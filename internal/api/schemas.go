package api

import (
	"github.com/heimdex/overlay-editor/internal/app"
	"github.com/heimdex/overlay-editor/internal/imagemeta"
	"github.com/heimdex/overlay-editor/internal/layout"
	"github.com/heimdex/overlay-editor/internal/media"
	"github.com/heimdex/overlay-editor/internal/overlay"
)

type HealthResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	UptimeS        int64  `json:"uptime_s"`
	StoreAvailable bool   `json:"store_available"`
	Overlays       int    `json:"overlays"`
}

type OverlaysResponse struct {
	Time     float64   `json:"time"`
	Overlays []app.Row `json:"overlays"`
}

type AddOverlayRequest struct {
	ImageURL string `json:"image_url"`
}

type OverlayResponse struct {
	Overlay overlay.Overlay `json:"overlay"`
}

type PendingResponse struct {
	Key     string        `json:"key"`
	Pending overlay.Patch `json:"pending"`
}

type SelectResponse struct {
	Key       string   `json:"key"`
	Selected  bool     `json:"selected"`
	Selection []string `json:"selection"`
}

type JumpResponse struct {
	Key  string  `json:"key"`
	Time float64 `json:"time"`
}

type ResizeRequest struct {
	TargetHeight int `json:"target_height"`
}

type ResizeResponse struct {
	Resized  int       `json:"resized"`
	Overlays []app.Row `json:"overlays"`
}

type ImportResponse struct {
	Count    int               `json:"count"`
	Overlays []overlay.Overlay `json:"overlays"`
}

type SummaryResponse struct {
	Rows []app.SummaryRow `json:"rows"`
}

type VideoRequest struct {
	Path string `json:"path"`
}

type VideoResponse struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	Size      int64   `json:"size"`
	SizeHuman string  `json:"size_human"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Duration  float64 `json:"duration"`
	Known     bool    `json:"duration_known"`
}

type PreviewResponse struct {
	layout.Frame
	Grid layout.Grid `json:"grid"`
}

type PointerResponse struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type DimensionsResponse struct {
	URL    string          `json:"url"`
	State  imagemeta.State `json:"state"`
	Width  int             `json:"width,omitempty"`
	Height int             `json:"height,omitempty"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column string `json:"column,omitempty"`
}

func VideoToResponse(v media.Info) VideoResponse {
	return VideoResponse{
		Name:      v.Name,
		Path:      v.Path,
		Size:      v.Size,
		SizeHuman: v.SizeHuman(),
		Width:     v.Width,
		Height:    v.Height,
		Duration:  v.Duration,
		Known:     v.DurationKnown(),
	}
}
